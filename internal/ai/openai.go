package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIProvider talks to any OpenAI compatible chat/completions endpoint
// (api.openai.com, OpenRouter, ...).
type OpenAIProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	SiteURL string
	AppName string
	Client  *http.Client
}

type openAIFile struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	File     *openAIFile     `json:"file,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIMsg struct {
	Role string `json:"role"`
	// string or []openAIPart
	Content any `json:"content"`
}

type openAIChatReq struct {
	Model       string      `json:"model"`
	Messages    []openAIMsg `json:"messages"`
	Temperature float32     `json:"temperature"`
	MaxTokens   int         `json:"max_tokens,omitempty"`
	Stream      bool        `json:"stream"`
}

type openAIChatResp struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewOpenAIProvider(baseURL, apiKey, model, siteURL, appName string, timeout time.Duration) *OpenAIProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4-turbo"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		SiteURL: siteURL,
		AppName: appName,
		Client:  &http.Client{Timeout: timeout},
	}
}

func toOpenAIMessages(messages []Message) []openAIMsg {
	out := make([]openAIMsg, 0, len(messages))
	for _, m := range messages {
		if len(m.Parts) == 0 {
			out = append(out, openAIMsg{Role: m.Role, Content: m.Content})
			continue
		}
		parts := make([]openAIPart, 0, len(m.Parts))
		for _, p := range m.Parts {
			switch {
			case p.Type == PartFile && p.File != nil && isImageDataURL(p.File.FileData):
				parts = append(parts, openAIPart{Type: "image_url", ImageURL: &openAIImageURL{URL: p.File.FileData}})
			case p.Type == PartFile && p.File != nil:
				parts = append(parts, openAIPart{Type: "file", File: &openAIFile{
					Filename: p.File.Filename,
					FileData: p.File.FileData,
				}})
			default:
				parts = append(parts, openAIPart{Type: "text", Text: p.Text})
			}
		}
		out = append(out, openAIMsg{Role: m.Role, Content: parts})
	}
	return out
}

func isImageDataURL(s string) bool {
	return strings.HasPrefix(s, "data:image/")
}

func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message, params Params) (string, error) {
	if p.Client == nil {
		return "", errors.New("openai: http client is nil")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return "", errors.New("openai: api key is required")
	}
	model := strings.TrimSpace(p.Model)
	if model == "" {
		return "", errors.New("openai: model is required")
	}

	reqBody := openAIChatReq{
		Model:       model,
		Messages:    toOpenAIMessages(messages),
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
		Stream:      false,
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(p.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	if p.SiteURL != "" {
		req.Header.Set("HTTP-Referer", p.SiteURL)
	}
	if p.AppName != "" {
		req.Header.Set("X-Title", p.AppName)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(body))
		var decoded openAIChatResp
		if json.Unmarshal(body, &decoded) == nil && decoded.Error != nil && decoded.Error.Message != "" {
			msg = decoded.Error.Message
		}
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("openai: %s", msg)
	}

	var decoded openAIChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("openai: decode response: %w", err)
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", errors.New(decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("openai: empty response")
	}
	return decoded.Choices[0].Message.Content, nil
}
