package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type OllamaProvider struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

func NewOllamaProvider(baseURL, model string, timeout time.Duration) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3:latest"
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &OllamaProvider{
		BaseURL: baseURL,
		Model:   model,
		Client:  &http.Client{Timeout: timeout},
	}
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatReq struct {
	Model    string        `json:"model"`
	Messages []ollamaMsg   `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaMsg struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatResp struct {
	Message ollamaMsg `json:"message"`
	Error   string    `json:"error,omitempty"`
}

// toOllamaMessages flattens parts: images travel as raw base64 in Images,
// text/plain files are inlined, other documents are only named.
func toOllamaMessages(messages []Message) []ollamaMsg {
	out := make([]ollamaMsg, 0, len(messages))
	for _, m := range messages {
		if len(m.Parts) == 0 {
			out = append(out, ollamaMsg{Role: m.Role, Content: m.Content})
			continue
		}
		var text []string
		var images []string
		for _, p := range m.Parts {
			if p.Type != PartFile || p.File == nil {
				text = append(text, p.Text)
				continue
			}
			meta, payload, ok := strings.Cut(strings.TrimPrefix(p.File.FileData, "data:"), ",")
			switch {
			case ok && strings.HasPrefix(meta, "image/"):
				images = append(images, payload)
			case ok && strings.HasPrefix(meta, "text/plain"):
				raw, err := base64.StdEncoding.DecodeString(payload)
				if err != nil {
					text = append(text, fmt.Sprintf("[attached file: %s]", p.File.Filename))
					continue
				}
				text = append(text, fmt.Sprintf("[attached file: %s]\n%s", p.File.Filename, raw))
			default:
				text = append(text, fmt.Sprintf("[attached file: %s (content not readable by this model)]", p.File.Filename))
			}
		}
		out = append(out, ollamaMsg{Role: m.Role, Content: strings.Join(text, "\n\n"), Images: images})
	}
	return out
}

func (p *OllamaProvider) Chat(ctx context.Context, messages []Message, params Params) (string, error) {
	if p.Client == nil {
		return "", errors.New("ollama: http client is nil")
	}

	reqBody := ollamaChatReq{
		Model:    p.Model,
		Stream:   false,
		Messages: toOllamaMessages(messages),
		Options: ollamaOptions{
			Temperature: params.Temperature,
			NumPredict:  params.MaxTokens,
		},
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/api/chat", strings.TrimRight(p.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("ollama: status %d", resp.StatusCode)
	}

	var decoded ollamaChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Error != "" {
		return "", errors.New(decoded.Error)
	}
	return decoded.Message.Content, nil
}
