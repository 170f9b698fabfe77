package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newOpenAITestServer(t *testing.T, status int, body string, seen *map[string]any, header *http.Header) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if header != nil {
			*header = r.Header.Clone()
		}
		if seen != nil {
			if err := json.NewDecoder(r.Body).Decode(seen); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIProvider_ChatSendsMultimodalRequest(t *testing.T) {
	var seen map[string]any
	var header http.Header
	srv := newOpenAITestServer(t, http.StatusOK,
		`{"choices":[{"message":{"role":"assistant","content":"  Great resume!  "}}]}`, &seen, &header)

	p := NewOpenAIProvider(srv.URL+"/v1/", "sk-test", "gpt-4-turbo", "https://example.com", "career-chat", time.Second)
	reply, err := p.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "be helpful"},
		{Role: RoleUser, Parts: []Part{
			TextPart("review this"),
			FilePart("cv.pdf", "data:application/pdf;base64,JVBERg=="),
			FilePart("me.png", "data:image/png;base64,iVBORw=="),
		}},
	}, Params{Temperature: 0.7, MaxTokens: 500})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "  Great resume!  " {
		t.Fatalf("provider should return content as-is, got %q", reply)
	}

	if got := header.Get("Authorization"); got != "Bearer sk-test" {
		t.Fatalf("unexpected auth header %q", got)
	}
	if header.Get("HTTP-Referer") != "https://example.com" || header.Get("X-Title") != "career-chat" {
		t.Fatalf("expected attribution headers, got %v", header)
	}

	if seen["model"] != "gpt-4-turbo" || seen["max_tokens"].(float64) != 500 {
		t.Fatalf("unexpected model/max_tokens: %v %v", seen["model"], seen["max_tokens"])
	}
	if temp := seen["temperature"].(float64); temp < 0.69 || temp > 0.71 {
		t.Fatalf("unexpected temperature %v", temp)
	}

	msgs := seen["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	sys := msgs[0].(map[string]any)
	if sys["role"] != "system" || sys["content"] != "be helpful" {
		t.Fatalf("unexpected system message %v", sys)
	}
	parts := msgs[1].(map[string]any)["content"].([]any)
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(parts))
	}
	text := parts[0].(map[string]any)
	if text["type"] != "text" || text["text"] != "review this" {
		t.Fatalf("unexpected text part %v", text)
	}
	file := parts[1].(map[string]any)
	if file["type"] != "file" {
		t.Fatalf("expected file part, got %v", file)
	}
	f := file["file"].(map[string]any)
	if f["filename"] != "cv.pdf" || f["file_data"] != "data:application/pdf;base64,JVBERg==" {
		t.Fatalf("unexpected file payload %v", f)
	}
	img := parts[2].(map[string]any)
	if img["type"] != "image_url" || img["image_url"].(map[string]any)["url"] != "data:image/png;base64,iVBORw==" {
		t.Fatalf("expected image_url part, got %v", img)
	}
}

func TestOpenAIProvider_Errors(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantSub string
	}{
		{"api error object", http.StatusTooManyRequests, `{"error":{"message":"You exceeded your current quota"}}`, "exceeded your current quota"},
		{"plain status", http.StatusBadGateway, ``, "status 502"},
		{"empty choices", http.StatusOK, `{"choices":[]}`, "empty response"},
		{"malformed body", http.StatusOK, `{"choices":`, "decode response"},
		{"error in 200", http.StatusOK, `{"error":{"message":"model overloaded"}}`, "model overloaded"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newOpenAITestServer(t, tc.status, tc.body, nil, nil)
			p := NewOpenAIProvider(srv.URL+"/v1", "sk-test", "m", "", "", time.Second)
			_, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Params{})
			if err == nil || !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("expected error containing %q, got %v", tc.wantSub, err)
			}
		})
	}
}

func TestOpenAIProvider_RequiresAPIKey(t *testing.T) {
	p := NewOpenAIProvider("", "", "", "", "", 0)
	if _, err := p.Chat(context.Background(), nil, Params{}); err == nil || !strings.Contains(err.Error(), "api key") {
		t.Fatalf("expected api key error, got %v", err)
	}
}

func TestOpenAIProvider_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL, "sk-test", "m", "", "", 50*time.Millisecond)
	if _, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Params{}); err == nil {
		t.Fatalf("expected timeout error")
	}
}
