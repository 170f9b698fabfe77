package ai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/suPer8Hu/career-chat/internal/config"
)

var ErrUnknownProvider = errors.New("unknown ai provider")

// ProviderFactory builds a provider; an empty model means the provider default.
type ProviderFactory func(ctx context.Context, model string) (Provider, error)

type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *Registry) Register(name string, f ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[normalize(name)] = f
}

func (r *Registry) Get(ctx context.Context, name string, model string) (Provider, error) {
	name = normalize(name)
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownProvider, name, strings.Join(r.Names(), ", "))
	}
	return f(ctx, model)
}

// Names lists the registered providers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewDefaultRegistry registers the providers the service ships with:
// "openai", "openrouter" (same wire format, OpenRouter base URL) and "ollama".
func NewDefaultRegistry(cfg config.Config) *Registry {
	reg := NewRegistry()
	timeout := cfg.CompletionTimeout

	reg.Register("openai", func(ctx context.Context, model string) (Provider, error) {
		_ = ctx
		return NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, pick(model, cfg.OpenAIModel), "", "", timeout), nil
	})
	reg.Register("openrouter", func(ctx context.Context, model string) (Provider, error) {
		_ = ctx
		base := cfg.OpenAIBaseURL
		if base == "" || strings.Contains(base, "api.openai.com") {
			base = "https://openrouter.ai/api/v1"
		}
		return NewOpenAIProvider(base, cfg.OpenAIAPIKey, pick(model, cfg.OpenAIModel), cfg.OpenRouterSiteURL, cfg.OpenRouterAppName, timeout), nil
	})
	reg.Register("ollama", func(ctx context.Context, model string) (Provider, error) {
		_ = ctx
		return NewOllamaProvider(cfg.OllamaBaseURL, pick(model, cfg.OllamaModel), ollamaTimeout(timeout)), nil
	})
	return reg
}

func pick(model, fallback string) string {
	if m := strings.TrimSpace(model); m != "" {
		return m
	}
	return fallback
}

// local models can take a while to load, keep at least 90s
func ollamaTimeout(d time.Duration) time.Duration {
	if d < 90*time.Second {
		return 90 * time.Second
	}
	return d
}
