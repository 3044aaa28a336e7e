package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type ProviderFactory func(ctx context.Context, s Settings) (Provider, error)

type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

// DefaultRegistry knows the three hosted backends.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(ProviderOpenAI, func(ctx context.Context, s Settings) (Provider, error) {
		return NewOpenAIProvider(s)
	})
	r.Register(ProviderGemini, func(ctx context.Context, s Settings) (Provider, error) {
		return NewGeminiProvider(ctx, s)
	})
	r.Register(ProviderGroq, func(ctx context.Context, s Settings) (Provider, error) {
		return NewGroqProvider(s)
	})
	return r
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *Registry) Register(name string, f ProviderFactory) {
	name = normalize(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

func (r *Registry) Get(ctx context.Context, name string, s Settings) (Provider, error) {
	name = normalize(name)
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return f(ctx, s)
}

// Build resolves cfg.Provider and wraps it in a Tutor.
func (r *Registry) Build(ctx context.Context, cfg Config) (*Tutor, error) {
	name := normalize(cfg.Provider)
	s := cfg.settingsFor(name)
	p, err := r.Get(ctx, name, s)
	if err != nil {
		return nil, err
	}
	return NewTutor(name, s.Model, p), nil
}

func (c Config) settingsFor(name string) Settings {
	switch name {
	case ProviderOpenAI:
		return c.OpenAI
	case ProviderGemini:
		return c.Gemini
	case ProviderGroq:
		return c.Groq
	}
	return Settings{}
}

func requireKey(provider string, s Settings) error {
	if strings.TrimSpace(s.APIKey) == "" {
		return fmt.Errorf("%w: %s api key is not set", ErrMissingCredential, provider)
	}
	return nil
}
