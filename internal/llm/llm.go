package llm

import (
	"context"
	"errors"
	"fmt"

	"agentlayer/internal/config"
)

// Request is one generation call: an instruction-channel system text,
// the user prompt, and the JSON schema the answer must follow
type Request struct {
	System     string
	Prompt     string
	SchemaName string
	Schema     map[string]any
}

// Generator is the external text-generation service. Implementations
// make exactly one upstream call per Generate and never retry.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
	Close() error
}

// ErrMissingAPIKey is returned when a hosted provider has no credential
var ErrMissingAPIKey = errors.New("no API key configured")

// Options are the provider-independent generation settings
type Options struct {
	Model       string
	BaseURL     string
	APIKey      string
	MaxTokens   int
	Temperature float64
}

// New builds the provider named in cfg
func New(ctx context.Context, cfg *config.Config) (Generator, error) {
	opts := Options{
		Model:       cfg.ModelName(),
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.ResolveAPIKey(),
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}

	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGemini(ctx, opts)
	case config.ProviderOpenAI:
		return NewOpenAI(opts)
	case config.ProviderAnthropic:
		return NewAnthropic(opts)
	case config.ProviderLlama:
		s := NewLlamaServer(cfg.LlamaBinPath, cfg.ModelPath, cfg.ContextSize, cfg.ServerPort)
		s.MaxTokens = opts.MaxTokens
		s.Temperature = opts.Temperature
		if opts.BaseURL != "" {
			s.Attach(opts.BaseURL)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}

func requireKey(provider, key string) error {
	if key == "" {
		return fmt.Errorf("%s: %w", provider, ErrMissingAPIKey)
	}
	return nil
}
