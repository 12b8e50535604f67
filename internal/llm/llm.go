// Package llm talks to hosted language models.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/rohits-web03/chainforge/internal/common"
	"github.com/rohits-web03/chainforge/internal/config"
)

// Client sends one prompt and returns the model's text.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// New builds the client selected by cfg.Provider. With no API key it
// returns common.ErrNotConfigured so callers can run without a model.
func New(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("language model: %w", common.ErrNotConfigured)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	switch cfg.Provider {
	case ProviderGemini, "":
		c, err := NewGeminiClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ProviderOpenAI:
		return NewOpenAIClient(ctx, cfg), nil
	default:
		return nil, fmt.Errorf("unknown language model provider %q", cfg.Provider)
	}
}

// wrap tags provider failures so the HTTP layer can report them as such.
func wrap(provider string, err error) error {
	return fmt.Errorf("%w: %s: %v", common.ErrExternalService, provider, err)
}
