package llm

import (
	"context"
	"fmt"

	"github.com/abhisek/quizloop/internal/logger"
	"github.com/abhisek/quizloop/internal/store"
)

// NewProvider creates a Provider from configuration.
// It returns the provider wrapped with timeout, retry and logging middleware.
func NewProvider(ctx context.Context, cfg Config, eventRepo store.EventRepo, log *logger.Logger) (Provider, error) {
	var base Provider
	var err error

	switch cfg.Provider {
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case "openrouter":
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	case "mock":
		base = NewMockProvider()
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	// caller → timeout → retry → logging → base
	logged := WithLogging(base, eventRepo, log)
	retried := WithRetry(logged, cfg.Retry)

	return WithTimeout(retried, cfg.Timeout), nil
}

// NewEmbedder creates the configured Embedder, or nil when embedding is
// disabled.
func NewEmbedder(ctx context.Context, cfg Config) (Embedder, error) {
	switch cfg.Embedding.Provider {
	case "":
		return nil, nil
	case "openai":
		e, err := NewOpenAIEmbedder(cfg.OpenAI, cfg.Embedding.Model)
		if err != nil {
			return nil, err
		}
		return e, nil
	case "gemini":
		e, err := NewGeminiEmbedder(ctx, cfg.Gemini, cfg.Embedding.Model)
		if err != nil {
			return nil, err
		}
		return e, nil
	case "mock":
		return NewMockEmbedder(8), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Embedding.Provider)
	}
}
