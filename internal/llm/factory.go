package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/duckmesh/duckchat/internal/config"
)

// New builds the configured provider wrapped in the retry policy. A missing
// API key is a startup error.
func New(ctx context.Context, cfg config.AIConfig, logger *slog.Logger) (Completer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("DUCKCHAT_AI_API_KEY is required for provider %q", cfg.Provider)
	}

	var (
		provider Completer
		err      error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderGemini:
		provider, err = NewGeminiCompleter(ctx, GeminiConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		})
	case ProviderOpenAI:
		provider, err = NewOpenAICompleter(OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s completer: %w", cfg.Provider, err)
	}

	return NewRetryingCompleter(provider, RetryConfig{
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		AttemptTimeout: cfg.Timeout,
	}, logger), nil
}
