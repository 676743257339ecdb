// Package ai wraps the text-generation providers behind a small Service that
// produces task prompts, session analyses, and improvement suggestions.
package ai

import (
	"context"

	"github.com/odvcencio/uplift/pkg/config"
	apperrors "github.com/odvcencio/uplift/pkg/errors"
)

// Provider is a single-turn text-generation backend.
type Provider interface {
	// Generate returns the model's text output for one prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// Model returns the model identifier requests are sent to.
	Model() string
}

// NewProvider builds the generation backend named by cfg.Provider. An empty
// name selects Gemini, matching the config default.
func NewProvider(cfg config.AIConfig) (Provider, error) {
	switch cfg.Provider {
	case "", config.AIProviderGoogle:
		return NewGoogleProvider(cfg.GoogleAPIKey, cfg.GoogleBaseURL, cfg.GoogleModel), nil
	case config.AIProviderAnthropic:
		return NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL, cfg.AnthropicModel), nil
	default:
		return nil, apperrors.New(apperrors.ErrCodeConfig, "unknown ai provider").
			WithContext("provider", cfg.Provider)
	}
}
