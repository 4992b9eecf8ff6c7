package llm

import (
	"context"
)

// Request is one completion call. All pipeline prompts expect the reply to
// contain a single JSON object.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
}

type Config struct {
	Provider        string
	Model           string
	BaseURL         string
	GeminiAPIKey    string
	OpenAIAPIKey    string
	AnthropicAPIKey string
}

func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "", "gemini":
		return NewGeminiProvider(GeminiConfig{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		}), nil
	case "openai":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		}), nil
	case "anthropic":
		return NewAnthropicProvider(AnthropicConfig{
			APIKey: cfg.AnthropicAPIKey,
			Model:  cfg.Model,
		}), nil
	default:
		return nil, ErrUnsupportedProvider{Provider: cfg.Provider}
	}
}
