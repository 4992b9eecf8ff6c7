package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"
)

type AnthropicConfig struct {
	APIKey string
	Model  string
}

type AnthropicProvider struct {
	apiKey string
	model  string
}

func NewAnthropicProvider(cfg AnthropicConfig) *AnthropicProvider {
	model := cfg.Model
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	return &AnthropicProvider{apiKey: cfg.APIKey, model: model}
}

func (p *AnthropicProvider) Generate(ctx context.Context, gen Request) (string, error) {
	if p.apiKey == "" {
		return "", errors.New("missing API key for anthropic provider")
	}
	settings := types.RequestSettings{
		Model:       p.model,
		MaxTokens:   gen.MaxTokens,
		Temperature: gen.Temperature,
	}
	response, err := anthropic.PromptWithSettings("", gen.Prompt, "", p.apiKey, settings)
	if err != nil {
		return "", err
	}
	if len(response.Content) == 0 {
		return "", errors.New("anthropic response had no content")
	}
	content := strings.TrimSpace(response.Content[0].Text)
	if content == "" {
		return "", errors.New("anthropic response was empty")
	}
	return content, nil
}
