package backends

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/starford/vaultlinker/internal/ai"
)

// OpenAI requests suggestions from the chat completions API in JSON mode.
type OpenAI struct {
	cfg    Config
	client *openai.Client
	logger *slog.Logger
}

func NewOpenAI(cfg Config, logger *slog.Logger) *OpenAI {
	cfg = cfg.withDefaults(openai.GPT4oMini)
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &OpenAI{cfg: cfg, client: openai.NewClientWithConfig(oc), logger: logger}
}

func (p *OpenAI) Name() string      { return "openai" }
func (p *OpenAI) IsAvailable() bool { return p.cfg.APIKey != "" }

func (p *OpenAI) SuggestLinks(ctx context.Context, text, documentPath string, vc ai.VaultContext) ai.SuggestLinksResult {
	return ai.Suggest(ctx, p.Name(), p.complete, text, documentPath, vc, p.logger)
}

func (p *OpenAI) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: float32(p.cfg.Temperature),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
