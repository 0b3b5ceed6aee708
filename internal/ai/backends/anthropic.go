package backends

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/starford/vaultlinker/internal/ai"
)

// Anthropic requests suggestions from the Messages API.
type Anthropic struct {
	cfg    Config
	client anthropic.Client
	logger *slog.Logger
}

func NewAnthropic(cfg Config, logger *slog.Logger) *Anthropic {
	cfg = cfg.withDefaults("claude-3-5-haiku-latest")
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Anthropic{cfg: cfg, client: anthropic.NewClient(opts...), logger: logger}
}

func (p *Anthropic) Name() string      { return "anthropic" }
func (p *Anthropic) IsAvailable() bool { return p.cfg.APIKey != "" }

func (p *Anthropic) SuggestLinks(ctx context.Context, text, documentPath string, vc ai.VaultContext) ai.SuggestLinksResult {
	return ai.Suggest(ctx, p.Name(), p.complete, text, documentPath, vc, p.logger)
}

func (p *Anthropic) complete(ctx context.Context, system, user string) (string, error) {
	message, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(p.cfg.Model),
		MaxTokens:   int64(p.cfg.MaxTokens),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(user))},
		System:      []anthropic.TextBlockParam{{Text: system}},
		Temperature: anthropic.Float(p.cfg.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("messages request failed: %w", err)
	}

	var b strings.Builder
	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			b.WriteString(variant.Text)
		}
	}
	return b.String(), nil
}
