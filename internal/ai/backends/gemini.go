package backends

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"google.golang.org/genai"

	"github.com/starford/vaultlinker/internal/ai"
)

// Gemini requests suggestions from the Gemini API with a JSON response type.
// The client is created on first use.
type Gemini struct {
	cfg    Config
	logger *slog.Logger

	once    sync.Once
	client  *genai.Client
	initErr error
}

func NewGemini(cfg Config, logger *slog.Logger) *Gemini {
	return &Gemini{cfg: cfg.withDefaults("gemini-2.0-flash"), logger: logger}
}

func (p *Gemini) Name() string      { return "gemini" }
func (p *Gemini) IsAvailable() bool { return p.cfg.APIKey != "" }

func (p *Gemini) SuggestLinks(ctx context.Context, text, documentPath string, vc ai.VaultContext) ai.SuggestLinksResult {
	return ai.Suggest(ctx, p.Name(), p.complete, text, documentPath, vc, p.logger)
}

func (p *Gemini) init(ctx context.Context) error {
	p.once.Do(func() {
		cc := &genai.ClientConfig{APIKey: p.cfg.APIKey, Backend: genai.BackendGeminiAPI}
		if p.cfg.BaseURL != "" {
			cc.HTTPOptions = genai.HTTPOptions{BaseURL: p.cfg.BaseURL}
		}
		p.client, p.initErr = genai.NewClient(ctx, cc)
		if p.initErr != nil {
			p.initErr = fmt.Errorf("failed to initialize Gemini client: %w", p.initErr)
		}
	})
	return p.initErr
}

func (p *Gemini) complete(ctx context.Context, system, user string) (string, error) {
	if err := p.init(ctx); err != nil {
		return "", err
	}
	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(float32(p.cfg.Temperature)),
		MaxOutputTokens:   int32(p.cfg.MaxTokens),
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}
	resp, err := p.client.Models.GenerateContent(ctx, p.cfg.Model, genai.Text(user), config)
	if err != nil {
		return "", fmt.Errorf("generate content failed: %w", err)
	}
	out := resp.Text()
	if out == "" {
		return "", fmt.Errorf("empty response from Gemini")
	}
	return out, nil
}
