package backends

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starford/vaultlinker/internal/ai"
)

const defaultOllamaURL = "http://localhost:11434"

// Ollama requests suggestions from a local Ollama server's chat endpoint.
type Ollama struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

func NewOllama(cfg Config, logger *slog.Logger) *Ollama {
	cfg = cfg.withDefaults("llama3.1")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOllamaURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Ollama{
		cfg:    cfg,
		client: &http.Client{Transport: &http.Transport{ForceAttemptHTTP2: false}},
		logger: logger,
	}
}

func (p *Ollama) Name() string      { return "ollama" }
func (p *Ollama) IsAvailable() bool { return p.cfg.BaseURL != "" && p.cfg.Model != "" }

func (p *Ollama) SuggestLinks(ctx context.Context, text, documentPath string, vc ai.VaultContext) ai.SuggestLinksResult {
	return ai.Suggest(ctx, p.Name(), p.complete, text, documentPath, vc, p.logger)
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

func (p *Ollama) complete(ctx context.Context, system, user string) (string, error) {
	payload := map[string]any{
		"model": p.cfg.Model,
		"messages": []ollamaMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		"stream": false,
		"format": "json",
		"options": map[string]any{
			"temperature": p.cfg.Temperature,
			"num_predict": p.cfg.MaxTokens,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama: /api/chat failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama: /api/chat returned %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}

	var out ollamaChatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("ollama: decode response: %w", err)
	}
	return out.Message.Content, nil
}
