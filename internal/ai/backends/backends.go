// Package backends adapts hosted and local language models to ai.Provider.
package backends

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/starford/vaultlinker/internal/ai"
)

// Config holds the settings of one backend.
type Config struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

func (c Config) withDefaults(model string) Config {
	if c.Model == "" {
		c.Model = model
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1024
	}
	return c
}

// New builds the named backend.
func New(name string, cfg Config, logger *slog.Logger) (ai.Provider, error) {
	switch name {
	case "openai":
		return NewOpenAI(cfg, logger), nil
	case "anthropic":
		return NewAnthropic(cfg, logger), nil
	case "gemini":
		return NewGemini(cfg, logger), nil
	case "ollama":
		return NewOllama(cfg, logger), nil
	default:
		return nil, fmt.Errorf("backends: unknown backend %q", name)
	}
}

// RegisterAll builds every configured backend and adds it to reg.
func RegisterAll(reg *ai.Registry, cfgs map[string]Config, logger *slog.Logger) error {
	names := make([]string, 0, len(cfgs))
	for name := range cfgs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p, err := New(name, cfgs[name], logger)
		if err != nil {
			return err
		}
		reg.Register(p)
		logger.Info("ai: backend registered",
			slog.String("backend", name),
			slog.Bool("available", p.IsAvailable()),
		)
	}
	return nil
}
