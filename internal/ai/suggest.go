package ai

import (
	"context"
	"log/slog"
)

// CompleteFunc sends a system and user prompt to a model and returns the raw
// reply text.
type CompleteFunc func(ctx context.Context, system, user string) (string, error)

// Suggest runs the prompt, completion and parsing steps shared by every
// backend. A reply that cannot be parsed yields a successful result with no
// suggestions.
func Suggest(ctx context.Context, backend string, complete CompleteFunc, text, documentPath string, vc VaultContext, logger *slog.Logger) SuggestLinksResult {
	raw, err := complete(ctx, SystemPrompt(), BuildPrompt(text, documentPath, vc))
	if err != nil {
		return Failed(backend, err.Error())
	}

	parsed, err := ParseSuggestions(raw, vc)
	if err != nil {
		logger.Warn("ai: discarding malformed response",
			slog.String("backend", backend),
			slog.String("path", documentPath),
			slog.String("error", err.Error()),
		)
		return SuggestLinksResult{Success: true, Provider: backend, Suggestions: []LinkSuggestion{}}
	}
	return SuggestLinksResult{
		Success:     true,
		Provider:    backend,
		Suggestions: Normalize(parsed, documentPath),
	}
}
