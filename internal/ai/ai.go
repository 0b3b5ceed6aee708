// Package ai retrieves link suggestions for a document from language-model
// backends.
package ai

import "context"

// LinkSuggestion proposes linking a phrase in a document to another note.
type LinkSuggestion struct {
	TargetNote    string  `json:"targetNote"`
	Confidence    float64 `json:"confidence"`
	Reason        string  `json:"reason,omitempty"`
	SuggestedText string  `json:"suggestedText,omitempty"`
}

// VaultContext lists the notes a suggestion may point at.
type VaultContext struct {
	NotePaths  []string `json:"notePaths"`
	NoteTitles []string `json:"noteTitles"`
	Tags       []string `json:"tags"`
}

// SuggestLinksResult is the outcome of a suggestion request. Failures are
// values, not errors.
type SuggestLinksResult struct {
	Success     bool             `json:"success"`
	Provider    string           `json:"provider"`
	Suggestions []LinkSuggestion `json:"suggestions"`
	Error       string           `json:"error,omitempty"`
}

// Provider is a suggestion backend.
type Provider interface {
	Name() string
	IsAvailable() bool
	SuggestLinks(ctx context.Context, text, documentPath string, vc VaultContext) SuggestLinksResult
}

// Failed builds a failure result with no suggestions.
func Failed(provider, msg string) SuggestLinksResult {
	return SuggestLinksResult{Provider: provider, Suggestions: []LinkSuggestion{}, Error: msg}
}
