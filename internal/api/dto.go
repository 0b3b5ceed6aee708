package api

import (
	"github.com/starford/vaultlinker/internal/ai"
	"github.com/starford/vaultlinker/internal/batch"
	"github.com/starford/vaultlinker/internal/index"
	"github.com/starford/vaultlinker/internal/linker"
	"github.com/starford/vaultlinker/internal/linkservice"
)

// SuggestRequest is the request body for POST /api/suggest.
type SuggestRequest struct {
	Path    string `json:"path" example:"journal/2024-05-01.md" validate:"required"`
	Backend string `json:"backend,omitempty" example:"openai"`
}

// LinkRequest is the request body for POST /api/link.
type LinkRequest struct {
	Path    string `json:"path" example:"journal/2024-05-01.md" validate:"required"`
	Backend string `json:"backend,omitempty" example:"anthropic"`
	DryRun  bool   `json:"dryRun,omitempty"`
}

// InsertRequest is the request body for POST /api/insert.
type InsertRequest struct {
	Path        string              `json:"path" example:"journal/2024-05-01.md" validate:"required"`
	Suggestions []ai.LinkSuggestion `json:"suggestions" validate:"required"`
	Options     *linker.Options     `json:"options,omitempty"`
	DryRun      bool                `json:"dryRun,omitempty"`
}

// BatchSuggestRequest is the request body for POST /api/batch/suggest.
// Unset fields fall back to the configured batch defaults.
type BatchSuggestRequest struct {
	Folder         string   `json:"folder" example:"journal"`
	Backend        string   `json:"backend,omitempty"`
	Concurrency    int      `json:"concurrency,omitempty" example:"3"`
	MinConfidence  *float64 `json:"minConfidence,omitempty" example:"0.5"`
	MaxSuggestions int      `json:"maxSuggestions,omitempty" example:"5"`
	Include        []string `json:"include,omitempty"`
	Exclude        []string `json:"exclude,omitempty"`
}

// BatchApplyRequest is the request body for POST /api/batch/apply. Run is
// the result of a previous batch suggest call.
type BatchApplyRequest struct {
	Run     batch.SuggestResult `json:"run" validate:"required"`
	Options *linker.Options     `json:"options,omitempty"`
	DryRun  *bool               `json:"dryRun,omitempty"`
}

// ProvidersResponse lists knowledge providers and suggestion backends.
type ProvidersResponse struct {
	Providers []linkservice.ProviderInfo `json:"providers" validate:"required"`
	Backends  []linkservice.ProviderInfo `json:"backends" validate:"required"`
}

// ClearCacheResponse reports how many cached lookups were dropped.
type ClearCacheResponse struct {
	Cleared int `json:"cleared" example:"12"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}
