// Package batch runs link suggestion and insertion across a folder of notes.
//
// A run has two phases. Suggest asks a backend for suggestions per document
// in bounded chunks; Apply inserts the surviving suggestions, concurrently,
// and writes the documents back unless it is a dry run.
package batch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/starford/vaultlinker/internal/ai"
	"github.com/starford/vaultlinker/internal/linker"
	"github.com/starford/vaultlinker/internal/storage"
)

const (
	DefaultConcurrency    = 3
	DefaultMinConfidence  = 0.5
	DefaultMaxSuggestions = 5
)

// DefaultInclude matches every Markdown document.
var DefaultInclude = []string{"**/*.md"}

// Suggester produces suggestions for one document. Implementations build the
// vault context themselves.
type Suggester interface {
	SuggestLinks(ctx context.Context, backend, text, path string) ai.SuggestLinksResult
}

// Item is the suggest-phase outcome for one document.
type Item struct {
	Path        string              `json:"path"`
	Suggestions []ai.LinkSuggestion `json:"suggestions"`
	Error       string              `json:"error,omitempty"`
}

// SuggestResult aggregates a suggest phase.
type SuggestResult struct {
	RunID            string `json:"runId"`
	Items            []Item `json:"items"`
	Processed        int    `json:"processed"`
	Successful       int    `json:"successful"`
	Failed           int    `json:"failed"`
	TotalSuggestions int    `json:"totalSuggestions"`
}

// ApplyItem is the apply-phase outcome for one document.
type ApplyItem struct {
	Path     string          `json:"path"`
	Inserted int             `json:"inserted"`
	Skipped  int             `json:"skipped"`
	Modified bool            `json:"modified"`
	Error    string          `json:"error,omitempty"`
	Changes  []linker.Change `json:"changes,omitempty"`
}

// ApplyResult aggregates an apply phase. Skipped counts documents left
// untouched.
type ApplyResult struct {
	RunID         string      `json:"runId"`
	DryRun        bool        `json:"dryRun"`
	Items         []ApplyItem `json:"items"`
	Processed     int         `json:"processed"`
	Modified      int         `json:"modified"`
	Skipped       int         `json:"skipped"`
	Failed        int         `json:"failed"`
	TotalInserted int         `json:"totalInserted"`
}

// SuggestOptions configure a suggest phase.
type SuggestOptions struct {
	Folder         string   `json:"folder"`
	Backend        string   `json:"backend"`
	Concurrency    int      `json:"concurrency"`
	MinConfidence  float64  `json:"minConfidence"`
	MaxSuggestions int      `json:"maxSuggestions"`
	Include        []string `json:"include,omitempty"`
	Exclude        []string `json:"exclude,omitempty"`
}

// DefaultSuggestOptions returns the documented defaults for folder.
func DefaultSuggestOptions(folder, backend string) SuggestOptions {
	return SuggestOptions{
		Folder:         folder,
		Backend:        backend,
		Concurrency:    DefaultConcurrency,
		MinConfidence:  DefaultMinConfidence,
		MaxSuggestions: DefaultMaxSuggestions,
	}
}

// ApplyOptions configure an apply phase.
type ApplyOptions struct {
	DryRun bool           `json:"dryRun"`
	Linker linker.Options `json:"linker"`
}

// Event reports progress of a run.
type Event struct {
	RunID       string `json:"runId"`
	Phase       string `json:"phase"` // "suggest" or "apply"
	Kind        string `json:"kind"`  // "item" or "completed"
	Path        string `json:"path,omitempty"`
	Done        int    `json:"done"`
	Total       int    `json:"total"`
	Suggestions int    `json:"suggestions,omitempty"`
	Inserted    int    `json:"inserted,omitempty"`
	Modified    bool   `json:"modified,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Processor runs batch phases against a document store.
type Processor struct {
	store     storage.Provider
	suggester Suggester
	logger    *slog.Logger

	progressMu sync.Mutex
	progress   func(Event)
}

// Option configures a Processor.
type Option func(*Processor)

// WithProgress registers a callback for progress events. Calls are
// serialized.
func WithProgress(fn func(Event)) Option {
	return func(p *Processor) { p.progress = fn }
}

// NewProcessor creates a Processor.
func NewProcessor(store storage.Provider, suggester Suggester, logger *slog.Logger, opts ...Option) *Processor {
	p := &Processor{store: store, suggester: suggester, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Processor) emit(e Event) {
	if p.progress == nil {
		return
	}
	p.progressMu.Lock()
	defer p.progressMu.Unlock()
	p.progress(e)
}
