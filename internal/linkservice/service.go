// Package linkservice is the facade every transport (REST, MCP, CLI) calls
// into. It ties the document store, the note index, the knowledge registry,
// the suggestion backends, the insertion engine and the batch processor
// together.
package linkservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/starford/vaultlinker/internal/ai"
	"github.com/starford/vaultlinker/internal/apperr"
	"github.com/starford/vaultlinker/internal/batch"
	"github.com/starford/vaultlinker/internal/index"
	"github.com/starford/vaultlinker/internal/knowledge"
	"github.com/starford/vaultlinker/internal/linker"
	"github.com/starford/vaultlinker/internal/storage"
	"github.com/starford/vaultlinker/internal/vaultctx"
)

// Settings are the service-wide defaults transports fall back to.
type Settings struct {
	DefaultBackend string
	MinConfidence  float64
	MaxSuggestions int
	Linker         linker.Options
	// Batch holds the defaults for batch runs; Folder and Backend are ignored.
	Batch batch.SuggestOptions
	// BatchDryRun is the default for batch apply.
	BatchDryRun bool
}

// DefaultSettings returns the defaults used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		MinConfidence:  0.5,
		MaxSuggestions: 10,
		Linker:         linker.DefaultOptions(),
		Batch:          batch.DefaultSuggestOptions("", ""),
	}
}

// Notifier receives events about rewritten documents and batch progress.
type Notifier interface {
	PublishLinkEvent(path string, inserted int)
	PublishBatchEvent(e batch.Event)
}

// ProviderInfo describes a registered knowledge provider or suggestion backend.
type ProviderInfo struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Default   bool   `json:"default,omitempty"`
}

// LinkResult is the outcome of suggesting and inserting links in one document.
type LinkResult struct {
	Path        string                `json:"path"`
	DryRun      bool                  `json:"dryRun"`
	Suggestions ai.SuggestLinksResult `json:"suggestions"`
	Insert      linker.Result         `json:"insert"`
}

// Service coordinates lookups, suggestions and link insertion.
type Service struct {
	store     storage.Provider
	db        *index.DB
	knowledge *knowledge.Registry
	backends  *ai.Registry
	vault     *vaultctx.Builder
	batch     *batch.Processor
	settings  Settings
	notifier  Notifier
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithSettings overrides DefaultSettings.
func WithSettings(s Settings) Option {
	return func(svc *Service) { svc.settings = s }
}

// WithNotifier sends link and batch events to n.
func WithNotifier(n Notifier) Option {
	return func(svc *Service) { svc.notifier = n }
}

// New creates a Service.
func New(store storage.Provider, db *index.DB, kr *knowledge.Registry, backends *ai.Registry, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		db:        db,
		knowledge: kr,
		backends:  backends,
		vault:     vaultctx.New(db, store, logger),
		settings:  DefaultSettings(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.batch = batch.NewProcessor(store, suggester{s}, logger, batch.WithProgress(func(e batch.Event) {
		if s.notifier != nil {
			s.notifier.PublishBatchEvent(e)
		}
	}))
	return s
}

// Settings returns the service defaults.
func (s *Service) Settings() Settings { return s.settings }

// BatchOptions returns the configured batch defaults for folder.
func (s *Service) BatchOptions(folder, backend string) batch.SuggestOptions {
	opts := s.settings.Batch
	opts.Folder = folder
	opts.Backend = s.backend(backend)
	opts.Include = append([]string(nil), opts.Include...)
	opts.Exclude = append([]string(nil), opts.Exclude...)
	return opts
}

// Lookup queries one knowledge provider, or all of them in order when
// provider is empty or "auto".
func (s *Service) Lookup(ctx context.Context, query, provider string, opts knowledge.LookupOptions) knowledge.LookupResult {
	if provider == "" {
		provider = knowledge.Auto
	}
	if strings.TrimSpace(query) == "" {
		return knowledge.Failed(provider, "query is required")
	}
	return s.knowledge.Lookup(ctx, strings.TrimSpace(query), provider, opts)
}

// Providers lists knowledge providers with their availability.
func (s *Service) Providers(ctx context.Context) []ProviderInfo {
	available := make(map[string]bool)
	for _, name := range s.knowledge.AvailableProviders(ctx) {
		available[name] = true
	}
	names := s.knowledge.Providers()
	out := make([]ProviderInfo, 0, len(names))
	for _, name := range names {
		out = append(out, ProviderInfo{Name: name, Available: available[name]})
	}
	return out
}

// ClearCache empties the lookup cache and returns how many entries it held.
func (s *Service) ClearCache() int {
	n := s.knowledge.CacheSize()
	s.knowledge.ClearCache()
	s.logger.Info("linkservice: knowledge cache cleared", "entries", n)
	return n
}

// PruneCache drops expired lookups and returns how many were removed.
func (s *Service) PruneCache() int {
	return s.knowledge.PruneCache()
}

// Backends lists suggestion backends with their availability.
func (s *Service) Backends() []ProviderInfo {
	names := s.backends.Names()
	out := make([]ProviderInfo, 0, len(names))
	for _, name := range names {
		p, _ := s.backends.Get(name)
		out = append(out, ProviderInfo{
			Name:      name,
			Available: p.IsAvailable(),
			Default:   name == s.settings.DefaultBackend,
		})
	}
	return out
}

// SuggestLinks asks a backend for link suggestions for the document at path.
// An empty backend selects the configured default. Only a missing document
// or a bad path is returned as an error; backend failures are part of the
// result.
func (s *Service) SuggestLinks(ctx context.Context, path, backend string) (ai.SuggestLinksResult, error) {
	data, err := s.read(path)
	if err != nil {
		return ai.SuggestLinksResult{}, err
	}
	res := s.suggest(ctx, s.backend(backend), string(data), path)
	if res.Success {
		res.Suggestions = ai.Filter(ai.Normalize(res.Suggestions, path), s.settings.MinConfidence, s.settings.MaxSuggestions)
	}
	return res, nil
}

// InsertLinks inserts suggestions into the document at path. Unless dryRun is
// set, a changed document is written back and re-indexed.
func (s *Service) InsertLinks(ctx context.Context, path string, suggestions []ai.LinkSuggestion, opts linker.Options, dryRun bool) (linker.Result, error) {
	data, err := s.read(path)
	if err != nil {
		return linker.Result{}, err
	}
	res := linker.Insert(string(data), suggestions, opts)
	if dryRun || !res.Modified() {
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return linker.Result{}, err
	}
	if err := s.store.Write(path, []byte(res.NewContent)); err != nil {
		return linker.Result{}, fmt.Errorf("linkservice: write %s: %w", path, err)
	}
	if err := index.IndexFile(s.db, path, []byte(res.NewContent)); err != nil {
		s.logger.Warn("linkservice: reindex failed", slog.String("path", path), slog.String("error", err.Error()))
	}
	s.logger.Info("linkservice: links inserted", "path", path, "inserted", res.InsertedLinks, "skipped", res.SkippedLinks)
	if s.notifier != nil {
		s.notifier.PublishLinkEvent(path, res.InsertedLinks)
	}
	return res, nil
}

// LinkDocument suggests links for one document and inserts them with the
// configured linker options.
func (s *Service) LinkDocument(ctx context.Context, path, backend string, dryRun bool) (LinkResult, error) {
	sugg, err := s.SuggestLinks(ctx, path, backend)
	if err != nil {
		return LinkResult{}, err
	}
	out := LinkResult{Path: path, DryRun: dryRun, Suggestions: sugg}
	if !sugg.Success {
		out.Insert = linker.Result{Changes: []linker.Change{}}
		return out, nil
	}
	ins, err := s.InsertLinks(ctx, path, sugg.Suggestions, s.settings.Linker, dryRun)
	if err != nil {
		return LinkResult{}, err
	}
	out.Insert = ins
	return out, nil
}

// BatchSuggest collects suggestions for every document under opts.Folder.
func (s *Service) BatchSuggest(ctx context.Context, opts batch.SuggestOptions) (batch.SuggestResult, error) {
	opts.Backend = s.backend(opts.Backend)
	res, err := s.batch.Suggest(ctx, opts)
	if err != nil {
		return batch.SuggestResult{}, fmt.Errorf("linkservice: batch suggest: %w", err)
	}
	return res, nil
}

// BatchApply inserts the suggestions of a BatchSuggest run. The index is
// brought up to date afterwards when documents were written.
func (s *Service) BatchApply(ctx context.Context, sr batch.SuggestResult, opts batch.ApplyOptions) batch.ApplyResult {
	res := s.batch.Apply(ctx, sr, opts)
	if !opts.DryRun && res.Modified > 0 {
		if _, err := index.Sync(s.db, s.store, s.logger); err != nil {
			s.logger.Warn("linkservice: resync failed", slog.String("error", err.Error()))
		}
	}
	return res
}

// Search runs a full-text search over indexed notes.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("linkservice: search: empty query: %w", apperr.ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = 20
	}
	res, err := s.db.Search(query, limit)
	if err != nil {
		return nil, fmt.Errorf("linkservice: search: %w", err)
	}
	if res == nil {
		res = []index.SearchResult{}
	}
	return res, nil
}

func (s *Service) backend(name string) string {
	if name == "" {
		return s.settings.DefaultBackend
	}
	return name
}

func (s *Service) read(path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("linkservice: path is required: %w", apperr.ErrInvalidArgument)
	}
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("linkservice: %s: %w", path, apperr.ErrNotFound)
		}
		return nil, err
	}
	return data, nil
}

// suggest builds a fresh vault context and asks the backend.
func (s *Service) suggest(ctx context.Context, backend, text, path string) ai.SuggestLinksResult {
	vc, err := s.vault.Build(ctx)
	if err != nil {
		return ai.Failed(backend, fmt.Sprintf("vault context: %v", err))
	}
	return s.backends.SuggestLinks(ctx, backend, text, path, vc)
}

// suggester adapts Service to batch.Suggester.
type suggester struct{ s *Service }

func (a suggester) SuggestLinks(ctx context.Context, backend, text, path string) ai.SuggestLinksResult {
	return a.s.suggest(ctx, backend, text, path)
}
