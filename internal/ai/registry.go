package ai

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Registry holds the configured suggestion backends.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Provider
	timeout  time.Duration
	logger   *slog.Logger
}

// NewRegistry creates an empty registry. A positive timeout bounds every
// backend call.
func NewRegistry(timeout time.Duration, logger *slog.Logger) *Registry {
	return &Registry{
		backends: make(map[string]Provider),
		timeout:  timeout,
		logger:   logger,
	}
}

// Register adds p, replacing any backend with the same name.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[p.Name()] = p
}

// Get returns the named backend.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.backends[name]
	return p, ok
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for n := range r.backends {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SuggestLinks asks the named backend for suggestions. Unknown and
// unavailable backends yield a failure result.
func (r *Registry) SuggestLinks(ctx context.Context, backend, text, documentPath string, vc VaultContext) (res SuggestLinksResult) {
	p, ok := r.Get(backend)
	if !ok {
		return Failed(backend, "unknown backend: "+backend)
	}
	if !p.IsAvailable() {
		return Failed(backend, "backend unavailable: "+backend)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("ai: backend panicked",
				slog.String("backend", backend),
				slog.String("path", documentPath),
				slog.Any("panic", rec),
			)
			res = Failed(backend, fmt.Sprintf("backend panicked: %v", rec))
		}
	}()

	start := time.Now()
	res = p.SuggestLinks(ctx, text, documentPath, vc)
	if res.Suggestions == nil {
		res.Suggestions = []LinkSuggestion{}
	}
	r.logger.Debug("ai: suggest links",
		slog.String("backend", backend),
		slog.String("path", documentPath),
		slog.Bool("success", res.Success),
		slog.Int("suggestions", len(res.Suggestions)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return res
}
