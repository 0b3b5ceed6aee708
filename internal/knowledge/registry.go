package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/starford/vaultlinker/internal/apperr"
	"github.com/starford/vaultlinker/internal/cache"
)

// Auto is the pseudo-provider name that triggers fallback across sources.
const Auto = "auto"

// DefaultOrder is the fallback priority used by auto lookups.
var DefaultOrder = []string{
	"wikipedia",
	"dbpedia",
	"wikidata",
	"github",
	"openlibrary",
	"arxiv",
	"musicbrainz",
	"shodan",
}

// Registry routes lookups to named providers and caches successful results.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	cache     *cache.Cache[LookupResult]
	order     []string
	timeout   time.Duration
	logger    *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithOrder overrides the auto fallback order.
func WithOrder(names ...string) RegistryOption {
	return func(r *Registry) { r.order = append([]string(nil), names...) }
}

// WithTimeout bounds every provider call. Zero disables the bound.
func WithTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.timeout = d }
}

// NewRegistry creates an empty registry backed by c.
func NewRegistry(c *cache.Cache[LookupResult], logger *slog.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		providers: make(map[string]Provider),
		cache:     c,
		order:     DefaultOrder,
		timeout:   10 * time.Second,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds p, replacing any provider with the same name.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Configure injects credentials into the named provider.
func (r *Registry) Configure(name string, creds Credentials) error {
	p, ok := r.provider(name)
	if !ok {
		return fmt.Errorf("knowledge: configure %q: %w", name, apperr.ErrUnknownProvider)
	}
	c, ok := p.(Credentialed)
	if !ok {
		return fmt.Errorf("knowledge: %q does not accept credentials: %w", name, apperr.ErrInvalidArgument)
	}
	c.Configure(creds)
	return nil
}

// Providers returns the registered provider names, sorted.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AvailableProviders returns the names of providers that report themselves
// available, sorted.
func (r *Registry) AvailableProviders(ctx context.Context) []string {
	var out []string
	for _, name := range r.Providers() {
		p, _ := r.provider(name)
		if p.IsAvailable(ctx) {
			out = append(out, name)
		}
	}
	return out
}

// Lookup queries provider, or walks the fallback order when provider is
// "auto" or empty. It never returns a Go error: failures are reported in the
// result.
func (r *Registry) Lookup(ctx context.Context, query, provider string, opts LookupOptions) LookupResult {
	if !opts.ValidLanguage() {
		if provider == "" {
			provider = Auto
		}
		return Failed(provider, "invalid language: "+opts.Language)
	}
	if provider == "" || provider == Auto {
		return r.autoLookup(ctx, query, opts)
	}

	p, ok := r.provider(provider)
	if !ok {
		return Failed(provider, "unknown provider: "+provider)
	}

	key := CacheKey(provider, query, opts)
	if hit, ok := r.cached(key, opts); ok {
		return hit
	}

	if !p.IsAvailable(ctx) {
		return Failed(provider, "provider unavailable: "+provider)
	}

	res := r.call(ctx, p, query, opts)
	if res.Success && !opts.SkipCache {
		r.store(key, res)
	}
	return res
}

func (r *Registry) autoLookup(ctx context.Context, query string, opts LookupOptions) LookupResult {
	key := CacheKey(Auto, query, opts)
	if hit, ok := r.cached(key, opts); ok {
		return hit
	}

	for _, name := range r.order {
		p, ok := r.provider(name)
		if !ok || !p.IsAvailable(ctx) {
			continue
		}
		res := r.call(ctx, p, query, opts)
		if !res.Success {
			r.logger.Debug("knowledge: provider failed, falling back",
				slog.String("provider", name),
				slog.String("error", res.Error),
			)
			continue
		}
		if len(res.Entries) == 0 {
			continue
		}
		res.Provider = name
		if !opts.SkipCache {
			r.store(key, res)
		}
		return res
	}
	return Succeeded(Auto, nil)
}

func (r *Registry) call(ctx context.Context, p Provider, query string, opts LookupOptions) LookupResult {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	start := time.Now()
	res := p.Lookup(ctx, query, opts)
	r.logger.Debug("knowledge: lookup",
		slog.String("provider", p.Name()),
		slog.String("query", query),
		slog.Bool("success", res.Success),
		slog.Int("entries", len(res.Entries)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return res
}

func (r *Registry) cached(key string, opts LookupOptions) (LookupResult, bool) {
	if opts.SkipCache {
		return LookupResult{}, false
	}
	hit, ok := r.cache.Get(key)
	if !ok {
		return LookupResult{}, false
	}
	hit.Cached = true
	hit.Entries = cloneEntries(hit.Entries)
	return hit, true
}

// store caches a copy of res so callers may modify what they were returned.
func (r *Registry) store(key string, res LookupResult) {
	res.Entries = cloneEntries(res.Entries)
	r.cache.Set(key, res)
}

func cloneEntries(entries []Entry) []Entry {
	out := slices.Clone(entries)
	for i := range out {
		out[i].Metadata = maps.Clone(out[i].Metadata)
	}
	return out
}

func (r *Registry) provider(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// ClearCache drops all cached results.
func (r *Registry) ClearCache() { r.cache.Clear() }

// PruneCache drops expired results and returns how many were removed.
func (r *Registry) PruneCache() int { return r.cache.Prune() }

// CacheSize reports the number of cached results.
func (r *Registry) CacheSize() int { return r.cache.Len() }
