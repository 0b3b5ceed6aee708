// Package knowledge defines the external knowledge lookup model and the
// registry that routes queries to concrete sources.
package knowledge

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Entry is a single piece of knowledge returned by a source.
type Entry struct {
	Title    string         `json:"title"`
	Summary  string         `json:"summary"`
	URL      string         `json:"url,omitempty"`
	Source   string         `json:"source"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// LookupOptions tune a single lookup.
type LookupOptions struct {
	MaxResults int    `json:"maxResults,omitempty"`
	Language   string `json:"language,omitempty"`
	SkipCache  bool   `json:"skipCache,omitempty"`
}

// Limit returns MaxResults or def when unset.
func (o LookupOptions) Limit(def int) int {
	if o.MaxResults > 0 {
		return o.MaxResults
	}
	return def
}

// Lang returns Language or "en" when unset.
func (o LookupOptions) Lang() string {
	if o.Language != "" {
		return o.Language
	}
	return "en"
}

var langRe = regexp.MustCompile(`^[a-z]{2,3}(-[a-z]+)*$`)

// ValidLanguage reports whether Language is unset or a plain language code
// such as "en" or "zh-min-nan".
func (o LookupOptions) ValidLanguage() bool {
	return o.Language == "" || langRe.MatchString(o.Language)
}

// LookupResult is the outcome of a lookup. Failures are values, not errors.
type LookupResult struct {
	Success  bool    `json:"success"`
	Provider string  `json:"provider"`
	Entries  []Entry `json:"entries"`
	Error    string  `json:"error,omitempty"`
	Cached   bool    `json:"cached,omitempty"`
}

// Succeeded builds a successful result.
func Succeeded(provider string, entries []Entry) LookupResult {
	if entries == nil {
		entries = []Entry{}
	}
	return LookupResult{Success: true, Provider: provider, Entries: entries}
}

// Failed builds a failure result.
func Failed(provider, msg string) LookupResult {
	return LookupResult{Provider: provider, Entries: []Entry{}, Error: msg}
}

// Provider is an external knowledge source.
type Provider interface {
	Name() string
	IsAvailable(ctx context.Context) bool
	Lookup(ctx context.Context, query string, opts LookupOptions) LookupResult
}

// Credentials carry optional secrets for sources that accept them.
type Credentials struct {
	Token  string
	APIKey string
}

// Credentialed is implemented by providers that accept credentials after
// construction.
type Credentialed interface {
	Configure(Credentials)
}

// CacheKey builds the cache key for a lookup: provider:query[:max][:lang].
func CacheKey(provider, query string, opts LookupOptions) string {
	var b strings.Builder
	b.WriteString(provider)
	b.WriteByte(':')
	b.WriteString(query)
	if opts.MaxResults > 0 {
		fmt.Fprintf(&b, ":%d", opts.MaxResults)
	}
	if opts.Language != "" {
		b.WriteByte(':')
		b.WriteString(opts.Language)
	}
	return b.String()
}

// FormatEntries renders entries as Markdown sections.
func FormatEntries(entries []Entry) string {
	if len(entries) == 0 {
		return "No results found."
	}
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "## %s\n%s", e.Title, e.Summary)
		if e.URL != "" {
			fmt.Fprintf(&b, "\nURL: %s", e.URL)
		}
	}
	return b.String()
}
