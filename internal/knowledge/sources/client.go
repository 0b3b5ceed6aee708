// Package sources implements knowledge providers backed by public HTTP APIs.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/starford/vaultlinker/internal/knowledge"
)

const (
	defaultUserAgent = "vaultlinker/1.0 (+https://github.com/starford/vaultlinker)"
	defaultLimit     = 5
	maxBodySize      = 4 << 20
)

// Settings configure every source built by All.
type Settings struct {
	UserAgent    string
	GitHubToken  string
	ShodanAPIKey string
	HTTPClient   *http.Client
}

// All returns one instance of every supported source.
func All(s Settings) []knowledge.Provider {
	opts := []Option{WithUserAgent(s.UserAgent), WithHTTPClient(s.HTTPClient)}
	gh := NewGitHub(opts...)
	gh.Configure(knowledge.Credentials{Token: s.GitHubToken})
	sh := NewShodan(opts...)
	sh.Configure(knowledge.Credentials{APIKey: s.ShodanAPIKey})
	return []knowledge.Provider{
		NewWikipedia(opts...),
		NewDBpedia(opts...),
		NewWikidata(opts...),
		gh,
		NewOpenLibrary(opts...),
		NewArxiv(opts...),
		NewMusicBrainz(opts...),
		sh,
	}
}

// Option configures a source.
type Option func(*client)

// WithBaseURL points the source at a different API root.
func WithBaseURL(u string) Option {
	return func(c *client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the HTTP client. Nil keeps the default.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithUserAgent sets the User-Agent header. Empty keeps the default.
func WithUserAgent(ua string) Option {
	return func(c *client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

type client struct {
	baseURL   string
	http      *http.Client
	userAgent string
}

func newClient(baseURL string, opts []Option) client {
	c := client{
		baseURL:   baseURL,
		http:      &http.Client{Timeout: 30 * time.Second},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// get fetches path+query and returns the body of a 2xx response. A 404 is
// reported as (nil, nil).
func (c client) get(ctx context.Context, path string, q url.Values, header http.Header) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("request failed: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body failed: %w", err)
	}
	return data, nil
}

// getJSON fetches and decodes a JSON document into out. It reports whether
// the resource existed.
func (c client) getJSON(ctx context.Context, path string, q url.Values, header http.Header, out any) (bool, error) {
	data, err := c.get(ctx, path, q, header)
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return true, nil
}

func firstOf(vs []string) string {
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

func lastSegment(s string) string {
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func take[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
