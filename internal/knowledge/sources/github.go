package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/starford/vaultlinker/internal/knowledge"
)

// GitHub searches repositories, or fetches one directly for owner/repo
// queries. A token is optional and only raises the rate limit.
type GitHub struct {
	client

	mu    sync.RWMutex
	token string
}

func NewGitHub(opts ...Option) *GitHub {
	return &GitHub{client: newClient("https://api.github.com", opts)}
}

func (g *GitHub) Name() string                       { return "github" }
func (g *GitHub) IsAvailable(_ context.Context) bool { return true }

// Configure sets the API token.
func (g *GitHub) Configure(c knowledge.Credentials) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.token = c.Token
}

type githubRepo struct {
	FullName    string   `json:"full_name"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	HTMLURL     string   `json:"html_url"`
	Stars       int      `json:"stargazers_count"`
	Forks       int      `json:"forks_count"`
	Language    string   `json:"language"`
	Topics      []string `json:"topics"`
	Owner       struct {
		Login string `json:"login"`
	} `json:"owner"`
	License *struct {
		SPDXID string `json:"spdx_id"`
	} `json:"license"`
}

func (g *GitHub) header() http.Header {
	h := http.Header{"Accept": {"application/vnd.github.v3+json"}}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.token != "" {
		h.Set("Authorization", "Bearer "+g.token)
	}
	return h
}

func (g *GitHub) Lookup(ctx context.Context, query string, opts knowledge.LookupOptions) knowledge.LookupResult {
	q := strings.TrimSpace(query)
	if strings.Count(q, "/") == 1 && !strings.ContainsAny(q, " \t") {
		var repo githubRepo
		found, err := g.getJSON(ctx, "/repos/"+q, nil, g.header(), &repo)
		if err != nil {
			return knowledge.Failed(g.Name(), err.Error())
		}
		if found {
			return knowledge.Succeeded(g.Name(), []knowledge.Entry{g.entry(repo)})
		}
	}

	var resp struct {
		Items []githubRepo `json:"items"`
	}
	_, err := g.getJSON(ctx, "/search/repositories", url.Values{
		"q":        {q},
		"sort":     {"stars"},
		"order":    {"desc"},
		"per_page": {fmt.Sprint(opts.Limit(defaultLimit))},
	}, g.header(), &resp)
	if err != nil {
		return knowledge.Failed(g.Name(), err.Error())
	}
	entries := make([]knowledge.Entry, 0, len(resp.Items))
	for _, r := range resp.Items {
		entries = append(entries, g.entry(r))
	}
	return knowledge.Succeeded(g.Name(), entries)
}

func (g *GitHub) entry(r githubRepo) knowledge.Entry {
	var lines []string
	if r.Description != "" {
		lines = append(lines, r.Description)
	}
	lines = append(lines, fmt.Sprintf("Stars: %s | Forks: %s", formatCount(r.Stars), formatCount(r.Forks)))
	if r.Language != "" {
		lines = append(lines, "Language: "+r.Language)
	}
	if len(r.Topics) > 0 {
		lines = append(lines, "Topics: "+strings.Join(take(r.Topics, 5), ", "))
	}

	meta := map[string]any{
		"type":     "repo",
		"name":     r.Name,
		"fullName": r.FullName,
		"owner":    r.Owner.Login,
		"stars":    r.Stars,
		"forks":    r.Forks,
	}
	if r.Language != "" {
		meta["language"] = r.Language
	}
	if len(r.Topics) > 0 {
		meta["topics"] = r.Topics
	}
	if r.License != nil && r.License.SPDXID != "" {
		meta["license"] = r.License.SPDXID
	}
	return knowledge.Entry{
		Title:    r.FullName,
		Summary:  strings.Join(lines, "\n"),
		URL:      r.HTMLURL,
		Source:   g.Name(),
		Metadata: meta,
	}
}

func formatCount(n int) string {
	if n >= 1000 {
		return fmt.Sprintf("%.1fk", float64(n)/1000)
	}
	return fmt.Sprint(n)
}
