package sources

import (
	"context"
	"fmt"
	"net/url"

	"github.com/starford/vaultlinker/internal/knowledge"
)

// Wikipedia searches article titles and returns their page summaries.
type Wikipedia struct {
	client
	fixedBase bool
}

// NewWikipedia creates a Wikipedia source. Without WithBaseURL the host is
// derived from the lookup language.
func NewWikipedia(opts ...Option) *Wikipedia {
	c := newClient("", opts)
	return &Wikipedia{client: c, fixedBase: c.baseURL != ""}
}

func (w *Wikipedia) Name() string                       { return "wikipedia" }
func (w *Wikipedia) IsAvailable(_ context.Context) bool { return true }

type wikiSearchResponse struct {
	Query *struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

type wikiSummary struct {
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	Description string `json:"description"`
	ContentURLs *struct {
		Desktop *struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

func (w *Wikipedia) Lookup(ctx context.Context, query string, opts knowledge.LookupOptions) knowledge.LookupResult {
	if !opts.ValidLanguage() {
		return knowledge.Failed(w.Name(), "invalid language: "+opts.Language)
	}
	c := w.client
	if !w.fixedBase {
		c.baseURL = fmt.Sprintf("https://%s.wikipedia.org", opts.Lang())
	}

	var search wikiSearchResponse
	_, err := c.getJSON(ctx, "/w/api.php", url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {fmt.Sprint(opts.Limit(defaultLimit))},
		"format":   {"json"},
	}, nil, &search)
	if err != nil {
		return knowledge.Failed(w.Name(), err.Error())
	}
	if search.Query == nil {
		return knowledge.Succeeded(w.Name(), nil)
	}

	var entries []knowledge.Entry
	for _, hit := range search.Query.Search {
		var s wikiSummary
		found, err := c.getJSON(ctx, "/api/rest_v1/page/summary/"+url.PathEscape(hit.Title), nil, nil, &s)
		if err != nil {
			return knowledge.Failed(w.Name(), err.Error())
		}
		if !found {
			continue
		}
		e := knowledge.Entry{Title: s.Title, Summary: s.Extract, Source: w.Name()}
		if s.ContentURLs != nil && s.ContentURLs.Desktop != nil {
			e.URL = s.ContentURLs.Desktop.Page
		}
		if s.Description != "" {
			e.Metadata = map[string]any{"description": s.Description}
		}
		entries = append(entries, e)
	}
	return knowledge.Succeeded(w.Name(), entries)
}
