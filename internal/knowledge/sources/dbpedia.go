package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/starford/vaultlinker/internal/knowledge"
)

// DBpedia queries the DBpedia Lookup service.
type DBpedia struct{ client }

func NewDBpedia(opts ...Option) *DBpedia {
	return &DBpedia{client: newClient("https://lookup.dbpedia.org", opts)}
}

func (d *DBpedia) Name() string                       { return "dbpedia" }
func (d *DBpedia) IsAvailable(_ context.Context) bool { return true }

type dbpediaResponse struct {
	Docs []struct {
		Resource []string `json:"resource"`
		Label    []string `json:"label"`
		Comment  []string `json:"comment"`
		Category []string `json:"category"`
		Type     []string `json:"type"`
	} `json:"docs"`
}

// DBpedia wraps matched terms in <B> tags.
var dbpediaHighlight = strings.NewReplacer("<B>", "", "</B>", "")

func (d *DBpedia) Lookup(ctx context.Context, query string, opts knowledge.LookupOptions) knowledge.LookupResult {
	var resp dbpediaResponse
	_, err := d.getJSON(ctx, "/api/search", url.Values{
		"query":      {query},
		"maxResults": {fmt.Sprint(opts.Limit(defaultLimit))},
		"format":     {"json"},
	}, http.Header{"Accept": {"application/json"}}, &resp)
	if err != nil {
		return knowledge.Failed(d.Name(), err.Error())
	}

	var entries []knowledge.Entry
	for _, doc := range resp.Docs {
		label := dbpediaHighlight.Replace(firstOf(doc.Label))
		if label == "" {
			continue
		}
		meta := map[string]any{}
		var types []string
		for _, t := range take(doc.Type, 3) {
			types = append(types, lastSegment(t))
		}
		if len(types) > 0 {
			meta["types"] = types
		}
		if cats := take(doc.Category, 5); len(cats) > 0 {
			meta["categories"] = cats
		}
		resource := firstOf(doc.Resource)
		if resource != "" {
			meta["resourceUri"] = resource
		}
		if len(meta) == 0 {
			meta = nil
		}
		entries = append(entries, knowledge.Entry{
			Title:    label,
			Summary:  dbpediaHighlight.Replace(firstOf(doc.Comment)),
			URL:      resource,
			Source:   d.Name(),
			Metadata: meta,
		})
	}
	return knowledge.Succeeded(d.Name(), entries)
}
