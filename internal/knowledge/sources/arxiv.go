package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"

	"github.com/starford/vaultlinker/internal/knowledge"
)

// Arxiv searches the arXiv Atom export API.
type Arxiv struct{ client }

func NewArxiv(opts ...Option) *Arxiv {
	return &Arxiv{client: newClient("https://export.arxiv.org", opts)}
}

func (a *Arxiv) Name() string                       { return "arxiv" }
func (a *Arxiv) IsAvailable(_ context.Context) bool { return true }

type atomFeed struct {
	Entries []atomEntry `xml:"http://www.w3.org/2005/Atom entry"`
}

type atomEntry struct {
	ID        string `xml:"http://www.w3.org/2005/Atom id"`
	Title     string `xml:"http://www.w3.org/2005/Atom title"`
	Summary   string `xml:"http://www.w3.org/2005/Atom summary"`
	Published string `xml:"http://www.w3.org/2005/Atom published"`
	Updated   string `xml:"http://www.w3.org/2005/Atom updated"`
	Authors   []struct {
		Name string `xml:"http://www.w3.org/2005/Atom name"`
	} `xml:"http://www.w3.org/2005/Atom author"`
	Links []struct {
		Href  string `xml:"href,attr"`
		Title string `xml:"title,attr"`
	} `xml:"http://www.w3.org/2005/Atom link"`
	Categories []struct {
		Term string `xml:"term,attr"`
	} `xml:"http://www.w3.org/2005/Atom category"`
	DOI string `xml:"http://arxiv.org/schemas/atom doi"`
}

func (a *Arxiv) Lookup(ctx context.Context, query string, opts knowledge.LookupOptions) knowledge.LookupResult {
	data, err := a.get(ctx, "/api/query", url.Values{
		"search_query": {"all:" + query},
		"start":        {"0"},
		"max_results":  {fmt.Sprint(opts.Limit(defaultLimit))},
		"sortBy":       {"relevance"},
		"sortOrder":    {"descending"},
	}, nil)
	if err != nil {
		return knowledge.Failed(a.Name(), err.Error())
	}
	entries, err := parseAtom(data)
	if err != nil {
		return knowledge.Failed(a.Name(), err.Error())
	}
	return knowledge.Succeeded(a.Name(), entries)
}

func parseAtom(data []byte) ([]knowledge.Entry, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var feed atomFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	entries := make([]knowledge.Entry, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		title := collapseSpace(e.Title)
		if e.ID == "" || title == "" {
			continue
		}
		authors := make([]string, 0, len(e.Authors))
		for _, au := range e.Authors {
			authors = append(authors, strings.TrimSpace(au.Name))
		}
		byline := strings.Join(authors, ", ")
		if len(authors) > 3 {
			byline = strings.Join(authors[:3], ", ") + " et al."
		}
		year := "????"
		if len(e.Published) >= 4 {
			year = e.Published[:4]
		}

		cats := make([]string, 0, len(e.Categories))
		for _, c := range e.Categories {
			cats = append(cats, c.Term)
		}
		meta := map[string]any{
			"authors":    authors,
			"published":  e.Published,
			"updated":    e.Updated,
			"categories": cats,
			"arxivId":    arxivID(e.ID),
		}
		for _, l := range e.Links {
			if l.Title == "pdf" && l.Href != "" {
				meta["pdfLink"] = l.Href
			}
		}
		if e.DOI != "" {
			meta["doi"] = strings.TrimSpace(e.DOI)
		}

		entries = append(entries, knowledge.Entry{
			Title:    title,
			Summary:  fmt.Sprintf("%s (%s)\n\n%s", byline, year, truncate(collapseSpace(e.Summary), 400)),
			URL:      strings.TrimSpace(e.ID),
			Source:   "arxiv",
			Metadata: meta,
		})
	}
	return entries, nil
}

func arxivID(id string) string {
	if i := strings.LastIndex(id, "/abs/"); i >= 0 {
		return id[i+len("/abs/"):]
	}
	return id
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
