package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/starford/vaultlinker/internal/knowledge"
)

// OpenLibrary searches books first and fills remaining slots with authors.
type OpenLibrary struct{ client }

func NewOpenLibrary(opts ...Option) *OpenLibrary {
	return &OpenLibrary{client: newClient("https://openlibrary.org", opts)}
}

func (o *OpenLibrary) Name() string                       { return "openlibrary" }
func (o *OpenLibrary) IsAvailable(_ context.Context) bool { return true }

type olBooks struct {
	Docs []struct {
		Key              string   `json:"key"`
		Title            string   `json:"title"`
		AuthorName       []string `json:"author_name"`
		FirstPublishYear int      `json:"first_publish_year"`
		ISBN             []string `json:"isbn"`
		Subject          []string `json:"subject"`
	} `json:"docs"`
}

type olAuthors struct {
	Docs []struct {
		Key       string `json:"key"`
		Name      string `json:"name"`
		BirthDate string `json:"birth_date"`
		DeathDate string `json:"death_date"`
		TopWork   string `json:"top_work"`
		WorkCount int    `json:"work_count"`
	} `json:"docs"`
}

func (o *OpenLibrary) Lookup(ctx context.Context, query string, opts knowledge.LookupOptions) knowledge.LookupResult {
	limit := opts.Limit(defaultLimit)

	var books olBooks
	_, err := o.getJSON(ctx, "/search.json", url.Values{
		"q":     {query},
		"limit": {fmt.Sprint(limit)},
	}, nil, &books)
	if err != nil {
		return knowledge.Failed(o.Name(), err.Error())
	}

	var entries []knowledge.Entry
	for _, b := range books.Docs {
		summary := "Unknown author"
		if len(b.AuthorName) > 0 {
			summary = strings.Join(take(b.AuthorName, 3), ", ")
		}
		if b.FirstPublishYear > 0 {
			summary += fmt.Sprintf(" (%d)", b.FirstPublishYear)
		}
		meta := map[string]any{"type": "book"}
		if len(b.ISBN) > 0 {
			meta["isbn"] = b.ISBN[0]
		}
		if len(b.Subject) > 0 {
			meta["subjects"] = take(b.Subject, 5)
		}
		entries = append(entries, knowledge.Entry{
			Title:    b.Title,
			Summary:  summary,
			URL:      "https://openlibrary.org" + b.Key,
			Source:   o.Name(),
			Metadata: meta,
		})
	}

	remaining := limit - len(entries)
	if remaining <= 0 {
		return knowledge.Succeeded(o.Name(), entries)
	}

	var authors olAuthors
	if _, err := o.getJSON(ctx, "/search/authors.json", url.Values{
		"q":     {query},
		"limit": {fmt.Sprint(remaining)},
	}, nil, &authors); err != nil {
		// authors only supplement books
		return knowledge.Succeeded(o.Name(), entries)
	}
	for _, a := range authors.Docs {
		var years string
		switch {
		case a.BirthDate != "" && a.DeathDate != "":
			years = fmt.Sprintf(" (%s - %s)", a.BirthDate, a.DeathDate)
		case a.BirthDate != "":
			years = fmt.Sprintf(" (%s - )", a.BirthDate)
		case a.DeathDate != "":
			years = fmt.Sprintf(" (? - %s)", a.DeathDate)
		}
		summary := "Author" + years
		if a.WorkCount > 0 {
			summary += fmt.Sprintf(", %d works", a.WorkCount)
		}
		if a.TopWork != "" {
			summary += fmt.Sprintf(". Notable: %q", a.TopWork)
		}
		key := lastSegment(a.Key)
		entries = append(entries, knowledge.Entry{
			Title:    a.Name,
			Summary:  summary,
			URL:      "https://openlibrary.org/authors/" + key,
			Source:   o.Name(),
			Metadata: map[string]any{"type": "author", "key": key},
		})
	}
	return knowledge.Succeeded(o.Name(), entries)
}
