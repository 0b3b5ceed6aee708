package sources

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/starford/vaultlinker/internal/knowledge"
)

// Wikidata searches entities, or resolves a Q-identifier directly.
type Wikidata struct{ client }

func NewWikidata(opts ...Option) *Wikidata {
	return &Wikidata{client: newClient("https://www.wikidata.org", opts)}
}

func (w *Wikidata) Name() string                       { return "wikidata" }
func (w *Wikidata) IsAvailable(_ context.Context) bool { return true }

var qidPattern = regexp.MustCompile(`^[Qq][0-9]+$`)

type wikidataSearch struct {
	Search []struct {
		ID          string `json:"id"`
		Label       string `json:"label"`
		Description string `json:"description"`
	} `json:"search"`
}

type wikidataEntities struct {
	Entities map[string]struct {
		ID     string                       `json:"id"`
		Labels map[string]wikidataLangValue `json:"labels"`
		Descs  map[string]wikidataLangValue `json:"descriptions"`
	} `json:"entities"`
}

type wikidataLangValue struct {
	Value string `json:"value"`
}

func (w *Wikidata) Lookup(ctx context.Context, query string, opts knowledge.LookupOptions) knowledge.LookupResult {
	q := strings.TrimSpace(query)
	if qidPattern.MatchString(q) {
		e, err := w.entity(ctx, strings.ToUpper(q), opts.Lang())
		if err != nil {
			return knowledge.Failed(w.Name(), err.Error())
		}
		if e == nil {
			return knowledge.Succeeded(w.Name(), nil)
		}
		return knowledge.Succeeded(w.Name(), []knowledge.Entry{*e})
	}

	var resp wikidataSearch
	_, err := w.getJSON(ctx, "/w/api.php", url.Values{
		"action":   {"wbsearchentities"},
		"search":   {q},
		"language": {opts.Lang()},
		"limit":    {fmt.Sprint(opts.Limit(defaultLimit))},
		"format":   {"json"},
	}, nil, &resp)
	if err != nil {
		return knowledge.Failed(w.Name(), err.Error())
	}

	entries := make([]knowledge.Entry, 0, len(resp.Search))
	for _, item := range resp.Search {
		entries = append(entries, knowledge.Entry{
			Title:    item.Label,
			Summary:  item.Description,
			URL:      "https://www.wikidata.org/wiki/" + item.ID,
			Source:   w.Name(),
			Metadata: map[string]any{"qid": item.ID},
		})
	}
	return knowledge.Succeeded(w.Name(), entries)
}

func (w *Wikidata) entity(ctx context.Context, qid, lang string) (*knowledge.Entry, error) {
	var resp wikidataEntities
	found, err := w.getJSON(ctx, "/w/api.php", url.Values{
		"action":    {"wbgetentities"},
		"ids":       {qid},
		"languages": {lang + "|en"},
		"props":     {"labels|descriptions"},
		"format":    {"json"},
	}, nil, &resp)
	if err != nil || !found {
		return nil, err
	}
	ent, ok := resp.Entities[qid]
	if !ok {
		return nil, nil
	}
	label := pickLang(ent.Labels, lang)
	if label == "" {
		return nil, nil
	}
	return &knowledge.Entry{
		Title:    label,
		Summary:  pickLang(ent.Descs, lang),
		URL:      "https://www.wikidata.org/wiki/" + qid,
		Source:   w.Name(),
		Metadata: map[string]any{"qid": qid},
	}, nil
}

func pickLang(m map[string]wikidataLangValue, lang string) string {
	if v, ok := m[lang]; ok {
		return v.Value
	}
	return m["en"].Value
}
