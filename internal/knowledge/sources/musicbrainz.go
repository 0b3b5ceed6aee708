package sources

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/starford/vaultlinker/internal/knowledge"
)

// MusicBrainz searches artists first and fills remaining slots with releases.
type MusicBrainz struct{ client }

func NewMusicBrainz(opts ...Option) *MusicBrainz {
	return &MusicBrainz{client: newClient("https://musicbrainz.org", opts)}
}

func (m *MusicBrainz) Name() string                       { return "musicbrainz" }
func (m *MusicBrainz) IsAvailable(_ context.Context) bool { return true }

type mbArtists struct {
	Artists []struct {
		ID             string `json:"id"`
		Name           string `json:"name"`
		Type           string `json:"type"`
		Country        string `json:"country"`
		Disambiguation string `json:"disambiguation"`
		LifeSpan       struct {
			Begin string `json:"begin"`
			End   string `json:"end"`
			Ended bool   `json:"ended"`
		} `json:"life-span"`
		Tags []struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		} `json:"tags"`
	} `json:"artists"`
}

type mbReleases struct {
	Releases []struct {
		ID           string `json:"id"`
		Title        string `json:"title"`
		Date         string `json:"date"`
		Country      string `json:"country"`
		ArtistCredit []struct {
			Artist struct {
				Name string `json:"name"`
			} `json:"artist"`
		} `json:"artist-credit"`
		ReleaseGroup struct {
			PrimaryType string `json:"primary-type"`
		} `json:"release-group"`
	} `json:"releases"`
}

func (m *MusicBrainz) Lookup(ctx context.Context, query string, opts knowledge.LookupOptions) knowledge.LookupResult {
	limit := opts.Limit(defaultLimit)

	var artists mbArtists
	_, err := m.getJSON(ctx, "/ws/2/artist", url.Values{
		"query": {query},
		"limit": {fmt.Sprint(limit)},
		"fmt":   {"json"},
	}, nil, &artists)
	if err != nil {
		return knowledge.Failed(m.Name(), err.Error())
	}

	var entries []knowledge.Entry
	for _, a := range artists.Artists {
		kind := a.Type
		if kind == "" {
			kind = "Artist"
		}
		summary := kind
		if a.Country != "" {
			summary += ", " + a.Country
		}
		switch {
		case a.LifeSpan.Begin != "" && a.LifeSpan.End != "":
			summary += fmt.Sprintf(" (%s - %s)", a.LifeSpan.Begin, a.LifeSpan.End)
		case a.LifeSpan.Begin != "" && a.LifeSpan.Ended:
			summary += fmt.Sprintf(" (%s - ?)", a.LifeSpan.Begin)
		case a.LifeSpan.Begin != "":
			summary += fmt.Sprintf(" (%s - present)", a.LifeSpan.Begin)
		}
		if a.Disambiguation != "" {
			summary += " - " + a.Disambiguation
		}
		tags := a.Tags
		sort.SliceStable(tags, func(i, j int) bool { return tags[i].Count > tags[j].Count })
		var genres []string
		for _, t := range take(tags, 3) {
			genres = append(genres, t.Name)
		}
		if len(genres) > 0 {
			summary += ". Genres: " + strings.Join(genres, ", ")
		}
		entries = append(entries, knowledge.Entry{
			Title:    a.Name,
			Summary:  summary,
			URL:      "https://musicbrainz.org/artist/" + a.ID,
			Source:   m.Name(),
			Metadata: map[string]any{"type": "artist", "mbid": a.ID},
		})
	}

	remaining := limit - len(entries)
	if remaining <= 0 {
		return knowledge.Succeeded(m.Name(), entries)
	}

	var releases mbReleases
	if _, err := m.getJSON(ctx, "/ws/2/release", url.Values{
		"query": {query},
		"limit": {fmt.Sprint(remaining)},
		"fmt":   {"json"},
	}, nil, &releases); err != nil {
		return knowledge.Succeeded(m.Name(), entries)
	}
	for _, r := range releases.Releases {
		kind := r.ReleaseGroup.PrimaryType
		if kind == "" {
			kind = "Release"
		}
		var names []string
		for _, c := range r.ArtistCredit {
			names = append(names, c.Artist.Name)
		}
		by := "Unknown artist"
		if len(names) > 0 {
			by = strings.Join(names, ", ")
		}
		summary := fmt.Sprintf("%s by %s", kind, by)
		if len(r.Date) >= 4 {
			summary += fmt.Sprintf(" (%s)", r.Date[:4])
		}
		entries = append(entries, knowledge.Entry{
			Title:    r.Title,
			Summary:  summary,
			URL:      "https://musicbrainz.org/release/" + r.ID,
			Source:   m.Name(),
			Metadata: map[string]any{"type": "release", "mbid": r.ID},
		})
	}
	return knowledge.Succeeded(m.Name(), entries)
}
