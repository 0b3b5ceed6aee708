package sources

import (
	"context"
	"fmt"
	"net/netip"
	"net/url"
	"strings"
	"sync"

	"github.com/starford/vaultlinker/internal/knowledge"
)

// Shodan looks up hosts by IP or searches banners. It requires an API key.
type Shodan struct {
	client

	mu  sync.RWMutex
	key string
}

func NewShodan(opts ...Option) *Shodan {
	return &Shodan{client: newClient("https://api.shodan.io", opts)}
}

func (s *Shodan) Name() string { return "shodan" }

func (s *Shodan) IsAvailable(_ context.Context) bool { return s.apiKey() != "" }

// Configure sets the API key.
func (s *Shodan) Configure(c knowledge.Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = c.APIKey
}

func (s *Shodan) apiKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key
}

type shodanHost struct {
	IPStr       string   `json:"ip_str"`
	Hostnames   []string `json:"hostnames"`
	Org         string   `json:"org"`
	CountryName string   `json:"country_name"`
	City        string   `json:"city"`
	OS          string   `json:"os"`
	Ports       []int    `json:"ports"`
	Vulns       []string `json:"vulns"`
}

type shodanSearch struct {
	Matches []struct {
		IPStr       string   `json:"ip_str"`
		Port        int      `json:"port"`
		Org         string   `json:"org"`
		Hostnames   []string `json:"hostnames"`
		Product     string   `json:"product"`
		CountryName string   `json:"country_name"`
	} `json:"matches"`
}

func (s *Shodan) Lookup(ctx context.Context, query string, opts knowledge.LookupOptions) knowledge.LookupResult {
	key := s.apiKey()
	if key == "" {
		return knowledge.Failed(s.Name(), "SHODAN_API_KEY not configured")
	}
	q := strings.TrimSpace(query)

	if addr, err := netip.ParseAddr(q); err == nil && addr.Is4() {
		var h shodanHost
		found, err := s.getJSON(ctx, "/shodan/host/"+q, url.Values{"key": {key}}, nil, &h)
		if err != nil {
			return knowledge.Failed(s.Name(), err.Error())
		}
		if !found {
			return knowledge.Succeeded(s.Name(), nil)
		}
		return knowledge.Succeeded(s.Name(), []knowledge.Entry{s.hostEntry(h)})
	}

	var resp shodanSearch
	if _, err := s.getJSON(ctx, "/shodan/host/search", url.Values{"key": {key}, "query": {q}}, nil, &resp); err != nil {
		return knowledge.Failed(s.Name(), err.Error())
	}
	var entries []knowledge.Entry
	for _, m := range take(resp.Matches, opts.Limit(defaultLimit)) {
		parts := []string{fmt.Sprintf("Port: %d", m.Port)}
		if m.Org != "" {
			parts = append(parts, "Org: "+m.Org)
		}
		if m.Product != "" {
			parts = append(parts, "Product: "+m.Product)
		}
		if m.CountryName != "" {
			parts = append(parts, "Country: "+m.CountryName)
		}
		entries = append(entries, knowledge.Entry{
			Title:    fmt.Sprintf("%s:%d (%s)", m.IPStr, m.Port, hostnames(m.Hostnames)),
			Summary:  strings.Join(parts, " | "),
			URL:      "https://www.shodan.io/host/" + m.IPStr,
			Source:   s.Name(),
			Metadata: map[string]any{"ip": m.IPStr, "port": m.Port, "org": m.Org},
		})
	}
	return knowledge.Succeeded(s.Name(), entries)
}

func (s *Shodan) hostEntry(h shodanHost) knowledge.Entry {
	lines := []string{"IP: " + h.IPStr}
	if h.Org != "" {
		lines = append(lines, "Organization: "+h.Org)
	}
	var loc []string
	for _, v := range []string{h.City, h.CountryName} {
		if v != "" {
			loc = append(loc, v)
		}
	}
	if len(loc) > 0 {
		lines = append(lines, "Location: "+strings.Join(loc, ", "))
	}
	ports := make([]string, 0, len(h.Ports))
	for _, p := range h.Ports {
		ports = append(ports, fmt.Sprint(p))
	}
	if len(ports) > 0 {
		lines = append(lines, "Open Ports: "+strings.Join(ports, ", "))
	}
	if h.OS != "" {
		lines = append(lines, "OS: "+h.OS)
	}
	if len(h.Vulns) > 0 {
		lines = append(lines, "Vulnerabilities: "+strings.Join(take(h.Vulns, 5), ", "))
	}
	return knowledge.Entry{
		Title:    fmt.Sprintf("%s (%s)", h.IPStr, hostnames(h.Hostnames)),
		Summary:  strings.Join(lines, "\n"),
		URL:      "https://www.shodan.io/host/" + h.IPStr,
		Source:   s.Name(),
		Metadata: map[string]any{"ip": h.IPStr, "ports": h.Ports},
	}
}

func hostnames(h []string) string {
	if len(h) == 0 {
		return "No hostnames"
	}
	return strings.Join(h, ", ")
}
