package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/starford/vaultlinker/internal/models"
)

// ErrMalformedResponse is returned when a backend reply holds no usable JSON.
var ErrMalformedResponse = errors.New("ai: malformed response")

type suggestionEnvelope struct {
	Suggestions []LinkSuggestion `json:"suggestions"`
}

// ParseSuggestions extracts suggestions from a raw model reply. Targets are
// rewritten to the canonical name of the matching note; when vc lists notes,
// targets that match none of them are dropped.
func ParseSuggestions(raw string, vc VaultContext) ([]LinkSuggestion, error) {
	parsed, ok := decodeSuggestions(stripCodeFence(raw))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMalformedResponse, preview(raw))
	}

	canon := canonicalNames(vc)
	out := make([]LinkSuggestion, 0, len(parsed))
	for _, s := range parsed {
		s.TargetNote = strings.TrimSpace(s.TargetNote)
		if c, ok := canon[strings.ToLower(s.TargetNote)]; ok {
			s.TargetNote = c
		} else if len(canon) > 0 {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func decodeSuggestions(body string) ([]LinkSuggestion, bool) {
	var env suggestionEnvelope
	if json.Unmarshal([]byte(body), &env) == nil {
		return env.Suggestions, true
	}
	var list []LinkSuggestion
	if json.Unmarshal([]byte(body), &list) == nil {
		return list, true
	}
	if obj, ok := embeddedObject(body); ok && json.Unmarshal([]byte(obj), &env) == nil {
		return env.Suggestions, true
	}
	return nil, false
}

// Normalize clamps confidences into [0,1], drops empty targets and links to
// the document itself, and orders by confidence descending.
func Normalize(suggestions []LinkSuggestion, documentPath string) []LinkSuggestion {
	self := models.Stem(documentPath)
	out := make([]LinkSuggestion, 0, len(suggestions))
	for _, s := range suggestions {
		s.TargetNote = strings.TrimSpace(s.TargetNote)
		if s.TargetNote == "" || strings.EqualFold(s.TargetNote, self) {
			continue
		}
		switch {
		case s.Confidence < 0:
			s.Confidence = 0
		case s.Confidence > 1:
			s.Confidence = 1
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

// Filter keeps suggestions at or above minConfidence, at most max of them.
// A max of zero or less means no cap.
func Filter(suggestions []LinkSuggestion, minConfidence float64, max int) []LinkSuggestion {
	out := make([]LinkSuggestion, 0, len(suggestions))
	for _, s := range suggestions {
		if s.Confidence < minConfidence {
			continue
		}
		out = append(out, s)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

func canonicalNames(vc VaultContext) map[string]string {
	m := make(map[string]string, len(vc.NoteTitles)+len(vc.NotePaths))
	for _, p := range vc.NotePaths {
		if s := models.Stem(p); s != "" {
			m[strings.ToLower(s)] = s
		}
	}
	for _, t := range vc.NoteTitles {
		if t != "" {
			m[strings.ToLower(t)] = t
		}
	}
	return m
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:]
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

func embeddedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func preview(s string) string {
	if len(s) > 100 {
		return cut(s, 100) + "..."
	}
	return s
}

// cut shortens s to at most n bytes without splitting a rune.
func cut(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
