// Package linker rewrites Markdown text by turning plain-text mentions of
// notes into [[wikilinks]].
package linker

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/starford/vaultlinker/internal/ai"
)

// Options control how many occurrences of a target are linked and how links
// are rendered.
type Options struct {
	// FirstMatchOnly links at most the first occurrence of each target.
	FirstMatchOnly bool `json:"firstMatchOnly" yaml:"first_match_only"`
	// MaxLinksPerTarget bounds linked occurrences per target when
	// FirstMatchOnly is false. Values below 1 mean 1.
	MaxLinksPerTarget int `json:"maxLinksPerTarget" yaml:"max_links_per_target"`
	// UseDisplayText renders the suggestion's SuggestedText as the alias.
	UseDisplayText bool `json:"useDisplayText" yaml:"use_display_text"`
}

// DefaultOptions links the first occurrence of each target.
func DefaultOptions() Options {
	return Options{FirstMatchOnly: true, MaxLinksPerTarget: 1}
}

func (o Options) limit() int {
	if o.FirstMatchOnly || o.MaxLinksPerTarget < 1 {
		return 1
	}
	return o.MaxLinksPerTarget
}

// Occurrence is one place a target's text appears in the document.
type Occurrence struct {
	ByteOffset  int    `json:"byteOffset"`
	Length      int    `json:"length"`
	MatchedText string `json:"matchedText"`
	Line        int    `json:"line"`
	Column      int    `json:"column"` // 1-based, in runes
}

// Match pairs a suggestion with the places it could be linked.
type Match struct {
	Suggestion  ai.LinkSuggestion `json:"suggestion"`
	Occurrences []Occurrence      `json:"occurrences"`
}

// Change records one substitution made in the original text.
type Change struct {
	Line        int    `json:"line"`
	Column      int    `json:"column"`
	ByteOffset  int    `json:"byteOffset"`
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
	Target      string `json:"target"`
}

// Result is the outcome of Insert. OriginalContent is never modified.
type Result struct {
	OriginalContent string   `json:"originalContent"`
	NewContent      string   `json:"newContent"`
	InsertedLinks   int      `json:"insertedLinks"`
	SkippedLinks    int      `json:"skippedLinks"`
	Changes         []Change `json:"changes"`
}

// Modified reports whether any link was inserted.
func (r Result) Modified() bool { return r.InsertedLinks > 0 }

// FindMatches returns, for each suggestion in input order, the occurrences of
// its target that are eligible for linking. Frontmatter, fenced and inline
// code, existing links and URLs are never eligible, nor are lines that
// already link the target.
func FindMatches(content string, suggestions []ai.LinkSuggestion) []Match {
	lines := scanLines(content)
	out := make([]Match, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, Match{Suggestion: s, Occurrences: findOccurrences(lines, s.TargetNote)})
	}
	return out
}

func findOccurrences(lines []line, target string) []Occurrence {
	target = strings.TrimSpace(target)
	if target == "" {
		return []Occurrence{}
	}
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(target))
	key := strings.ToLower(target)
	needLeft := isWordRune(firstRune(target))
	needRight := isWordRune(lastRune(target))

	occ := []Occurrence{}
	for _, ln := range lines {
		if ln.inFence || ln.linked[key] > 0 {
			continue
		}
		for pos := 0; pos < len(ln.text); {
			loc := re.FindStringIndex(ln.text[pos:])
			if loc == nil {
				break
			}
			start, end := pos+loc[0], pos+loc[1]
			if (needLeft && isWordRune(lastRune(ln.text[:start]))) ||
				(needRight && isWordRune(firstRune(ln.text[end:]))) {
				_, size := utf8.DecodeRuneInString(ln.text[start:])
				pos = start + max(size, 1)
				continue
			}
			pos = end

			abs := span{ln.offset + start, ln.offset + end}
			if overlapsAny(abs, ln.excluded) {
				continue
			}
			occ = append(occ, Occurrence{
				ByteOffset:  abs.start,
				Length:      end - start,
				MatchedText: ln.text[start:end],
				Line:        ln.number,
				Column:      utf8.RuneCountInString(ln.text[:start]) + 1,
			})
		}
	}
	return occ
}

// Insert links occurrences of the suggested targets in content.
//
// Suggestions are considered in descending confidence. Each target gets at
// most opts' limit of links, counting the links to it already present; further
// occurrences, and occurrences that overlap a link already chosen for another
// target, are counted as skipped.
func Insert(content string, suggestions []ai.LinkSuggestion, opts Options) Result {
	ordered := append([]ai.LinkSuggestion(nil), suggestions...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Confidence > ordered[j].Confidence })

	lines := scanLines(content)
	limit := opts.limit()
	perTarget := make(map[string]int)
	var chosen []Change
	var taken []span
	skipped := 0

	for _, s := range ordered {
		target := strings.TrimSpace(s.TargetNote)
		key := strings.ToLower(target)
		if _, seen := perTarget[key]; !seen {
			perTarget[key] = existingLinks(lines, key)
		}
		for _, o := range findOccurrences(lines, target) {
			r := span{o.ByteOffset, o.ByteOffset + o.Length}
			if perTarget[key] >= limit || overlapsAny(r, taken) {
				skipped++
				continue
			}
			perTarget[key]++
			taken = append(taken, r)
			chosen = append(chosen, Change{
				Line:        o.Line,
				Column:      o.Column,
				ByteOffset:  o.ByteOffset,
				Original:    o.MatchedText,
				Replacement: render(target, o.MatchedText, s.SuggestedText, opts.UseDisplayText),
				Target:      target,
			})
		}
	}

	// Splice from the end so earlier offsets stay valid.
	sort.Slice(chosen, func(i, j int) bool { return chosen[i].ByteOffset > chosen[j].ByteOffset })
	out := content
	for _, c := range chosen {
		out = out[:c.ByteOffset] + c.Replacement + out[c.ByteOffset+len(c.Original):]
	}

	sort.Slice(chosen, func(i, j int) bool {
		if chosen[i].Line != chosen[j].Line {
			return chosen[i].Line < chosen[j].Line
		}
		return chosen[i].Column < chosen[j].Column
	})
	if chosen == nil {
		chosen = []Change{}
	}

	return Result{
		OriginalContent: content,
		NewContent:      out,
		InsertedLinks:   len(chosen),
		SkippedLinks:    skipped,
		Changes:         chosen,
	}
}

func existingLinks(lines []line, key string) int {
	n := 0
	for _, ln := range lines {
		n += ln.linked[key]
	}
	return n
}

func render(target, matched, suggested string, useDisplay bool) string {
	alias := ""
	switch {
	case useDisplay && strings.TrimSpace(suggested) != "":
		alias = strings.TrimSpace(suggested)
	case matched != target:
		alias = matched
	}
	if alias == "" || alias == target {
		return "[[" + target + "]]"
	}
	return "[[" + target + "|" + alias + "]]"
}

func overlapsAny(s span, set []span) bool {
	for _, o := range set {
		if s.overlaps(o) {
			return true
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return 0
	}
	return r
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	if r == utf8.RuneError {
		return 0
	}
	return r
}
