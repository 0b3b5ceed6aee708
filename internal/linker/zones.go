package linker

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/starford/vaultlinker/internal/parser"
)

var (
	mdLinkRe  = regexp.MustCompile(`!?\[[^\]\n]*\]\(([^)\n]*)\)`)
	bareURLRe = regexp.MustCompile(`(?i)\b(?:https?|ftp|file)://[^\s<>\])]+|\bmailto:[^\s<>\])]+`)
)

// span is a half-open byte range [start, end) of the whole document.
type span struct{ start, end int }

func (s span) overlaps(o span) bool { return s.start < o.end && o.start < s.end }

// line is one body line with its absolute position.
type line struct {
	text     string
	offset   int  // byte offset of the first byte
	number   int  // 1-based
	inFence  bool // part of a fenced code block, fences included
	excluded []span
	linked   map[string]int // lowercased target -> links to it on this line
}

// scanLines splits the body of content into lines and marks the regions no
// link may be inserted into.
func scanLines(content string) []line {
	start := parser.FrontmatterEnd(content)
	number := 1 + strings.Count(content[:start], "\n")

	var (
		out       []line
		fenceChar byte
		fenceLen  int
	)
	for pos := start; pos < len(content); number++ {
		end := strings.IndexByte(content[pos:], '\n')
		next := len(content)
		if end >= 0 {
			end += pos
			next = end + 1
		} else {
			end = len(content)
		}
		ln := line{text: content[pos:end], offset: pos, number: number}

		if fenceLen > 0 {
			ln.inFence = true
			if closesFence(ln.text, fenceChar, fenceLen) {
				fenceLen = 0
			}
		} else if c, n := fenceMarker(ln.text); n >= 3 {
			ln.inFence = true
			fenceChar, fenceLen = c, n
		}

		if !ln.inFence {
			ln.excluded, ln.linked = lineZones(ln.text, ln.offset)
		}
		out = append(out, ln)
		pos = next
	}
	return out
}

// fenceMarker reports the fence character and run length opening text, if
// text starts a fence (at most three spaces of indentation).
func fenceMarker(text string) (byte, int) {
	trimmed := strings.TrimLeft(text, " ")
	if len(text)-len(trimmed) > 3 || trimmed == "" {
		return 0, 0
	}
	c := trimmed[0]
	if c != '`' && c != '~' {
		return 0, 0
	}
	n := 0
	for n < len(trimmed) && trimmed[n] == c {
		n++
	}
	if n < 3 {
		return 0, 0
	}
	return c, n
}

// closesFence reports whether text is a closing fence for an opening run of
// n c characters: at least n of them and nothing else.
func closesFence(text string, c byte, n int) bool {
	got, run := fenceMarker(text)
	if got != c || run < n {
		return false
	}
	return strings.Trim(text, " \t\r"+string(c)) == ""
}

func lineZones(text string, base int) ([]span, map[string]int) {
	var zones []span
	linked := make(map[string]int)

	for _, wl := range parser.ExtractWikilinks(text) {
		zones = append(zones, span{base + wl.Start, base + wl.End})
		if wl.Target != "" {
			linked[strings.ToLower(wl.Target)]++
		}
	}
	for _, m := range mdLinkRe.FindAllStringSubmatchIndex(text, -1) {
		zones = append(zones, span{base + m[0], base + m[1]})
		if t := markdownTarget(text[m[2]:m[3]]); t != "" {
			linked[strings.ToLower(t)]++
		}
	}
	for _, m := range bareURLRe.FindAllStringIndex(text, -1) {
		zones = append(zones, span{base + m[0], base + m[1]})
	}
	for _, s := range codeSpans(text) {
		zones = append(zones, span{base + s.start, base + s.end})
	}
	for _, t := range parser.InlineTagSpans(text) {
		zones = append(zones, span{base + t[0], base + t[1]})
	}
	return zones, linked
}

// markdownTarget returns the note name a markdown link destination points
// at, or "" for external destinations.
func markdownTarget(dest string) string {
	dest = strings.TrimSpace(dest)
	if i := strings.IndexAny(dest, " \t"); i >= 0 {
		dest = dest[:i]
	}
	dest = strings.Trim(dest, "<>")
	if strings.Contains(dest, "://") || strings.HasPrefix(dest, "mailto:") {
		return ""
	}
	if i := strings.IndexByte(dest, '#'); i >= 0 {
		dest = dest[:i]
	}
	if u, err := url.PathUnescape(dest); err == nil {
		dest = u
	}
	if dest == "" {
		return ""
	}
	return strings.TrimSuffix(path.Base(dest), ".md")
}

// codeSpans finds inline code spans: a run of N backticks closed by the next
// run of exactly N backticks on the same line.
func codeSpans(text string) []span {
	var out []span
	i := 0
	for i < len(text) {
		if text[i] != '`' {
			i++
			continue
		}
		open := i
		for i < len(text) && text[i] == '`' {
			i++
		}
		n := i - open
		for j := i; j < len(text); {
			if text[j] != '`' {
				j++
				continue
			}
			k := j
			for k < len(text) && text[k] == '`' {
				k++
			}
			if k-j == n {
				out = append(out, span{open, k})
				i = k
				break
			}
			j = k
		}
	}
	return out
}
