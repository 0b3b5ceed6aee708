// Package parser extracts frontmatter, wikilinks, and tags from Markdown content.
package parser

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// [[Target]], [[Target#Heading]], [[Target|Alias]], [[Target#Heading|Alias]]
	wikilinkRe = regexp.MustCompile(`\[\[([^\[\]]*?)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
)

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Links       []string
	Tags        []string
	Title       string
}

// Wikilink is one [[...]] occurrence with its byte range in the scanned text.
type Wikilink struct {
	Target string
	Alias  string
	Start  int
	End    int
}

// Parse extracts frontmatter, body, wikilinks, and tags from raw Markdown bytes.
func Parse(data []byte) (*Result, error) {
	content := string(data)
	fm, body := splitFrontmatter(content)

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Links:       extractLinks(body),
		Tags:        extractTags(body, fm),
		Title:       deriveTitle(fm, body),
	}, nil
}

// FrontmatterEnd returns the byte offset at which the body starts. The
// frontmatter block must open with a "---" line at offset zero and close with
// a "---" or "..." line; anything else means there is no frontmatter and 0 is
// returned.
func FrontmatterEnd(content string) int {
	first, rest, ok := cutLine(content)
	if !ok || strings.TrimRight(first, " \t\r") != "---" {
		return 0
	}
	offset := len(content) - len(rest)
	for rest != "" {
		line, next, _ := cutLine(rest)
		trimmed := strings.TrimRight(line, " \t\r")
		lineEnd := offset + len(rest) - len(next)
		if trimmed == "---" || trimmed == "..." {
			return lineEnd
		}
		offset = lineEnd
		rest = next
	}
	return 0
}

// cutLine splits s at the first newline. The returned line excludes the
// newline; ok is false only when s is empty.
func cutLine(s string) (line, rest string, ok bool) {
	if s == "" {
		return "", "", false
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i], s[i+1:], true
	}
	return s, "", true
}

// splitFrontmatter separates YAML frontmatter from the Markdown body. Invalid
// YAML keeps the block out of the body but yields no frontmatter map.
func splitFrontmatter(content string) (map[string]any, string) {
	end := FrontmatterEnd(content)
	if end == 0 {
		return nil, content
	}
	block := content[:end]
	// Strip the opening and closing delimiter lines.
	_, inner, _ := cutLine(block)
	if i := strings.LastIndex(strings.TrimRight(inner, "\r\n"), "\n"); i >= 0 {
		inner = inner[:i]
	} else {
		inner = ""
	}
	body := strings.TrimLeft(content[end:], "\r\n")

	var fm map[string]any
	if err := yaml.Unmarshal([]byte(inner), &fm); err != nil {
		return nil, body
	}
	return fm, body
}

// ExtractWikilinks returns every wikilink in text with byte offsets relative
// to text. Heading anchors are stripped from the target.
func ExtractWikilinks(text string) []Wikilink {
	idx := wikilinkRe.FindAllStringSubmatchIndex(text, -1)
	out := make([]Wikilink, 0, len(idx))
	for _, m := range idx {
		target, alias := SplitLink(text[m[2]:m[3]])
		out = append(out, Wikilink{
			Target: target,
			Alias:  alias,
			Start:  m[0],
			End:    m[1],
		})
	}
	return out
}

// SplitLink splits the inside of a wikilink into its target (without any
// #heading) and alias.
func SplitLink(raw string) (target, alias string) {
	target = raw
	if i := strings.Index(raw, "|"); i >= 0 {
		target, alias = raw[:i], strings.TrimSpace(raw[i+1:])
	}
	if i := strings.Index(target, "#"); i >= 0 {
		target = target[:i]
	}
	return strings.TrimSpace(target), alias
}

// extractLinks returns deduplicated wikilink targets.
func extractLinks(body string) []string {
	links := ExtractWikilinks(body)
	seen := make(map[string]struct{}, len(links))
	var out []string
	for _, l := range links {
		if l.Target == "" {
			continue
		}
		if _, ok := seen[l.Target]; ok {
			continue
		}
		seen[l.Target] = struct{}{}
		out = append(out, l.Target)
	}
	return out
}

// extractTags collects #tags from body and from the frontmatter "tags" field,
// which may be a YAML list or a comma/space separated string.
func extractTags(body string, fm map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.TrimPrefix(strings.TrimSpace(s), "#")
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	if fm != nil {
		switch v := fm["tags"].(type) {
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					add(s)
				}
			}
		case string:
			for _, s := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
				add(s)
			}
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// InlineTagSpans returns the byte ranges of the inline #tags in text, the
// leading '#' included.
func InlineTagSpans(text string) [][2]int {
	var out [][2]int
	for _, m := range tagRe.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, [2]int{m[2] - 1, m[3]})
	}
	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]any, body string) string {
	if fm != nil {
		if s, ok := fm["title"].(string); ok && s != "" {
			return s
		}
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
