package ai

import (
	"fmt"
	"strings"

	"github.com/starford/vaultlinker/internal/models"
)

const (
	maxPromptTitles = 300
	maxPromptText   = 12000
)

const systemPrompt = `You suggest [[wikilinks]] for a note in a personal Markdown knowledge base.
Only suggest links to notes that exist in the provided list of note titles.
Only suggest a link when a phrase in the note text refers to that note.
Respond with a single JSON object and nothing else:
{"suggestions":[{"targetNote":"<exact note title>","confidence":<0.0-1.0>,"reason":"<short reason>","suggestedText":"<phrase in the text to link>"}]}
If nothing should be linked, respond with {"suggestions":[]}.`

// SystemPrompt returns the instructions shared by every backend.
func SystemPrompt() string { return systemPrompt }

// BuildPrompt renders the user prompt for a document.
func BuildPrompt(text, documentPath string, vc VaultContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current note: %s\n\n", documentPath)

	titles := candidateTitles(vc, documentPath)
	b.WriteString("Existing notes:\n")
	for i, t := range titles {
		if i == maxPromptTitles {
			fmt.Fprintf(&b, "- ... (%d more)\n", len(titles)-maxPromptTitles)
			break
		}
		b.WriteString("- ")
		b.WriteString(t)
		b.WriteByte('\n')
	}
	if len(vc.Tags) > 0 {
		fmt.Fprintf(&b, "\nTags in use: %s\n", strings.Join(vc.Tags, ", "))
	}

	text = cut(text, maxPromptText)
	b.WriteString("\nNote text:\n<<<\n")
	b.WriteString(text)
	b.WriteString("\n>>>\n")
	return b.String()
}

// candidateTitles merges titles and path stems, dropping duplicates and the
// current note.
func candidateTitles(vc VaultContext, documentPath string) []string {
	self := models.Stem(documentPath)
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		key := strings.ToLower(s)
		if s == "" || seen[key] || strings.EqualFold(s, self) {
			return
		}
		seen[key] = true
		out = append(out, s)
	}
	for _, t := range vc.NoteTitles {
		add(t)
	}
	for _, p := range vc.NotePaths {
		add(models.Stem(p))
	}
	return out
}
