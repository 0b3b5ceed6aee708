// Package models defines the document types shared by storage, index and the link pipeline.
package models

import (
	"path/filepath"
	"strings"
	"time"
)

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteSummary is the slice of a note the link pipeline needs to know about:
// where it lives, what it is called and how it is tagged.
type NoteSummary struct {
	Path  string   `json:"path"`
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

// Name returns the link target for the note: its title when set, otherwise
// the file stem.
func (n NoteSummary) Name() string {
	if n.Title != "" {
		return n.Title
	}
	return Stem(n.Path)
}

// Stem returns the base file name of path without its .md extension.
func Stem(path string) string {
	return strings.TrimSuffix(filepath.Base(filepath.ToSlash(path)), ".md")
}
