// Package storage defines the document store the link pipeline reads from and writes back to.
package storage

import "github.com/starford/vaultlinker/internal/models"

// WalkFunc is called for every entry under a walked directory. rel is the
// path relative to the vault root. Returning fs.SkipDir from a directory
// entry skips its contents.
type WalkFunc func(rel string, isDir bool) error

// Provider is the interface for vault document operations.
type Provider interface {
	// List returns metadata for every .md file under dir (relative to vault root).
	List(dir string) ([]models.NoteMetadata, error)
	// Walk visits every file and folder under dir in lexical order.
	Walk(dir string, fn WalkFunc) error
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to vault root).
	Write(path string, content []byte) error
}
