// Package vaultctx builds the list of notes a suggestion may point at.
package vaultctx

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/starford/vaultlinker/internal/ai"
	"github.com/starford/vaultlinker/internal/index"
	"github.com/starford/vaultlinker/internal/storage"
)

// Builder derives an ai.VaultContext from the note index. Every Build brings
// the index up to date first, so results are never stale. Builds may run
// concurrently; syncs are serialized.
type Builder struct {
	mu     sync.Mutex
	db     *index.DB
	store  storage.Provider
	logger *slog.Logger
}

// New creates a Builder.
func New(db *index.DB, store storage.Provider, logger *slog.Logger) *Builder {
	return &Builder{db: db, store: store, logger: logger}
}

// Build syncs the index and returns every note's path and name, plus the
// sorted set of tags in use.
func (b *Builder) Build(ctx context.Context) (ai.VaultContext, error) {
	if err := ctx.Err(); err != nil {
		return ai.VaultContext{}, err
	}
	b.mu.Lock()
	stats, err := index.Sync(b.db, b.store, b.logger)
	b.mu.Unlock()
	if err != nil {
		return ai.VaultContext{}, fmt.Errorf("vaultctx: sync: %w", err)
	}
	if stats.Indexed > 0 || stats.Removed > 0 {
		b.logger.Debug("vaultctx: index refreshed", "indexed", stats.Indexed, "removed", stats.Removed)
	}

	summaries, err := b.db.Summaries()
	if err != nil {
		return ai.VaultContext{}, fmt.Errorf("vaultctx: summaries: %w", err)
	}

	vc := ai.VaultContext{
		NotePaths:  make([]string, 0, len(summaries)),
		NoteTitles: make([]string, 0, len(summaries)),
		Tags:       []string{},
	}
	seen := make(map[string]struct{})
	for _, s := range summaries {
		vc.NotePaths = append(vc.NotePaths, s.Path)
		vc.NoteTitles = append(vc.NoteTitles, s.Name())
		for _, t := range s.Tags {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			vc.Tags = append(vc.Tags, t)
		}
	}
	sort.Strings(vc.Tags)
	return vc, nil
}
