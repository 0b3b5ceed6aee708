package batch

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/vaultlinker/internal/ai"
)

const cancelled = "cancelled"

// Suggest discovers documents under opts.Folder and collects suggestions for
// each. Chunks of opts.Concurrency documents run one after another; documents
// within a chunk run concurrently. A failing document never aborts the run.
// The returned error covers discovery only.
func (p *Processor) Suggest(ctx context.Context, opts SuggestOptions) (SuggestResult, error) {
	paths, err := p.Discover(opts.Folder, opts.Include, opts.Exclude)
	if err != nil {
		return SuggestResult{}, err
	}
	size := opts.Concurrency
	if size <= 0 {
		size = DefaultConcurrency
	}
	max := opts.MaxSuggestions
	if max <= 0 {
		max = DefaultMaxSuggestions
	}

	runID := uuid.NewString()
	p.logger.Info("batch: suggest started", "run", runID, "folder", opts.Folder, "documents", len(paths), "backend", opts.Backend)

	items := make([]Item, len(paths))
	done := 0
	for start := 0; start < len(paths); start += size {
		if ctx.Err() != nil {
			for i := start; i < len(paths); i++ {
				items[i] = Item{Path: paths[i], Suggestions: []ai.LinkSuggestion{}, Error: cancelled}
			}
			break
		}
		end := min(start+size, len(paths))

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				items[i] = p.suggestOne(ctx, opts.Backend, paths[i], opts.MinConfidence, max)
				return nil
			})
		}
		_ = g.Wait()

		for i := start; i < end; i++ {
			done++
			p.emit(Event{
				RunID:       runID,
				Phase:       "suggest",
				Kind:        "item",
				Path:        items[i].Path,
				Done:        done,
				Total:       len(paths),
				Suggestions: len(items[i].Suggestions),
				Error:       items[i].Error,
			})
		}
	}

	res := SuggestResult{RunID: runID, Items: items, Processed: len(items)}
	for _, it := range items {
		if it.Error != "" {
			res.Failed++
			continue
		}
		res.Successful++
		res.TotalSuggestions += len(it.Suggestions)
	}
	p.emit(Event{RunID: runID, Phase: "suggest", Kind: "completed", Done: res.Processed, Total: len(paths)})
	p.logger.Info("batch: suggest finished", "run", runID, "processed", res.Processed, "failed", res.Failed, "suggestions", res.TotalSuggestions)
	return res, nil
}

func (p *Processor) suggestOne(ctx context.Context, backend, path string, minConfidence float64, max int) (it Item) {
	it = Item{Path: path, Suggestions: []ai.LinkSuggestion{}}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("batch: document panicked", "path", path, "panic", r)
			it = Item{Path: path, Suggestions: []ai.LinkSuggestion{}, Error: fmt.Sprintf("panic: %v", r)}
		}
	}()

	data, err := p.store.Read(path)
	if err != nil {
		it.Error = fmt.Sprintf("read failed: %v", err)
		return it
	}
	res := p.suggester.SuggestLinks(ctx, backend, string(data), path)
	if !res.Success {
		it.Error = res.Error
		if it.Error == "" {
			it.Error = "suggestion failed"
		}
		p.logger.Warn("batch: suggestion failed", "path", path, "error", it.Error)
		return it
	}
	it.Suggestions = ai.Filter(ai.Normalize(res.Suggestions, path), minConfidence, max)
	return it
}
