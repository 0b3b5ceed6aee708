package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/vaultlinker/internal/linker"
)

// Apply inserts the suggestions of a suggest phase into their documents.
// Documents are processed concurrently. Documents without suggestions are
// reported as untouched. Nothing is written on a dry run.
func (p *Processor) Apply(ctx context.Context, sr SuggestResult, opts ApplyOptions) ApplyResult {
	runID := sr.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	items := make([]ApplyItem, len(sr.Items))
	var done atomic.Int64

	var g errgroup.Group
	for i, it := range sr.Items {
		g.Go(func() error {
			items[i] = p.applyOne(ctx, it, opts)
			p.emit(Event{
				RunID:    runID,
				Phase:    "apply",
				Kind:     "item",
				Path:     it.Path,
				Done:     int(done.Add(1)),
				Total:    len(sr.Items),
				Inserted: items[i].Inserted,
				Modified: items[i].Modified,
				Error:    items[i].Error,
			})
			return nil
		})
	}
	_ = g.Wait()

	res := ApplyResult{RunID: runID, DryRun: opts.DryRun, Items: items, Processed: len(items)}
	for _, it := range items {
		switch {
		case it.Error != "":
			res.Failed++
		case it.Modified:
			res.Modified++
		default:
			res.Skipped++
		}
		res.TotalInserted += it.Inserted
	}
	p.emit(Event{RunID: runID, Phase: "apply", Kind: "completed", Done: res.Processed, Total: res.Processed})
	p.logger.Info("batch: apply finished", "run", runID, "dry_run", opts.DryRun,
		"modified", res.Modified, "skipped", res.Skipped, "failed", res.Failed, "inserted", res.TotalInserted)
	return res
}

func (p *Processor) applyOne(ctx context.Context, it Item, opts ApplyOptions) (out ApplyItem) {
	out = ApplyItem{Path: it.Path}
	if len(it.Suggestions) == 0 {
		return out
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("batch: document panicked", "path", it.Path, "panic", r)
			out = ApplyItem{Path: it.Path, Error: fmt.Sprintf("panic: %v", r)}
		}
	}()
	if ctx.Err() != nil {
		out.Error = cancelled
		return out
	}

	data, err := p.store.Read(it.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			out.Error = "not found: " + it.Path
		} else {
			out.Error = fmt.Sprintf("read failed: %v", err)
		}
		return out
	}

	res := linker.Insert(string(data), it.Suggestions, opts.Linker)
	out.Inserted = res.InsertedLinks
	out.Skipped = res.SkippedLinks
	out.Changes = res.Changes
	out.Modified = res.Modified()
	if !out.Modified || opts.DryRun {
		return out
	}

	if ctx.Err() != nil {
		return ApplyItem{Path: it.Path, Error: cancelled}
	}
	if err := p.store.Write(it.Path, []byte(res.NewContent)); err != nil {
		return ApplyItem{Path: it.Path, Error: fmt.Sprintf("write failed: %v", err)}
	}
	return out
}
