package batch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/vaultlinker/internal/ai"
	"github.com/starford/vaultlinker/internal/linker"
	"github.com/starford/vaultlinker/internal/testutil"
)

type stubSuggester struct {
	fail     map[string]bool
	panics   map[string]bool
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
}

func (s *stubSuggester) SuggestLinks(ctx context.Context, backend, text, path string) ai.SuggestLinksResult {
	s.calls.Add(1)
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.panics[path] {
		panic("boom")
	}
	if s.fail[path] {
		return ai.Failed(backend, "backend exploded")
	}
	return ai.SuggestLinksResult{
		Success:  true,
		Provider: backend,
		Suggestions: []ai.LinkSuggestion{
			{TargetNote: "Target", Confidence: 0.9},
			{TargetNote: "Weak", Confidence: 0.2},
		},
	}
}

func fiveDocs() map[string]string {
	return map[string]string{
		"notes/a.md": "Target is mentioned here.",
		"notes/b.md": "Another Target mention.",
		"notes/c.md": "Target again.",
		"notes/d.md": "And Target once more.",
		"notes/e.md": "Nothing relevant.",
	}
}

func TestSuggest_AggregatesAndIsolatesFailures(t *testing.T) {
	dir, store := testutil.TestVault(t)
	testutil.WriteNotes(t, dir, fiveDocs())
	stub := &stubSuggester{fail: map[string]bool{"notes/c.md": true}}
	p := NewProcessor(store, stub, testutil.Logger())

	opts := DefaultSuggestOptions("notes", "fake")
	opts.Concurrency = 2
	res, err := p.Suggest(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.Processed != 5 || res.Failed != 1 || res.Successful != 4 {
		t.Errorf("processed=%d failed=%d successful=%d, want 5/1/4", res.Processed, res.Failed, res.Successful)
	}
	if res.TotalSuggestions != 4 {
		t.Errorf("TotalSuggestions = %d, want 4", res.TotalSuggestions)
	}
	if res.RunID == "" {
		t.Error("expected run id")
	}

	var paths []string
	for _, it := range res.Items {
		paths = append(paths, it.Path)
		if it.Path == "notes/c.md" && it.Error != "backend exploded" {
			t.Errorf("c.md error = %q", it.Error)
		}
	}
	want := []string{"notes/a.md", "notes/b.md", "notes/c.md", "notes/d.md", "notes/e.md"}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("paths (-want +got):\n%s", diff)
	}
}

func TestSuggest_ConcurrencyBound(t *testing.T) {
	dir, store := testutil.TestVault(t)
	testutil.WriteNotes(t, dir, fiveDocs())
	stub := &stubSuggester{delay: 20 * time.Millisecond}
	p := NewProcessor(store, stub, testutil.Logger())

	opts := DefaultSuggestOptions("notes", "fake")
	opts.Concurrency = 2
	if _, err := p.Suggest(context.Background(), opts); err != nil {
		t.Fatal(err)
	}
	if peak := stub.peak.Load(); peak > 2 {
		t.Errorf("peak in-flight = %d, want <= 2", peak)
	}
	if calls := stub.calls.Load(); calls != 5 {
		t.Errorf("calls = %d, want 5", calls)
	}
}

func TestSuggest_PanicIsCaptured(t *testing.T) {
	dir, store := testutil.TestVault(t)
	testutil.WriteNotes(t, dir, fiveDocs())
	stub := &stubSuggester{panics: map[string]bool{"notes/b.md": true}}
	p := NewProcessor(store, stub, testutil.Logger())

	res, err := p.Suggest(context.Background(), DefaultSuggestOptions("notes", "fake"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Failed != 1 || res.Successful != 4 {
		t.Errorf("failed=%d successful=%d, want 1/4", res.Failed, res.Successful)
	}
	if res.Items[1].Error != "panic: boom" {
		t.Errorf("b.md error = %q", res.Items[1].Error)
	}
}

func TestSuggest_CancelledMarksRemaining(t *testing.T) {
	dir, store := testutil.TestVault(t)
	testutil.WriteNotes(t, dir, fiveDocs())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewProcessor(store, &stubSuggester{}, testutil.Logger())

	res, err := p.Suggest(ctx, DefaultSuggestOptions("notes", "fake"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Failed != 5 {
		t.Errorf("Failed = %d, want 5", res.Failed)
	}
	for _, it := range res.Items {
		if it.Error != "cancelled" {
			t.Errorf("%s error = %q", it.Path, it.Error)
		}
	}
}

func TestSuggest_ProgressEvents(t *testing.T) {
	dir, store := testutil.TestVault(t)
	testutil.WriteNotes(t, dir, fiveDocs())
	var mu sync.Mutex
	var events []Event
	p := NewProcessor(store, &stubSuggester{}, testutil.Logger(), WithProgress(func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}))

	if _, err := p.Suggest(context.Background(), DefaultSuggestOptions("notes", "fake")); err != nil {
		t.Fatal(err)
	}
	if len(events) != 6 {
		t.Fatalf("got %d events, want 6", len(events))
	}
	last := events[len(events)-1]
	if last.Kind != "completed" || last.Done != 5 || last.Total != 5 {
		t.Errorf("last event = %+v", last)
	}
	if events[4].Done != 5 {
		t.Errorf("fifth item event Done = %d", events[4].Done)
	}
}

func TestApply_WritesAndReports(t *testing.T) {
	dir, store := testutil.TestVault(t)
	testutil.WriteNotes(t, dir, fiveDocs())
	p := NewProcessor(store, &stubSuggester{fail: map[string]bool{"notes/c.md": true}}, testutil.Logger())

	sr, err := p.Suggest(context.Background(), DefaultSuggestOptions("notes", "fake"))
	if err != nil {
		t.Fatal(err)
	}
	res := p.Apply(context.Background(), sr, ApplyOptions{Linker: linker.DefaultOptions()})

	if res.RunID != sr.RunID {
		t.Errorf("RunID = %q, want %q", res.RunID, sr.RunID)
	}
	// a, b, d gain a link. c failed to suggest and e has no mention.
	if res.Modified != 3 || res.Skipped != 2 || res.Failed != 0 || res.TotalInserted != 3 {
		t.Errorf("modified=%d skipped=%d failed=%d inserted=%d", res.Modified, res.Skipped, res.Failed, res.TotalInserted)
	}
	if got := testutil.ReadNote(t, dir, "notes/a.md"); got != "[[Target]] is mentioned here." {
		t.Errorf("a.md = %q", got)
	}
	if got := testutil.ReadNote(t, dir, "notes/c.md"); got != "Target again." {
		t.Errorf("c.md was modified: %q", got)
	}
}

func TestApply_DryRunLeavesFiles(t *testing.T) {
	dir, store := testutil.TestVault(t)
	testutil.WriteNotes(t, dir, fiveDocs())
	p := NewProcessor(store, &stubSuggester{}, testutil.Logger())

	sr, err := p.Suggest(context.Background(), DefaultSuggestOptions("notes", "fake"))
	if err != nil {
		t.Fatal(err)
	}
	res := p.Apply(context.Background(), sr, ApplyOptions{DryRun: true, Linker: linker.DefaultOptions()})

	if !res.DryRun || res.Modified != 4 || res.TotalInserted != 4 {
		t.Errorf("dryRun=%v modified=%d inserted=%d", res.DryRun, res.Modified, res.TotalInserted)
	}
	for rel, content := range fiveDocs() {
		if got := testutil.ReadNote(t, dir, rel); got != content {
			t.Errorf("%s changed on dry run: %q", rel, got)
		}
	}
	if len(res.Items[0].Changes) != 1 {
		t.Errorf("changes = %+v", res.Items[0].Changes)
	}
}

func TestApply_MissingDocument(t *testing.T) {
	_, store := testutil.TestVault(t)
	p := NewProcessor(store, &stubSuggester{}, testutil.Logger())

	sr := SuggestResult{Items: []Item{{
		Path:        "gone.md",
		Suggestions: []ai.LinkSuggestion{{TargetNote: "Target", Confidence: 0.9}},
	}}}
	res := p.Apply(context.Background(), sr, ApplyOptions{Linker: linker.DefaultOptions()})

	if res.Failed != 1 || res.Items[0].Error != "not found: gone.md" {
		t.Errorf("failed=%d error=%q", res.Failed, res.Items[0].Error)
	}
	if res.RunID == "" {
		t.Error("expected generated run id")
	}
}

func TestDiscover(t *testing.T) {
	dir, store := testutil.TestVault(t)
	testutil.WriteNotes(t, dir, map[string]string{
		"top.md":                   "x",
		"notes/a.md":               "x",
		"notes/image.png":          "x",
		"notes/archive/old.md":     "x",
		"notes/drafts/wip.md":      "x",
		"notes/drafts/nested/n.md": "x",
		".obsidian/cfg.md":         "x",
	})
	p := NewProcessor(store, &stubSuggester{}, testutil.Logger())

	tests := []struct {
		name    string
		folder  string
		include []string
		exclude []string
		want    []string
	}{
		{"whole vault", "", nil, nil, []string{
			"notes/a.md", "notes/archive/old.md", "notes/drafts/nested/n.md", "notes/drafts/wip.md", "top.md",
		}},
		{"folder", "notes", nil, []string{"archive/**"}, []string{
			"notes/a.md", "notes/drafts/nested/n.md", "notes/drafts/wip.md",
		}},
		{"include", "notes", []string{"drafts/*.md"}, nil, []string{"notes/drafts/wip.md"}},
		{"exclude file", "notes", nil, []string{"**/wip.md"}, []string{
			"notes/a.md", "notes/archive/old.md", "notes/drafts/nested/n.md",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Discover(tt.folder, tt.include, tt.exclude)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Discover (-want +got):\n%s", diff)
			}
		})
	}

	if _, err := p.Discover("missing", nil, nil); err == nil {
		t.Error("expected error for missing folder")
	}
	if _, err := p.Discover("", []string{"[bad"}, nil); err == nil {
		t.Error("expected error for invalid glob")
	}
}
