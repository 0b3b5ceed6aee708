package ai

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

var testVault = VaultContext{
	NotePaths:  []string{"projects/Project Phoenix.md", "people/alice.md", "daily/2024-01-01.md"},
	NoteTitles: []string{"Project Phoenix", "Alice Smith"},
	Tags:       []string{"project"},
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestParseSuggestions(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"envelope", `{"suggestions":[{"targetNote":"Project Phoenix","confidence":0.9}]}`, []string{"Project Phoenix"}},
		{"fenced", "```json\n{\"suggestions\":[{\"targetNote\":\"alice\",\"confidence\":0.7}]}\n```", []string{"alice"}},
		{"bare array", `[{"targetNote":"Alice Smith","confidence":0.6}]`, []string{"Alice Smith"}},
		{"prose", `Sure! Here you go: {"suggestions":[{"targetNote":"project phoenix","confidence":0.8}]} Hope that helps.`, []string{"Project Phoenix"}},
		{"unknown target dropped", `{"suggestions":[{"targetNote":"Atlantis","confidence":0.9}]}`, []string{}},
		{"empty", `{"suggestions":[]}`, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSuggestions(tt.raw, testVault)
			if err != nil {
				t.Fatalf("ParseSuggestions: %v", err)
			}
			names := []string{}
			for _, s := range got {
				names = append(names, s.TargetNote)
			}
			if diff := cmp.Diff(tt.want, names); diff != "" {
				t.Errorf("targets (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseSuggestions_Malformed(t *testing.T) {
	_, err := ParseSuggestions("I cannot help with that.", testVault)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("err = %v, want ErrMalformedResponse", err)
	}
}

func TestParseSuggestions_EmptyVaultKeepsTargets(t *testing.T) {
	got, err := ParseSuggestions(`{"suggestions":[{"targetNote":"Anything","confidence":0.5}]}`, VaultContext{})
	if err != nil || len(got) != 1 {
		t.Errorf("got %v, %v", got, err)
	}
}

func TestNormalize(t *testing.T) {
	in := []LinkSuggestion{
		{TargetNote: "Low", Confidence: -0.2},
		{TargetNote: "High", Confidence: 1.7},
		{TargetNote: "  ", Confidence: 0.9},
		{TargetNote: "project phoenix", Confidence: 0.9},
		{TargetNote: "Mid", Confidence: 0.5},
	}
	got := Normalize(in, "projects/Project Phoenix.md")
	want := []LinkSuggestion{
		{TargetNote: "High", Confidence: 1},
		{TargetNote: "Mid", Confidence: 0.5},
		{TargetNote: "Low", Confidence: 0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize (-want +got):\n%s", diff)
	}
}

func TestFilter(t *testing.T) {
	in := []LinkSuggestion{
		{TargetNote: "a", Confidence: 0.9},
		{TargetNote: "b", Confidence: 0.8},
		{TargetNote: "c", Confidence: 0.4},
		{TargetNote: "d", Confidence: 0.7},
	}
	got := Filter(in, 0.5, 2)
	if len(got) != 2 || got[0].TargetNote != "a" || got[1].TargetNote != "b" {
		t.Errorf("Filter = %+v", got)
	}
	if got := Filter(in, 0.5, 0); len(got) != 3 {
		t.Errorf("uncapped Filter len = %d, want 3", len(got))
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("Working on the rewrite.", "projects/Project Phoenix.md", testVault)
	if strings.Contains(p, "- Project Phoenix\n") {
		t.Error("prompt should not offer the current note as a target")
	}
	for _, want := range []string{"- Alice Smith\n", "- alice\n", "- 2024-01-01\n", "Tags in use: project", "Working on the rewrite."} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildPrompt_TruncatesOnRuneBoundary(t *testing.T) {
	text := strings.Repeat("a", maxPromptText-1) + "é and more"
	prompt := BuildPrompt(text, "note.md", testVault)
	if !utf8.ValidString(prompt) {
		t.Fatal("prompt is not valid UTF-8")
	}
	want := "<<<\n" + strings.Repeat("a", maxPromptText-1) + "\n>>>"
	if !strings.Contains(prompt, want) {
		t.Error("note text not cut before the split rune")
	}
}

func TestParseSuggestions_MalformedPreviewKeepsRunes(t *testing.T) {
	raw := strings.Repeat("x", 99) + "日本語 without json"
	_, err := ParseSuggestions(raw, testVault)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("err = %v, want ErrMalformedResponse", err)
	}
	if want := strings.Repeat("x", 99) + `..."`; !strings.Contains(err.Error(), want) {
		t.Errorf("err = %q, want preview cut before the split rune", err.Error())
	}
}

func TestCut(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "h"},
		{"héllo", 3, "hé"},
		{"日本", 2, ""},
	}
	for _, tt := range tests {
		if got := cut(tt.in, tt.n); got != tt.want {
			t.Errorf("cut(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestSuggest_MalformedIsEmptySuccess(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	complete := func(context.Context, string, string) (string, error) { return "no json here", nil }

	res := Suggest(context.Background(), "fake", complete, "text", "a.md", testVault, logger)
	if !res.Success || len(res.Suggestions) != 0 {
		t.Errorf("result = %+v", res)
	}
	if !strings.Contains(buf.String(), "level=WARN") {
		t.Errorf("expected a warning, log = %q", buf.String())
	}
}

func TestSuggest_CompletionError(t *testing.T) {
	complete := func(context.Context, string, string) (string, error) { return "", errors.New("rate limited") }
	res := Suggest(context.Background(), "fake", complete, "text", "a.md", testVault, discard())
	if res.Success || res.Error != "rate limited" || res.Provider != "fake" {
		t.Errorf("result = %+v", res)
	}
}

type stubBackend struct {
	name      string
	available bool
	result    SuggestLinksResult
	panics    bool
	deadline  bool
}

func (s *stubBackend) Name() string      { return s.name }
func (s *stubBackend) IsAvailable() bool { return s.available }
func (s *stubBackend) SuggestLinks(ctx context.Context, _, _ string, _ VaultContext) SuggestLinksResult {
	if s.panics {
		panic("boom")
	}
	_, s.deadline = ctx.Deadline()
	return s.result
}

func TestRegistry_SuggestLinks(t *testing.T) {
	r := NewRegistry(time.Second, discard())
	ok := &stubBackend{name: "ok", available: true, result: SuggestLinksResult{Success: true, Provider: "ok"}}
	r.Register(ok)
	r.Register(&stubBackend{name: "off"})
	r.Register(&stubBackend{name: "bad", available: true, panics: true})
	ctx := context.Background()

	res := r.SuggestLinks(ctx, "ok", "t", "a.md", VaultContext{})
	if !res.Success || res.Suggestions == nil {
		t.Errorf("ok result = %+v", res)
	}
	if !ok.deadline {
		t.Error("backend call should carry a deadline")
	}

	if res := r.SuggestLinks(ctx, "missing", "t", "a.md", VaultContext{}); res.Success || res.Error != "unknown backend: missing" {
		t.Errorf("missing result = %+v", res)
	}
	if res := r.SuggestLinks(ctx, "off", "t", "a.md", VaultContext{}); res.Success || res.Provider != "off" {
		t.Errorf("off result = %+v", res)
	}
	if res := r.SuggestLinks(ctx, "bad", "t", "a.md", VaultContext{}); res.Success || !strings.Contains(res.Error, "panicked") {
		t.Errorf("panicking result = %+v", res)
	}

	if diff := cmp.Diff([]string{"bad", "off", "ok"}, r.Names()); diff != "" {
		t.Errorf("Names (-want +got):\n%s", diff)
	}
}
