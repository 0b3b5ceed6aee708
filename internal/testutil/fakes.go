package testutil

import (
	"context"
	"sync"

	"github.com/starford/vaultlinker/internal/ai"
	"github.com/starford/vaultlinker/internal/knowledge"
)

// FakeBackend is an ai.Provider returning canned suggestions.
type FakeBackend struct {
	BackendName string
	Off         bool
	Suggestions []ai.LinkSuggestion
	Err         string

	mu      sync.Mutex
	calls   int
	lastCtx ai.VaultContext
}

func (f *FakeBackend) Name() string      { return f.BackendName }
func (f *FakeBackend) IsAvailable() bool { return !f.Off }

func (f *FakeBackend) SuggestLinks(_ context.Context, _, _ string, vc ai.VaultContext) ai.SuggestLinksResult {
	f.mu.Lock()
	f.calls++
	f.lastCtx = vc
	f.mu.Unlock()
	if f.Err != "" {
		return ai.Failed(f.BackendName, f.Err)
	}
	return ai.SuggestLinksResult{
		Success:     true,
		Provider:    f.BackendName,
		Suggestions: append([]ai.LinkSuggestion(nil), f.Suggestions...),
	}
}

// Calls returns how many times SuggestLinks ran.
func (f *FakeBackend) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// LastContext returns the vault context of the latest call.
func (f *FakeBackend) LastContext() ai.VaultContext {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastCtx
}

// FakeSource is a knowledge.Provider returning canned entries.
type FakeSource struct {
	SourceName string
	Off        bool
	Entries    []knowledge.Entry
	Err        string
}

func (f *FakeSource) Name() string                       { return f.SourceName }
func (f *FakeSource) IsAvailable(_ context.Context) bool { return !f.Off }

func (f *FakeSource) Lookup(_ context.Context, _ string, _ knowledge.LookupOptions) knowledge.LookupResult {
	if f.Err != "" {
		return knowledge.Failed(f.SourceName, f.Err)
	}
	return knowledge.Succeeded(f.SourceName, f.Entries)
}
