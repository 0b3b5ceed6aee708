package backends

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/vaultlinker/internal/ai"
)

var vault = ai.VaultContext{
	NotePaths:  []string{"Project Phoenix.md", "notes/Alpha.md"},
	NoteTitles: []string{"Project Phoenix", "Alpha"},
}

const reply = `{"suggestions":[{"targetNote":"Alpha","confidence":0.4,"reason":"mentioned"},{"targetNote":"project phoenix","confidence":0.95,"reason":"named directly","suggestedText":"Project Phoenix"}]}`

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func checkReply(t *testing.T, res ai.SuggestLinksResult, provider string) {
	t.Helper()
	if !res.Success {
		t.Fatalf("%s failed: %s", provider, res.Error)
	}
	if res.Provider != provider {
		t.Errorf("provider = %q, want %q", res.Provider, provider)
	}
	if len(res.Suggestions) != 2 {
		t.Fatalf("suggestions = %+v", res.Suggestions)
	}
	if res.Suggestions[0].TargetNote != "Project Phoenix" || res.Suggestions[0].Confidence != 0.95 {
		t.Errorf("first suggestion = %+v, want canonical Project Phoenix sorted first", res.Suggestions[0])
	}
}

func TestOllama_SuggestLinks(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		out, _ := json.Marshal(map[string]any{
			"message": map[string]string{"role": "assistant", "content": reply},
			"done":    true,
		})
		w.Write(out)
	}))
	defer srv.Close()

	p := NewOllama(Config{BaseURL: srv.URL + "/", Model: "llama3.1"}, discard())
	res := p.SuggestLinks(context.Background(), "We shipped Project Phoenix.", "today.md", vault)
	checkReply(t, res, "ollama")

	if got["format"] != "json" || got["stream"] != false {
		t.Errorf("payload = %v", got)
	}
}

func TestOllama_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	res := NewOllama(Config{BaseURL: srv.URL}, discard()).SuggestLinks(context.Background(), "x", "a.md", vault)
	if res.Success || !strings.Contains(res.Error, "model not found") {
		t.Errorf("result = %+v", res)
	}
}

func TestOpenAI_SuggestLinks(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		out, _ := json.Marshal(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
		})
		w.Write(out)
	}))
	defer srv.Close()

	p := NewOpenAI(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, discard())
	if !p.IsAvailable() {
		t.Fatal("openai with key should be available")
	}
	res := p.SuggestLinks(context.Background(), "We shipped Project Phoenix.", "today.md", vault)
	checkReply(t, res, "openai")
	if auth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestAnthropic_SuggestLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		out, _ := json.Marshal(map[string]any{
			"id":            "msg_1",
			"type":          "message",
			"role":          "assistant",
			"model":         "claude-3-5-haiku-latest",
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"content":       []map[string]any{{"type": "text", "text": reply}},
			"usage":         map[string]int{"input_tokens": 10, "output_tokens": 20},
		})
		fmt.Fprint(w, string(out))
	}))
	defer srv.Close()

	p := NewAnthropic(Config{APIKey: "key", BaseURL: srv.URL}, discard())
	res := p.SuggestLinks(context.Background(), "We shipped Project Phoenix.", "today.md", vault)
	checkReply(t, res, "anthropic")
}

func TestAvailability(t *testing.T) {
	for _, name := range []string{"openai", "anthropic", "gemini"} {
		p, err := New(name, Config{}, discard())
		if err != nil {
			t.Fatalf("New(%s): %v", name, err)
		}
		if p.IsAvailable() {
			t.Errorf("%s without api key should be unavailable", name)
		}
	}
	p, _ := New("ollama", Config{}, discard())
	if !p.IsAvailable() {
		t.Error("ollama should default to the local endpoint")
	}
	if _, err := New("nope", Config{}, discard()); err == nil {
		t.Error("unknown backend should error")
	}
}

func TestRegisterAll(t *testing.T) {
	reg := ai.NewRegistry(time.Second, discard())
	err := RegisterAll(reg, map[string]Config{
		"ollama": {},
		"openai": {APIKey: "k"},
	}, discard())
	if err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	if got := strings.Join(reg.Names(), ","); got != "ollama,openai" {
		t.Errorf("names = %q", got)
	}
}
