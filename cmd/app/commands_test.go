package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeOllama answers every chat request with one suggestion for Project Phoenix.
func fakeOllama(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		content := `{"suggestions":[{"targetNote":"Project Phoenix","confidence":0.9}]}`
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": content},
			"done":    true,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setup(t *testing.T) (configPath, vault string) {
	t.Helper()
	dir := t.TempDir()
	vault = filepath.Join(dir, "vault")
	notes := map[string]string{
		"journal.md":          "See Project Phoenix for details.",
		"daily/today.md":      "Project Phoenix again.",
		"projects/phoenix.md": "---\ntitle: Project Phoenix\n---\nThe project.\n",
	}
	for rel, content := range notes {
		p := filepath.Join(vault, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := fmt.Sprintf(`app:
  log_level: error
vault:
  path: %s
sqlite:
  path: %s
ai:
  default_backend: ollama
  backends:
    ollama:
      base_url: %s
      model: test
`, vault, filepath.Join(dir, "index.db"), fakeOllama(t).URL)
	configPath = filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return configPath, vault
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newCommand()
	cmd.Writer = &out
	err := cmd.Run(context.Background(), append([]string{"vaultlinker"}, args...))
	return out.String(), err
}

func readNote(t *testing.T, vault, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(vault, rel))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestSuggestCommand(t *testing.T) {
	cfg, _ := setup(t)

	out, err := run(t, "-c", cfg, "suggest", "journal.md")
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	var res struct {
		Success     bool `json:"success"`
		Suggestions []struct {
			TargetNote string `json:"targetNote"`
		} `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if !res.Success || len(res.Suggestions) != 1 || res.Suggestions[0].TargetNote != "Project Phoenix" {
		t.Errorf("suggest output = %s", out)
	}
}

func TestSuggestCommand_MissingArgument(t *testing.T) {
	cfg, _ := setup(t)
	_, err := run(t, "-c", cfg, "suggest")
	if err == nil || !strings.Contains(err.Error(), "missing path") {
		t.Fatalf("err = %v, want missing path", err)
	}
}

func TestLinkCommand(t *testing.T) {
	cfg, vault := setup(t)

	if _, err := run(t, "-c", cfg, "link", "--dry-run", "journal.md"); err != nil {
		t.Fatalf("link --dry-run: %v", err)
	}
	if got := readNote(t, vault, "journal.md"); got != "See Project Phoenix for details." {
		t.Errorf("dry run wrote %q", got)
	}

	if _, err := run(t, "-c", cfg, "link", "journal.md"); err != nil {
		t.Fatalf("link: %v", err)
	}
	if got := readNote(t, vault, "journal.md"); got != "See [[Project Phoenix]] for details." {
		t.Errorf("journal.md = %q", got)
	}
}

func TestBatchCommand(t *testing.T) {
	cfg, vault := setup(t)

	out, err := run(t, "-c", cfg, "batch", "--apply", "--include", "daily/**")
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	var res struct {
		Suggest struct {
			Processed int `json:"processed"`
		} `json:"suggest"`
		Apply *struct {
			Modified int `json:"modified"`
		} `json:"apply"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if res.Suggest.Processed != 1 || res.Apply == nil || res.Apply.Modified != 1 {
		t.Errorf("batch output = %s", out)
	}
	if got := readNote(t, vault, "daily/today.md"); got != "[[Project Phoenix]] again." {
		t.Errorf("daily/today.md = %q", got)
	}
	if got := readNote(t, vault, "journal.md"); got != "See Project Phoenix for details." {
		t.Errorf("journal.md outside include = %q", got)
	}
}
