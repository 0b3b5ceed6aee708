package internal

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/vaultlinker/internal/ai/backends"
	"github.com/starford/vaultlinker/internal/sse"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Vault.Path = filepath.Join(dir, "vault")
	cfg.SQLite.Path = filepath.Join(dir, "index.db")
	cfg.AI.DefaultBackend = "ollama"
	cfg.AI.Backends = map[string]backends.Config{
		"ollama": {BaseURL: "http://127.0.0.1:1", Model: "llama3"},
		"openai": {},
	}
	return cfg
}

func TestOpen_WiresService(t *testing.T) {
	cfg := testConfig(t)
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfg.Vault.Path, "a.md"), []byte("# Alpha\nbody"), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := Open(WithConfig(cfg), WithLogOutput(io.Discard))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()

	got := a.Service.Backends()
	if len(got) != 2 {
		t.Fatalf("backends = %+v, want 2", got)
	}
	for _, b := range got {
		if b.Default != (b.Name == "ollama") {
			t.Errorf("backend %s default = %v", b.Name, b.Default)
		}
		if b.Name == "openai" && b.Available {
			t.Error("openai without api key should be unavailable")
		}
	}

	if n := len(a.Service.Providers(t.Context())); n != 8 {
		t.Errorf("providers = %d, want 8", n)
	}

	res, err := a.Service.Search(t.Context(), "body", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 || res[0].Path != "a.md" {
		t.Errorf("search after initial sync = %+v", res)
	}
}

func TestOpen_RequiresConfig(t *testing.T) {
	if _, err := Open(); err == nil {
		t.Fatal("Open without config should fail")
	}
}

func TestHTTPHandler(t *testing.T) {
	cfg := testConfig(t)
	a, err := Open(WithConfig(cfg), WithLogOutput(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	broker := sse.NewBroker(time.Second)
	defer broker.Close()
	srv := httptest.NewServer(newHTTPHandler(a, broker))
	defer srv.Close()

	for _, path := range []string{"/health/live", "/health/ready", "/api/providers"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}

	resp, err := http.Get(srv.URL + "/api/providers")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body struct {
		Providers []struct{ Name string } `json:"providers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Providers) != 8 {
		t.Errorf("providers = %d, want 8", len(body.Providers))
	}
}
