package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"modelreg/internal/catalog"
	"modelreg/internal/engine"
	"modelreg/internal/httpapi"
	"modelreg/internal/registry"
)

// createTempModelsDir creates a temporary directory populated with empty .gguf files
// and returns the directory path and the list of model IDs (filenames).
func createTempModelsDir(t *testing.T, names ...string) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.WriteFile(p, []byte(""), 0o644); err != nil {
			t.Fatalf("write temp model %s: %v", p, err)
		}
	}
	return dir, names
}

// buildFakeLlamaServer compiles the llama-server stand-in shared with the
// engine tests.
func buildFakeLlamaServer(t *testing.T) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "fake_llama_server")
	cmd := exec.Command("go", "build", "-o", bin, "../engine/testdata/fake_llama_server.go")
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build fake server: %v: %s", err, string(out))
	}
	return bin
}

// newStack wires catalog, llama-server engine, registry and HTTP API the way
// the serve command does, backed by the fake llama-server binary.
func newStack(t *testing.T, modelsDir, bin string, portStart, portEnd int) (*httptest.Server, *registry.Registry) {
	t.Helper()
	cat, err := catalog.New(modelsDir)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	eng := engine.NewServerEngine(engine.ServerConfig{
		Bin:          bin,
		Host:         "127.0.0.1",
		PortStart:    portStart,
		PortEnd:      portEnd,
		ReadyTimeout: 10 * time.Second,
		StopGrace:    2 * time.Second,
		Logger:       zerolog.Nop(),
	})
	reg := registry.New(registry.Config{Engine: eng, Resolver: cat, Logger: zerolog.Nop()})
	srv := httptest.NewServer(httpapi.NewMux(reg, cat))
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = reg.Close(ctx)
	})
	return srv, reg
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload any) (*http.Response, []byte) {
	t.Helper()
	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}
