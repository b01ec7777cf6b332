package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"modelreg/internal/engine"
)

// fakeEngine is an in-memory engine used for tests.
type fakeEngine struct {
	loadErr   error
	loadPanic bool
	// gate, when set, blocks every Load until closed. arrived counts callers.
	gate    chan struct{}
	arrived atomic.Int32

	// handle behavior
	genErr   error
	genPanic bool
	closeErr error
	block    chan struct{}

	mu      sync.Mutex
	handles []*fakeHandle
}

func (f *fakeEngine) Load(ctx context.Context, path string, opts engine.LoadOptions) (engine.Handle, error) {
	f.arrived.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.loadPanic {
		panic("boom")
	}
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	h := &fakeHandle{
		path: path, opts: opts,
		genErr: f.genErr, genPanic: f.genPanic, closeErr: f.closeErr, block: f.block,
		started: make(chan struct{}, 16),
	}
	f.mu.Lock()
	f.handles = append(f.handles, h)
	f.mu.Unlock()
	return h, nil
}

func (f *fakeEngine) loaded() []*fakeHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*fakeHandle, len(f.handles))
	copy(out, f.handles)
	return out
}

type fakeHandle struct {
	path     string
	opts     engine.LoadOptions
	genErr   error
	genPanic bool
	closeErr error
	block    chan struct{}
	started  chan struct{}

	calls       atomic.Int32
	inflight    atomic.Int32
	maxInflight atomic.Int32
	closed      atomic.Bool
	useAfter    atomic.Bool
}

func (h *fakeHandle) Generate(ctx context.Context, prompt string, opts engine.GenerateOptions) (engine.Output, error) {
	if h.closed.Load() {
		h.useAfter.Store(true)
		return engine.Output{}, errors.New("generate on closed handle")
	}
	h.calls.Add(1)
	n := h.inflight.Add(1)
	defer h.inflight.Add(-1)
	for {
		m := h.maxInflight.Load()
		if n <= m || h.maxInflight.CompareAndSwap(m, n) {
			break
		}
	}
	select {
	case h.started <- struct{}{}:
	default:
	}
	if h.block != nil {
		select {
		case <-h.block:
		case <-ctx.Done():
			return engine.Output{}, ctx.Err()
		}
	} else {
		time.Sleep(time.Millisecond)
	}
	if h.genPanic {
		panic("generate boom")
	}
	if h.genErr != nil {
		return engine.Output{}, h.genErr
	}
	text := fmt.Sprintf("  %s <- %s\n", prompt, h.path)
	raw, _ := json.Marshal(map[string]any{
		"object":  "text_completion",
		"choices": []map[string]any{{"text": text, "index": 0}},
		"usage":   map[string]int{"completion_tokens": opts.MaxTokens},
	})
	return engine.Output{Text: text, Raw: raw}, nil
}

func (h *fakeHandle) Close() error {
	h.closed.Store(true)
	return h.closeErr
}

// newTestRegistry returns a registry over eng with a discarding logger.
func newTestRegistry(t *testing.T, eng engine.Engine) *Registry {
	t.Helper()
	r := New(Config{Engine: eng, Logger: zerolog.Nop()})
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	return r
}

func loadReq(id, path string) LoadRequest {
	return LoadRequest{ID: id, Path: path, Options: engine.DefaultLoadOptions()}
}

func predictReq(id, prompt string) PredictRequest {
	return PredictRequest{ID: id, Prompt: prompt, Options: engine.DefaultGenerateOptions()}
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

// waitStarted waits for a generation to begin on h.
func waitStarted(t *testing.T, h *fakeHandle) {
	t.Helper()
	select {
	case <-h.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("generation did not start")
	}
}

type prefixResolver struct{ prefix string }

func (p prefixResolver) Resolve(path string) (string, error) {
	if path == "bad" {
		return "", errors.New("rejected")
	}
	return p.prefix + path, nil
}
