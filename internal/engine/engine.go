// Package engine defines the inference engine contract consumed by the model
// registry and provides two implementations:
//
//   - llama: in-process go-llama.cpp, compiled with `-tags=llama`. Without the
//     tag a stub is built that fails every Load with a clear diagnostic, which
//     keeps default builds CGO-free.
//   - server: one llama-server subprocess per handle, driven over its
//     OpenAI-compatible HTTP API.
//
// The registry never looks inside a Handle; it only constructs, generates and
// closes.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Engine turns a weights file plus options into a live Handle.
type Engine interface {
	Load(ctx context.Context, path string, opts LoadOptions) (Handle, error)
}

// Handle is one constructed model instance. Implementations are not required
// to tolerate concurrent Generate calls; callers serialize them.
type Handle interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (Output, error)
	// Close releases the resources held by the handle. It is called exactly
	// once by the owner and must not be followed by Generate.
	Close() error
}

// Output is the result of one generation.
type Output struct {
	// Text is the first choice's text as produced by the engine (untrimmed).
	Text string
	// Raw is the engine's structured completion object.
	Raw json.RawMessage
}

// Kind names an engine implementation.
type Kind string

const (
	KindLlama  Kind = "llama"
	KindServer Kind = "server"
)

// Config selects and configures an engine implementation.
type Config struct {
	Kind Kind
	// Threads is the default generation thread count for the llama engine.
	Threads int
	Server  ServerConfig
}

// New builds the engine named by cfg.Kind. An empty kind selects llama.
func New(cfg Config) (Engine, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(string(cfg.Kind)))) {
	case "", KindLlama:
		return NewLlamaEngine(cfg.Threads), nil
	case KindServer:
		return NewServerEngine(cfg.Server), nil
	default:
		return nil, fmt.Errorf("unknown engine %q (want %q or %q)", cfg.Kind, KindLlama, KindServer)
	}
}
