//go:build llama

package engine

import (
	"context"
	"errors"
	"runtime"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaEngine loads models in-process through go-llama.cpp.
type llamaEngine struct {
	threads int
}

// NewLlamaEngine returns the in-process engine. threads <= 0 uses one thread per CPU.
func NewLlamaEngine(threads int) Engine {
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	return &llamaEngine{threads: threads}
}

// llamaHandle owns one loaded model.
type llamaHandle struct {
	model   *llama.LLama
	path    string
	threads int
	seed    int
}

func (e *llamaEngine) Load(ctx context.Context, path string, opts LoadOptions) (Handle, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("model path is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mo := []llama.ModelOption{
		llama.SetContext(opts.ContextWindow),
		llama.SetModelSeed(opts.Seed),
	}
	if opts.F16KV {
		mo = append(mo, llama.EnableF16Memory)
	}
	switch {
	case opts.GPULayers < 0:
		mo = append(mo, llama.SetGPULayers(maxGPULayers))
	case opts.GPULayers > 0:
		mo = append(mo, llama.SetGPULayers(opts.GPULayers))
	}
	m, err := llama.New(path, mo...)
	if err != nil {
		return nil, err
	}
	threads := e.threads
	if opts.Threads > 0 {
		threads = opts.Threads
	}
	return &llamaHandle{model: m, path: path, threads: threads, seed: opts.Seed}, nil
}

func (h *llamaHandle) Generate(ctx context.Context, prompt string, opts GenerateOptions) (Output, error) {
	if h.model == nil {
		return Output{}, errors.New("llama model not initialized")
	}
	// Stop generation as soon as the caller goes away.
	h.model.SetTokenCallback(func(string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	})
	defer h.model.SetTokenCallback(nil)

	text, err := h.model.Predict(prompt,
		llama.SetTokens(opts.MaxTokens),
		llama.SetThreads(h.threads),
		llama.SetTemperature(float32(opts.Temperature)),
		llama.SetTopP(float32(opts.TopP)),
		llama.SetSeed(h.seed),
	)
	if err != nil {
		if ctx.Err() != nil {
			return Output{}, ctx.Err()
		}
		return Output{}, err
	}
	if ctx.Err() != nil {
		return Output{}, ctx.Err()
	}
	return outputFromCompletion(newCompletion(h.path, text, "stop"))
}

func (h *llamaHandle) Close() error {
	if h.model != nil {
		h.model.Free()
		h.model = nil
	}
	return nil
}
