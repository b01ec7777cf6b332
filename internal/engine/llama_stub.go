//go:build !llama

package engine

// This file is compiled when the 'llama' build tag is NOT set. The real
// in-process engine lives in llama.go.

import (
	"context"
	"errors"
)

// ErrLlamaNotBuilt is returned by the stub engine for every load.
var ErrLlamaNotBuilt = errors.New("llama support not built (missing 'llama' build tag); rebuild with -tags=llama or use engine=server")

type llamaEngine struct {
	threads int
}

func NewLlamaEngine(threads int) Engine {
	return &llamaEngine{threads: threads}
}

func (e *llamaEngine) Load(ctx context.Context, path string, opts LoadOptions) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrLlamaNotBuilt
}
