package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"modelreg/internal/engine"
	"modelreg/pkg/types"
)

// Load constructs a handle for req.Path and registers it under req.ID.
//
// The id is checked before any engine work and again at insertion. When two
// loads for the same id race, the one that inserts second loses: its handle
// is closed and a conflict error is returned. A failed load leaves no trace.
func (r *Registry) Load(ctx context.Context, req LoadRequest) (types.HandleStatus, error) {
	id := strings.TrimSpace(req.ID)
	src := strings.TrimSpace(req.Path)
	if id == "" || src == "" {
		loadsTotal.WithLabelValues("invalid").Inc()
		return types.HandleStatus{}, ErrValidation("Missing required parameters: 'model_id' and 'model_path'.")
	}
	if err := req.Options.Validate(); err != nil {
		loadsTotal.WithLabelValues("invalid").Inc()
		return types.HandleStatus{}, ErrValidation("Invalid load options for model '%s': %v", id, err)
	}

	r.mu.RLock()
	closed, exists := r.closed, r.entries[id] != nil
	r.mu.RUnlock()
	if closed {
		return types.HandleStatus{}, ErrInternal(fmt.Sprintf("Failed to load model '%s'", id), errClosed)
	}
	if exists {
		loadsTotal.WithLabelValues("conflict").Inc()
		r.publish(EventLoadConflict, id, nil)
		return types.HandleStatus{}, ErrConflict(id)
	}

	path := src
	if r.resolver != nil {
		p, err := r.resolver.Resolve(src)
		if err != nil {
			loadsTotal.WithLabelValues("invalid").Inc()
			return types.HandleStatus{}, ErrValidation("Invalid model_path '%s': %v", src, err)
		}
		path = p
	}

	token := uuid.NewString()
	log := r.log.With().Str("model_id", id).Str("token", token).Str("path", path).Logger()
	r.publish(EventLoadStart, id, map[string]any{"path": path, "token": token})
	log.Debug().Int("n_ctx", req.Options.ContextWindow).Int("seed", req.Options.Seed).Msg("load start")

	start := time.Now()
	h, err := r.construct(ctx, id, path, req.Options)
	if err != nil {
		loadsTotal.WithLabelValues("engine_error").Inc()
		r.publish(EventLoadError, id, map[string]any{"error": err.Error(), "token": token})
		log.Error().Err(err).Dur("dur", time.Since(start)).Msg("load failed")
		return types.HandleStatus{}, err
	}

	e := &entry{
		id:       id,
		path:     path,
		opts:     req.Options,
		token:    token,
		loadedAt: time.Now(),
		handle:   h,
		gen:      make(chan struct{}, 1),
	}

	r.mu.Lock()
	if r.closed || r.entries[id] != nil {
		shutdown := r.closed
		r.mu.Unlock()
		// lost the race (or shutdown began): the fresh handle is ours to release
		if cerr := closeHandle(h); cerr != nil {
			log.Warn().Err(cerr).Msg("close of discarded handle failed")
		}
		if shutdown {
			return types.HandleStatus{}, ErrInternal(fmt.Sprintf("Failed to load model '%s'", id), errClosed)
		}
		loadsTotal.WithLabelValues("conflict").Inc()
		r.publish(EventLoadConflict, id, map[string]any{"token": token})
		return types.HandleStatus{}, ErrConflict(id)
	}
	r.entries[id] = e
	loadedModels.Inc()
	r.mu.Unlock()

	loadsTotal.WithLabelValues("ok").Inc()
	r.publish(EventLoadDone, id, map[string]any{"path": path, "token": token})
	log.Info().Dur("dur", time.Since(start)).Msg("model loaded")
	return e.status(), nil
}

// construct calls the engine, turning failures and panics into typed errors.
func (r *Registry) construct(ctx context.Context, id, path string, opts engine.LoadOptions) (h engine.Handle, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			h = nil
			err = ErrInternal(fmt.Sprintf("Failed to load model '%s'", id), fmt.Errorf("engine panic: %v", rec))
		}
	}()
	if r.eng == nil {
		return nil, ErrInternal(fmt.Sprintf("Failed to load model '%s'", id), fmt.Errorf("no inference engine configured"))
	}
	h, err = r.eng.Load(ctx, path, opts)
	if err != nil {
		return nil, ErrEngine(fmt.Sprintf("Failed to load model '%s'", id), err)
	}
	if h == nil {
		return nil, ErrInternal(fmt.Sprintf("Failed to load model '%s'", id), fmt.Errorf("engine returned no handle"))
	}
	return h, nil
}

// closeHandle releases h, converting a panic into an error.
func closeHandle(h engine.Handle) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("engine panic on close: %v", rec)
		}
	}()
	return h.Close()
}
