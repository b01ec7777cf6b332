package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"modelreg/internal/engine"
)

// Predict runs one generation on the handle registered under req.ID.
// Generations on one handle are serialized; different handles run in
// parallel. A handle unloaded while the caller waited yields not found.
func (r *Registry) Predict(ctx context.Context, req PredictRequest) (Prediction, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" || req.Prompt == "" {
		return Prediction{}, ErrValidation("Missing required parameters: 'model_id' and 'prompt'.")
	}
	if err := req.Options.Validate(); err != nil {
		return Prediction{}, ErrValidation("Invalid generation options for model '%s': %v", id, err)
	}
	e := r.lookup(id)
	if e == nil {
		return Prediction{}, ErrNotFound(id)
	}

	start := time.Now()
	select {
	case e.gen <- struct{}{}:
	case <-ctx.Done():
		return Prediction{}, ctx.Err()
	}
	defer func() { <-e.gen }()
	if e.released {
		return Prediction{}, ErrNotFound(id)
	}

	e.busy.Store(true)
	out, err := generate(ctx, e.handle, req.Prompt, req.Options)
	e.busy.Store(false)
	if err != nil {
		predictDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if ctx.Err() != nil {
				return Prediction{}, ctx.Err()
			}
		}
		r.publish(EventPredictError, id, map[string]any{"error": err.Error(), "token": e.token})
		r.log.Warn().Str("model_id", id).Str("token", e.token).Err(err).Msg("predict failed")
		if IsInternal(err) {
			return Prediction{}, err
		}
		return Prediction{}, ErrEngine(fmt.Sprintf("Prediction failed for model '%s'", id), err)
	}
	predictDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	r.log.Debug().Str("model_id", id).Int("max_tokens", req.Options.MaxTokens).Dur("dur", time.Since(start)).Msg("predict done")
	return Prediction{Text: strings.TrimSpace(out.Text), Raw: out.Raw}, nil
}

// generate calls the handle, converting a panic into an internal error.
func generate(ctx context.Context, h engine.Handle, prompt string, opts engine.GenerateOptions) (out engine.Output, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out = engine.Output{}
			err = ErrInternal("Prediction failed", fmt.Errorf("engine panic: %v", rec))
		}
	}()
	return h.Generate(ctx, prompt, opts)
}
