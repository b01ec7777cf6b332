package registry

import (
	"fmt"
	"strings"
	"time"
)

// Unload removes the handle registered under id and releases it.
// - Removes the entry first so new predicts observe not found.
// - Waits for an in-flight generation on the handle to finish.
// - Closes the handle before returning.
func (r *Registry) Unload(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		unloadsTotal.WithLabelValues("invalid").Inc()
		return ErrValidation("Missing required parameter: 'model_id'.")
	}
	r.mu.Lock()
	e := r.entries[id]
	if e == nil {
		r.mu.Unlock()
		unloadsTotal.WithLabelValues("not_found").Inc()
		return errNotLoaded(id)
	}
	delete(r.entries, id)
	loadedModels.Dec()
	r.mu.Unlock()

	start := time.Now()
	e.gen <- struct{}{}
	e.released = true
	err := closeHandle(e.handle)
	e.handle = nil
	<-e.gen

	log := r.log.With().Str("model_id", id).Str("token", e.token).Dur("dur", time.Since(start)).Logger()
	if err != nil {
		unloadsTotal.WithLabelValues("close_error").Inc()
		r.publish(EventUnloadError, id, map[string]any{"error": err.Error(), "token": e.token})
		log.Error().Err(err).Msg("unload: close failed")
		return ErrInternal(fmt.Sprintf("Failed to unload model '%s'", id), err)
	}
	unloadsTotal.WithLabelValues("ok").Inc()
	r.publish(EventUnloadDone, id, map[string]any{"token": e.token})
	log.Info().Msg("model unloaded")
	return nil
}
