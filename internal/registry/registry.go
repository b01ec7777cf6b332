package registry

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"modelreg/internal/engine"
	"modelreg/pkg/types"
)

// StateLoaded is the only state a registered handle can be in.
const StateLoaded = "loaded"

var errClosed = errors.New("registry is closed")

// PathResolver maps a client supplied model path to the path handed to the engine.
type PathResolver interface {
	Resolve(path string) (string, error)
}

// Config configures a Registry. Engine is required.
type Config struct {
	Engine    engine.Engine
	Resolver  PathResolver
	Publisher EventPublisher
	Logger    zerolog.Logger
}

// LoadRequest names a handle to construct. Options must be fully populated;
// start from engine.DefaultLoadOptions.
type LoadRequest struct {
	ID      string
	Path    string
	Options engine.LoadOptions
}

// PredictRequest runs one generation. Options must be fully populated;
// start from engine.DefaultGenerateOptions.
type PredictRequest struct {
	ID      string
	Prompt  string
	Options engine.GenerateOptions
}

// Prediction is the result of Predict.
type Prediction struct {
	// Text is the generated text trimmed of surrounding whitespace.
	Text string
	Raw  json.RawMessage
}

// entry owns one engine handle. gen is a single slot: whoever holds it may
// call Generate or Close on handle and read or write released.
type entry struct {
	id       string
	path     string
	opts     engine.LoadOptions
	token    string
	loadedAt time.Time
	handle   engine.Handle

	gen      chan struct{}
	released bool
	busy     atomic.Bool
}

func (e *entry) status() types.HandleStatus {
	return types.HandleStatus{
		ModelID:      e.id,
		State:        StateLoaded,
		Path:         e.path,
		Token:        e.token,
		LoadedAtUnix: e.loadedAt.Unix(),
		Busy:         e.busy.Load(),
		Options: types.LoadOptionsView{
			ContextWindow: e.opts.ContextWindow,
			Parts:         e.opts.Parts,
			Seed:          e.opts.Seed,
			F16KV:         e.opts.F16KV,
			GPULayers:     e.opts.GPULayers,
			Threads:       e.opts.Threads,
		},
	}
}

// Registry maps caller-chosen ids to live engine handles. The map lock is
// never held across an engine call.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	closed  bool

	eng       engine.Engine
	resolver  PathResolver
	publisher EventPublisher
	log       zerolog.Logger
	started   time.Time
}

// New constructs an empty registry.
func New(cfg Config) *Registry {
	r := &Registry{
		entries:   make(map[string]*entry),
		eng:       cfg.Engine,
		resolver:  cfg.Resolver,
		publisher: cfg.Publisher,
		log:       cfg.Logger.With().Str("component", "registry").Logger(),
		started:   time.Now(),
	}
	if r.publisher == nil {
		r.publisher = noopPublisher{}
	}
	return r
}

// SetEventPublisher replaces the event sink. nil restores the no-op publisher.
func (r *Registry) SetEventPublisher(p EventPublisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p == nil {
		p = noopPublisher{}
	}
	r.publisher = p
}

func (r *Registry) publish(name, id string, fields map[string]any) {
	r.mu.RLock()
	p := r.publisher
	r.mu.RUnlock()
	if fields == nil {
		fields = map[string]any{}
	}
	p.Publish(Event{Name: name, ModelID: id, Fields: fields})
}

// Ready reports whether the registry accepts work.
func (r *Registry) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.closed && r.eng != nil
}

// Status returns every registered id mapped to "loaded".
func (r *Registry) Status() types.StatusResponse {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(types.StatusResponse, len(r.entries))
	for id := range r.entries {
		out[id] = StateLoaded
	}
	return out
}

// Describe returns the verbose view of every registered handle, sorted by id.
func (r *Registry) Describe() types.VerboseStatusResponse {
	r.mu.RLock()
	models := make([]types.HandleStatus, 0, len(r.entries))
	for _, e := range r.entries {
		models = append(models, e.status())
	}
	r.mu.RUnlock()
	sort.Slice(models, func(i, j int) bool { return models[i].ModelID < models[j].ModelID })
	return types.VerboseStatusResponse{
		Models:        models,
		UptimeSeconds: int64(time.Since(r.started).Seconds()),
	}
}

// lookup returns the entry for id or nil.
func (r *Registry) lookup(id string) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[id]
}

// Close stops accepting loads and unloads every handle concurrently. It
// returns the first unload failure, or ctx.Err() if ctx ends first.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			if err := r.Unload(id); err != nil && !IsNotFound(err) {
				return err
			}
			return nil
		})
	}
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	select {
	case err := <-done:
		r.log.Info().Int("unloaded", len(ids)).Err(err).Msg("registry closed")
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
