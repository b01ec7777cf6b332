package engine

import (
	"errors"
	"fmt"
)

// Defaults applied when the corresponding option is not supplied by the caller.
const (
	DefaultContextWindow = 1024
	DefaultParts         = -1
	DefaultSeed          = 42

	DefaultMaxTokens   = 100
	DefaultTemperature = 0.8
	DefaultTopP        = 0.95

	// maxGPULayers is passed to the backend when all layers are requested.
	maxGPULayers = 999
)

// LoadOptions configures construction of a handle.
type LoadOptions struct {
	ContextWindow int
	// Parts is a hint for split weight files; -1 auto-detects. Engines that
	// detect parts on their own ignore it.
	Parts int
	Seed  int
	// F16KV stores the key/value cache in reduced (fp16) precision.
	F16KV bool
	// GPULayers is the number of layers to offload: -1 all, 0 none.
	GPULayers int
	// Threads overrides the engine default thread count when > 0.
	Threads int
}

// DefaultLoadOptions returns the options used when a load request sets nothing.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		ContextWindow: DefaultContextWindow,
		Parts:         DefaultParts,
		Seed:          DefaultSeed,
	}
}

// Validate rejects option values no engine can honor.
func (o LoadOptions) Validate() error {
	if o.ContextWindow <= 0 {
		return fmt.Errorf("n_ctx must be positive, got %d", o.ContextWindow)
	}
	if o.Parts < -1 || o.Parts == 0 {
		return fmt.Errorf("n_parts must be -1 or positive, got %d", o.Parts)
	}
	if o.GPULayers < -1 {
		return fmt.Errorf("n_gpu_layers must be >= -1, got %d", o.GPULayers)
	}
	if o.Threads < 0 {
		return errors.New("n_threads must not be negative")
	}
	return nil
}

// GenerateOptions configures one generation.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// DefaultGenerateOptions returns the options used when a predict request sets nothing.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
		TopP:        DefaultTopP,
	}
}

// Validate rejects sampling parameters outside their meaningful range.
func (o GenerateOptions) Validate() error {
	if o.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", o.MaxTokens)
	}
	if o.Temperature < 0 {
		return fmt.Errorf("temperature must not be negative, got %g", o.Temperature)
	}
	if o.TopP <= 0 || o.TopP > 1 {
		return fmt.Errorf("top_p must be in (0, 1], got %g", o.TopP)
	}
	return nil
}
