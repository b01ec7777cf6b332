package types

import "encoding/json"

// LoadRequest is the payload of POST /load.
//
// Optional numeric fields are pointers so an explicit zero can be told apart
// from an omitted field; omitted fields take the engine defaults.
type LoadRequest struct {
	// Caller-chosen identifier used to reference the model later.
	// example: npc-guard
	ModelID string `json:"model_id" example:"npc-guard"`
	// Path to the weights file. Relative paths resolve against the models directory.
	// example: models/tinyllama.Q4_K_M.gguf
	ModelPath string `json:"model_path" example:"models/tinyllama.Q4_K_M.gguf"`
	// Context window size in tokens (default 1024).
	// example: 1024
	NCtx *int `json:"n_ctx,omitempty" example:"1024"`
	// Number of model parts; -1 auto-detects (default -1).
	// example: -1
	NParts *int `json:"n_parts,omitempty" example:"-1"`
	// RNG seed (default 42).
	// example: 42
	Seed *int `json:"seed,omitempty" example:"42"`
	// Use fp16 for the key/value cache (default false).
	// example: false
	F16KV *bool `json:"f16_kv,omitempty" example:"false"`
	// Layers to offload to the GPU; -1 offloads all, 0 runs on CPU (default 0).
	// example: 0
	NGPULayers *int `json:"n_gpu_layers,omitempty" example:"0"`
	// Worker threads used for generation; 0 lets the engine decide.
	// example: 4
	NThreads *int `json:"n_threads,omitempty" example:"4"`
}

// PredictRequest is the payload of POST /predict.
type PredictRequest struct {
	// Identifier of a loaded model.
	// example: npc-guard
	ModelID string `json:"model_id" example:"npc-guard"`
	// Prompt text to complete.
	// example: Who goes there?
	Prompt string `json:"prompt" example:"Who goes there?"`
	// Maximum number of new tokens (default 100).
	// example: 100
	MaxTokens *int `json:"max_tokens,omitempty" example:"100"`
	// Sampling temperature (default 0.8).
	// example: 0.8
	Temperature *float64 `json:"temperature,omitempty" example:"0.8"`
	// Nucleus sampling cutoff (default 0.95).
	// example: 0.95
	TopP *float64 `json:"top_p,omitempty" example:"0.95"`
}

// UnloadRequest is the payload of POST /unload.
type UnloadRequest struct {
	// Identifier of the model to unload.
	// example: npc-guard
	ModelID string `json:"model_id" example:"npc-guard"`
}

// MessageResponse is returned by successful load and unload calls.
type MessageResponse struct {
	// example: Model 'npc-guard' loaded successfully from /models/tinyllama.gguf.
	Message string `json:"message" example:"Model 'npc-guard' loaded successfully from /models/tinyllama.gguf."`
	// example: true
	Success bool `json:"success" example:"true"`
}

// PredictResponse is returned by a successful predict call.
type PredictResponse struct {
	// Generated text with surrounding whitespace removed.
	// example: Halt! State your business.
	Response string `json:"response" example:"Halt! State your business."`
	// Structured engine output, passed through for diagnostics.
	Raw json.RawMessage `json:"raw" swaggertype:"object"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: No loaded model found for model_id 'npc-guard'.
	Error string `json:"error" example:"No loaded model found for model_id 'npc-guard'."`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
	// Stack trace for server-side failures. Not a stable contract.
	Trace string `json:"trace,omitempty"`
}

// StatusResponse maps every loaded model id to the marker "loaded".
type StatusResponse map[string]string

// ModelsResponse wraps the weight files found in the models directory.
type ModelsResponse struct {
	Models []ModelFile `json:"models"`
}
