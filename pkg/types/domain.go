package types

// ModelFile is a weights file discovered in the models directory.
type ModelFile struct {
	// File name, usable as model_path in POST /load.
	// example: tinyllama.Q4_K_M.gguf
	ID string `json:"id" example:"tinyllama.Q4_K_M.gguf"`
	// Absolute path on disk.
	// example: /home/user/models/tinyllama.Q4_K_M.gguf
	Path string `json:"path" example:"/home/user/models/tinyllama.Q4_K_M.gguf"`
	// Size in bytes.
	// example: 668788096
	SizeBytes int64 `json:"size_bytes" example:"668788096"`
}

// LoadOptionsView echoes the effective load configuration of a handle.
type LoadOptionsView struct {
	ContextWindow int  `json:"n_ctx" example:"1024"`
	Parts         int  `json:"n_parts" example:"-1"`
	Seed          int  `json:"seed" example:"42"`
	F16KV         bool `json:"f16_kv" example:"false"`
	GPULayers     int  `json:"n_gpu_layers" example:"0"`
	Threads       int  `json:"n_threads" example:"0"`
}

// HandleStatus is the verbose per-model view returned by GET /status?verbose=1.
type HandleStatus struct {
	// example: npc-guard
	ModelID string `json:"model_id" example:"npc-guard"`
	// example: loaded
	State string `json:"state" example:"loaded"`
	// example: /home/user/models/tinyllama.Q4_K_M.gguf
	Path string `json:"path" example:"/home/user/models/tinyllama.Q4_K_M.gguf"`
	// Unique token of this load; changes when an id is unloaded and loaded again.
	// example: 3f1c2a9e-8d7b-4d7e-9b8a-2f3c4d5e6f70
	Token string `json:"token" example:"3f1c2a9e-8d7b-4d7e-9b8a-2f3c4d5e6f70"`
	// example: 1700000000
	LoadedAtUnix int64 `json:"loaded_at_unix" example:"1700000000"`
	// True while a generation is running on this handle.
	// example: false
	Busy    bool            `json:"busy" example:"false"`
	Options LoadOptionsView `json:"options"`
}

// VerboseStatusResponse is returned by GET /status?verbose=1.
type VerboseStatusResponse struct {
	Models        []HandleStatus `json:"models"`
	UptimeSeconds int64          `json:"uptime_seconds" example:"3600"`
}
