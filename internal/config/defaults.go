package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Defaults applied by WithDefaults.
const (
	DefaultAddr                   = ":5000"
	DefaultEngine                 = "llama"
	DefaultLlamaBin               = "llama-server"
	DefaultLlamaHost              = "127.0.0.1"
	DefaultLlamaReadyTimeoutSecs  = 60
	DefaultLlamaStopGraceSecs     = 2
	DefaultLogLevel               = "info"
	DefaultLogFormat              = "json"
	DefaultMaxBodyBytes           = 1 << 20
	DefaultShutdownTimeoutSeconds = 15
)

// Environment variables consulted by ApplyEnv.
const (
	EnvAddr      = "MODELREG_ADDR"
	EnvModelsDir = "MODELREG_MODELS_DIR"
	EnvEngine    = "MODELREG_ENGINE"
	EnvLlamaBin  = "MODELREG_LLAMA_BIN"
	EnvLogLevel  = "MODELREG_LOG_LEVEL"
	EnvThreads   = "MODELREG_THREADS"
)

// Default returns a configuration with every default applied.
func Default() Config { return Config{}.WithDefaults() }

// WithDefaults returns c with zero fields replaced by package defaults.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.Engine == "" {
		c.Engine = DefaultEngine
	}
	if c.LlamaBin == "" {
		c.LlamaBin = DefaultLlamaBin
	}
	if c.LlamaHost == "" {
		c.LlamaHost = DefaultLlamaHost
	}
	if c.LlamaReadyTimeoutSeconds <= 0 {
		c.LlamaReadyTimeoutSeconds = DefaultLlamaReadyTimeoutSecs
	}
	if c.LlamaStopGraceSeconds <= 0 {
		c.LlamaStopGraceSeconds = DefaultLlamaStopGraceSecs
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.ShutdownTimeoutSeconds <= 0 {
		c.ShutdownTimeoutSeconds = DefaultShutdownTimeoutSeconds
	}
	return c
}

// ApplyEnv overrides fields from MODELREG_* environment variables.
func (c *Config) ApplyEnv() error { return c.applyEnv(os.LookupEnv) }

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str(EnvAddr, &c.Addr)
	str(EnvModelsDir, &c.ModelsDir)
	str(EnvEngine, &c.Engine)
	str(EnvLlamaBin, &c.LlamaBin)
	str(EnvLogLevel, &c.LogLevel)
	if v, ok := lookup(EnvThreads); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvThreads, err)
		}
		c.Threads = n
	}
	return nil
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	switch strings.ToLower(c.Engine) {
	case "", "llama", "server":
	default:
		return fmt.Errorf("engine must be \"llama\" or \"server\", got %q", c.Engine)
	}
	if c.LlamaPortStart < 0 || c.LlamaPortEnd < 0 {
		return fmt.Errorf("llama port range must not be negative")
	}
	if c.LlamaPortStart > 0 && c.LlamaPortEnd > 0 && c.LlamaPortEnd < c.LlamaPortStart {
		return fmt.Errorf("llama_port_end (%d) is below llama_port_start (%d)", c.LlamaPortEnd, c.LlamaPortStart)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "json", "console":
	default:
		return fmt.Errorf("log_format must be \"json\" or \"console\", got %q", c.LogFormat)
	}
	if c.Threads < 0 {
		return fmt.Errorf("threads must not be negative")
	}
	if c.PredictTimeoutSeconds < 0 {
		return fmt.Errorf("predict_timeout_seconds must not be negative")
	}
	return nil
}
