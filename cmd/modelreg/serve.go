package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"modelreg/internal/catalog"
	"modelreg/internal/config"
	"modelreg/internal/engine"
	"modelreg/internal/httpapi"
	"modelreg/internal/registry"
)

func buildServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, cmd.ErrOrStderr(), nil)
		},
	}
	f := cmd.Flags()
	f.String("config", "", "Path to a YAML, JSON or TOML config file")
	f.String("addr", config.DefaultAddr, "HTTP listen address (env "+config.EnvAddr+")")
	f.String("models-dir", "", "Directory holding model weights; relative model_path values resolve against it (env "+config.EnvModelsDir+")")
	f.String("engine", config.DefaultEngine, "Inference engine: llama (in-process, -tags=llama) or server (llama-server subprocess) (env "+config.EnvEngine+")")
	f.Int("threads", 0, "Default generation threads; 0 lets the engine decide (env "+config.EnvThreads+")")
	f.String("llama-bin", config.DefaultLlamaBin, "llama-server executable for the server engine (env "+config.EnvLlamaBin+")")
	f.Int("llama-port-start", 0, "First port handed to llama-server subprocesses (0 picks any free port)")
	f.Int("llama-port-end", 0, "Last port handed to llama-server subprocesses")
	f.String("log-level", config.DefaultLogLevel, "Log level: debug|info|warn|error|off (env "+config.EnvLogLevel+")")
	f.String("log-format", config.DefaultLogFormat, "Log format: json|console")
	f.Int64("max-body-bytes", config.DefaultMaxBodyBytes, "Maximum request body size")
	f.Int64("predict-timeout", 0, "Per-request predict timeout in seconds (0 disables)")
	f.Int("shutdown-timeout", config.DefaultShutdownTimeoutSeconds, "Seconds to wait for in-flight requests on shutdown")
	f.Bool("cors", false, "Enable CORS")
	f.String("cors-origins", "", "Comma separated allowed origins (default *)")
	f.String("cors-methods", "", "Comma separated allowed methods")
	f.String("cors-headers", "", "Comma separated allowed headers")
	return cmd
}

// resolveConfig layers defaults, the config file, the environment and
// explicitly set flags, in increasing precedence.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	f := cmd.Flags()
	var cfg config.Config
	if path, _ := f.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}

	str := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	num := func(name string, dst *int) {
		if f.Changed(name) {
			*dst, _ = f.GetInt(name)
		}
	}
	num64 := func(name string, dst *int64) {
		if f.Changed(name) {
			*dst, _ = f.GetInt64(name)
		}
	}
	list := func(name string, dst *[]string) {
		if f.Changed(name) {
			v, _ := f.GetString(name)
			*dst = splitCSV(v)
		}
	}
	str("addr", &cfg.Addr)
	str("models-dir", &cfg.ModelsDir)
	str("engine", &cfg.Engine)
	num("threads", &cfg.Threads)
	str("llama-bin", &cfg.LlamaBin)
	num("llama-port-start", &cfg.LlamaPortStart)
	num("llama-port-end", &cfg.LlamaPortEnd)
	str("log-level", &cfg.LogLevel)
	str("log-format", &cfg.LogFormat)
	num64("max-body-bytes", &cfg.MaxBodyBytes)
	num64("predict-timeout", &cfg.PredictTimeoutSeconds)
	num("shutdown-timeout", &cfg.ShutdownTimeoutSeconds)
	if f.Changed("cors") {
		cfg.CORSEnabled, _ = f.GetBool("cors")
	}
	list("cors-origins", &cfg.CORSAllowedOrigins)
	list("cors-methods", &cfg.CORSAllowedMethods)
	list("cors-headers", &cfg.CORSAllowedHeaders)

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, usageError{fmt.Errorf("invalid configuration: %w", err)}
	}
	return cfg, nil
}

// newLogger builds the process logger. Unknown levels fall back to info.
func newLogger(level, format string, w io.Writer) zerolog.Logger {
	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if strings.EqualFold(strings.TrimSpace(level), "off") {
		lvl = zerolog.Disabled
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// serve runs the HTTP server until ctx is canceled, then drains requests and
// unloads every model. When ready is non-nil it receives the bound address.
func serve(ctx context.Context, cfg config.Config, logOut io.Writer, ready chan<- string) error {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logOut)
	log.Logger = logger

	cat, err := catalog.New(cfg.ModelsDir)
	if err != nil {
		return err
	}
	eng, err := engine.New(engine.Config{
		Kind:    engine.Kind(cfg.Engine),
		Threads: cfg.Threads,
		Server: engine.ServerConfig{
			Bin:          cfg.LlamaBin,
			Host:         cfg.LlamaHost,
			PortStart:    cfg.LlamaPortStart,
			PortEnd:      cfg.LlamaPortEnd,
			ReadyTimeout: time.Duration(cfg.LlamaReadyTimeoutSeconds) * time.Second,
			StopGrace:    time.Duration(cfg.LlamaStopGraceSeconds) * time.Second,
			ExtraArgs:    cfg.LlamaExtraArgs,
			Logger:       logger.With().Str("component", "engine").Logger(),
		},
	})
	if err != nil {
		return err
	}
	return serveWith(ctx, cfg, logger, cat, eng, ready)
}

// serveWith runs the server over an already built catalog and engine.
func serveWith(ctx context.Context, cfg config.Config, logger zerolog.Logger, cat *catalog.Catalog, eng engine.Engine, ready chan<- string) error {
	reg := registry.New(registry.Config{
		Engine:   eng,
		Resolver: cat,
		Logger:   logger,
	})

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetLogger(logger)
	httpapi.SetDefaultLogLevel(cfg.LogLevel)
	httpapi.SetBaseContext(baseCtx)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetPredictTimeoutSeconds(cfg.PredictTimeoutSeconds)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSAllowedOrigins, cfg.CORSAllowedMethods, cfg.CORSAllowedHeaders)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		_ = reg.Close(context.Background())
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	srv := &http.Server{
		Handler:           httpapi.NewMux(reg, cat),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", ln.Addr().String()).Str("engine", cfg.Engine).Str("models_dir", cat.Dir()).Msg("modelreg listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	if ready != nil {
		ready <- ln.Addr().String()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case serveErr = <-errCh:
	}

	// In-flight generations and loads abort first so the drain below does not
	// wait on them; their handlers answer 503.
	budget := time.Duration(cfg.ShutdownTimeoutSeconds) * time.Second
	cancelBase()
	sctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown error")
	}
	cctx, cancelClose := context.WithTimeout(context.Background(), budget)
	defer cancelClose()
	if err := reg.Close(cctx); err != nil {
		logger.Error().Err(err).Msg("unload on shutdown failed")
		if serveErr == nil {
			serveErr = err
		}
	}
	return serveErr
}
