package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// Defaults for ServerConfig fields left unset.
const (
	defaultServerBin     = "llama-server"
	defaultServerHost    = "127.0.0.1"
	defaultReadyTimeout  = 60 * time.Second
	defaultStopGrace     = 2 * time.Second
	stderrTailBytes      = 4096
	readinessPollPeriod  = 100 * time.Millisecond
	readinessProbeBudget = 1 * time.Second
)

// ServerConfig configures the llama-server subprocess engine.
type ServerConfig struct {
	// Bin is the llama-server executable (looked up in PATH when not absolute).
	Bin  string
	Host string
	// PortStart/PortEnd bound the ports handed to subprocesses. Zero picks any free port.
	PortStart int
	PortEnd   int
	// ReadyTimeout bounds how long Load waits for the subprocess to answer.
	ReadyTimeout time.Duration
	// StopGrace is the time between SIGTERM and SIGKILL on Close.
	StopGrace time.Duration
	// ExtraArgs are appended verbatim to every llama-server command line.
	ExtraArgs []string
	Logger    zerolog.Logger
}

// ServerEngine spawns one llama-server per handle.
type ServerEngine struct {
	cfg    ServerConfig
	client *http.Client

	mu       sync.Mutex
	reserved map[int]bool // ports owned by live or starting subprocesses
}

// NewServerEngine constructs a subprocess-backed engine.
func NewServerEngine(cfg ServerConfig) *ServerEngine {
	if strings.TrimSpace(cfg.Bin) == "" {
		cfg.Bin = defaultServerBin
	}
	if strings.TrimSpace(cfg.Host) == "" {
		cfg.Host = defaultServerHost
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = defaultStopGrace
	}
	// Timeout=0: every request carries a context deadline instead.
	return &ServerEngine{cfg: cfg, client: &http.Client{Timeout: 0}, reserved: make(map[int]bool)}
}

// serverHandle is one running llama-server.
type serverHandle struct {
	e       *ServerEngine
	path    string
	baseURL string
	port    int
	seed    int
	cmd     *exec.Cmd
	stderr  *tailWriter
	exited  chan struct{} // closed when the process has been reaped
	waitErr error

	closeOnce sync.Once
	closeErr  error
}

// serverArgs builds the llama-server command line for one handle.
func serverArgs(path, host string, port int, opts LoadOptions, extra []string) []string {
	args := []string{
		"-m", path,
		"--host", host,
		"--port", strconv.Itoa(port),
		"-c", strconv.Itoa(opts.ContextWindow),
		"--seed", strconv.Itoa(opts.Seed),
	}
	switch {
	case opts.GPULayers < 0:
		args = append(args, "-ngl", strconv.Itoa(maxGPULayers))
	case opts.GPULayers > 0:
		args = append(args, "-ngl", strconv.Itoa(opts.GPULayers))
	}
	if opts.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(opts.Threads))
	}
	if opts.F16KV {
		args = append(args, "--cache-type-k", "f16", "--cache-type-v", "f16")
	}
	return append(args, extra...)
}

func (e *ServerEngine) Load(ctx context.Context, path string, opts LoadOptions) (Handle, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("model path is empty")
	}
	port, err := e.reservePort()
	if err != nil {
		return nil, err
	}
	baseURL := fmt.Sprintf("http://%s", net.JoinHostPort(e.cfg.Host, strconv.Itoa(port)))

	cmd := exec.Command(e.cfg.Bin, serverArgs(path, e.cfg.Host, port, opts, e.cfg.ExtraArgs)...)
	stderr := newTailWriter(stderrTailBytes, e.cfg.Logger.With().Str("model_path", path).Int("port", port).Logger())
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		e.releasePort(port)
		return nil, fmt.Errorf("start llama-server: %w", err)
	}
	h := &serverHandle{
		e: e, path: path, baseURL: baseURL, port: port, seed: opts.Seed,
		cmd: cmd, stderr: stderr, exited: make(chan struct{}),
	}
	go func() {
		h.waitErr = cmd.Wait()
		close(h.exited)
	}()
	log := e.cfg.Logger.With().Str("model_path", path).Int("pid", cmd.Process.Pid).Int("port", port).Logger()
	log.Debug().Msg("llama-server started")

	if err := h.waitReady(ctx); err != nil {
		_ = h.Close()
		log.Warn().Err(err).Msg("llama-server not ready")
		return nil, err
	}
	log.Debug().Str("url", baseURL).Msg("llama-server ready")
	return h, nil
}

// waitReady polls /v1/models until it answers 2xx, the process exits, the
// deadline passes or ctx is canceled.
func (h *serverHandle) waitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, h.e.cfg.ReadyTimeout)
	defer cancel()
	ticker := time.NewTicker(readinessPollPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-h.exited:
			tail := h.stderr.String()
			if h.waitErr != nil {
				return fmt.Errorf("llama-server exited early: %v; stderr tail: %s", h.waitErr, tail)
			}
			return fmt.Errorf("llama-server exited before ready: %s", tail)
		default:
		}
		if h.healthy(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("llama-server not ready in time: %s", h.baseURL)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (h *serverHandle) healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, readinessProbeBudget)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/v1/models", nil)
	if err != nil {
		return false
	}
	resp, err := h.e.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// completionRequest is the non-streaming OpenAI completions payload.
type completionRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	Seed        int     `json:"seed"`
	Stream      bool    `json:"stream"`
}

func (h *serverHandle) Generate(ctx context.Context, prompt string, opts GenerateOptions) (Output, error) {
	select {
	case <-h.exited:
		return Output{}, fmt.Errorf("llama-server for %s is not running: %v", h.path, h.waitErr)
	default:
	}
	body, err := json.Marshal(completionRequest{
		Prompt:      prompt,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		Seed:        h.seed,
	})
	if err != nil {
		return Output{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return Output{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Output{}, ctx.Err()
		}
		return Output{}, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Output{}, fmt.Errorf("read llama-server response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(raw) > stderrTailBytes {
			raw = raw[:stderrTailBytes]
		}
		return Output{}, fmt.Errorf("llama server http error: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	return outputFromRaw(raw)
}

// Close terminates the subprocess: SIGTERM first, SIGKILL after StopGrace.
func (h *serverHandle) Close() error {
	h.closeOnce.Do(func() {
		defer h.e.releasePort(h.port)
		if h.cmd == nil || h.cmd.Process == nil {
			return
		}
		select {
		case <-h.exited:
			return
		default:
		}
		_ = h.cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-h.exited:
		case <-time.After(h.e.cfg.StopGrace):
			if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				h.closeErr = fmt.Errorf("kill llama-server: %w", err)
			}
			<-h.exited
		}
	})
	return h.closeErr
}

// reservePort picks a free port, honoring the configured range, and marks it
// as owned so concurrent loads never race for the same one.
func (e *ServerEngine) reservePort() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cfg.PortStart > 0 && e.cfg.PortEnd >= e.cfg.PortStart {
		for p := e.cfg.PortStart; p <= e.cfg.PortEnd; p++ {
			if e.reserved[p] {
				continue
			}
			l, err := net.Listen("tcp", net.JoinHostPort(e.cfg.Host, strconv.Itoa(p)))
			if err != nil {
				continue
			}
			_ = l.Close()
			e.reserved[p] = true
			return p, nil
		}
		return 0, fmt.Errorf("no free port in range %d-%d", e.cfg.PortStart, e.cfg.PortEnd)
	}
	for attempt := 0; attempt < 16; attempt++ {
		l, err := net.Listen("tcp", net.JoinHostPort(e.cfg.Host, "0"))
		if err != nil {
			return 0, err
		}
		p := l.Addr().(*net.TCPAddr).Port
		_ = l.Close()
		if !e.reserved[p] {
			e.reserved[p] = true
			return p, nil
		}
	}
	return 0, errors.New("could not find a free port")
}

func (e *ServerEngine) releasePort(p int) {
	e.mu.Lock()
	delete(e.reserved, p)
	e.mu.Unlock()
}
