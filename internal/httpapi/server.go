package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"modelreg/internal/engine"
	"modelreg/internal/registry"
	"modelreg/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Load(ctx context.Context, req registry.LoadRequest) (types.HandleStatus, error)
	Predict(ctx context.Context, req registry.PredictRequest) (registry.Prediction, error)
	Unload(id string) error
	Status() types.StatusResponse
	Describe() types.VerboseStatusResponse
	Ready() bool
}

// ModelLister lists the weight files clients may load.
type ModelLister interface {
	Models() ([]types.ModelFile, error)
}

const noInputMsg = "No input data provided."

// NewMux builds the router. models may be nil, in which case GET /models
// returns an empty list.
func NewMux(svc Service, models ModelLister) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(corsOptions()))
	}

	r.Post("/load", handleLoad(svc))
	r.Post("/predict", handlePredict(svc))
	r.Post("/unload", handleUnload(svc))
	r.Get("/status", handleStatus(svc))
	r.Get("/models", handleModels(models))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

func corsOptions() cors.Options {
	o := cors.Options{
		AllowedOrigins: corsAllowedOrigins,
		AllowedMethods: corsAllowedMethods,
		AllowedHeaders: corsAllowedHeaders,
		MaxAge:         300,
	}
	if len(o.AllowedOrigins) == 0 {
		o.AllowedOrigins = []string{"*"}
	}
	if len(o.AllowedMethods) == 0 {
		o.AllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}
	if len(o.AllowedHeaders) == 0 {
		o.AllowedHeaders = []string{"Content-Type", "X-Log-Level", "X-Request-Id"}
	}
	return o
}

// decodeBody reads a non-empty JSON object into dst. On failure it writes the
// error response and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		CountError("bad_request")
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSONError(w, http.StatusBadRequest, "request body too large")
			return false
		}
		writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if len(bytes.TrimSpace(body)) == 0 {
		CountError("bad_request")
		writeJSONError(w, http.StatusBadRequest, noInputMsg)
		return false
	}
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		CountError("media_type")
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		CountError("bad_request")
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if len(probe) == 0 {
		CountError("bad_request")
		writeJSONError(w, http.StatusBadRequest, noInputMsg)
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		CountError("bad_request")
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// abandoned handles a failure after the request context ended. Nothing is
// written when the client went away; a shutting down server answers 503.
func abandoned(w http.ResponseWriter, r *http.Request) bool {
	if r.Context().Err() != nil {
		return true
	}
	if serverBaseCtx.Err() != nil {
		CountError("shutdown")
		writeJSONError(w, http.StatusServiceUnavailable, "server shutting down")
		reqLog(r, LevelInfo).Int("status", http.StatusServiceUnavailable).Msg("aborted by shutdown")
		return true
	}
	return false
}

// loadRequestFrom overlays the fields present in req on the engine defaults.
func loadRequestFrom(req types.LoadRequest) registry.LoadRequest {
	o := engine.DefaultLoadOptions()
	if req.NCtx != nil {
		o.ContextWindow = *req.NCtx
	}
	if req.NParts != nil {
		o.Parts = *req.NParts
	}
	if req.Seed != nil {
		o.Seed = *req.Seed
	}
	if req.F16KV != nil {
		o.F16KV = *req.F16KV
	}
	if req.NGPULayers != nil {
		o.GPULayers = *req.NGPULayers
	}
	if req.NThreads != nil {
		o.Threads = *req.NThreads
	}
	return registry.LoadRequest{ID: req.ModelID, Path: req.ModelPath, Options: o}
}

func predictRequestFrom(req types.PredictRequest) registry.PredictRequest {
	o := engine.DefaultGenerateOptions()
	if req.MaxTokens != nil {
		o.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		o.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		o.TopP = *req.TopP
	}
	return registry.PredictRequest{ID: req.ModelID, Prompt: req.Prompt, Options: o}
}

// handleLoad godoc
//
//	@Summary		Load a model
//	@Description	Constructs an engine instance from model_path and registers it under model_id.
//	@Tags			models
//	@Accept			json
//	@Produce		json
//	@Param			request	body		types.LoadRequest	true	"Load request"
//	@Success		200		{object}	types.MessageResponse
//	@Failure		400		{object}	types.ErrorResponse	"validation error or id already loaded"
//	@Failure		415		{object}	types.ErrorResponse
//	@Failure		500		{object}	types.ErrorResponse	"engine failure, with trace"
//	@Failure		503		{object}	types.ErrorResponse	"server shutting down"
//	@Router			/load [post]
func handleLoad(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.LoadRequest
		if !decodeBody(w, r, &req) {
			return
		}
		start := time.Now()
		reqLog(r, LevelInfo).Str("model_id", req.ModelID).Str("model_path", req.ModelPath).Msg("load start")

		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		st, err := svc.Load(ctx, loadRequestFrom(req))
		if err != nil {
			if abandoned(w, r) {
				return
			}
			status := writeServiceError(w, err)
			reqLog(r, LevelInfo).Int("status", status).Dur("dur", time.Since(start)).Err(err).Msg("load end")
			return
		}
		writeJSON(w, http.StatusOK, types.MessageResponse{
			Message: fmt.Sprintf("Model '%s' loaded successfully from %s.", st.ModelID, req.ModelPath),
			Success: true,
		})
		reqLog(r, LevelInfo).Int("status", http.StatusOK).Dur("dur", time.Since(start)).Msg("load end")
	}
}

// handlePredict godoc
//
//	@Summary		Generate text
//	@Description	Runs one generation on a loaded model and returns the trimmed text plus the engine's raw output.
//	@Tags			inference
//	@Accept			json
//	@Produce		json
//	@Param			request	body		types.PredictRequest	true	"Predict request"
//	@Success		200		{object}	types.PredictResponse
//	@Failure		400		{object}	types.ErrorResponse	"validation error or model not loaded"
//	@Failure		415		{object}	types.ErrorResponse
//	@Failure		500		{object}	types.ErrorResponse	"engine failure, with trace"
//	@Failure		503		{object}	types.ErrorResponse	"server shutting down"
//	@Router			/predict [post]
func handlePredict(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.PredictRequest
		if !decodeBody(w, r, &req) {
			return
		}
		start := time.Now()
		reqLog(r, LevelInfo).Str("model_id", req.ModelID).Msg("predict start")
		reqLog(r, LevelDebug).Str("model_id", req.ModelID).Str("prompt", req.Prompt).Msg("predict prompt")

		// Join server base context with request context so shutdown cancels work too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if predictTimeout > 0 {
			var tcancel context.CancelFunc
			ctx, tcancel = context.WithTimeout(ctx, predictTimeout)
			defer tcancel()
		}
		out, err := svc.Predict(ctx, predictRequestFrom(req))
		if err != nil {
			if abandoned(w, r) {
				return
			}
			status := writeServiceError(w, err)
			reqLog(r, LevelInfo).Int("status", status).Dur("dur", time.Since(start)).Err(err).Msg("predict end")
			return
		}
		writeJSON(w, http.StatusOK, types.PredictResponse{Response: out.Text, Raw: out.Raw})
		reqLog(r, LevelDebug).Str("model_id", req.ModelID).Str("response", out.Text).Msg("predict response")
		reqLog(r, LevelInfo).Int("status", http.StatusOK).Dur("dur", time.Since(start)).Msg("predict end")
	}
}

// handleUnload godoc
//
//	@Summary		Unload a model
//	@Description	Removes model_id from the registry and releases its engine instance.
//	@Tags			models
//	@Accept			json
//	@Produce		json
//	@Param			request	body		types.UnloadRequest	true	"Unload request"
//	@Success		200		{object}	types.MessageResponse
//	@Failure		400		{object}	types.ErrorResponse	"validation error or model not loaded"
//	@Failure		500		{object}	types.ErrorResponse
//	@Router			/unload [post]
func handleUnload(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.UnloadRequest
		if !decodeBody(w, r, &req) {
			return
		}
		start := time.Now()
		if err := svc.Unload(req.ModelID); err != nil {
			status := writeServiceError(w, err)
			reqLog(r, LevelInfo).Str("model_id", req.ModelID).Int("status", status).Err(err).Msg("unload end")
			return
		}
		writeJSON(w, http.StatusOK, types.MessageResponse{
			Message: fmt.Sprintf("Model '%s' has been unloaded successfully.", req.ModelID),
			Success: true,
		})
		reqLog(r, LevelInfo).Str("model_id", req.ModelID).Int("status", http.StatusOK).Dur("dur", time.Since(start)).Msg("unload end")
	}
}

// handleStatus godoc
//
//	@Summary		Registry status
//	@Description	Maps every loaded model_id to "loaded". With verbose=1, returns per-handle details instead.
//	@Tags			models
//	@Produce		json
//	@Param			verbose	query		bool	false	"Return per-handle details"
//	@Success		200		{object}	types.StatusResponse
//	@Router			/status [get]
func handleStatus(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch strings.ToLower(r.URL.Query().Get("verbose")) {
		case "1", "true", "yes":
			writeJSON(w, http.StatusOK, svc.Describe())
		default:
			writeJSON(w, http.StatusOK, svc.Status())
		}
	}
}

// handleModels godoc
//
//	@Summary		List model files
//	@Description	Lists weight files found in the configured models directory.
//	@Tags			models
//	@Produce		json
//	@Success		200	{object}	types.ModelsResponse
//	@Failure		500	{object}	types.ErrorResponse
//	@Router			/models [get]
func handleModels(models ModelLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := types.ModelsResponse{Models: []types.ModelFile{}}
		if models != nil {
			list, err := models.Models()
			if err != nil {
				CountError("internal")
				reqLog(r, LevelError).Err(err).Msg("list models failed")
				writeJSONError(w, http.StatusInternalServerError, "failed to list models: "+err.Error())
				return
			}
			resp.Models = append(resp.Models, list...)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
