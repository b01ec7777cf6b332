package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"modelreg/internal/engine"
	"modelreg/internal/registry"
	"modelreg/pkg/types"
)

type mockService struct {
	mu sync.Mutex

	loadErr    error
	predictErr error
	unloadErr  error
	status     types.StatusResponse
	describe   types.VerboseStatusResponse
	ready      bool
	// waitCtx makes Load and Predict block until their context ends.
	waitCtx bool

	lastLoad    registry.LoadRequest
	lastPredict registry.PredictRequest
	lastUnload  string
}

func (m *mockService) Load(ctx context.Context, req registry.LoadRequest) (types.HandleStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLoad = req
	if m.waitCtx {
		<-ctx.Done()
		return types.HandleStatus{}, ctx.Err()
	}
	if m.loadErr != nil {
		return types.HandleStatus{}, m.loadErr
	}
	return types.HandleStatus{ModelID: req.ID, State: registry.StateLoaded, Path: req.Path}, nil
}

func (m *mockService) Predict(ctx context.Context, req registry.PredictRequest) (registry.Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPredict = req
	if m.waitCtx {
		<-ctx.Done()
		return registry.Prediction{}, ctx.Err()
	}
	if m.predictErr != nil {
		return registry.Prediction{}, m.predictErr
	}
	return registry.Prediction{Text: "echo " + req.Prompt, Raw: json.RawMessage(`{"object":"text_completion"}`)}, nil
}

func (m *mockService) Unload(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUnload = id
	return m.unloadErr
}

func (m *mockService) Status() types.StatusResponse           { return m.status }
func (m *mockService) Describe() types.VerboseStatusResponse { return m.describe }
func (m *mockService) Ready() bool                           { return m.ready }

type mockHTTPError struct {
	msg  string
	code int
}

func (e mockHTTPError) Error() string   { return e.msg }
func (e mockHTTPError) StatusCode() int { return e.code }

type mockLister struct {
	models []types.ModelFile
	err    error
}

func (l mockLister) Models() ([]types.ModelFile, error) { return l.models, l.err }

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) types.ErrorResponse {
	t.Helper()
	var er types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("json: %v body=%q", err, w.Body.String())
	}
	return er
}

func TestLoadHandler_Success(t *testing.T) {
	svc := &mockService{}
	r := NewMux(svc, nil)
	w := postJSON(t, r, "/load", `{"model_id":"m1","model_path":"/models/a.gguf","n_ctx":2048,"f16_kv":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body types.MessageResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !body.Success || body.Message != "Model 'm1' loaded successfully from /models/a.gguf." {
		t.Fatalf("unexpected body: %+v", body)
	}
	got := svc.lastLoad
	if got.ID != "m1" || got.Path != "/models/a.gguf" {
		t.Fatalf("unexpected request: %+v", got)
	}
	want := engine.DefaultLoadOptions()
	want.ContextWindow = 2048
	want.F16KV = true
	if got.Options != want {
		t.Fatalf("options=%+v want %+v", got.Options, want)
	}
}

func TestLoadHandler_ExplicitZeroOverridesDefault(t *testing.T) {
	svc := &mockService{}
	r := NewMux(svc, nil)
	w := postJSON(t, r, "/load", `{"model_id":"m1","model_path":"a","seed":0,"n_gpu_layers":-1}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if svc.lastLoad.Options.Seed != 0 || svc.lastLoad.Options.GPULayers != -1 {
		t.Fatalf("options=%+v", svc.lastLoad.Options)
	}
	if svc.lastLoad.Options.ContextWindow != engine.DefaultContextWindow {
		t.Fatalf("n_ctx default not applied: %+v", svc.lastLoad.Options)
	}
}

func TestLoadHandler_ServiceErrors(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		code      int
		msg       string
		wantTrace bool
	}{
		{"validation", registry.ErrValidation("Missing required parameters: 'model_id' and 'model_path'."), 400, "Missing required parameters: 'model_id' and 'model_path'.", false},
		{"conflict", registry.ErrConflict("m1"), 400, "Model with ID 'm1' is already loaded.", false},
		{"engine", registry.ErrEngine("Failed to load model 'm1'", errors.New("bad magic")), 500, "Failed to load model 'm1': bad magic", true},
		{"plain", errors.New("boom"), 500, "boom", true},
		{"custom", mockHTTPError{msg: "teapot", code: http.StatusTeapot}, http.StatusTeapot, "teapot", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewMux(&mockService{loadErr: tc.err}, nil)
			w := postJSON(t, r, "/load", `{"model_id":"m1","model_path":"a"}`)
			if w.Code != tc.code {
				t.Fatalf("status=%d want %d", w.Code, tc.code)
			}
			er := decodeError(t, w)
			if er.Error != tc.msg || er.Code != tc.code {
				t.Fatalf("unexpected error body: %+v", er)
			}
			if (er.Trace != "") != tc.wantTrace {
				t.Fatalf("trace presence=%v want %v", er.Trace != "", tc.wantTrace)
			}
		})
	}
}

func TestPredictHandler_Success(t *testing.T) {
	svc := &mockService{}
	r := NewMux(svc, nil)
	w := postJSON(t, r, "/predict", `{"model_id":"m1","prompt":"hi","max_tokens":5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body types.PredictResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Response != "echo hi" {
		t.Fatalf("response=%q", body.Response)
	}
	if !strings.Contains(string(body.Raw), "text_completion") {
		t.Fatalf("raw=%s", body.Raw)
	}
	o := svc.lastPredict.Options
	if o.MaxTokens != 5 || o.Temperature != engine.DefaultTemperature || o.TopP != engine.DefaultTopP {
		t.Fatalf("options=%+v", o)
	}
}

func TestPredictHandler_NotFound(t *testing.T) {
	r := NewMux(&mockService{predictErr: registry.ErrNotFound("ghost")}, nil)
	w := postJSON(t, r, "/predict", `{"model_id":"ghost","prompt":"hi"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
	if er := decodeError(t, w); er.Error != "No loaded model found for model_id 'ghost'." || er.Trace != "" {
		t.Fatalf("unexpected error body: %+v", er)
	}
}

func TestPredictHandler_Timeout(t *testing.T) {
	old := predictTimeout
	t.Cleanup(func() { predictTimeout = old })
	SetPredictTimeoutSeconds(30)
	if predictTimeout.Seconds() != 30 {
		t.Fatalf("predictTimeout=%v", predictTimeout)
	}
	r := NewMux(&mockService{predictErr: context.DeadlineExceeded}, nil)
	w := postJSON(t, r, "/predict", `{"model_id":"m1","prompt":"hi"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestUnloadHandler(t *testing.T) {
	svc := &mockService{}
	r := NewMux(svc, nil)
	w := postJSON(t, r, "/unload", `{"model_id":"m1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.MessageResponse
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Message != "Model 'm1' has been unloaded successfully." || !body.Success {
		t.Fatalf("unexpected body: %+v", body)
	}
	if svc.lastUnload != "m1" {
		t.Fatalf("lastUnload=%q", svc.lastUnload)
	}

	svc.unloadErr = registry.ErrNotFound("m1")
	w = postJSON(t, r, "/unload", `{"model_id":"m1"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestBodyRejections(t *testing.T) {
	r := NewMux(&mockService{}, nil)
	cases := []struct {
		name string
		ct   string
		body string
		code int
		msg  string
	}{
		{"empty", "application/json", "", 400, noInputMsg},
		{"whitespace", "application/json", "  \n", 400, noInputMsg},
		{"empty object", "application/json", "{}", 400, noInputMsg},
		{"null", "application/json", "null", 400, noInputMsg},
		{"invalid", "application/json", "{", 400, "invalid JSON body"},
		{"array", "application/json", "[1,2]", 400, "invalid JSON body"},
		{"no content type", "", `{"model_id":"m1"}`, 415, "Content-Type must be application/json"},
		{"text", "text/plain", `{"model_id":"m1"}`, 415, "Content-Type must be application/json"},
	}
	for _, path := range []string{"/load", "/predict", "/unload"} {
		for _, tc := range cases {
			t.Run(path+"/"+tc.name, func(t *testing.T) {
				req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(tc.body))
				if tc.ct != "" {
					req.Header.Set("Content-Type", tc.ct)
				}
				w := httptest.NewRecorder()
				r.ServeHTTP(w, req)
				if w.Code != tc.code {
					t.Fatalf("status=%d want %d body=%s", w.Code, tc.code, w.Body.String())
				}
				if er := decodeError(t, w); er.Error != tc.msg {
					t.Fatalf("error=%q want %q", er.Error, tc.msg)
				}
			})
		}
	}
}

func TestBodyTypeMismatch(t *testing.T) {
	r := NewMux(&mockService{}, nil)
	w := postJSON(t, r, "/load", `{"model_id":5,"model_path":"a"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
	if er := decodeError(t, w); !strings.HasPrefix(er.Error, "invalid JSON body: ") {
		t.Fatalf("error=%q", er.Error)
	}
}

func TestBodyTooLarge(t *testing.T) {
	old := maxBodyBytes
	t.Cleanup(func() { maxBodyBytes = old })
	SetMaxBodyBytes(16)
	r := NewMux(&mockService{}, nil)
	w := postJSON(t, r, "/predict", `{"model_id":"m1","prompt":"`+strings.Repeat("x", 64)+`"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
	if er := decodeError(t, w); er.Error != "request body too large" {
		t.Fatalf("error=%q", er.Error)
	}
	SetMaxBodyBytes(0)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("maxBodyBytes=%d", maxBodyBytes)
	}
}

func TestStatusHandler(t *testing.T) {
	svc := &mockService{
		status:   types.StatusResponse{"m1": "loaded", "m2": "loaded"},
		describe: types.VerboseStatusResponse{Models: []types.HandleStatus{{ModelID: "m1", State: "loaded"}}, UptimeSeconds: 3},
	}
	r := NewMux(svc, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(body) != 2 || body["m1"] != "loaded" {
		t.Fatalf("unexpected body: %v", body)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status?verbose=1", nil))
	var verbose types.VerboseStatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &verbose); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(verbose.Models) != 1 || verbose.UptimeSeconds != 3 {
		t.Fatalf("unexpected verbose body: %+v", verbose)
	}
}

func TestStatusHandler_EmptyIsObject(t *testing.T) {
	r := NewMux(&mockService{status: types.StatusResponse{}}, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	if strings.TrimSpace(w.Body.String()) != "{}" {
		t.Fatalf("body=%q", w.Body.String())
	}
}

func TestModelsHandler(t *testing.T) {
	lister := mockLister{models: []types.ModelFile{{ID: "a.gguf"}, {ID: "b.gguf"}}}
	r := NewMux(&mockService{}, lister)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/models", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%s", ct)
	}
	var body types.ModelsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(body.Models) != 2 {
		t.Fatalf("models len=%d", len(body.Models))
	}
}

func TestModelsHandler_NilListerAndError(t *testing.T) {
	r := NewMux(&mockService{}, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/models", nil))
	if strings.TrimSpace(w.Body.String()) != `{"models":[]}` {
		t.Fatalf("body=%q", w.Body.String())
	}

	r = NewMux(&mockService{}, mockLister{err: errors.New("permission denied")})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/models", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReadyz(t *testing.T) {
	r := NewMux(&mockService{ready: true}, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReadyz_NotReady(t *testing.T) {
	r := NewMux(&mockService{ready: false}, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "not ready") {
		t.Fatalf("body=%q", w.Body.String())
	}
}

func TestHealthzAndSecurityHeaders(t *testing.T) {
	r := NewMux(&mockService{}, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing nosniff header")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	r := NewMux(&mockService{}, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/load", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestCORS(t *testing.T) {
	t.Cleanup(func() { SetCORSOptions(false, nil, nil, nil) })
	SetCORSOptions(true, []string{"http://game.local"}, nil, nil)
	r := NewMux(&mockService{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/predict", nil)
	req.Header.Set("Origin", "http://game.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://game.local" {
		t.Fatalf("allow-origin=%q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Origin", "http://evil.local")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow-origin=%q", got)
	}
}

func TestCORS_DisabledByDefault(t *testing.T) {
	SetCORSOptions(false, nil, nil, nil)
	r := NewMux(&mockService{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Origin", "http://game.local")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("allow-origin=%q", got)
	}
}

func TestShutdownDuringRequestAnswers503(t *testing.T) {
	for _, tc := range []struct{ path, body string }{
		{"/predict", `{"model_id":"m1","prompt":"hi"}`},
		{"/load", `{"model_id":"m1","model_path":"a.gguf"}`},
	} {
		t.Run(tc.path, func(t *testing.T) {
			base, cancel := context.WithCancel(context.Background())
			SetBaseContext(base)
			t.Cleanup(func() { SetBaseContext(nil) })
			r := NewMux(&mockService{waitCtx: true}, nil)

			time.AfterFunc(50*time.Millisecond, cancel)
			w := postJSON(t, r, tc.path, tc.body)
			if w.Code != http.StatusServiceUnavailable {
				t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
			}
			if er := decodeError(t, w); er.Error != "server shutting down" {
				t.Fatalf("error=%q", er.Error)
			}
		})
	}
}

func TestClientGoneWritesNothing(t *testing.T) {
	r := NewMux(&mockService{waitCtx: true}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{"model_id":"m1","prompt":"hi"}`)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	time.AfterFunc(50*time.Millisecond, cancel)
	r.ServeHTTP(w, req)
	if w.Body.Len() != 0 {
		t.Fatalf("expected no body for a departed client, got %q", w.Body.String())
	}
}
