package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"

	"modelreg/internal/registry"
	"modelreg/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a service error to its HTTP status. Errors without a
// StatusCode are server faults.
func statusFor(err error) int {
	var he HTTPError
	if errors.As(err, &he) {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

func errorKind(err error) string {
	switch {
	case registry.IsValidation(err):
		return "validation"
	case registry.IsConflict(err):
		return "conflict"
	case registry.IsNotFound(err):
		return "not_found"
	case registry.IsEngine(err):
		return "engine"
	default:
		return "internal"
	}
}

// writeServiceError writes err with its mapped status. Server faults carry a
// trace: the one captured where the error was created, or the current stack.
func writeServiceError(w http.ResponseWriter, err error) int {
	status := statusFor(err)
	CountError(errorKind(err))
	resp := types.ErrorResponse{Error: err.Error(), Code: status}
	if status >= http.StatusInternalServerError {
		resp.Trace = registry.TraceOf(err)
		if resp.Trace == "" {
			resp.Trace = string(debug.Stack())
		}
	}
	writeJSON(w, status, resp)
	return status
}
