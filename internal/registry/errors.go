package registry

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
)

// validationError reports a missing or malformed client input.
type validationError struct{ msg string }

func (e validationError) Error() string   { return e.msg }
func (e validationError) StatusCode() int { return http.StatusBadRequest }

// ErrValidation returns a client input error with a formatted message.
func ErrValidation(format string, args ...any) error {
	return validationError{msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	var v validationError
	return errors.As(err, &v)
}

// conflictError is returned when an id is already registered.
type conflictError struct{ id string }

func (e conflictError) Error() string {
	return fmt.Sprintf("Model with ID '%s' is already loaded.", e.id)
}
func (e conflictError) StatusCode() int { return http.StatusBadRequest }

func ErrConflict(id string) error { return conflictError{id: id} }

// IsConflict reports whether err indicates a duplicate model id.
func IsConflict(err error) bool {
	var c conflictError
	return errors.As(err, &c)
}

// notFoundError is returned when an operation names an id that is not registered.
type notFoundError struct{ msg string }

func (e notFoundError) Error() string   { return e.msg }
func (e notFoundError) StatusCode() int { return http.StatusBadRequest }

// ErrNotFound builds the predict-flavored not-found error.
func ErrNotFound(id string) error {
	return notFoundError{msg: fmt.Sprintf("No loaded model found for model_id '%s'.", id)}
}

func errNotLoaded(id string) error {
	return notFoundError{msg: fmt.Sprintf("Model with ID '%s' is not loaded.", id)}
}

// IsNotFound reports whether err indicates an unregistered id.
func IsNotFound(err error) bool {
	var n notFoundError
	return errors.As(err, &n)
}

// engineError wraps a failure of the inference engine during construction or
// generation. It carries the stack captured where it was created.
type engineError struct {
	msg   string
	cause error
	trace string
}

func (e *engineError) Error() string   { return e.msg }
func (e *engineError) Unwrap() error   { return e.cause }
func (e *engineError) StatusCode() int { return http.StatusInternalServerError }
func (e *engineError) Trace() string   { return e.trace }

// ErrEngine wraps cause with message prefix msg and the current stack.
func ErrEngine(msg string, cause error) error {
	return &engineError{msg: fmt.Sprintf("%s: %v", msg, cause), cause: cause, trace: string(debug.Stack())}
}

// IsEngine reports whether err is an engine failure.
func IsEngine(err error) bool {
	var e *engineError
	return errors.As(err, &e)
}

// internalError is an unexpected failure during bookkeeping.
type internalError struct {
	msg   string
	cause error
	trace string
}

func (e *internalError) Error() string   { return e.msg }
func (e *internalError) Unwrap() error   { return e.cause }
func (e *internalError) StatusCode() int { return http.StatusInternalServerError }
func (e *internalError) Trace() string   { return e.trace }

func ErrInternal(msg string, cause error) error {
	return &internalError{msg: fmt.Sprintf("%s: %v", msg, cause), cause: cause, trace: string(debug.Stack())}
}

// IsInternal reports whether err is an internal failure.
func IsInternal(err error) bool {
	var e *internalError
	return errors.As(err, &e)
}

// Tracer is implemented by errors that carry a captured stack.
type Tracer interface {
	Trace() string
}

// TraceOf returns the stack carried by err, if any.
func TraceOf(err error) string {
	var t Tracer
	if errors.As(err, &t) {
		return t.Trace()
	}
	return ""
}
