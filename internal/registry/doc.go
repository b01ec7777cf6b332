// Package registry keeps the named set of loaded model handles and
// coordinates load, predict and unload against it. It is structured into
// small files by concern:
//
//   - registry.go: Registry type, constructor, status views, Close.
//   - load.go: handle construction and insertion.
//   - predict.go: per-handle serialized generation.
//   - unload.go: removal and synchronous release.
//   - errors.go: error types and helpers (IsValidation, IsNotFound, ...).
//   - events.go: lifecycle events and publishers.
//   - metrics.go: Prometheus collectors.
//
// Locking: Registry.mu guards only the id map. Each entry has a one-slot
// channel that serializes Generate and Close on its handle. Engine calls are
// made with no registry lock held.
package registry
