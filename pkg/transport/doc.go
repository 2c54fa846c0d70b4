// Package transport defines the shared HTTP plumbing for the deployment
// queue API.
//
// The transport layer bridges external clients and the queue engine. It
// deserializes incoming requests into the types defined in pkg/api,
// dispatches them to pkg/queue, and serializes rows or typed errors back
// to the client as JSON.
//
// # Middleware
//
// Middleware wraps http.Handler with cross-cutting concerns: panic
// recovery, request ID assignment (X-Request-ID), and structured request
// logging via log/slog. Authentication middleware lives in pkg/auth and
// metric middleware in pkg/observability; both compose with the helpers
// here through the same func(http.Handler) http.Handler shape.
//
// # Error mapping
//
// Every error that reaches a handler is mapped to exactly one HTTP
// status through HTTPStatusFromError, so the distinction between "you
// are not allowed" (403), "we could not check" (503), and "no such row"
// (404) survives to the wire.
package transport
