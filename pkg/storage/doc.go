// Package storage provides utilities shared across storage adapter
// implementations: sentinel errors and tenant context helpers.
//
// Storage adapters (memory, postgres) implement the queue.Store
// interface defined in pkg/queue. Every adapter operation is scoped to
// the organisation carried in the request context; an absent
// organisation is an error, never an unscoped query.
package storage
