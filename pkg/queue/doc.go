// Package queue implements the deployment lifecycle engine.
//
// The engine owns the business transitions over the deployment queue:
// creation, the status state machine, automatic retirement of
// superseded scheduled deployments when a newer version lands
// (auto-skip), and rollback with full lineage. It is scoped to the
// organisation carried in the request context; the Store contract
// guarantees no operation can observe another tenant's rows.
//
// The Store interface defined here is implemented by
// pkg/storage/memory and pkg/storage/postgres.
package queue
