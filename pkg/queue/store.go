package queue

import (
	"context"
	"time"

	"github.com/deployq/deployq/pkg/api"
)

// Store is the persistence contract the engine depends on. Every
// operation derives the organisation from the context
// (storage.TenantFrom) and applies it as a mandatory equality filter;
// a row belonging to another organisation is indistinguishable from a
// missing row.
type Store interface {
	// Insert persists a new deployment row.
	Insert(ctx context.Context, d *api.Deployment) error

	// Get returns a deployment by id, or storage.ErrNotFound.
	Get(ctx context.Context, id string) (*api.Deployment, error)

	// List returns deployments matching the filter, newest first.
	List(ctx context.Context, f api.ListFilter) ([]api.Deployment, error)

	// Find returns rows of a taxonomy, newest first, optionally
	// filtered by status (empty status means any), limited when
	// limit > 0.
	Find(ctx context.Context, tax api.Taxonomy, status api.Status, limit int) ([]api.Deployment, error)

	// FindLatest returns the most recent row of the taxonomy with the
	// given status (empty status means any), or storage.ErrNotFound.
	FindLatest(ctx context.Context, tax api.Taxonomy, status api.Status) (*api.Deployment, error)

	// UpdateFields applies the mutable descriptive fields (notes,
	// deployment_uri) and refreshes updated_at. Nil fields are left
	// untouched.
	UpdateFields(ctx context.Context, id string, notes, deploymentURI *string) (*api.Deployment, error)

	// Transition atomically moves a row from one status to another.
	// storage.ErrConflict is returned when the row is no longer in the
	// expected status. When to is deployed, every scheduled row of the
	// same taxonomy whose version is strictly older is transitioned to
	// skipped in the same transaction; the skipped rows are returned.
	Transition(ctx context.Context, id string, from, to api.Status) (*api.Deployment, []api.Deployment, error)

	// Rollback locates the rollback reference row for the spec's
	// taxonomy, retires the failing row when one is named, and inserts
	// the replacement row, all in one transaction.
	Rollback(ctx context.Context, spec RollbackSpec) (*api.Deployment, error)
}

// RollbackSpec describes a rollback operation for a Store.
type RollbackSpec struct {
	// Taxonomy identifies the deployable target.
	Taxonomy api.Taxonomy

	// TargetVersion pins the reference to the most recent deployed row
	// of that exact version. Empty selects the deployed row strictly
	// older than the newest deployed row.
	TargetVersion string

	// RollbackFromID optionally names the failing row to retire to
	// rolled_back as part of the operation.
	RollbackFromID string

	// Now is the creation timestamp for the replacement row.
	Now time.Time
}
