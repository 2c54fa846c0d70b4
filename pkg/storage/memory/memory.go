// Package memory provides an in-memory implementation of queue.Store
// for testing and local development. Rows are lost when the process
// restarts.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/deployq/deployq/pkg/api"
	"github.com/deployq/deployq/pkg/queue"
	"github.com/deployq/deployq/pkg/storage"
	"github.com/deployq/deployq/pkg/version"
)

// entry holds a stored deployment and its insertion sequence number.
// The sequence breaks created_at ties so that newest-first ordering is
// stable even when rows share a timestamp.
type entry struct {
	row *api.Deployment
	seq uint64
}

// Store is an in-memory deployment store. All methods are safe for
// concurrent use; the single mutex doubles as the transactional
// boundary for the multi-row operations.
type Store struct {
	mu   sync.RWMutex
	rows map[string]*entry
	seq  uint64

	// now is replaceable in tests.
	now func() time.Time
}

var _ queue.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		rows: make(map[string]*entry),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Insert persists a new deployment row.
func (s *Store) Insert(ctx context.Context, d *api.Deployment) error {
	org := storage.TenantFrom(ctx)
	if org == "" {
		return storage.ErrNoTenant
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.rows[d.ID] = &entry{row: clone(d), seq: s.seq}
	return nil
}

// Get returns a deployment by id. A row owned by another organisation
// presents as missing.
func (s *Store) Get(ctx context.Context, id string) (*api.Deployment, error) {
	org := storage.TenantFrom(ctx)
	if org == "" {
		return nil, storage.ErrNoTenant
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.rows[id]
	if !ok || e.row.Organisation != org {
		return nil, storage.ErrNotFound
	}
	return clone(e.row), nil
}

// List returns deployments matching the filter, newest first.
func (s *Store) List(ctx context.Context, f api.ListFilter) ([]api.Deployment, error) {
	org := storage.TenantFrom(ctx)
	if org == "" {
		return nil, storage.ErrNoTenant
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*entry
	for _, e := range s.rows {
		d := e.row
		if d.Organisation != org {
			continue
		}
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		if f.Environment != "" && d.Environment != f.Environment {
			continue
		}
		if f.Provider != "" && d.Provider != f.Provider {
			continue
		}
		matched = append(matched, e)
	}

	sortNewestFirst(matched)
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}

	out := make([]api.Deployment, 0, len(matched))
	for _, e := range matched {
		out = append(out, *clone(e.row))
	}
	return out, nil
}

// Find returns rows of a taxonomy, newest first.
func (s *Store) Find(ctx context.Context, tax api.Taxonomy, status api.Status, limit int) ([]api.Deployment, error) {
	org := storage.TenantFrom(ctx)
	if org == "" {
		return nil, storage.ErrNoTenant
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.findLocked(org, tax, status)
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]api.Deployment, 0, len(matched))
	for _, e := range matched {
		out = append(out, *clone(e.row))
	}
	return out, nil
}

// FindLatest returns the most recent row of the taxonomy with the
// given status, or storage.ErrNotFound.
func (s *Store) FindLatest(ctx context.Context, tax api.Taxonomy, status api.Status) (*api.Deployment, error) {
	org := storage.TenantFrom(ctx)
	if org == "" {
		return nil, storage.ErrNoTenant
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.findLocked(org, tax, status)
	if len(matched) == 0 {
		return nil, storage.ErrNotFound
	}
	return clone(matched[0].row), nil
}

// UpdateFields applies the mutable descriptive fields and refreshes
// updated_at.
func (s *Store) UpdateFields(ctx context.Context, id string, notes, deploymentURI *string) (*api.Deployment, error) {
	org := storage.TenantFrom(ctx)
	if org == "" {
		return nil, storage.ErrNoTenant
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.rows[id]
	if !ok || e.row.Organisation != org {
		return nil, storage.ErrNotFound
	}

	if notes != nil {
		v := *notes
		e.row.Notes = &v
	}
	if deploymentURI != nil {
		v := *deploymentURI
		e.row.DeploymentURI = &v
	}
	e.row.UpdatedAt = s.now()
	return clone(e.row), nil
}

// Transition atomically moves a row from one status to another. When
// the new status is deployed, scheduled rows of the same taxonomy with
// a strictly older version are skipped under the same lock.
func (s *Store) Transition(ctx context.Context, id string, from, to api.Status) (*api.Deployment, []api.Deployment, error) {
	org := storage.TenantFrom(ctx)
	if org == "" {
		return nil, nil, storage.ErrNoTenant
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.rows[id]
	if !ok || e.row.Organisation != org {
		return nil, nil, storage.ErrNotFound
	}
	if e.row.Status != from {
		return nil, nil, storage.ErrConflict
	}

	now := s.now()
	e.row.Status = to
	e.row.UpdatedAt = now

	var skipped []api.Deployment
	if to == api.StatusDeployed {
		tax := e.row.Taxonomy()
		for _, cand := range s.findLocked(org, tax, api.StatusScheduled) {
			if cand.row.ID == id {
				continue
			}
			if !version.Supersedes(e.row.Version, cand.row.Version) {
				continue
			}
			cand.row.Status = api.StatusSkipped
			cand.row.UpdatedAt = now
			skipped = append(skipped, *clone(cand.row))
		}
	}

	return clone(e.row), skipped, nil
}

// Rollback locates the rollback reference row, retires the failing row
// when one is named, and inserts the replacement, all under one lock.
func (s *Store) Rollback(ctx context.Context, spec queue.RollbackSpec) (*api.Deployment, error) {
	org := storage.TenantFrom(ctx)
	if org == "" {
		return nil, storage.ErrNoTenant
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deployed := s.findLocked(org, spec.Taxonomy, api.StatusDeployed)

	var ref *api.Deployment
	if spec.TargetVersion != "" {
		for _, e := range deployed {
			if e.row.Version == spec.TargetVersion {
				ref = e.row
				break
			}
		}
	} else if len(deployed) > 1 {
		// The previous successful release, the one before the newest.
		ref = deployed[1].row
	}
	if ref == nil {
		return nil, storage.ErrNotFound
	}

	if spec.RollbackFromID != "" {
		from, ok := s.rows[spec.RollbackFromID]
		if !ok || from.row.Organisation != org {
			return nil, storage.ErrNotFound
		}
		if apiErr := api.ValidateTransition(from.row.Status, api.StatusRolledBack); apiErr != nil {
			return nil, apiErr
		}
		from.row.Status = api.StatusRolledBack
		from.row.UpdatedAt = spec.Now
	}

	d := api.NewRollback(ref, spec.RollbackFromID, spec.Now)
	s.seq++
	s.rows[d.ID] = &entry{row: clone(d), seq: s.seq}
	// NewRollback shallow-copies the reference row, so hand out a
	// clone rather than a view into it.
	return clone(d), nil
}

// findLocked returns the entries of a taxonomy, newest first. Callers
// must hold the mutex.
func (s *Store) findLocked(org string, tax api.Taxonomy, status api.Status) []*entry {
	var matched []*entry
	for _, e := range s.rows {
		d := e.row
		if d.Organisation != org {
			continue
		}
		if !d.Taxonomy().Equal(tax) {
			continue
		}
		if status != "" && d.Status != status {
			continue
		}
		matched = append(matched, e)
	}
	sortNewestFirst(matched)
	return matched
}

// sortNewestFirst orders entries by created_at descending, breaking
// ties with the insertion sequence.
func sortNewestFirst(entries []*entry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.row.CreatedAt.Equal(b.row.CreatedAt) {
			return a.row.CreatedAt.After(b.row.CreatedAt)
		}
		return a.seq > b.seq
	})
}

// clone deep-copies a deployment so callers never share pointers with
// stored rows.
func clone(d *api.Deployment) *api.Deployment {
	c := *d
	c.Cell = cloneString(d.Cell)
	c.SourceDeploymentID = cloneString(d.SourceDeploymentID)
	c.RollbackFromDeploymentID = cloneString(d.RollbackFromDeploymentID)
	c.CommitSHA = cloneString(d.CommitSHA)
	c.PipelineExtraParams = cloneString(d.PipelineExtraParams)
	c.Description = cloneString(d.Description)
	c.Notes = cloneString(d.Notes)
	c.BuildURI = cloneString(d.BuildURI)
	c.DeploymentURI = cloneString(d.DeploymentURI)
	c.Resource = cloneString(d.Resource)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
