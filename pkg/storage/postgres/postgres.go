// Package postgres provides a PostgreSQL implementation of queue.Store.
// It uses pgx/v5 for connection pooling and row-level locking for the
// transactional auto-skip and rollback operations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deployq/deployq/pkg/api"
	"github.com/deployq/deployq/pkg/observability"
	"github.com/deployq/deployq/pkg/queue"
	"github.com/deployq/deployq/pkg/storage"
	"github.com/deployq/deployq/pkg/version"
)

// Store is a PostgreSQL-backed deployment store.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements queue.Store at compile time.
var _ queue.Store = (*Store)(nil)

// deploymentColumns is the column list shared by every SELECT and the
// scanDeployment helper. Order matters.
const deploymentColumns = `id, created_at, updated_at,
	organisation, name, provider, cloud_account_id, region, cell,
	version, environment, type, status, trigger,
	source_deployment_id, rollback_from_deployment_id,
	commit_sha, pipeline_extra_params, description, notes,
	build_uri, deployment_uri, resource`

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// Insert persists a new deployment row.
func (s *Store) Insert(ctx context.Context, d *api.Deployment) error {
	defer observability.ObserveStoreQuery("insert", time.Now())
	org := storage.TenantFrom(ctx)
	if org == "" {
		return storage.ErrNoTenant
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO deployments (`+deploymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		        $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`,
		d.ID, d.CreatedAt, d.UpdatedAt,
		d.Organisation, d.Name, string(d.Provider), d.CloudAccountID, d.Region, d.Cell,
		d.Version, d.Environment, string(d.Type), string(d.Status), string(d.Trigger),
		d.SourceDeploymentID, d.RollbackFromDeploymentID,
		d.CommitSHA, d.PipelineExtraParams, d.Description, d.Notes,
		d.BuildURI, d.DeploymentURI, d.Resource,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting deployment: %w", err)
	}
	return nil
}

// Get retrieves a deployment by ID within the caller's organisation.
func (s *Store) Get(ctx context.Context, id string) (*api.Deployment, error) {
	defer observability.ObserveStoreQuery("get", time.Now())
	org := storage.TenantFrom(ctx)
	if org == "" {
		return nil, storage.ErrNoTenant
	}

	row := s.pool.QueryRow(ctx, `
		SELECT `+deploymentColumns+`
		FROM deployments
		WHERE id = $1 AND organisation = $2
	`, id, org)

	d, err := scanDeployment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying deployment: %w", err)
	}
	return d, nil
}

// List returns deployments matching the filter, newest first.
func (s *Store) List(ctx context.Context, f api.ListFilter) ([]api.Deployment, error) {
	defer observability.ObserveStoreQuery("list", time.Now())
	org := storage.TenantFrom(ctx)
	if org == "" {
		return nil, storage.ErrNoTenant
	}

	query := `SELECT ` + deploymentColumns + ` FROM deployments WHERE organisation = $1`
	args := []any{org}

	if f.Status != "" {
		args = append(args, string(f.Status))
		query += " AND status = $" + strconv.Itoa(len(args))
	}
	if f.Environment != "" {
		args = append(args, f.Environment)
		query += " AND environment = $" + strconv.Itoa(len(args))
	}
	if f.Provider != "" {
		args = append(args, string(f.Provider))
		query += " AND provider = $" + strconv.Itoa(len(args))
	}

	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing deployments: %w", err)
	}
	defer rows.Close()

	return collectDeployments(rows)
}

// Find returns rows of a taxonomy, newest first.
func (s *Store) Find(ctx context.Context, tax api.Taxonomy, status api.Status, limit int) ([]api.Deployment, error) {
	defer observability.ObserveStoreQuery("find", time.Now())
	org := storage.TenantFrom(ctx)
	if org == "" {
		return nil, storage.ErrNoTenant
	}

	query, args := taxonomyQuery(tax, status)
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("finding deployments: %w", err)
	}
	defer rows.Close()

	return collectDeployments(rows)
}

// FindLatest returns the most recent row of the taxonomy with the
// given status, or storage.ErrNotFound.
func (s *Store) FindLatest(ctx context.Context, tax api.Taxonomy, status api.Status) (*api.Deployment, error) {
	defer observability.ObserveStoreQuery("find_latest", time.Now())
	org := storage.TenantFrom(ctx)
	if org == "" {
		return nil, storage.ErrNoTenant
	}

	query, args := taxonomyQuery(tax, status)
	query += " ORDER BY created_at DESC, id DESC LIMIT 1"

	d, err := scanDeployment(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest deployment: %w", err)
	}
	return d, nil
}

// UpdateFields applies the mutable descriptive fields and refreshes
// updated_at.
func (s *Store) UpdateFields(ctx context.Context, id string, notes, deploymentURI *string) (*api.Deployment, error) {
	defer observability.ObserveStoreQuery("update_fields", time.Now())
	org := storage.TenantFrom(ctx)
	if org == "" {
		return nil, storage.ErrNoTenant
	}

	query := "UPDATE deployments SET updated_at = $1"
	args := []any{time.Now().UTC()}

	if notes != nil {
		args = append(args, *notes)
		query += ", notes = $" + strconv.Itoa(len(args))
	}
	if deploymentURI != nil {
		args = append(args, *deploymentURI)
		query += ", deployment_uri = $" + strconv.Itoa(len(args))
	}

	args = append(args, id)
	query += " WHERE id = $" + strconv.Itoa(len(args))
	args = append(args, org)
	query += " AND organisation = $" + strconv.Itoa(len(args))
	query += " RETURNING " + deploymentColumns

	d, err := scanDeployment(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating deployment: %w", err)
	}
	return d, nil
}

// Transition atomically moves a row from one status to another. When
// the new status is deployed, scheduled rows of the same taxonomy with
// a strictly older version are skipped inside the same transaction,
// with all candidate rows locked first so no concurrent create or
// update can slip between the read and the write.
func (s *Store) Transition(ctx context.Context, id string, from, to api.Status) (*api.Deployment, []api.Deployment, error) {
	defer observability.ObserveStoreQuery("transition", time.Now())
	org := storage.TenantFrom(ctx)
	if org == "" {
		return nil, nil, storage.ErrNoTenant
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	d, err := scanDeployment(tx.QueryRow(ctx, `
		SELECT `+deploymentColumns+`
		FROM deployments
		WHERE id = $1 AND organisation = $2
		FOR UPDATE
	`, id, org))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("locking deployment: %w", err)
	}
	if d.Status != from {
		return nil, nil, storage.ErrConflict
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx,
		"UPDATE deployments SET status = $1, updated_at = $2 WHERE id = $3",
		string(to), now, id,
	); err != nil {
		return nil, nil, fmt.Errorf("updating status: %w", err)
	}
	d.Status = to
	d.UpdatedAt = now

	var skipped []api.Deployment
	if to == api.StatusDeployed {
		skipped, err = s.skipSuperseded(ctx, tx, d, now)
		if err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("committing transition: %w", err)
	}
	return d, skipped, nil
}

// skipSuperseded locks the scheduled rows of the winner's taxonomy and
// retires every one whose version is strictly older. Rows whose
// versions fail to parse stay scheduled.
func (s *Store) skipSuperseded(ctx context.Context, tx pgx.Tx, winner *api.Deployment, now time.Time) ([]api.Deployment, error) {
	query, args := taxonomyQuery(winner.Taxonomy(), api.StatusScheduled)
	query += " ORDER BY created_at DESC, id DESC FOR UPDATE"

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("locking scheduled deployments: %w", err)
	}
	candidates, err := collectDeployments(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	var skipped []api.Deployment
	for i := range candidates {
		cand := &candidates[i]
		if cand.ID == winner.ID || !version.Supersedes(winner.Version, cand.Version) {
			continue
		}
		if _, err := tx.Exec(ctx,
			"UPDATE deployments SET status = $1, updated_at = $2 WHERE id = $3",
			string(api.StatusSkipped), now, cand.ID,
		); err != nil {
			return nil, fmt.Errorf("skipping deployment %s: %w", cand.ID, err)
		}
		cand.Status = api.StatusSkipped
		cand.UpdatedAt = now
		skipped = append(skipped, *cand)
	}
	return skipped, nil
}

// Rollback locates the rollback reference row, retires the failing row
// when one is named, and inserts the replacement, all in one
// transaction.
func (s *Store) Rollback(ctx context.Context, spec queue.RollbackSpec) (*api.Deployment, error) {
	defer observability.ObserveStoreQuery("rollback", time.Now())
	org := storage.TenantFrom(ctx)
	if org == "" {
		return nil, storage.ErrNoTenant
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query, args := taxonomyQuery(spec.Taxonomy, api.StatusDeployed)
	query += " ORDER BY created_at DESC, id DESC FOR UPDATE"
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("locking deployed history: %w", err)
	}
	deployed, err := collectDeployments(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	var ref *api.Deployment
	if spec.TargetVersion != "" {
		for i := range deployed {
			if deployed[i].Version == spec.TargetVersion {
				ref = &deployed[i]
				break
			}
		}
	} else if len(deployed) > 1 {
		// The previous successful release, the one before the newest.
		ref = &deployed[1]
	}
	if ref == nil {
		return nil, storage.ErrNotFound
	}

	if spec.RollbackFromID != "" {
		from, err := scanDeployment(tx.QueryRow(ctx, `
			SELECT `+deploymentColumns+`
			FROM deployments
			WHERE id = $1 AND organisation = $2
			FOR UPDATE
		`, spec.RollbackFromID, org))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("locking failing deployment: %w", err)
		}
		if apiErr := api.ValidateTransition(from.Status, api.StatusRolledBack); apiErr != nil {
			return nil, apiErr
		}
		if _, err := tx.Exec(ctx,
			"UPDATE deployments SET status = $1, updated_at = $2 WHERE id = $3",
			string(api.StatusRolledBack), spec.Now, from.ID,
		); err != nil {
			return nil, fmt.Errorf("retiring failing deployment: %w", err)
		}
	}

	d := api.NewRollback(ref, spec.RollbackFromID, spec.Now)
	if _, err := tx.Exec(ctx, `
		INSERT INTO deployments (`+deploymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		        $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`,
		d.ID, d.CreatedAt, d.UpdatedAt,
		d.Organisation, d.Name, string(d.Provider), d.CloudAccountID, d.Region, d.Cell,
		d.Version, d.Environment, string(d.Type), string(d.Status), string(d.Trigger),
		d.SourceDeploymentID, d.RollbackFromDeploymentID,
		d.CommitSHA, d.PipelineExtraParams, d.Description, d.Notes,
		d.BuildURI, d.DeploymentURI, d.Resource,
	); err != nil {
		return nil, fmt.Errorf("inserting rollback deployment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing rollback: %w", err)
	}
	return d, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// taxonomyQuery builds the SELECT for a taxonomy with the null-aware
// cell comparison: an absent cell only matches rows where cell IS NULL.
func taxonomyQuery(tax api.Taxonomy, status api.Status) (string, []any) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments
		WHERE organisation = $1 AND name = $2 AND provider = $3
		  AND cloud_account_id = $4 AND region = $5`
	args := []any{tax.Organisation, tax.Name, string(tax.Provider), tax.CloudAccountID, tax.Region}

	if tax.Cell == nil {
		query += " AND cell IS NULL"
	} else {
		args = append(args, *tax.Cell)
		query += " AND cell = $" + strconv.Itoa(len(args))
	}
	if status != "" {
		args = append(args, string(status))
		query += " AND status = $" + strconv.Itoa(len(args))
	}
	return query, args
}

// scanDeployment reads one deployment row in deploymentColumns order.
func scanDeployment(row pgx.Row) (*api.Deployment, error) {
	var d api.Deployment
	var provider, typ, status, trigger string

	err := row.Scan(
		&d.ID, &d.CreatedAt, &d.UpdatedAt,
		&d.Organisation, &d.Name, &provider, &d.CloudAccountID, &d.Region, &d.Cell,
		&d.Version, &d.Environment, &typ, &status, &trigger,
		&d.SourceDeploymentID, &d.RollbackFromDeploymentID,
		&d.CommitSHA, &d.PipelineExtraParams, &d.Description, &d.Notes,
		&d.BuildURI, &d.DeploymentURI, &d.Resource,
	)
	if err != nil {
		return nil, err
	}

	d.Provider = api.Provider(provider)
	d.Type = api.DeploymentType(typ)
	d.Status = api.Status(status)
	d.Trigger = api.Trigger(trigger)
	return &d, nil
}

// collectDeployments drains a row set into a slice.
func collectDeployments(rows pgx.Rows) ([]api.Deployment, error) {
	var out []api.Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning deployment: %w", err)
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating deployments: %w", err)
	}
	return out, nil
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
