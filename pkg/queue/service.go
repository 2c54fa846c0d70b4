package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/deployq/deployq/pkg/api"
	"github.com/deployq/deployq/pkg/observability"
	"github.com/deployq/deployq/pkg/storage"
	"github.com/deployq/deployq/pkg/version"
)

// Service is the taxonomy engine. It holds no per-request state; a
// single instance serves all tenants concurrently.
type Service struct {
	store     Store
	executors map[api.DeploymentType]ReleaseExecutor
}

// Option configures a Service.
type Option func(*Service)

// WithExecutor registers a release executor for a deployment type.
func WithExecutor(t api.DeploymentType, exec ReleaseExecutor) Option {
	return func(s *Service) { s.executors[t] = exec }
}

// New creates the engine on top of a Store. Deployment types without a
// registered executor fall back to NoopExecutor.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		executors: make(map[api.DeploymentType]ReleaseExecutor),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the request and inserts a new scheduled deployment
// owned by the organisation in the context.
func (s *Service) Create(ctx context.Context, req *api.CreateRequest) (*api.Deployment, error) {
	if apiErr := api.ValidateCreate(req); apiErr != nil {
		return nil, apiErr
	}
	org := storage.TenantFrom(ctx)
	if org == "" {
		return nil, storage.ErrNoTenant
	}

	trigger := req.Trigger
	if trigger == "" {
		trigger = api.TriggerAuto
	}

	now := time.Now().UTC()
	d := &api.Deployment{
		ID:        api.NewDeploymentID(),
		CreatedAt: now,
		UpdatedAt: now,

		Organisation:   org,
		Name:           req.Name,
		Provider:       req.Provider,
		CloudAccountID: req.CloudAccountID,
		Region:         req.Region,
		Cell:           req.Cell,

		Version:     req.Version,
		Environment: req.Environment,
		Type:        req.Type,
		Status:      api.StatusScheduled,
		Trigger:     trigger,

		CommitSHA:           req.CommitSHA,
		PipelineExtraParams: req.PipelineExtraParams,
		Description:         req.Description,
		Notes:               req.Notes,
		BuildURI:            req.BuildURI,
		DeploymentURI:       req.DeploymentURI,
		Resource:            req.Resource,
	}

	if err := s.store.Insert(ctx, d); err != nil {
		return nil, err
	}

	observability.DeploymentsCreatedTotal.
		WithLabelValues(org, string(d.Provider), string(d.Trigger)).Inc()
	slog.Info("deployment created",
		"deployment_id", d.ID, "organisation", org,
		"name", d.Name, "version", d.Version, "trigger", string(d.Trigger))
	return d, nil
}

// Get returns a deployment by id within the caller's organisation.
func (s *Service) Get(ctx context.Context, id string) (*api.Deployment, error) {
	return s.store.Get(ctx, id)
}

// List returns deployments matching the filter, newest first.
func (s *Service) List(ctx context.Context, f api.ListFilter) ([]api.Deployment, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, api.NewInvalidRequestError("status", "unknown status "+string(f.Status))
	}
	if f.Provider != "" && !f.Provider.Valid() {
		return nil, api.NewInvalidRequestError("provider", "unknown provider "+string(f.Provider))
	}
	return s.store.List(ctx, f)
}

// Update applies the mutable subset of a deployment: status (through
// the state machine), notes, and deployment_uri.
func (s *Service) Update(ctx context.Context, id string, req *api.UpdateRequest) (*api.Deployment, error) {
	if apiErr := api.ValidateUpdate(req); apiErr != nil {
		return nil, apiErr
	}

	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Status != nil && *req.Status != d.Status {
		d, err = s.transition(ctx, d, *req.Status)
		if err != nil {
			return nil, err
		}
	}

	if req.Notes != nil || req.DeploymentURI != nil {
		d, err = s.store.UpdateFields(ctx, id, req.Notes, req.DeploymentURI)
		if err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Current returns the most recent deployment of a taxonomy.
func (s *Service) Current(ctx context.Context, tax api.Taxonomy) (*api.Deployment, error) {
	tax, apiErr := s.scopeTaxonomy(ctx, tax)
	if apiErr != nil {
		return nil, apiErr
	}
	return s.store.FindLatest(ctx, tax, "")
}

// History returns the deployment history of a taxonomy, newest first.
func (s *Service) History(ctx context.Context, tax api.Taxonomy, limit int) ([]api.Deployment, error) {
	tax, apiErr := s.scopeTaxonomy(ctx, tax)
	if apiErr != nil {
		return nil, apiErr
	}
	return s.store.Find(ctx, tax, "", limit)
}

// UpdateCurrentStatus transitions the most recent deployment of a
// taxonomy to the given status.
func (s *Service) UpdateCurrentStatus(ctx context.Context, tax api.Taxonomy, status api.Status) (*api.Deployment, error) {
	tax, apiErr := s.scopeTaxonomy(ctx, tax)
	if apiErr != nil {
		return nil, apiErr
	}
	if !status.Valid() {
		return nil, api.NewInvalidRequestError("status", "unknown status "+string(status))
	}

	d, err := s.store.FindLatest(ctx, tax, "")
	if err != nil {
		return nil, err
	}
	if status == d.Status {
		return d, nil
	}
	return s.transition(ctx, d, status)
}

// Rollback creates a new scheduled deployment reproducing a prior
// successful one, with full lineage.
func (s *Service) Rollback(ctx context.Context, tax api.Taxonomy, req *api.RollbackRequest) (*api.Deployment, error) {
	tax, apiErr := s.scopeTaxonomy(ctx, tax)
	if apiErr != nil {
		return nil, apiErr
	}

	if req.TargetVersion != "" {
		// Explicit targets demand strict comparison; a malformed
		// version is an error here, unlike the soft-fail in auto-skip.
		if _, err := version.Parse(req.TargetVersion); err != nil {
			return nil, api.NewVersionParseError(req.TargetVersion)
		}
	}

	d, err := s.store.Rollback(ctx, RollbackSpec{
		Taxonomy:       tax,
		TargetVersion:  req.TargetVersion,
		RollbackFromID: req.RollbackFromID,
		Now:            time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	observability.RollbacksTotal.
		WithLabelValues(d.Organisation, string(d.Provider)).Inc()
	slog.Info("rollback deployment created",
		"deployment_id", d.ID, "organisation", d.Organisation,
		"name", d.Name, "version", d.Version,
		"source_deployment_id", deref(d.SourceDeploymentID),
		"rollback_from_deployment_id", deref(d.RollbackFromDeploymentID))
	return d, nil
}

// transition drives a single state-machine step: validation, the
// transactional store move (including auto-skip on deployed), and the
// release executor dispatch on in_progress.
func (s *Service) transition(ctx context.Context, d *api.Deployment, to api.Status) (*api.Deployment, error) {
	if to == api.StatusRolledBack {
		return nil, api.NewInvalidTransitionError("rolled_back is set by the rollback operation")
	}
	if apiErr := api.ValidateTransition(d.Status, to); apiErr != nil {
		return nil, apiErr
	}

	updated, skipped, err := s.store.Transition(ctx, d.ID, d.Status, to)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, api.NewInvalidTransitionError(
				fmt.Sprintf("deployment %s is no longer %s", d.ID, d.Status))
		}
		return nil, err
	}

	observability.DeploymentsUpdatedTotal.
		WithLabelValues(updated.Organisation, string(to)).Inc()

	if len(skipped) > 0 {
		observability.DeploymentsSkippedTotal.
			WithLabelValues(updated.Organisation).Add(float64(len(skipped)))
		for _, sk := range skipped {
			slog.Info("deployment auto-skipped",
				"deployment_id", sk.ID, "organisation", sk.Organisation,
				"version", sk.Version, "superseded_by", updated.Version)
		}
	}

	if to == api.StatusInProgress {
		s.executorFor(updated.Type).executeLogged(ctx, updated)
	}
	return updated, nil
}

// scopeTaxonomy injects the caller's organisation into the taxonomy
// and validates the required dimensions.
func (s *Service) scopeTaxonomy(ctx context.Context, tax api.Taxonomy) (api.Taxonomy, *api.APIError) {
	org := storage.TenantFrom(ctx)
	if org == "" {
		return tax, api.NewUnauthenticatedError("no organisation in request context")
	}
	tax.Organisation = org
	if apiErr := api.ValidateTaxonomy(tax); apiErr != nil {
		return tax, apiErr
	}
	return tax, nil
}

func (s *Service) executorFor(t api.DeploymentType) loggedExecutor {
	if exec, ok := s.executors[t]; ok {
		return loggedExecutor{exec}
	}
	return loggedExecutor{NoopExecutor{}}
}

// loggedExecutor runs an executor and records the outcome without
// failing the transition. Release execution is an extension point; a
// failing executor reports through its own channel, not by wedging the
// queue.
type loggedExecutor struct {
	exec ReleaseExecutor
}

func (l loggedExecutor) executeLogged(ctx context.Context, d *api.Deployment) {
	if err := l.exec.Execute(ctx, d); err != nil {
		slog.Warn("release executor failed",
			"deployment_id", d.ID, "type", string(d.Type), "error", err)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
