package api

import "time"

// Provider identifies the cloud provider a deployment targets.
type Provider string

const (
	ProviderGCP   Provider = "gcp"
	ProviderAWS   Provider = "aws"
	ProviderAzure Provider = "azure"
)

// Valid reports whether the provider is one of the known values.
func (p Provider) Valid() bool {
	switch p {
	case ProviderGCP, ProviderAWS, ProviderAzure:
		return true
	}
	return false
}

// DeploymentType categorizes what kind of release a deployment performs.
type DeploymentType string

const (
	TypeK8s          DeploymentType = "k8s"
	TypeTerraform    DeploymentType = "terraform"
	TypeDataPipeline DeploymentType = "data_pipeline"
)

// Valid reports whether the deployment type is one of the known values.
func (t DeploymentType) Valid() bool {
	switch t {
	case TypeK8s, TypeTerraform, TypeDataPipeline:
		return true
	}
	return false
}

// Status is the lifecycle state of a deployment.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusDeployed   Status = "deployed"
	StatusSkipped    Status = "skipped"
	StatusFailed     Status = "failed"
	StatusRolledBack Status = "rolled_back"
)

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusDeployed,
		StatusSkipped, StatusFailed, StatusRolledBack:
		return true
	}
	return false
}

// Trigger records how a deployment entered the queue. It is set at
// creation and never changes.
type Trigger string

const (
	TriggerManual   Trigger = "manual"
	TriggerAuto     Trigger = "auto"
	TriggerRollback Trigger = "rollback"
)

// Taxonomy is the identity of a deployable target. Two deployments
// belong to the same taxonomy iff all six fields compare equal, with
// null-aware comparison for Cell: an absent cell is distinct from any
// concrete value, including the empty string.
type Taxonomy struct {
	Organisation   string   `json:"organisation"`
	Name           string   `json:"name"`
	Provider       Provider `json:"provider"`
	CloudAccountID string   `json:"cloud_account_id"`
	Region         string   `json:"region"`
	Cell           *string  `json:"cell,omitempty"`
}

// Equal reports whether two taxonomies identify the same deployable
// target.
func (t Taxonomy) Equal(o Taxonomy) bool {
	if t.Organisation != o.Organisation ||
		t.Name != o.Name ||
		t.Provider != o.Provider ||
		t.CloudAccountID != o.CloudAccountID ||
		t.Region != o.Region {
		return false
	}
	if t.Cell == nil || o.Cell == nil {
		return t.Cell == nil && o.Cell == nil
	}
	return *t.Cell == *o.Cell
}

// Deployment is a single row in the deployment queue.
type Deployment struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Taxonomy dimensions.
	Organisation   string   `json:"organisation"`
	Name           string   `json:"name"`
	Provider       Provider `json:"provider"`
	CloudAccountID string   `json:"cloud_account_id"`
	Region         string   `json:"region"`
	Cell           *string  `json:"cell,omitempty"`

	Version     string         `json:"version"`
	Environment string         `json:"environment"`
	Type        DeploymentType `json:"type"`
	Status      Status         `json:"status"`
	Trigger     Trigger        `json:"trigger"`

	// Lineage back-references, set only on rollback-created rows.
	SourceDeploymentID       *string `json:"source_deployment_id,omitempty"`
	RollbackFromDeploymentID *string `json:"rollback_from_deployment_id,omitempty"`

	// Descriptive metadata. Never participates in identity or skip logic.
	CommitSHA          *string `json:"commit_sha,omitempty"`
	PipelineExtraParams *string `json:"pipeline_extra_params,omitempty"`
	Description        *string `json:"description,omitempty"`
	Notes              *string `json:"notes,omitempty"`
	BuildURI           *string `json:"build_uri,omitempty"`
	DeploymentURI      *string `json:"deployment_uri,omitempty"`
	Resource           *string `json:"resource,omitempty"`
}

// Taxonomy returns the deployment's identity tuple.
func (d *Deployment) Taxonomy() Taxonomy {
	return Taxonomy{
		Organisation:   d.Organisation,
		Name:           d.Name,
		Provider:       d.Provider,
		CloudAccountID: d.CloudAccountID,
		Region:         d.Region,
		Cell:           d.Cell,
	}
}

// CreateRequest carries the caller-supplied fields for a new deployment.
// Organisation comes from the authenticated identity, never the body.
type CreateRequest struct {
	Name           string         `json:"name"`
	Version        string         `json:"version"`
	Provider       Provider       `json:"provider"`
	CloudAccountID string         `json:"cloud_account_id"`
	Region         string         `json:"region"`
	Cell           *string        `json:"cell,omitempty"`
	Environment    string         `json:"environment"`
	Type           DeploymentType `json:"type"`
	Trigger        Trigger        `json:"trigger,omitempty"`

	CommitSHA          *string `json:"commit_sha,omitempty"`
	PipelineExtraParams *string `json:"pipeline_extra_params,omitempty"`
	Description        *string `json:"description,omitempty"`
	Notes              *string `json:"notes,omitempty"`
	BuildURI           *string `json:"build_uri,omitempty"`
	DeploymentURI      *string `json:"deployment_uri,omitempty"`
	Resource           *string `json:"resource,omitempty"`
}

// UpdateRequest carries the mutable subset of a deployment. Fields left
// nil are not touched.
type UpdateRequest struct {
	Status        *Status `json:"status,omitempty"`
	Notes         *string `json:"notes,omitempty"`
	DeploymentURI *string `json:"deployment_uri,omitempty"`
}

// Empty reports whether the update carries no fields at all.
func (u UpdateRequest) Empty() bool {
	return u.Status == nil && u.Notes == nil && u.DeploymentURI == nil
}

// RollbackRequest asks for a new scheduled deployment reproducing a
// prior successful one.
type RollbackRequest struct {
	// TargetVersion pins the rollback reference to an exact deployed
	// version. When empty, the previous successful release is used.
	TargetVersion string `json:"target_version,omitempty"`

	// RollbackFromID optionally names the failing deployment being
	// rolled back; that row is retired to rolled_back in the same
	// operation.
	RollbackFromID string `json:"rollback_from_deployment_id,omitempty"`
}

// ListFilter restricts a deployment listing. Zero values mean "any".
type ListFilter struct {
	Status      Status
	Environment string
	Provider    Provider
	Limit       int
}
