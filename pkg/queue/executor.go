package queue

import (
	"context"
	"log/slog"

	"github.com/deployq/deployq/pkg/api"
)

// ReleaseExecutor performs the type-specific release work for a
// deployment entering in_progress. Implementations live outside the
// engine; the engine only dispatches by deployment type.
type ReleaseExecutor interface {
	Execute(ctx context.Context, d *api.Deployment) error
}

// NoopExecutor acknowledges the transition without doing any release
// work. It is the default for every deployment type.
type NoopExecutor struct{}

// Execute implements ReleaseExecutor.
func (NoopExecutor) Execute(_ context.Context, d *api.Deployment) error {
	slog.Debug("no release executor registered",
		"deployment_id", d.ID, "type", string(d.Type))
	return nil
}
