// Command demo walks the deployment queue lifecycle in-process using
// the in-memory store: scheduling, the state machine, auto-skip, and
// rollback.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/deployq/deployq/pkg/api"
	"github.com/deployq/deployq/pkg/queue"
	"github.com/deployq/deployq/pkg/storage"
	"github.com/deployq/deployq/pkg/storage/memory"
)

func main() {
	fmt.Println("=== deployment queue lifecycle demo ===")
	fmt.Println()

	service := queue.New(memory.New())
	ctx := storage.WithTenant(context.Background(), "acme")

	// 1. Schedule three versions of the same target.
	versions := []string{"1.0.0", "1.1.0", "1.2.0"}
	rows := make([]*api.Deployment, 0, len(versions))
	for _, v := range versions {
		d, err := service.Create(ctx, &api.CreateRequest{
			Name:           "checkout",
			Version:        v,
			Provider:       api.ProviderGCP,
			CloudAccountID: "proj-1",
			Region:         "europe-west1",
			Environment:    "production",
			Type:           api.TypeK8s,
		})
		if err != nil {
			fail("creating %s: %v", v, err)
		}
		rows = append(rows, d)
	}
	fmt.Printf("[1] Scheduled %d deployments\n", len(rows))

	// 2. Deploy the newest one; the older scheduled rows are skipped
	// automatically.
	latest := rows[len(rows)-1]
	transition(ctx, service, latest.ID, api.StatusInProgress)
	transition(ctx, service, latest.ID, api.StatusDeployed)
	fmt.Printf("[2] Deployed %s\n", latest.Version)

	for _, d := range rows[:len(rows)-1] {
		got, err := service.Get(ctx, d.ID)
		if err != nil {
			fail("get %s: %v", d.ID, err)
		}
		fmt.Printf("    %s is now %s\n", got.Version, got.Status)
	}

	// 3. Deploy a newer version, then roll back to the previous release.
	next, err := service.Create(ctx, &api.CreateRequest{
		Name:           "checkout",
		Version:        "2.0.0",
		Provider:       api.ProviderGCP,
		CloudAccountID: "proj-1",
		Region:         "europe-west1",
		Environment:    "production",
		Type:           api.TypeK8s,
	})
	if err != nil {
		fail("creating 2.0.0: %v", err)
	}
	transition(ctx, service, next.ID, api.StatusInProgress)
	transition(ctx, service, next.ID, api.StatusDeployed)
	fmt.Println("[3] Deployed 2.0.0")

	rollback, err := service.Rollback(ctx, api.Taxonomy{
		Name:           "checkout",
		Provider:       api.ProviderGCP,
		CloudAccountID: "proj-1",
		Region:         "europe-west1",
	}, &api.RollbackRequest{})
	if err != nil {
		fail("rollback: %v", err)
	}
	fmt.Printf("[4] Rollback scheduled for version %s\n", rollback.Version)

	out, _ := json.MarshalIndent(rollback, "", "  ")
	fmt.Printf("\n[5] Rollback row:\n%s\n", out)
}

func transition(ctx context.Context, s *queue.Service, id string, to api.Status) {
	if _, err := s.Update(ctx, id, &api.UpdateRequest{Status: &to}); err != nil {
		fail("transition %s to %s: %v", id, to, err)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
