package storage

import (
	"context"
	"testing"
)

func TestTenantRoundTrip(t *testing.T) {
	ctx := context.Background()

	if got := TenantFrom(ctx); got != "" {
		t.Errorf("TenantFrom(empty ctx) = %q, want empty", got)
	}

	ctx = WithTenant(ctx, "acme")
	if got := TenantFrom(ctx); got != "acme" {
		t.Errorf("TenantFrom = %q, want %q", got, "acme")
	}

	// Overwriting replaces the previous organisation.
	ctx = WithTenant(ctx, "globex")
	if got := TenantFrom(ctx); got != "globex" {
		t.Errorf("TenantFrom after overwrite = %q, want %q", got, "globex")
	}
}
