package storage

import "context"

// tenantKey is a private type for the tenant context key, preventing
// collisions with other packages.
type tenantKey struct{}

// WithTenant injects an organisation into the context. Every store
// operation downstream is filtered to that organisation.
func WithTenant(ctx context.Context, organisation string) context.Context {
	return context.WithValue(ctx, tenantKey{}, organisation)
}

// TenantFrom extracts the organisation from the context. Returns an
// empty string if none is set; adapters treat that as ErrNoTenant.
func TenantFrom(ctx context.Context) string {
	if v, ok := ctx.Value(tenantKey{}).(string); ok {
		return v
	}
	return ""
}
