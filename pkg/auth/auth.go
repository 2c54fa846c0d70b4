package auth

import (
	"context"
	"errors"
	"strings"
)

// Sentinel errors. Wrapped errors carry detail; callers branch with
// errors.Is.
var (
	// ErrUnauthenticated means the credential is missing, malformed,
	// expired, or unverifiable.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrForbidden means the credential is valid but the tenant is not
	// allowed.
	ErrForbidden = errors.New("access denied")

	// ErrBackendUnavailable means a key-set provider or membership
	// service could not be reached. It is never cached and never
	// interpreted as a denial.
	ErrBackendUnavailable = errors.New("authentication backend unavailable")
)

// Identity is the result of successful authentication.
type Identity struct {
	// Organisation is the tenant partition key. Always non-empty.
	Organisation string

	// Source records which path authenticated the caller:
	// "oidc", "pat", or "dev".
	Source string

	// Audit attributes, populated opportunistically.
	Repository string
	Workflow   string
	Actor      string
}

// TokenVerifier validates a federated token and extracts the identity
// from its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// MembershipVerifier validates an opaque credential by checking that
// its owner belongs to the given organisation.
type MembershipVerifier interface {
	Verify(ctx context.Context, credential, organisation string) (*Identity, error)
}

// Resolver classifies an inbound credential and dispatches it to the
// matching verifier, then applies the tenant allow-list.
type Resolver interface {
	Resolve(ctx context.Context, credential, organisationHint string) (*Identity, error)
}

// IsFederated reports whether a credential has the structural shape of
// a federated token: exactly three dot-separated segments. This is a
// cheap routing decision, not a security check; a malformed value
// routed to the opaque path simply fails the membership check.
func IsFederated(credential string) bool {
	return strings.Count(credential, ".") == 2
}

// chainResolver is the production Resolver.
type chainResolver struct {
	federated  TokenVerifier
	membership MembershipVerifier
	allowed    map[string]struct{} // lowercased; empty means all allowed
}

// NewResolver builds a Resolver from the two verifiers and an optional
// organisation allow-list.
func NewResolver(federated TokenVerifier, membership MembershipVerifier, allowedOrganisations []string) Resolver {
	allowed := make(map[string]struct{}, len(allowedOrganisations))
	for _, org := range allowedOrganisations {
		org = strings.ToLower(strings.TrimSpace(org))
		if org != "" {
			allowed[org] = struct{}{}
		}
	}
	return &chainResolver{
		federated:  federated,
		membership: membership,
		allowed:    allowed,
	}
}

// Resolve implements Resolver.
func (r *chainResolver) Resolve(ctx context.Context, credential, organisationHint string) (*Identity, error) {
	if credential == "" {
		return nil, ErrUnauthenticated
	}

	var (
		id  *Identity
		err error
	)
	if IsFederated(credential) {
		id, err = r.federated.Verify(ctx, credential)
	} else {
		if organisationHint == "" {
			return nil, errors.Join(ErrUnauthenticated,
				errors.New("organisation header required for personal credentials"))
		}
		id, err = r.membership.Verify(ctx, credential, organisationHint)
	}
	if err != nil {
		return nil, err
	}

	if !r.organisationAllowed(id.Organisation) {
		return nil, errors.Join(ErrForbidden,
			errors.New("organisation "+id.Organisation+" is not allowed"))
	}
	return id, nil
}

func (r *chainResolver) organisationAllowed(organisation string) bool {
	if len(r.allowed) == 0 {
		return true
	}
	_, ok := r.allowed[strings.ToLower(organisation)]
	return ok
}

// DisabledResolver bypasses authentication entirely and returns a
// fixed development identity. Local development only; it must never be
// wired in a deployment-facing configuration.
type DisabledResolver struct {
	// Organisation is the sentinel tenant used when the caller does not
	// supply a hint.
	Organisation string
}

// Resolve implements Resolver without looking at the credential.
func (r DisabledResolver) Resolve(_ context.Context, _, organisationHint string) (*Identity, error) {
	org := organisationHint
	if org == "" {
		org = r.Organisation
	}
	return &Identity{
		Organisation: org,
		Source:       "dev",
		Repository:   org + "/local",
		Workflow:     "local-dev",
		Actor:        "local-dev",
	}, nil
}
