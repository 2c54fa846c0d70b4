package auth

import (
	"context"
	"errors"
	"testing"
)

type stubTokenVerifier struct {
	id  *Identity
	err error
}

func (s *stubTokenVerifier) Verify(_ context.Context, _ string) (*Identity, error) {
	return s.id, s.err
}

type stubMembershipVerifier struct {
	id        *Identity
	err       error
	lastOrg   string
	lastToken string
}

func (s *stubMembershipVerifier) Verify(_ context.Context, credential, organisation string) (*Identity, error) {
	s.lastToken = credential
	s.lastOrg = organisation
	return s.id, s.err
}

func TestIsFederated(t *testing.T) {
	tests := []struct {
		credential string
		federated  bool
	}{
		{"eyJhbGciOi.eyJpc3MiOi.c2lnbmF0dXJl", true},
		{"ghp_abcdef123456", false},
		{"", false},
		{"one.dot", false},
		{"too.many.dots.here", false},
	}
	for _, tt := range tests {
		if got := IsFederated(tt.credential); got != tt.federated {
			t.Errorf("IsFederated(%q) = %v, want %v", tt.credential, got, tt.federated)
		}
	}
}

func TestResolveRoutesFederatedToken(t *testing.T) {
	federated := &stubTokenVerifier{id: &Identity{Organisation: "acme", Source: "oidc"}}
	membership := &stubMembershipVerifier{err: errors.New("must not be called")}
	r := NewResolver(federated, membership, nil)

	id, err := r.Resolve(context.Background(), "a.b.c", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id.Source != "oidc" {
		t.Errorf("expected oidc path, got %q", id.Source)
	}
	if membership.lastToken != "" {
		t.Error("opaque path must not run for a federated credential")
	}
}

func TestResolveRoutesOpaqueToken(t *testing.T) {
	federated := &stubTokenVerifier{err: errors.New("must not be called")}
	membership := &stubMembershipVerifier{id: &Identity{Organisation: "acme", Source: "pat"}}
	r := NewResolver(federated, membership, nil)

	id, err := r.Resolve(context.Background(), "ghp_token", "acme")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id.Source != "pat" {
		t.Errorf("expected pat path, got %q", id.Source)
	}
	if membership.lastOrg != "acme" {
		t.Errorf("expected organisation hint passed through, got %q", membership.lastOrg)
	}
}

func TestResolveOpaqueRequiresHint(t *testing.T) {
	r := NewResolver(&stubTokenVerifier{}, &stubMembershipVerifier{}, nil)

	_, err := r.Resolve(context.Background(), "ghp_token", "")
	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestResolveEmptyCredential(t *testing.T) {
	r := NewResolver(&stubTokenVerifier{}, &stubMembershipVerifier{}, nil)

	_, err := r.Resolve(context.Background(), "", "acme")
	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestResolveAllowList(t *testing.T) {
	federated := &stubTokenVerifier{id: &Identity{Organisation: "Globex", Source: "oidc"}}
	r := NewResolver(federated, &stubMembershipVerifier{}, []string{" Acme ", "globex"})

	// Allow-list comparison ignores case and padding.
	if _, err := r.Resolve(context.Background(), "a.b.c", ""); err != nil {
		t.Fatalf("expected globex allowed, got %v", err)
	}

	federated.id = &Identity{Organisation: "initech", Source: "oidc"}
	_, err := r.Resolve(context.Background(), "a.b.c", "")
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestResolvePropagatesVerifierErrors(t *testing.T) {
	backendErr := errors.Join(ErrBackendUnavailable, errors.New("jwks timeout"))
	r := NewResolver(&stubTokenVerifier{err: backendErr}, &stubMembershipVerifier{}, nil)

	_, err := r.Resolve(context.Background(), "a.b.c", "")
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestDisabledResolver(t *testing.T) {
	r := DisabledResolver{Organisation: "local-dev"}

	id, err := r.Resolve(context.Background(), "", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id.Organisation != "local-dev" || id.Source != "dev" {
		t.Errorf("unexpected identity %+v", id)
	}

	id, err = r.Resolve(context.Background(), "anything", "acme")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id.Organisation != "acme" {
		t.Errorf("expected hint to win, got %q", id.Organisation)
	}
}
