package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/deployq/deployq/pkg/api"
	"github.com/deployq/deployq/pkg/debug"
	"github.com/deployq/deployq/pkg/observability"
	"github.com/deployq/deployq/pkg/storage"
)

// OrganisationHeader carries the tenant hint for opaque personal
// credentials, which themselves hold no tenant claim.
const OrganisationHeader = "X-Organisation"

// Middleware creates HTTP middleware that resolves the request
// credential, injects the identity and tenant into the context, and
// rejects the request otherwise. Paths on the bypass list skip
// authentication entirely.
func Middleware(resolver Resolver, bypassEndpoints []string) func(http.Handler) http.Handler {
	bypass := make(map[string]bool, len(bypassEndpoints))
	for _, ep := range bypassEndpoints {
		bypass[ep] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			credential := bearerCredential(r)
			hint := r.Header.Get(OrganisationHeader)

			id, err := resolver.Resolve(r.Context(), credential, hint)
			if err != nil {
				method := "pat"
				if IsFederated(credential) {
					method = "oidc"
				}
				observability.AuthRequestsTotal.WithLabelValues(method, "false").Inc()
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", err,
				)
				writeAuthError(w, err)
				return
			}

			observability.AuthRequestsTotal.WithLabelValues(id.Source, "true").Inc()
			debug.Log("auth", "authentication succeeded",
				"organisation", id.Organisation,
				"actor", id.Actor,
				"source", id.Source,
				"path", r.URL.Path,
			)

			ctx := SetIdentity(r.Context(), id)
			ctx = storage.WithTenant(ctx, id.Organisation)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerCredential extracts the credential from the Authorization
// header. Returns an empty string when the header is absent or not a
// Bearer scheme.
func bearerCredential(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

// writeAuthError maps resolver errors onto the API error taxonomy.
func writeAuthError(w http.ResponseWriter, err error) {
	var apiErr *api.APIError
	var status int
	switch {
	case errors.Is(err, ErrForbidden):
		apiErr = api.NewForbiddenError(err.Error())
		status = http.StatusForbidden
	case errors.Is(err, ErrBackendUnavailable):
		apiErr = api.NewAuthUnavailableError(err.Error())
		status = http.StatusServiceUnavailable
	default:
		apiErr = api.NewUnauthenticatedError(err.Error())
		status = http.StatusUnauthorized
	}

	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// DefaultBypassEndpoints lists endpoints that skip authentication.
var DefaultBypassEndpoints = []string{"/health", "/ready", "/metrics"}
