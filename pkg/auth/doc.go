// Package auth resolves inbound credentials to a tenant identity.
//
// Two credential schemes are supported. A federated token (three
// dot-separated segments, as issued by a CI identity provider) is
// verified locally against the issuer's rotating public-key set. Any
// other credential is treated as an opaque personal token and verified
// by asking an external membership service whether its owner belongs
// to the organisation named out-of-band by the caller.
//
// Both paths produce the same Identity, which the HTTP middleware
// injects into the request context for storage tenant scoping. The
// resolver fails closed: a backend that cannot be reached surfaces as
// ErrBackendUnavailable, never as a pass or a denial.
package auth
