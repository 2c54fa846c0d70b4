// Package oidc verifies federated CI tokens against the issuer's
// rotating public-key set (JWKS).
//
// Signature, issuer, audience, and expiry are enforced. The tenant
// organisation comes from the repository_owner claim; repository,
// workflow, and actor are extracted opportunistically for audit.
package oidc

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/deployq/deployq/pkg/auth"
	"github.com/deployq/deployq/pkg/debug"
)

// Config holds the federated-token verifier configuration.
type Config struct {
	// Issuer is the expected token issuer (iss claim).
	Issuer string

	// Audience is the expected token audience (aud claim).
	Audience string

	// JWKSURL is the URL to fetch the issuer's key set. If empty, it is
	// derived from Issuer as <issuer>/.well-known/jwks.
	JWKSURL string

	// CacheTTL controls how long the key set is cached. Default: 1 hour.
	CacheTTL time.Duration

	// HTTPClient allows injecting a custom HTTP client (useful for
	// testing). If nil, a client with a 10s timeout is used.
	HTTPClient *http.Client
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.JWKSURL == "" && c.Issuer != "" {
		c.JWKSURL = c.Issuer + "/.well-known/jwks"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 1 * time.Hour
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
}

// Verifier validates federated tokens against a cached JWKS.
type Verifier struct {
	config    Config
	jwksCache *jwksCache
}

var _ auth.TokenVerifier = (*Verifier)(nil)

// New creates a federated-token verifier with the given configuration.
func New(cfg Config) *Verifier {
	cfg.applyDefaults()
	return &Verifier{
		config: cfg,
		jwksCache: &jwksCache{
			keys:    make(map[string]*rsa.PublicKey),
			ttl:     cfg.CacheTTL,
			jwksURL: cfg.JWKSURL,
			client:  cfg.HTTPClient,
		},
	}
}

// Verify validates the token and returns the tenant identity carried
// in its claims. A key-set fetch failure surfaces as
// auth.ErrBackendUnavailable and never bypasses verification.
func (v *Verifier) Verify(ctx context.Context, tokenStr string) (*auth.Identity, error) {
	token, err := jwtlib.Parse(tokenStr, func(token *jwtlib.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwtlib.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("token missing kid header")
		}

		key, fetchErr := v.jwksCache.getKey(ctx, kid)
		if fetchErr != nil {
			return nil, fetchErr
		}
		return key, nil
	},
		jwtlib.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		jwtlib.WithIssuer(v.config.Issuer),
		jwtlib.WithAudience(v.config.Audience),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, auth.ErrBackendUnavailable) {
			return nil, err
		}
		debug.Log("auth", "federated token validation failed", "error", err)
		return nil, errors.Join(auth.ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.Join(auth.ErrUnauthenticated, errors.New("invalid token claims"))
	}

	organisation := claimString(claims, "repository_owner")
	if organisation == "" {
		return nil, errors.Join(auth.ErrUnauthenticated,
			errors.New("token missing repository_owner claim"))
	}

	return &auth.Identity{
		Organisation: organisation,
		Source:       "oidc",
		Repository:   claimString(claims, "repository"),
		Workflow:     claimString(claims, "workflow"),
		Actor:        claimString(claims, "actor"),
	}, nil
}

// claimString extracts a string value from token claims.
// Returns empty string if the claim is missing or not a string.
func claimString(claims jwtlib.MapClaims, key string) string {
	val, ok := claims[key]
	if !ok {
		return ""
	}
	s, ok := val.(string)
	if !ok {
		return ""
	}
	return s
}

// jwksCache caches RSA public keys fetched from a JWKS endpoint.
// It is thread-safe; concurrent misses for an expired set collapse to
// a single refetch behind the write lock.
type jwksCache struct {
	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey // kid -> public key
	fetchedAt time.Time
	ttl       time.Duration
	jwksURL   string
	client    *http.Client
}

// getKey returns the RSA public key for the given kid.
// It fetches from the JWKS endpoint if the cache is expired or the kid
// is unknown.
func (c *jwksCache) getKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	// Try cache first with read lock.
	c.mu.RLock()
	if key, ok := c.keys[kid]; ok && time.Since(c.fetchedAt) < c.ttl {
		c.mu.RUnlock()
		return key, nil
	}
	c.mu.RUnlock()

	// Cache miss or expired: refresh with write lock.
	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock (another goroutine may
	// have refreshed).
	if key, ok := c.keys[kid]; ok && time.Since(c.fetchedAt) < c.ttl {
		return key, nil
	}

	if err := c.fetchJWKS(ctx); err != nil {
		return nil, errors.Join(auth.ErrBackendUnavailable, err)
	}

	key, ok := c.keys[kid]
	if !ok {
		return nil, fmt.Errorf("key %q not found in key set", kid)
	}
	return key, nil
}

// fetchJWKS fetches the JWKS from the configured URL and populates the
// key cache. Must be called with the write lock held.
func (c *jwksCache) fetchJWKS(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("creating key-set request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching key set: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("key-set endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading key-set response: %w", err)
	}

	var jwks jwksDocument
	if err := json.Unmarshal(body, &jwks); err != nil {
		return fmt.Errorf("parsing key set: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, jwk := range jwks.Keys {
		if jwk.Kty != "RSA" {
			continue
		}
		if jwk.Use != "" && jwk.Use != "sig" {
			continue
		}

		pubKey, err := parseRSAPublicKey(jwk)
		if err != nil {
			slog.Warn("skipping key-set entry", "kid", jwk.Kid, "error", err)
			continue
		}
		keys[jwk.Kid] = pubKey
	}

	c.keys = keys
	c.fetchedAt = time.Now()

	debug.Log("auth", "key-set cache refreshed", "keys", len(keys), "url", c.jwksURL)
	return nil
}

// jwksDocument represents the JSON Web Key Set response.
type jwksDocument struct {
	Keys []jwkKey `json:"keys"`
}

// jwkKey represents a single JSON Web Key.
type jwkKey struct {
	Kty string `json:"kty"` // Key type (e.g., "RSA")
	Kid string `json:"kid"` // Key ID
	Use string `json:"use"` // Key use (e.g., "sig")
	N   string `json:"n"`   // RSA modulus (base64url-encoded)
	E   string `json:"e"`   // RSA public exponent (base64url-encoded)
}

// parseRSAPublicKey constructs an *rsa.PublicKey from a JWK.
func parseRSAPublicKey(jwk jwkKey) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}

	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes)

	if !e.IsInt64() {
		return nil, fmt.Errorf("RSA exponent too large")
	}

	return &rsa.PublicKey{
		N: n,
		E: int(e.Int64()),
	}, nil
}
