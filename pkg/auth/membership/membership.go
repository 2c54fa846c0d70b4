// Package membership verifies opaque personal credentials by asking an
// external membership service (a GitHub-style API) whether the
// credential's owner belongs to a given organisation.
//
// Results are cached per (credential fingerprint, organisation) for a
// configurable TTL to bound the external-call rate. Backend failures
// are surfaced as auth.ErrBackendUnavailable and are never cached, so
// an outage can never manifest as a denial.
package membership

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/deployq/deployq/pkg/auth"
)

// maxOrgPages bounds pagination through the caller's organisations.
const maxOrgPages = 10

// Config holds the membership verifier configuration.
type Config struct {
	// APIBaseURL is the membership service root. Default:
	// https://api.github.com.
	APIBaseURL string

	// APIVersion is sent as the service's version header.
	// Default: 2022-11-28.
	APIVersion string

	// CacheTTL controls how long membership results are cached.
	// Default: 5 minutes.
	CacheTTL time.Duration

	// HTTPClient allows injecting a custom HTTP client (useful for
	// testing). If nil, a client with a 10s timeout is used.
	HTTPClient *http.Client
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.APIBaseURL == "" {
		c.APIBaseURL = "https://api.github.com"
	}
	if c.APIVersion == "" {
		c.APIVersion = "2022-11-28"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
}

// Verifier validates opaque credentials against the membership service.
type Verifier struct {
	config Config
	cache  *resultCache
	group  singleflight.Group
}

var _ auth.MembershipVerifier = (*Verifier)(nil)

// New creates a membership verifier with the given configuration.
func New(cfg Config) *Verifier {
	cfg.applyDefaults()
	return &Verifier{
		config: cfg,
		cache:  newResultCache(cfg.CacheTTL),
	}
}

// membershipResult is a cached membership decision.
type membershipResult struct {
	member bool
	actor  string
}

// Verify checks that the credential's owner belongs to organisation.
// A negative membership result is auth.ErrForbidden; a service failure
// is auth.ErrBackendUnavailable and is not cached either way.
func (v *Verifier) Verify(ctx context.Context, credential, organisation string) (*auth.Identity, error) {
	key := cacheKey(credential, organisation)

	res, ok := v.cache.get(key)
	if !ok {
		// Collapse concurrent misses for the same credential and
		// organisation to a single upstream check.
		value, err, _ := v.group.Do(key, func() (any, error) {
			r, err := v.check(ctx, credential, organisation)
			if err != nil {
				return nil, err
			}
			v.cache.put(key, r)
			return r, nil
		})
		if err != nil {
			return nil, err
		}
		res = value.(membershipResult)
	}

	if !res.member {
		return nil, errors.Join(auth.ErrForbidden,
			fmt.Errorf("user %q is not a member of organisation %q", res.actor, organisation))
	}

	return &auth.Identity{
		Organisation: organisation,
		Source:       "pat",
		Repository:   organisation + "/cli",
		Workflow:     "cli",
		Actor:        res.actor,
	}, nil
}

// check performs the uncached membership lookup: resolve the
// credential to a username, then scan the user's organisations.
func (v *Verifier) check(ctx context.Context, credential, organisation string) (membershipResult, error) {
	username, err := v.fetchUser(ctx, credential)
	if err != nil {
		return membershipResult{}, err
	}

	orgs, err := v.fetchOrganisations(ctx, credential)
	if err != nil {
		return membershipResult{}, err
	}

	_, member := orgs[strings.ToLower(organisation)]
	return membershipResult{member: member, actor: username}, nil
}

// fetchUser resolves the credential to its owning username.
func (v *Verifier) fetchUser(ctx context.Context, credential string) (string, error) {
	var user struct {
		Login string `json:"login"`
	}
	status, err := v.getJSON(ctx, credential, "/user", nil, &user)
	if err != nil {
		return "", errors.Join(auth.ErrBackendUnavailable, err)
	}
	switch {
	case status == http.StatusUnauthorized:
		return "", errors.Join(auth.ErrUnauthenticated, errors.New("credential rejected by membership service"))
	case status != http.StatusOK:
		return "", errors.Join(auth.ErrBackendUnavailable,
			fmt.Errorf("membership service returned status %d", status))
	case user.Login == "":
		return "", errors.Join(auth.ErrUnauthenticated, errors.New("membership service returned no username"))
	}
	return user.Login, nil
}

// fetchOrganisations lists every organisation the credential's owner
// belongs to, lowercased. Pagination is capped at maxOrgPages.
func (v *Verifier) fetchOrganisations(ctx context.Context, credential string) (map[string]struct{}, error) {
	orgs := make(map[string]struct{})

	for page := 1; page <= maxOrgPages; page++ {
		var entries []struct {
			Login string `json:"login"`
		}
		params := url.Values{
			"page":     {strconv.Itoa(page)},
			"per_page": {"100"},
		}
		status, err := v.getJSON(ctx, credential, "/user/orgs", params, &entries)
		if err != nil {
			return nil, errors.Join(auth.ErrBackendUnavailable, err)
		}
		if status != http.StatusOK {
			return nil, errors.Join(auth.ErrBackendUnavailable,
				fmt.Errorf("membership service returned status %d", status))
		}
		if len(entries) == 0 {
			break
		}
		for _, e := range entries {
			orgs[strings.ToLower(e.Login)] = struct{}{}
		}
	}
	return orgs, nil
}

// getJSON issues an authenticated GET and decodes the body into out
// when the status is 200. Non-200 statuses are returned for the caller
// to interpret; the body is not decoded.
func (v *Verifier) getJSON(ctx context.Context, credential, path string, params url.Values, out any) (int, error) {
	u := v.config.APIBaseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("creating membership request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", v.config.APIVersion)

	resp, err := v.config.HTTPClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("calling membership service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decoding membership response: %w", err)
	}
	return resp.StatusCode, nil
}

// cacheKey fingerprints the credential so plaintext tokens are never
// held as map keys.
func cacheKey(credential, organisation string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:]) + ":" + strings.ToLower(organisation)
}

// resultCache is a TTL cache of membership decisions.
type resultCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	result    membershipResult
	expiresAt time.Time
}

func newResultCache(ttl time.Duration) *resultCache {
	return &resultCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *resultCache) get(key string) (membershipResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return membershipResult{}, false
	}
	return e.result, true
}

func (c *resultCache) put(key string, result membershipResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{
		result:    result,
		expiresAt: time.Now().Add(c.ttl),
	}
}
