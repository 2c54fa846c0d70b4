package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// server.port must be positive.
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	// management.port must be positive and distinct from the API port.
	if c.Management.Port <= 0 {
		errs = append(errs, fmt.Errorf("management.port must be > 0, got %d", c.Management.Port))
	}
	if c.Management.Port == c.Server.Port {
		errs = append(errs, fmt.Errorf("management.port must differ from server.port, both are %d", c.Server.Port))
	}

	// storage.type must be a known value.
	switch c.Storage.Type {
	case "memory", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\" or \"postgres\", got %q", c.Storage.Type))
	}

	// If storage.type is "postgres", DSN or DSNFile must be set.
	if c.Storage.Type == "postgres" {
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	}

	if c.Auth.Enabled {
		if c.Auth.Issuer == "" {
			errs = append(errs, fmt.Errorf("auth.issuer is required when auth is enabled"))
		}
		if c.Auth.Audience == "" {
			errs = append(errs, fmt.Errorf("auth.audience is required when auth is enabled"))
		}
		if c.Auth.MembershipAPIURL == "" {
			errs = append(errs, fmt.Errorf("auth.membership_api_url is required when auth is enabled"))
		}
		if c.Auth.JWKSCacheTTL <= 0 {
			errs = append(errs, fmt.Errorf("auth.jwks_cache_ttl must be > 0, got %s", c.Auth.JWKSCacheTTL))
		}
		if c.Auth.MembershipCacheTTL <= 0 {
			errs = append(errs, fmt.Errorf("auth.membership_cache_ttl must be > 0, got %s", c.Auth.MembershipCacheTTL))
		}
	} else if c.Auth.DevOrganisation == "" {
		errs = append(errs, fmt.Errorf("auth.dev_organisation is required when auth is disabled"))
	}

	return errors.Join(errs...)
}
