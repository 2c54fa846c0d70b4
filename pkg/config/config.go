// Package config provides unified configuration for the deployment queue
// service.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (DEPLOYQ_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the deployment queue service.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Management    ManagementConfig    `yaml:"management"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds API server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 8000
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 60s
}

// ManagementConfig holds the management listener settings. The management
// port serves health, readiness, and metrics and is expected to stay
// internal to the cluster.
type ManagementConfig struct {
	Port int `yaml:"port"` // default: 9090
}

// StorageConfig holds deployment store settings.
type StorageConfig struct {
	Type     string         `yaml:"type"` // "memory" or "postgres", default: "memory"
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// AuthConfig holds authentication settings for both credential schemes.
//
// Federated workflow tokens are verified against the issuer's JWKS.
// Opaque personal tokens are verified against the membership API.
// When Enabled is false every request is attributed to DevOrganisation.
type AuthConfig struct {
	Enabled              bool          `yaml:"enabled"`                // default: true
	Issuer               string        `yaml:"issuer"`                 // default: https://token.actions.githubusercontent.com
	Audience             string        `yaml:"audience"`               // default: deployment-queue-api
	JWKSURL              string        `yaml:"jwks_url"`               // default: derived from issuer
	JWKSCacheTTL         time.Duration `yaml:"jwks_cache_ttl"`         // default: 1h
	MembershipAPIURL     string        `yaml:"membership_api_url"`     // default: https://api.github.com
	MembershipAPIVersion string        `yaml:"membership_api_version"` // default: 2022-11-28
	MembershipCacheTTL   time.Duration `yaml:"membership_cache_ttl"`   // default: 5m
	AllowedOrganisations []string      `yaml:"allowed_organisations"`  // empty means allow any
	DevOrganisation      string        `yaml:"dev_organisation"`       // default: local-dev
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"` // default: true
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Management: ManagementConfig{
			Port: 9090,
		},
		Storage: StorageConfig{
			Type: "memory",
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Auth: AuthConfig{
			Enabled:              true,
			Issuer:               "https://token.actions.githubusercontent.com",
			Audience:             "deployment-queue-api",
			JWKSCacheTTL:         time.Hour,
			MembershipAPIURL:     "https://api.github.com",
			MembershipAPIVersion: "2022-11-28",
			MembershipCacheTTL:   5 * time.Minute,
			DevOrganisation:      "local-dev",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
			},
		},
	}
}
