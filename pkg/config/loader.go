package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, DEPLOYQ_CONFIG env, ./config.yaml, /etc/deployq/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	// Start with defaults.
	cfg := Defaults()

	// Discover and load YAML config file.
	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	// Apply environment variable overrides.
	applyEnvOverrides(&cfg)

	// Resolve _file references.
	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	// Derive the JWKS URL from the issuer when not set explicitly.
	if cfg.Auth.JWKSURL == "" && cfg.Auth.Issuer != "" {
		cfg.Auth.JWKSURL = strings.TrimSuffix(cfg.Auth.Issuer, "/") + "/.well-known/jwks"
	}

	// Validate.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. DEPLOYQ_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/deployq/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	// Explicit path takes priority.
	if configPath != "" {
		return configPath
	}

	// Check DEPLOYQ_CONFIG env var.
	if envPath := os.Getenv("DEPLOYQ_CONFIG"); envPath != "" {
		return envPath
	}

	// Check common locations.
	candidates := []string{
		"config.yaml",
		"/etc/deployq/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps DEPLOYQ_* environment variables to config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DEPLOYQ_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DEPLOYQ_MANAGEMENT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Management.Port = port
		}
	}
	if v := os.Getenv("DEPLOYQ_STORAGE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("DEPLOYQ_POSTGRES_DSN"); v != "" {
		cfg.Storage.Postgres.DSN = v
	}
	if v := os.Getenv("DEPLOYQ_AUTH_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Auth.Enabled = enabled
		}
	}
	if v := os.Getenv("DEPLOYQ_AUTH_ISSUER"); v != "" {
		cfg.Auth.Issuer = v
	}
	if v := os.Getenv("DEPLOYQ_AUTH_AUDIENCE"); v != "" {
		cfg.Auth.Audience = v
	}
	if v := os.Getenv("DEPLOYQ_AUTH_JWKS_URL"); v != "" {
		cfg.Auth.JWKSURL = v
	}
	if v := os.Getenv("DEPLOYQ_AUTH_JWKS_CACHE_TTL"); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil {
			cfg.Auth.JWKSCacheTTL = ttl
		}
	}
	if v := os.Getenv("DEPLOYQ_MEMBERSHIP_API_URL"); v != "" {
		cfg.Auth.MembershipAPIURL = v
	}
	if v := os.Getenv("DEPLOYQ_MEMBERSHIP_CACHE_TTL"); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil {
			cfg.Auth.MembershipCacheTTL = ttl
		}
	}
	if v := os.Getenv("DEPLOYQ_ALLOWED_ORGANISATIONS"); v != "" {
		cfg.Auth.AllowedOrganisations = splitList(v)
	}
	if v := os.Getenv("DEPLOYQ_DEV_ORGANISATION"); v != "" {
		cfg.Auth.DevOrganisation = v
	}
}

// splitList splits a comma-separated list, trimming whitespace and
// dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields. For each field ending in _file, if the value field is empty
// and the file field is set, the file is read, whitespace is trimmed, and
// the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// storage.postgres.dsn_file -> storage.postgres.dsn
	if cfg.Storage.Postgres.DSNFile != "" && cfg.Storage.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		cfg.Storage.Postgres.DSN = val
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
