// Command server runs the deployment queue API.
//
// Configuration is layered: built-in defaults, an optional YAML config
// file (-config flag, DEPLOYQ_CONFIG, ./config.yaml, or
// /etc/deployq/config.yaml), then DEPLOYQ_* environment overrides. See
// pkg/config for the full set of settings.
//
// Two listeners are started: the API server on server.port and a
// management server (health, readiness, metrics) on management.port.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/deployq/deployq/pkg/auth"
	"github.com/deployq/deployq/pkg/auth/membership"
	"github.com/deployq/deployq/pkg/auth/oidc"
	"github.com/deployq/deployq/pkg/config"
	"github.com/deployq/deployq/pkg/debug"
	"github.com/deployq/deployq/pkg/observability"
	"github.com/deployq/deployq/pkg/queue"
	"github.com/deployq/deployq/pkg/storage/memory"
	"github.com/deployq/deployq/pkg/storage/postgres"
	transporthttp "github.com/deployq/deployq/pkg/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	debug.Init("", *logLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx := context.Background()

	// Create the deployment store.
	var (
		store queue.Store
		ready func() error
	)
	switch cfg.Storage.Type {
	case "postgres":
		pg, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer pg.Close()
		store = pg
		ready = func() error { return pg.HealthCheck(context.Background()) }
		slog.Info("storage enabled", "type", "postgres",
			"max_conns", cfg.Storage.Postgres.MaxConns,
			"migrate_on_start", cfg.Storage.Postgres.MigrateOnStart)
	case "memory":
		store = memory.New()
		ready = func() error { return nil }
		slog.Info("storage enabled", "type", "memory")
	default:
		return fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}

	// Create the credential resolver.
	var resolver auth.Resolver
	if cfg.Auth.Enabled {
		federated := oidc.New(oidc.Config{
			Issuer:   cfg.Auth.Issuer,
			Audience: cfg.Auth.Audience,
			JWKSURL:  cfg.Auth.JWKSURL,
			CacheTTL: cfg.Auth.JWKSCacheTTL,
		})
		members := membership.New(membership.Config{
			APIBaseURL: cfg.Auth.MembershipAPIURL,
			APIVersion: cfg.Auth.MembershipAPIVersion,
			CacheTTL:   cfg.Auth.MembershipCacheTTL,
		})
		resolver = auth.NewResolver(federated, members, cfg.Auth.AllowedOrganisations)
		slog.Info("authentication enabled",
			"issuer", cfg.Auth.Issuer,
			"allowed_organisations", len(cfg.Auth.AllowedOrganisations))
	} else {
		resolver = auth.DisabledResolver{Organisation: cfg.Auth.DevOrganisation}
		slog.Warn("authentication disabled, all requests attributed to dev organisation",
			"organisation", cfg.Auth.DevOrganisation)
	}

	service := queue.New(store)

	srv := transporthttp.NewServer(service,
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithAuth(auth.Middleware(resolver, auth.DefaultBypassEndpoints)),
		transporthttp.WithMetrics(cfg.Observability.Metrics.Enabled),
	)

	// The management listener stays cluster-internal and carries no
	// authentication.
	mgmt := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Management.Port),
		Handler: observability.ManagementHandler(ready),
	}
	go func() {
		slog.Info("management server starting", "port", cfg.Management.Port)
		if err := mgmt.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("management server failed", "error", err)
		}
	}()

	err = srv.ListenAndServe()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if mgmtErr := mgmt.Shutdown(shutdownCtx); mgmtErr != nil {
		slog.Error("management server shutdown error", "error", mgmtErr)
	}
	return err
}
