package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"

	"github.com/pranems/SCIMServer-sub002/internal/api"
	"github.com/pranems/SCIMServer-sub002/internal/config"
	internaldb "github.com/pranems/SCIMServer-sub002/internal/db"
	"github.com/pranems/SCIMServer-sub002/internal/domain"
	"github.com/pranems/SCIMServer-sub002/internal/middleware"
	"github.com/pranems/SCIMServer-sub002/internal/repository"
	"github.com/pranems/SCIMServer-sub002/internal/service"
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := &cobra.Command{
		Use:           "scimserver",
		Short:         "Multi-tenant SCIM 2.0 provisioning server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newServeCmd(), newMigrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the SCIM HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}
			writeDB, err := internaldb.Open(cfg.DBPath, "write", 1)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer writeDB.Close()
			return internaldb.RunMigrations(writeDB)
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	// writeDB: single-connection pool for serialized writes (WAL + txlock=immediate).
	// readDB:  concurrent read pool.
	writeDB, readDB, err := internaldb.OpenPair(cfg.DBPath, 4)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer writeDB.Close()
	defer readDB.Close()

	if err := internaldb.RunMigrations(writeDB); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	resourceRepo := repository.NewResourceRepoPair(writeDB, readDB)
	tenantRepo := repository.NewTenantRepo(writeDB)

	if err := seedDefaultTenant(ctx, tenantRepo, cfg.DefaultTenant); err != nil {
		return fmt.Errorf("seed default tenant: %w", err)
	}

	users := service.NewResourceService(resourceRepo, domain.TypeUser, logger)
	groups := service.NewResourceService(resourceRepo, domain.TypeGroup, logger)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "If-Match", "If-None-Match", middleware.TenantHeader},
		ExposedHeaders: []string{"ETag", "Location"},
		MaxAge:         300,
	}))
	r.Use(middleware.RateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// When auth is configured the server must not come up without it.
	var validator middleware.TokenValidator
	if cfg.Auth.Enabled() {
		validator, err = buildValidator(ctx, cfg)
		if err != nil {
			return fmt.Errorf("auth setup: %w", err)
		}
	}

	handler := api.NewHandler(users, groups, logger)
	r.Route("/scim/v2", func(r chi.Router) {
		if validator != nil {
			r.Use(middleware.BearerAuth(validator))
		}
		r.Use(middleware.TenantResolver(tenantRepo, cfg.DefaultTenant))
		handler.Mount(r)
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("scim server listening", "addr", cfg.ListenAddr, "env", cfg.Env)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-shutdownCtx.Done():
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

func buildValidator(ctx context.Context, cfg *config.Config) (middleware.TokenValidator, error) {
	switch {
	case cfg.Auth.IssuerURL != "":
		return middleware.NewOIDCValidator(ctx, cfg.Auth.IssuerURL, cfg.Auth.Audience)
	case cfg.Auth.JWKSURL != "":
		return middleware.NewOIDCValidatorFromJWKS(ctx, cfg.Auth.JWKSURL, cfg.Auth.IssuerURL, cfg.Auth.Audience), nil
	case cfg.Auth.JWTSecret != "":
		return middleware.NewHS256Validator(cfg.Auth.JWTSecret)
	}
	return nil, fmt.Errorf("no token validator configured")
}

// seedDefaultTenant creates the default tenant if it does not exist, so
// a fresh dev database is usable without tenant provisioning.
func seedDefaultTenant(ctx context.Context, tenants domain.TenantStore, name string) error {
	if name == "" {
		return nil
	}
	_, err := tenants.GetByName(ctx, name)
	if err == nil {
		return nil
	}
	var notFound *domain.NotFoundError
	if !errors.As(err, &notFound) {
		return err
	}
	_, err = tenants.Create(ctx, &domain.Tenant{Name: name})
	return err
}
