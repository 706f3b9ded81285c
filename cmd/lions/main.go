package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/digital-lions/backend/pkg/api"
	"github.com/digital-lions/backend/pkg/config"
	"github.com/digital-lions/backend/pkg/hierarchy"
	"github.com/digital-lions/backend/pkg/httputil"
	"github.com/digital-lions/backend/pkg/idp"
	"github.com/digital-lions/backend/pkg/middleware"
	"github.com/digital-lions/backend/pkg/observability"
	"github.com/digital-lions/backend/pkg/program"
	"github.com/digital-lions/backend/pkg/rbac"
	"github.com/digital-lions/backend/pkg/reconcile"
	"github.com/digital-lions/backend/pkg/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "lions: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := storage.Open(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	log.WithField("max_conns", cfg.Storage.MaxConns).Info("database connection established")

	if err := storage.RunMigrations(ctx, db, "hierarchy", hierarchy.GetMigrations()); err != nil {
		return fmt.Errorf("hierarchy migrations failed: %w", err)
	}
	if err := storage.RunMigrations(ctx, db, "rbac", rbac.GetMigrations()); err != nil {
		return fmt.Errorf("rbac migrations failed: %w", err)
	}
	if err := storage.RunMigrations(ctx, db, "program", program.GetMigrations()); err != nil {
		return fmt.Errorf("program migrations failed: %w", err)
	}

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
		metrics.CollectDBStats(db)
	}

	hierarchyStore := hierarchy.NewStore(db)
	roleStore := rbac.NewStore(db)
	programStore := program.NewStore(db)

	// The Auth0 client keeps this context for oauth2 token refresh, so it
	// must outlive startup.
	idpClient := idp.NewAuth0Client(context.Background(), cfg.Auth.Auth0)

	authorizer := rbac.NewAuthorizer(roleStore, hierarchyStore, metrics)
	roleSvc := rbac.NewService(roleStore, hierarchyStore, idpClient, log, metrics)
	programSvc := program.NewService(programStore, hierarchyStore, log)

	verifier, err := middleware.NewOIDCVerifier(ctx, cfg.Auth.IssuerURL, cfg.Auth.Audience)
	if err != nil {
		return fmt.Errorf("failed to initialize token verifier: %w", err)
	}
	authMW := middleware.NewAuthMiddleware(verifier, log)

	chain := []mux.MiddlewareFunc{
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(log),
		httputil.CORSMiddleware(cfg.Server.AllowedOrigins),
		httputil.MaxBytesMiddleware(cfg.Server.MaxBodyBytes),
		authMW.Handler,
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.URL,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		limiter := middleware.NewRateLimiter(redisClient, &middleware.RateLimitConfig{
			RequestsPerWindow: cfg.Redis.RequestsPerWindow,
			WindowDuration:    cfg.Redis.WindowDuration,
		}, "lions")
		chain = append(chain, middleware.NewRateLimitMiddleware(limiter, log).Handler)
		log.WithField("requests_per_window", cfg.Redis.RequestsPerWindow).Info("rate limiting enabled")
	} else {
		log.Warn("LIONS_REDIS_URL not set, rate limiting disabled")
	}

	server := api.NewServer(api.Deps{
		Hierarchy:  hierarchyStore,
		Roles:      roleStore,
		RoleSvc:    roleSvc,
		Authorizer: authorizer,
		Program:    programSvc,
		IdP:        idpClient,
		Health:     observability.NewHealthChecker(db, idpClient),
		Metrics:    metrics,
		Log:        log,
		Middleware: chain,
	})

	reconciler := reconcile.New(roleStore, idpClient, log, metrics)
	if cfg.Reconcile.Schedule != "" {
		if err := reconciler.Start(cfg.Reconcile.Schedule); err != nil {
			return fmt.Errorf("failed to start reconciler: %w", err)
		}
		log.WithField("schedule", cfg.Reconcile.Schedule).Info("reconciliation job scheduled")
	}

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(log, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		reconciler.Stop()
		return nil
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			return redisClient.Close()
		})
	}
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		return db.Close()
	})

	go func() {
		log.WithField("addr", addr).Info("server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("server stopped unexpectedly")
		}
	}()

	return shutdown.WaitForShutdown()
}
