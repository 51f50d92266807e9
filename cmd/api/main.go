package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aimerfeng/TierLink/internal/adjust"
	"github.com/aimerfeng/TierLink/internal/admin"
	"github.com/aimerfeng/TierLink/internal/cache"
	"github.com/aimerfeng/TierLink/internal/config"
	"github.com/aimerfeng/TierLink/internal/database"
	"github.com/aimerfeng/TierLink/internal/identity"
	"github.com/aimerfeng/TierLink/internal/logging"
	"github.com/aimerfeng/TierLink/internal/monitoring"
	"github.com/aimerfeng/TierLink/internal/quota"
	"github.com/aimerfeng/TierLink/internal/rbac"
	"github.com/aimerfeng/TierLink/internal/registry"
	"github.com/aimerfeng/TierLink/internal/server"
	"github.com/aimerfeng/TierLink/internal/store"
	"github.com/aimerfeng/TierLink/internal/usage"
	"github.com/aimerfeng/TierLink/internal/userapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(&cfg.Logging, cfg.Server.Env)

	log.Info().
		Str("env", cfg.Server.Env).
		Msg("Starting TierLink API server")

	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	redisCache, err := cache.New(cfg.Redis.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisCache.Close()

	monitoring.Init()
	if cfg.Monitoring.PrometheusEnabled {
		go startMetricsServer(cfg.Monitoring.PrometheusPort)
	}

	// Core wiring: document store, identity, capability snapshots, usage
	// ledger, quota engine, adjustment aggregator.
	docStore := store.NewPostgresStore(db.Pool)
	provider := identity.NewJWTProvider(&cfg.JWT, redisCache.Client)
	snapshots := rbac.NewSnapshotProvider(docStore, redisCache.Client, cfg.Quota.SnapshotTTL)
	ledger := usage.NewLedger(usage.NewPostgresRepository(db))
	limits := quota.NewLimitsService(docStore)
	engine := quota.NewEngine(docStore, ledger, limits)
	aggregator := adjust.NewAggregator(docStore, ledger, limits)
	scheduler := adjust.NewScheduler(aggregator, cfg.Quota.AdjustmentInterval)
	adminService := admin.NewService(docStore, provider, snapshots, limits, cfg.Quota.PurgeBatchSize)
	userApis := userapi.NewService(docStore)
	tools, err := registry.FromSpecs(cfg.Tools.Specs)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid tool registry configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := scheduler.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start adjustment scheduler")
	}
	defer scheduler.Stop()

	srv := server.NewAPIServer(cfg, server.Deps{
		Store:     docStore,
		Identity:  provider,
		Snapshots: snapshots,
		Ledger:    ledger,
		Quota:     engine,
		Admin:     adminService,
		UserApis:  userApis,
		Registry:  tools,
		Scheduler: scheduler,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("API server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received, gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited gracefully")
}

func startMetricsServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.Handler())

	metricsServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Info().Int("port", port).Msg("Prometheus metrics server listening")

	if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("Metrics server error")
	}
}
