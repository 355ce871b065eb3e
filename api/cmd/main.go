package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/baechuer/real-time-ressys/services/jam-service/internal/audit"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/config"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/filter"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/infrastructure/memory"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/infrastructure/postgres"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/infrastructure/rabbitmq"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/infrastructure/redis"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/pkg/logger"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/security"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/service"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/transport/rest"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	log := logger.Logger.With().
		Str("service", "jam-service").
		Str("env", cfg.AppEnv).
		Logger()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	auditLog := audit.New(logger.Component("audit"))
	var checks []rest.HealthCheck

	// ---- Store ----
	var (
		store domain.Store
		fence domain.MessageFence
		repo  *postgres.Repository
	)
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		dbPool, err := pgxpool.New(rootCtx, cfg.DBDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres pool create failed")
		}
		defer dbPool.Close()

		pingCtx, cancel := context.WithTimeout(rootCtx, 5*time.Second)
		err = dbPool.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("postgres ping failed")
		}
		log.Info().Msg("postgres connected")

		repo = postgres.New(dbPool)
		store, fence = repo, repo
		checks = append(checks, rest.HealthCheck{Name: "postgres", Ping: dbPool.Ping})
	default:
		store, fence = memory.NewStore(), memory.NewFence()
		log.Warn().Msg("using in-memory store; state is lost on restart")
	}

	// ---- Redis (optional) ----
	var (
		cache   domain.DiscoveryCache
		limiter domain.RateLimiter
	)
	if cfg.RedisAddr != "" {
		rc := redis.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer rc.Close()

		pingCtx, cancel := context.WithTimeout(rootCtx, 2*time.Second)
		if err := rc.Ping(pingCtx); err != nil {
			log.Warn().Err(err).Msg("redis ping failed (continuing)")
		} else {
			log.Info().Msg("redis connected")
		}
		cancel()

		cache = redis.NewDiscoveryCache(rc)
		limiter = redis.NewFixedWindowLimiter(rc)
		store = redis.NewCachedStore(store, rc, cfg.CriteriaCacheTTL)
		checks = append(checks, rest.HealthCheck{Name: "redis", Ping: rc.Ping, Optional: true})
	}

	// ---- Application services ----
	engine := filter.NewEngine(nil, cfg.EventTimeZone)
	registry := service.NewRegistry(store, cache, auditLog)
	discovery := service.NewDiscoveryService(store, engine, auditLog, service.WithCache(cache, cfg.DiscoveryCacheTTL))
	lifecycle := service.NewLifecycle(store, fence, cache, auditLog)

	verifier := security.NewHS256Verifier(cfg.JWTSecret, security.WithIssuer(cfg.JWTIssuer))

	httpHandler := rest.NewRouter(rest.RouterDeps{
		Handler:            rest.NewHandler(registry, discovery),
		Health:             rest.NewHealthHandler(checks...),
		Verifier:           verifier,
		Limiter:            limiter,
		RLEnabled:          cfg.RLEnabled,
		RLLimit:            cfg.RLLimit,
		RLWindow:           cfg.RLWindow,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, ctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		log.Info().Int("port", cfg.Port).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// ---- Outbox worker (outbound registration.* events) ----
	if cfg.OutboxEnabled && repo != nil {
		worker := repo.NewOutboxWorker(cfg.RabbitURL, cfg.RabbitExchange, auditLog)
		g.Go(func() error { return worker.Run(ctx) })
	}

	// ---- Lifecycle consumer (inbound event.* snapshots) ----
	if cfg.ConsumerEnabled {
		consumer := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitExchange, lifecycle)
		g.Go(func() error { return consumer.Run(ctx) })
	}

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("service stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("shutdown complete")
}
