package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/fixora/tollgate/application/port/outbound"
	"github.com/fixora/tollgate/application/usecase/recovery"
	"github.com/fixora/tollgate/application/usecase/verification"
	"github.com/fixora/tollgate/domain/ledger"
	"github.com/fixora/tollgate/domain/state"
	"github.com/fixora/tollgate/infrastructure/adapter/memory"
	"github.com/fixora/tollgate/infrastructure/adapter/postgres"
	"github.com/fixora/tollgate/infrastructure/config"
	httpserver "github.com/fixora/tollgate/infrastructure/http"
	"github.com/fixora/tollgate/infrastructure/http/middleware"
	"github.com/fixora/tollgate/infrastructure/http/sse"
	"github.com/fixora/tollgate/infrastructure/service/jwt"
	"github.com/fixora/tollgate/infrastructure/service/logger"
	"github.com/fixora/tollgate/infrastructure/service/metrics"
	"github.com/fixora/tollgate/infrastructure/service/notifier"
	"github.com/fixora/tollgate/infrastructure/service/password"
	"github.com/fixora/tollgate/infrastructure/service/ratelimit"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logger
	structuredLogger := logger.NewStructuredLogger(logger.LoggerConfig{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: "tollgate",
	})
	structuredLogger.Info(ctx, "Application starting", map[string]interface{}{
		"env":             cfg.Environment,
		"registry_source": cfg.RegistrySource,
	})

	// Admin credential: only the bcrypt hash is kept in memory
	passwordService := password.NewBcryptPasswordService(cfg.BcryptCost)
	adminHash, err := passwordService.AdminSecretHash(cfg.AdminSecret, cfg.AdminSecretHash)
	if err != nil {
		structuredLogger.Error(ctx, "Invalid admin credential configuration", err, nil)
		log.Fatalf("Invalid admin credential configuration: %v", err)
	}
	cfg.AdminSecret = ""

	registry, err := loadRegistry(ctx, cfg, structuredLogger)
	if err != nil {
		structuredLogger.Error(ctx, "Failed to load client registry", err, map[string]interface{}{
			"registry_source": cfg.RegistrySource,
		})
		log.Fatalf("Failed to load client registry: %v", err)
	}

	policy := verification.DefaultPolicy()
	policy.DailyLimit = cfg.DailyLimit
	policy.StructuringFloor = cfg.StructuringFloor
	policy.StructuringWindow = cfg.StructuringWindow
	policy.MaxStrikes = cfg.MaxStrikes
	policy.UrgencyThreshold = cfg.UrgencyThreshold

	store := state.NewStore(policy.DailyLimit, state.WithMaxCompleted(cfg.MaxCompleted))

	// Audit observers: dashboard stream, metrics and the log, all behind one
	// non-blocking dispatcher so appends never wait on them.
	var observers []outbound.AuditObserver
	var streamer *sse.Streamer
	if cfg.SSEEnabled {
		streamer = sse.NewStreamer(sse.Config{
			HeartbeatInterval: cfg.SSEHeartbeatInterval,
			MaxConnections:    cfg.SSEMaxConnections,
			BufferSize:        cfg.SSEMessageBufferSize,
		}, structuredLogger).WithSnapshot(func() interface{} { return store.Snapshot() })
		streamer.Start(ctx)
		observers = append(observers, streamer)
	}
	var promMetrics *metrics.Metrics
	if cfg.MetricsEnabled {
		promMetrics = metrics.New()
		promMetrics.WatchState(store)
		observers = append(observers, promMetrics)
	}
	observers = append(observers, notifier.NewLogObserver(structuredLogger))

	dispatcherCtx, stopDispatcher := context.WithCancel(context.Background())
	defer stopDispatcher()
	dispatcher := notifier.NewDispatcher(cfg.NotifierBufferSize, structuredLogger, observers...)
	dispatcher.Start(dispatcherCtx)
	if promMetrics != nil {
		promMetrics.WatchDropped("audit_notifications_dropped_total", "Audit notifications dropped because the dispatcher queue was full.", dispatcher.Dropped)
	}

	auditLedger := ledger.New(ledger.WithObserver(dispatcher))

	pipeline, err := verification.NewPipeline(store, auditLedger, registry, policy, structuredLogger)
	if err != nil {
		structuredLogger.Error(ctx, "Invalid policy configuration", err, nil)
		log.Fatalf("Invalid policy configuration: %v", err)
	}

	var tokenService outbound.TokenService
	if cfg.SessionsEnabled() {
		svc, err := jwt.NewJWTService(cfg.JWTSecret, cfg.AdminTokenTTL)
		if err != nil {
			log.Fatalf("Failed to initialize JWT service: %v", err)
		}
		tokenService = svc
	} else {
		structuredLogger.Info(ctx, "Admin sessions disabled, admin key only", nil)
	}

	adminUseCase, err := recovery.NewAdminUseCase(store, auditLedger, passwordService, adminHash, tokenService, structuredLogger)
	if err != nil {
		log.Fatalf("Failed to initialize admin use case: %v", err)
	}

	// Initialize rate limiting service (Redis-backed or noop based on config)
	rlLogger := logrus.New()
	rlLogger.SetFormatter(&logrus.JSONFormatter{})
	rateLimitService, err := ratelimit.NewRateLimitService(ratelimit.RateLimitConfig{
		Enabled:       cfg.RateLimitEnabled,
		RedisURL:      cfg.RedisURL,
		IPAttempts:    cfg.RateLimitIPAttempts,
		IPWindow:      cfg.RateLimitIPWindow,
		BlockDuration: cfg.RateLimitBlockDuration,
	}, rlLogger)
	var rateLimitMiddleware *middleware.RateLimitMiddleware
	if err != nil {
		// The pipeline still protects the gateway; only the per-IP throttle is lost.
		structuredLogger.Error(ctx, "Failed to initialize rate limit service, continuing without it", err, map[string]interface{}{
			"redis_url": cfg.RedisURL,
		})
	} else {
		var recorder middleware.RateLimitRecorder
		if promMetrics != nil {
			recorder = promMetrics
		}
		rateLimitMiddleware = middleware.NewRateLimitMiddleware(rateLimitService, middleware.RateLimitPolicy{
			Limit:         cfg.RateLimitIPAttempts,
			Window:        cfg.RateLimitIPWindow,
			BlockDuration: cfg.RateLimitBlockDuration,
		}, recorder, structuredLogger)
	}

	server := httpserver.NewServer(httpserver.ServerConfig{
		Addr:                 cfg.Address(),
		ReadTimeout:          cfg.ReadTimeout,
		WriteTimeout:         cfg.WriteTimeout,
		IdleTimeout:          60 * time.Second,
		CorrelationIDHeader:  cfg.LogCorrelationIDHeader,
		EnableRequestLog:     cfg.LogEnableRequestLog,
		CORSEnabled:          cfg.CORSEnabled,
		CORSAllowedOrigins:   cfg.CORSAllowedOrigins,
		CORSAllowCredentials: cfg.CORSAllowCredentials,
	}, httpserver.Dependencies{
		Verifier:  pipeline,
		Admin:     adminUseCase,
		RateLimit: rateLimitMiddleware,
		Streamer:  streamer,
		Metrics:   promMetrics,
		Logger:    structuredLogger,
	})

	// Start server in goroutine
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			structuredLogger.Error(ctx, "Server failed to start", err, map[string]interface{}{
				"addr": cfg.Address(),
			})
			cancel()
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	structuredLogger.Info(ctx, "Shutting down server...", nil)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	// Closing SSE clients first lets Shutdown drain instead of waiting on streams.
	cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		structuredLogger.Error(ctx, "Server forced to shutdown", err, nil)
	}

	auditLedger.Seal()
	stopDispatcher()
	select {
	case <-dispatcher.Done():
	case <-shutdownCtx.Done():
	}
	structuredLogger.Info(context.Background(), "Server exited", map[string]interface{}{
		"audit_records": auditLedger.Len(),
		"audit_head":    auditLedger.Head(),
	})
}

// loadRegistry returns the client registry, read from postgres when
// configured and the built-in seed otherwise.
func loadRegistry(ctx context.Context, cfg *config.Config, log logger.Logger) (outbound.UserRegistry, error) {
	registry := memory.NewSeedRegistry()
	if cfg.RegistrySource != config.RegistryPostgres {
		return registry, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	loadCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(loadCtx); err != nil {
		return nil, err
	}
	n, err := registry.LoadFrom(loadCtx, postgres.NewUserSourceAdapter(db))
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "Client registry loaded from database", map[string]interface{}{
		"users": n,
	})
	return registry, nil
}
