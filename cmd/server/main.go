package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashish13377/Intellido/internal/app"
	"github.com/ashish13377/Intellido/internal/config"
	"github.com/ashish13377/Intellido/internal/conversation"
	"github.com/ashish13377/Intellido/internal/handlers"
	"github.com/ashish13377/Intellido/internal/logger"
	"github.com/ashish13377/Intellido/internal/queue"
	"github.com/ashish13377/Intellido/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const (
	queueConnectAttempts = 10
	sweepInterval        = time.Minute
	dlqGCInterval        = time.Hour
	dlqRetention         = 24 * time.Hour
	shutdownTimeout      = 30 * time.Second
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	configFlag := flag.String("config", "", "Path to a config file")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *configFlag != "" {
		cfg, err = config.LoadFile(*configFlag)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	debugMode := cfg.DebugMode || *debugFlag
	cfg.DebugMode = debugMode

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_server",
		zap.String("version", version),
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("ai_provider", cfg.AIProvider),
		zap.String("ai_model", cfg.AIModel),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracingEnabled := cfg.OTELEnabled && cfg.OTELEndpoint != ""
	if cfg.OTELEnabled && !tracingEnabled {
		zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
	}
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		Enabled:        tracingEnabled,
		ServiceVersion: version,
		Endpoint:       cfg.OTELEndpoint,
	})
	if err != nil {
		zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		tracingEnabled = false
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(shutdownCtx); err != nil {
				zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
			}
		}()
	}

	a, err := app.New(ctx, cfg, zapLogger, app.Options{WithAgent: true, QueueAttempts: queueConnectAttempts})
	if err != nil {
		zapLogger.Error("failed_to_initialize", zap.Bool("store_unavailable", app.IsStoreUnavailable(err)), zap.Error(err))
		_ = logger.Sync(zapLogger)
		os.Exit(1)
	}
	defer a.Close()

	var redisClient *redis.Client
	var archive conversation.Archive
	if cfg.RedisURL != "" {
		redisClient, err = conversation.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			zapLogger.Error("failed_to_connect_to_redis", zap.Error(err))
			_ = logger.Sync(zapLogger)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
			}
		}()
		archive = conversation.NewRedisArchive(redisClient, 0)
		zapLogger.Info("connected_to_redis")
	}

	sessions := conversation.NewManager(a.SystemPrompt, archive, zapLogger)

	var redisCheck, queueCheck handlers.CheckFunc
	if archive != nil {
		redisCheck = sessions.Ping
	}
	if a.Events != nil {
		queueCheck = a.Events.HealthCheck
	}
	health := handlers.NewHealthChecker().
		Add("database", a.DB.PingContext).
		Add("redis", redisCheck).
		Add("rabbitmq", queueCheck)

	router, err := newRouter(routerDeps{
		Sessions:       sessions,
		Runner:         a.Loop,
		Catalog:        a.Tools.Describe(),
		Health:         health,
		Redis:          redisClient,
		FrontendURL:    cfg.FrontendURL,
		RateLimit:      cfg.RateLimit,
		MaxBodyBytes:   cfg.MaxRequestBytes,
		RequestTimeout: cfg.RequestTimeout,
		Tracing:        tracingEnabled,
		Logger:         zapLogger,
	})
	if err != nil {
		zapLogger.Fatal("failed_to_build_router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go sweepSessions(ctx, sessions, cfg.SessionIdleTimeout, zapLogger)

	if a.Events != nil {
		dlqGC := queue.NewGarbageCollector(a.Events, dlqGCInterval, dlqRetention, zapLogger)
		go func() {
			if err := dlqGC.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zapLogger.Error("dlq_garbage_collector_stopped_with_error", zap.Error(err))
			}
		}()
		zapLogger.Info("started_dlq_garbage_collector",
			zap.Duration("interval", dlqGCInterval),
			zap.Duration("retention", dlqRetention),
		)
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("server_shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// sweepSessions evicts idle sessions until ctx is cancelled
func sweepSessions(ctx context.Context, sessions *conversation.Manager, maxIdle time.Duration, logger *zap.Logger) {
	if maxIdle <= 0 {
		return
	}
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Sweep(maxIdle); n > 0 {
				logger.Info("idle_sessions_evicted", zap.Int("count", n), zap.Int("live", sessions.Len()))
			}
		}
	}
}
