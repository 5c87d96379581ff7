package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	appmd "github.com/erp/portal/internal/application/masterdata"
	"github.com/erp/portal/internal/application/cachesync"
	"github.com/erp/portal/internal/infrastructure/cache"
	"github.com/erp/portal/internal/infrastructure/config"
	"github.com/erp/portal/internal/infrastructure/event"
	"github.com/erp/portal/internal/infrastructure/logger"
	"github.com/erp/portal/internal/infrastructure/persistence"
	"github.com/erp/portal/internal/infrastructure/scheduler"
	"github.com/erp/portal/internal/infrastructure/telemetry"
	"github.com/erp/portal/internal/infrastructure/upstream"
	"github.com/erp/portal/internal/interfaces/http/handler"
	"github.com/erp/portal/internal/interfaces/http/middleware"
	"github.com/erp/portal/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	appDisplayName  = "ERP Portal"
	appVersion      = "1.0.0"
	shutdownTimeout = 30 * time.Second
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry comes first so the logger can tee into the OTLP log exporter
	bootLog, err := logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	tel, err := telemetry.NewProvider(ctx, cfg.Telemetry, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}

	log := bootLog
	if tel.IsEnabled() {
		log, err = logger.New(&logger.Config{
			Level:      cfg.Log.Level,
			Format:     cfg.Log.Format,
			Output:     cfg.Log.Output,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		}, tel.ZapCore(logger.ParseLevel(cfg.Log.Level)))
		if err != nil {
			bootLog.Fatal("Failed to initialize logger", zap.Error(err))
		}
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting ERP Portal",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("upstream", cfg.Upstream.BaseURL),
	)

	// Database with zap-backed GORM logger
	gormLog := logger.NewGormLogger(log.Named("gorm"), logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfigFrom(cfg.Telemetry, "postgresql"), log); err != nil {
		log.Warn("Failed to register database tracing", zap.Error(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		if _, err := telemetry.RegisterDBPoolMetrics(tel.Meter(telemetry.MeterName), sqlDB); err != nil {
			log.Warn("Failed to register database pool metrics", zap.Error(err))
		}
	}

	// Redis is optional; without it snapshot invalidation stays process-local
	var (
		rdb         *redis.Client
		invalidator *cache.RedisSnapshotInvalidator
	)
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			_ = rdb.Close()
		}()
		invalidator = cache.NewRedisSnapshotInvalidator(rdb,
			cache.WithInvalidatorChannel(cfg.Redis.InvalidationChannel),
			cache.WithInvalidatorLogger(log.Named("invalidation")))
		log.Info("Redis snapshot invalidation enabled", zap.String("addr", cfg.Redis.Addr()))
	}

	// Upstream ERP client
	upstreamClient, err := upstream.NewClient(upstream.OptionsFromConfig(cfg.Upstream),
		upstream.WithLogger(log.Named("upstream")))
	if err != nil {
		log.Fatal("Failed to create upstream client", zap.Error(err))
	}

	// Event bus
	eventBus := event.NewInMemoryEventBus(log.Named("events"))
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// Background refresh pool
	refreshPool, err := scheduler.NewRefreshPool(scheduler.RefreshPoolConfigFrom(cfg.Scheduler), log.Named("refresh"))
	if err != nil {
		log.Fatal("Failed to create refresh pool", zap.Error(err))
	}
	if err := refreshPool.Start(context.Background()); err != nil {
		log.Fatal("Failed to start refresh pool", zap.Error(err))
	}

	syncMetrics, err := telemetry.NewSyncMetrics(tel.Meter(telemetry.MeterName))
	if err != nil {
		log.Fatal("Failed to create sync metrics", zap.Error(err))
	}

	// Entity caches and the master data service
	ledger := persistence.NewGormSyncLedgerRepository(db.DB)
	caches, err := appmd.BuildCaches(appmd.CacheDeps{
		DB:       db.DB,
		Upstream: upstreamClient,
		Ledger:   ledger,
		Locks:    cache.NewKeyLockRegistry(),
		Cache:    cfg.Cache,
		Logger:   log.Named("cachesync"),
		Options: []cachesync.Option{
			cachesync.WithRefreshPool(refreshPool),
			cachesync.WithEventPublisher(eventBus),
			cachesync.WithMetrics(syncMetrics),
		},
	})
	if err != nil {
		log.Fatal("Failed to build entity caches", zap.Error(err))
	}

	serviceOpts := []appmd.ServiceOption{appmd.WithServiceLogger(log.Named("masterdata"))}
	if invalidator != nil {
		serviceOpts = append(serviceOpts, appmd.WithInvalidator(invalidator))
	}
	masterDataService, err := appmd.NewService(ledger, caches, serviceOpts...)
	if err != nil {
		log.Fatal("Failed to create master data service", zap.Error(err))
	}

	// Peer invalidation: publish after local crawls, drop snapshots on peer crawls
	if invalidator != nil {
		eventBus.Subscribe(appmd.NewPeerInvalidationHandler(invalidator, log.Named("invalidation")))
		go func() {
			err := invalidator.Subscribe(ctx, func(msg cache.InvalidationMessage) {
				n := masterDataService.InvalidateLocal(msg.Entity, msg.Scope)
				log.Debug("Dropped snapshots on peer invalidation",
					zap.String("entity", msg.Entity),
					zap.String("scope", msg.Scope),
					zap.String("origin", msg.Origin),
					zap.Int("evicted", n))
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Snapshot invalidation subscription ended", zap.Error(err))
			}
		}()
	}

	// Warm-up keeps every cache fresh without waiting for a reader
	var warmup *scheduler.WarmupTrigger
	if cfg.Scheduler.WarmupEnabled {
		targets := make([]scheduler.WarmupTarget, 0, len(masterDataService.Caches()))
		for _, c := range masterDataService.Caches() {
			targets = append(targets, c)
		}
		warmupCfg := scheduler.DefaultWarmupTriggerConfig()
		warmupCfg.Interval = cfg.Scheduler.WarmupInterval
		warmup, err = scheduler.NewWarmupTrigger(warmupCfg, targets, log.Named("warmup"))
		if err != nil {
			log.Fatal("Failed to create warmup trigger", zap.Error(err))
		}
		if err := warmup.Start(context.Background()); err != nil {
			log.Fatal("Failed to start warmup trigger", zap.Error(err))
		}
	}

	// Sync event stream
	syncEvents := handler.NewSyncEventsHandler(masterDataService,
		handler.WithSSELogger(log.Named("sse")),
		handler.WithSSEHeartbeat(cfg.HTTP.SSEHeartbeat),
		handler.WithSSEMaxClients(cfg.HTTP.SSEMaxClients))
	if err := syncEvents.Start(); err != nil {
		log.Fatal("Failed to start sync event stream", zap.Error(err))
	}

	// HTTP engine
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Warn("Invalid trusted proxies", zap.Error(err))
	}

	httpMetrics, err := middleware.HTTPMetrics(tel.Meter(middleware.HTTPMeterName))
	if err != nil {
		log.Fatal("Failed to create HTTP metrics", zap.Error(err))
	}

	engine.Use(
		logger.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     tel.IsEnabled(),
		}),
		middleware.SpanAttributes(),
		middleware.SpanErrorMarker(),
		httpMetrics,
		middleware.CORS(cfg.HTTP.CORSAllowOrigins),
		middleware.Secure(),
		middleware.BodyLimit(cfg.HTTP.MaxBodyBytes),
	)

	var mutating []gin.HandlerFunc
	if cfg.HTTP.SyncRateLimit > 0 {
		mutating = append(mutating, middleware.RateLimit(
			middleware.NewRateLimiter(cfg.HTTP.SyncRateLimit, cfg.HTTP.SyncRateBurst)))
	}

	health := handler.NewHealthHandler(appDisplayName, appVersion).WithCheck("database", db)
	if rdb != nil {
		health.WithCheck("redis", handler.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}))
	}

	router.Portal(engine, router.Handlers{
		MasterData: handler.NewMasterDataHandler(masterDataService),
		Sync:       handler.NewSyncHandler(masterDataService),
		Cache:      handler.NewCacheHandler(masterDataService),
		Events:     syncEvents,
		Health:     health,
	}, mutating...)

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Streams first so Shutdown is not held open by SSE clients
	syncEvents.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if warmup != nil {
		if err := warmup.Stop(shutdownCtx); err != nil {
			log.Warn("Warmup trigger did not stop cleanly", zap.Error(err))
		}
	}
	if err := refreshPool.Stop(shutdownCtx); err != nil {
		log.Warn("Refresh pool did not drain", zap.Error(err))
	}
	if invalidator != nil {
		_ = invalidator.Close()
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Warn("Event bus did not stop cleanly", zap.Error(err))
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		log.Warn("Telemetry shutdown failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
