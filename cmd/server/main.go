package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	autojournalapp "github.com/erp/gridsync/internal/application/autojournal"
	closingapp "github.com/erp/gridsync/internal/application/closing"
	"github.com/erp/gridsync/internal/application/gridsession"
	"github.com/erp/gridsync/internal/infrastructure/cache"
	"github.com/erp/gridsync/internal/infrastructure/config"
	"github.com/erp/gridsync/internal/infrastructure/event"
	"github.com/erp/gridsync/internal/infrastructure/logger"
	"github.com/erp/gridsync/internal/infrastructure/migration"
	"github.com/erp/gridsync/internal/infrastructure/persistence"
	"github.com/erp/gridsync/internal/infrastructure/telemetry"
	"github.com/erp/gridsync/internal/interfaces/http/handler"
	"github.com/erp/gridsync/internal/interfaces/http/middleware"
	"github.com/erp/gridsync/internal/interfaces/http/router"
	"github.com/erp/gridsync/migrations"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(logger.ForEnvironment(cfg.App.Env, cfg.Log.Level, cfg.Log.Format, cfg.Log.Output))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx := context.Background()

	// Export logs over OTLP alongside the local output
	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log exporter", zap.Error(err))
	}
	defer shutdown(log, "log exporter", logProvider.Shutdown)
	log = logProvider.Bridge(log, zapcore.InfoLevel)

	log.Info("Starting grid server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Tracing
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer shutdown(log, "tracer", tracerProvider.Shutdown)

	// Metrics
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter", zap.Error(err))
	}
	defer shutdown(log, "meter", meterProvider.Shutdown)
	meter := meterProvider.Meter(cfg.Telemetry.ServiceName)

	// Continuous profiling
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilingAddress,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	// Initialize database connection with zap-backed GORM logger and tracing
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	dbSystem := "postgresql"
	if cfg.Database.Driver == config.DriverSQLite {
		dbSystem = "sqlite"
	}
	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithGormLogger(gormLog),
		persistence.WithTracing(telemetry.DBTracingConfig{
			Enabled:         cfg.Telemetry.DBTraceEnabled,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:        dbSystem,
		}, log),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))

	if cfg.Database.AutoMigrate {
		if err := migrate(db, cfg.Database.Driver, log); err != nil {
			log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	// Screens
	registry := gridsession.NewRegistry(
		closingapp.NewScreen(persistence.NewGormClosingRepository(db.DB), log),
		autojournalapp.NewScreen(persistence.NewGormAutoJournalRepository(db.DB), log),
	)

	// Committed rows for the read API
	store, err := cache.NewCommittedStoreFactory(cfg.Store, cfg.Redis, cache.WithLogger(log)).Create(ctx)
	if err != nil {
		log.Fatal("Failed to create committed store", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing committed store", zap.Error(err))
		}
	}()

	// Event bus: committed batches feed the committed store
	eventBus := event.NewInMemoryEventBus(log)
	committedHandler := gridsession.NewCommittedStoreHandler(store, log)
	eventBus.Subscribe(committedHandler)
	log.Info("Event handlers registered", zap.Strings("committed_store_events", committedHandler.EventTypes()))
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer shutdown(log, "event bus", eventBus.Stop)

	// Session manager
	gridMetrics, err := telemetry.NewGridMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create grid metrics", zap.Error(err))
	}
	manager := gridsession.NewManager(registry, gridsession.ManagerConfig{
		IdleTimeout:  cfg.Session.IdleTimeout,
		ReapInterval: cfg.Session.ReapInterval,
		MaxSessions:  cfg.Session.MaxSessions,
		CallTimeout:  cfg.Session.CallTimeout,
	}, log,
		gridsession.WithPublisher(eventBus),
		gridsession.WithMetrics(gridMetrics),
	)
	if err := manager.Start(ctx); err != nil {
		log.Fatal("Failed to start session manager", zap.Error(err))
	}
	// Stopped before the event bus so the last commits are still recorded
	defer shutdown(log, "session manager", manager.Stop)

	// Initialize HTTP handlers
	sessionHandler := handler.NewSessionHandler(manager)
	screenHandler := handler.NewScreenHandler(registry, store)
	systemHandler := handler.NewSystemHandler(cfg.App.Name, telemetry.ServiceVersion, manager,
		handler.HealthCheck{Name: "database", Check: func(context.Context) error { return db.Ping() }},
	)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	httpMetrics, err := middleware.HTTPMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create HTTP metrics", zap.Error(err))
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Tracing - Span per request, then attributes and error status
	// 4. Logger - Log requests
	// 5. Security - Add security headers
	// 6. CORS - Handle cross-origin requests
	// 7. BodyLimit - Limit request body size
	// 8. Metrics and profiling labels
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.TracingAttributeInjector())
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	engine.Use(httpMetrics)
	engine.Use(middleware.Profiling(middleware.ProfilingConfig{
		Enabled:   profiler.IsEnabled(),
		SkipPaths: middleware.DefaultProfilingConfig().SkipPaths,
	}))

	// Health check endpoint (outside API versioning)
	engine.GET("/health", systemHandler.Health)

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(router.SessionRoutes(sessionHandler)).
		Register(router.ScreenRoutes(screenHandler)).
		Register(router.SystemRoutes(systemHandler))
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr), zap.Strings("screens", screenNames(registry)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("Server exited gracefully")
}

// migrate creates the schema. Postgres runs the embedded SQL migrations;
// sqlite has no migration driver and is built from the models.
func migrate(db *persistence.Database, driver string, log *zap.Logger) error {
	if driver == config.DriverSQLite {
		return db.AutoMigrate()
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	m, err := migration.NewEmbedded(sqlDB, migrations.FS, log)
	if err != nil {
		return err
	}
	// closing the migrator would close the shared connection pool
	return m.Up()
}

func shutdown(log *zap.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Error("Error stopping "+name, zap.Error(err))
	}
}

func screenNames(registry *gridsession.Registry) []string {
	screens := registry.Screens()
	names := make([]string, 0, len(screens))
	for _, s := range screens {
		names = append(names, s.Name)
	}
	return names
}
