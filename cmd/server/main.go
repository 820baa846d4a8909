package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appintegration "github.com/flocon/backend/internal/application/integration"
	"github.com/flocon/backend/internal/domain/costing"
	"github.com/flocon/backend/internal/infrastructure/auth"
	"github.com/flocon/backend/internal/infrastructure/cache"
	"github.com/flocon/backend/internal/infrastructure/config"
	"github.com/flocon/backend/internal/infrastructure/logger"
	"github.com/flocon/backend/internal/infrastructure/persistence"
	"github.com/flocon/backend/internal/infrastructure/quickbooks"
	"github.com/flocon/backend/internal/infrastructure/scheduler"
	"github.com/flocon/backend/internal/infrastructure/storage"
	"github.com/flocon/backend/internal/infrastructure/telemetry"
	"github.com/flocon/backend/internal/interfaces/http/handler"
	"github.com/flocon/backend/internal/interfaces/http/middleware"
	"github.com/flocon/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//	@title			Flocon Sync API
//	@version		1.0
//	@description	Construction billing sync and job costing against QuickBooks Online

//	@host		localhost:8080
//	@BasePath	/api/v1

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := logger.ConfigFromSettings(cfg.Log)
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	// Telemetry providers fall back to no-ops when disabled
	tp, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	mp, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	lp, err := telemetry.NewLoggerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}

	// Re-create the logger so records are also exported over OTLP
	if cfg.Telemetry.Enabled {
		if exported, err := logger.New(logCfg, lp.Core(logger.ParseLevel(cfg.Log.Level))); err == nil {
			log = exported
		} else {
			log.Warn("Failed to attach OTLP log exporter", zap.Error(err))
		}
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	profiler, err := telemetry.NewProfiler(cfg.Telemetry, log)
	if err != nil {
		log.Warn("Continuous profiling disabled", zap.Error(err))
	} else if profiler.IsEnabled() {
		tp.EnableSpanProfiles()
	}

	log.Info("Starting Flocon sync service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("realm_id", cfg.QuickBooks.RealmID),
		zap.String("version", telemetry.Version),
	)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := telemetry.RegisterDBTracing(db.DB, cfg.Telemetry, log); err != nil {
		log.Warn("Failed to register database tracing", zap.Error(err))
	}
	poolMetrics, err := telemetry.RegisterPoolMetrics(mp.Meter("flocon.db"), db.Stats)
	if err != nil {
		log.Fatal("Failed to register database pool metrics", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Token storage and the refresh lock
	var cipher persistence.TokenCipher
	if cfg.Security.TokenEncryptionKey != "" {
		sc, err := auth.NewSecretboxCipher(cfg.Security.TokenEncryptionKey)
		if err != nil {
			log.Fatal("Failed to initialize token cipher", zap.Error(err))
		}
		cipher = sc
	} else {
		log.Warn("Token encryption key not set, OAuth tokens are stored in plaintext")
	}
	tokenRepo := persistence.NewGormTokenRepository(db.DB, cipher)

	locker, closeLocker, err := cache.NewRealmLockerFactory(cfg.Redis, cache.WithLogger(log)).Create(ctx)
	if err != nil {
		log.Fatal("Failed to initialize realm lock", zap.Error(err))
	}

	stateSigner, err := auth.NewStateSigner(cfg.Security)
	if err != nil {
		log.Fatal("Failed to initialize OAuth state signer", zap.Error(err))
	}
	oauthClient, err := quickbooks.NewOAuthClient(quickbooks.NewOAuthConfig(&cfg.QuickBooks), nil)
	if err != nil {
		log.Fatal("Failed to initialize OAuth client", zap.Error(err))
	}

	syncMetrics, err := telemetry.NewSyncMetrics(mp.Meter("flocon.sync"))
	if err != nil {
		log.Fatal("Failed to initialize sync metrics", zap.Error(err))
	}

	tokens := appintegration.NewTokenManager(
		tokenRepo,
		oauthClient,
		stateSigner,
		locker,
		syncMetrics,
		log,
		appintegration.TokenManagerConfig{
			RefreshWindow: cfg.QuickBooks.RefreshWindow,
			DefaultScopes: cfg.QuickBooks.Scopes,
		},
	)

	// QuickBooks client and gateways
	qbClient, err := quickbooks.NewClient(quickbooks.NewConfig(&cfg.QuickBooks), tokens, nil, log)
	if err != nil {
		log.Fatal("Failed to initialize QuickBooks client", zap.Error(err))
	}
	qbClient.WithObserver(syncMetrics)

	// Optional raw report archive
	var archive *storage.S3ReportArchive
	if cfg.Archive.Enabled {
		archive, err = storage.NewS3ReportArchive(ctx, &cfg.Archive, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to initialize report archive", zap.Error(err))
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			log.Fatal("Failed to prepare report archive bucket", zap.Error(err), zap.String("bucket", archive.Bucket()))
		}
	}

	// Application services
	realmID := cfg.QuickBooks.RealmID
	projectRepo := persistence.NewGormProjectRepository(db.DB)
	payAppRepo := persistence.NewGormPayApplicationRepository(db.DB)
	runner := appintegration.NewBatchRunner(cfg.Sync.BatchDelay, log, syncMetrics)

	engine := appintegration.NewSyncEngine(
		realmID,
		projectRepo,
		persistence.NewGormCompanyRepository(db.DB),
		persistence.NewGormPartyResolver(db.DB),
		quickbooks.NewPartyGateway(qbClient),
		quickbooks.NewJobGateway(qbClient),
		runner,
		log,
	)
	invoices := appintegration.NewInvoiceSyncer(
		realmID,
		payAppRepo,
		projectRepo,
		quickbooks.NewInvoiceGateway(qbClient),
		runner,
		appintegration.InvoiceSyncerConfig{
			ServiceItemName: cfg.Sync.ServiceItemName,
			IncomeSubType:   cfg.Sync.IncomeAccountType,
			LineDescription: cfg.Sync.InvoiceLineTemplate,
		},
		log,
	)

	classifier, err := costClassifier(cfg.Sync)
	if err != nil {
		log.Fatal("Invalid cost classification settings", zap.Error(err))
	}
	var reportArchive appintegration.ReportArchive
	if archive != nil {
		reportArchive = archive
	}
	costs := appintegration.NewCostService(
		realmID,
		quickbooks.NewReportGateway(qbClient),
		projectRepo,
		reportArchive,
		classifier,
		costing.AccountingBasis(cfg.Sync.AccountingBasis),
		log,
	)
	billingService := appintegration.NewBillingService(
		persistence.NewGormBillingTransactionScope(db.DB),
		payAppRepo,
		runner,
		log,
	)
	syncService := appintegration.NewSyncService(realmID, tokens, engine, invoices, costs, billingService, log)

	// Background sync queue and the nightly trigger
	var syncScheduler *scheduler.SyncScheduler
	var cronTrigger *scheduler.CronTrigger
	if cfg.Scheduler.Enabled {
		syncScheduler, err = scheduler.NewSyncScheduler(
			scheduler.ConfigFromSettings(cfg.Scheduler),
			scheduler.NewServiceExecutor(syncService),
			log,
		)
		if err != nil {
			log.Fatal("Failed to create sync scheduler", zap.Error(err))
		}
		if err := syncScheduler.Start(ctx); err != nil {
			log.Fatal("Failed to start sync scheduler", zap.Error(err))
		}
		cronTrigger = scheduler.NewCronTrigger(scheduler.CronTriggerConfigFromSettings(cfg.Scheduler), syncScheduler, log)
		if err := cronTrigger.Start(ctx); err != nil {
			log.Fatal("Failed to start cron trigger", zap.Error(err))
		}
	}

	// HTTP handlers
	costOpts := []handler.CostHandlerOption{}
	if archive != nil {
		costOpts = append(costOpts, handler.WithArchivePresigner(archive, 0))
	}
	var jobs handler.JobScheduler
	if syncScheduler != nil {
		jobs = syncScheduler
	}
	health := handler.NewHealthHandler(telemetry.Version).
		AddCheck("database", db.Ping)
	if redisLocker, ok := locker.(*cache.RedisRealmLocker); ok {
		health.AddCheck("redis", redisLocker.Ping)
	}
	handlers := router.Handlers{
		OAuth:     handler.NewOAuthHandler(syncService),
		Sync:      handler.NewSyncHandler(syncService),
		PayApps:   handler.NewPayAppHandler(syncService),
		Costs:     handler.NewCostHandler(syncService, costOpts...),
		Billing:   handler.NewBillingHandler(syncService),
		Scheduler: handler.NewSchedulerHandler(jobs),
		Health:    health,
	}

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	httpEngine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := httpEngine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	httpMetrics, err := middleware.HTTPMetrics(mp.Meter("http.server"))
	if err != nil {
		log.Fatal("Failed to initialize HTTP metrics", zap.Error(err))
	}
	tracingCfg := middleware.DefaultTracingConfig()
	tracingCfg.Enabled = cfg.Telemetry.Enabled
	tracingCfg.RealmID = realmID
	if cfg.Telemetry.ServiceName != "" {
		tracingCfg.ServiceName = cfg.Telemetry.ServiceName
	}

	// Apply middleware stack in order:
	// 1. Recovery - Convert panics to 500
	// 2. RequestID - Generate/propagate request ID
	// 3. Tracing - Server span, then request attributes and error status
	// 4. Metrics - Request count, duration and in-flight gauge
	// 5. Logger - Request logging with request_id and realm_id
	// 6. CORS, security headers and body size limit
	httpEngine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		middleware.TracingWithConfig(tracingCfg),
		middleware.TracingAttributeInjector(realmID),
		middleware.SpanErrorMarker(),
		httpMetrics,
		logger.GinMiddleware(log, realmID),
		middleware.CORSWithConfig(middleware.CORSConfigFromSettings(cfg.HTTP)),
		middleware.Secure(),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst)
	idempotencyStore := cache.IdempotencyStoreFor(locker)
	router.NewRouter(httpEngine).
		RegisterSyncAPI(handlers,
			middleware.RateLimit(limiter),
			middleware.Idempotency(idempotencyStore, cfg.HTTP.IdempotencyTTL),
		).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        httpEngine,
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

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if cronTrigger != nil {
		if err := cronTrigger.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping cron trigger", zap.Error(err))
		}
	}
	if syncScheduler != nil {
		if err := syncScheduler.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping sync scheduler", zap.Error(err))
		}
	}
	if err := idempotencyStore.Close(); err != nil {
		log.Error("Error closing idempotency store", zap.Error(err))
	}
	if err := closeLocker(); err != nil {
		log.Error("Error closing realm lock", zap.Error(err))
	}
	if err := poolMetrics.Unregister(); err != nil {
		log.Error("Error unregistering pool metrics", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	if profiler != nil {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}
	for name, shutdown := range map[string]func(context.Context) error{
		"tracer": tp.Shutdown,
		"meter":  mp.Shutdown,
		"logger": lp.Shutdown,
	} {
		if err := shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down telemetry provider", zap.String("provider", name), zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}

// costClassifier builds the account classifier from the code ranges and
// keywords in the settings; empty lists keep the defaults
func costClassifier(s config.SyncConfig) (costing.AccountClassifier, error) {
	ranges, err := costing.ParseCodeRanges(s.CostCodeRanges)
	if err != nil {
		return nil, err
	}
	var keywords []string
	if len(s.CostKeywords) > 0 {
		keywords = s.CostKeywords
	}
	return costing.NewRangeKeywordClassifier(ranges, keywords), nil
}
