package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	billingapp "github.com/noro/control-plane/internal/application/billing"
	supportapp "github.com/noro/control-plane/internal/application/support"
	tenantapp "github.com/noro/control-plane/internal/application/tenant"
	"github.com/noro/control-plane/internal/infrastructure/auth"
	"github.com/noro/control-plane/internal/infrastructure/cache"
	"github.com/noro/control-plane/internal/infrastructure/config"
	"github.com/noro/control-plane/internal/infrastructure/event"
	"github.com/noro/control-plane/internal/infrastructure/logger"
	"github.com/noro/control-plane/internal/infrastructure/metrics"
	"github.com/noro/control-plane/internal/infrastructure/notifier"
	"github.com/noro/control-plane/internal/infrastructure/persistence"
	"github.com/noro/control-plane/internal/infrastructure/provisioning"
	"github.com/noro/control-plane/internal/infrastructure/queue"
	"github.com/noro/control-plane/internal/interfaces/http/handler"
	"github.com/noro/control-plane/internal/interfaces/http/middleware"
	"github.com/noro/control-plane/internal/interfaces/http/router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting control plane",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	// Repositories
	tenantRepo := persistence.NewGormTenantRepository(db.DB)
	membershipRepo := persistence.NewGormMembershipRepository(db.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	ledgerRepo := persistence.NewGormLedgerRepository(db.DB)
	jobRepo := persistence.NewGormJobRepository(db.DB)
	ticketRepo := persistence.NewGormTicketRepository(db.DB)
	auditRepo := persistence.NewGormAuditEventRepository(db.DB)

	// Shared dedupe state for webhook deliveries and queue side effects.
	storeFactory := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	idempotencyStore, err := storeFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// Event bus with the audit trail as a wildcard subscriber
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(event.NewAuditTrailHandler(auditRepo, log))

	m := metrics.New(prometheus.DefaultRegisterer)

	// Application services
	schemaProvisioner := provisioning.NewPostgresSchemaProvisioner(db.DB, cfg.Provisioning.SchemaTimeout, log)
	provisioningService := tenantapp.NewProvisioningService(tenantRepo, membershipRepo, schemaProvisioner, eventBus, m, log)
	membershipService := tenantapp.NewMembershipService(tenantRepo, membershipRepo, log)

	ledgerService := billingapp.NewLedgerService(ledgerRepo, db, log)
	webhookService := billingapp.NewWebhookService(cfg.Billing.StripeWebhookSecret, invoiceRepo, ledgerService, idempotencyStore, m, log)

	ticketService := supportapp.NewTicketService(ticketRepo, tenantRepo, jobRepo, eventBus, log)

	// Worker pool with the support follow-up and billing sweep handlers
	var pool *queue.WorkerPool
	if cfg.Queue.Enabled {
		pool = queue.NewWorkerPool(cfg.Queue, jobRepo, log, m)
		mailer := notifier.NewLogNotifier(log)
		jobHandlers := supportapp.NewTicketJobHandlers(ticketRepo, mailer, idempotencyStore, eventBus, cfg.Support.EscalationEmail, log)
		if err := jobHandlers.Register(pool); err != nil {
			log.Fatal("Failed to register job handlers", zap.Error(err))
		}
		billingJobs := billingapp.NewBillingJobHandlers(invoiceRepo, jobRepo, mailer, cfg.Billing.AlertsEmail, cfg.Billing.OverdueCheckPeriod, log)
		if err := billingJobs.Register(pool); err != nil {
			log.Fatal("Failed to register billing job handlers", zap.Error(err))
		}
		if err := pool.Start(context.Background()); err != nil {
			log.Fatal("Failed to start worker pool", zap.Error(err))
		}
		log.Info("Worker pool started", zap.Int("concurrency", cfg.Queue.Concurrency))

		// Seed the recurring overdue sweep; a no-op when this bucket's
		// job already sits in the table from a previous boot.
		if err := billingJobs.ScheduleOverdueCheck(context.Background(), time.Now()); err != nil {
			log.Error("Failed to schedule overdue invoice sweep", zap.Error(err))
		}
	} else {
		log.Warn("Queue disabled; support follow-up jobs will accumulate unprocessed")
	}

	tokenVerifier := auth.NewTokenVerifier(cfg.Auth)

	// HTTP surface
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()
	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))

	engine.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig()))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(limiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	engine.Use(middleware.Auth(middleware.AuthConfig{
		Verifier: tokenVerifier,
		SkipPaths: []string{
			"/healthz",
			"/metrics",
			"/api/v1/webhooks/stripe",
			"/api/v1/system/health",
			"/api/v1/system/info",
		},
		Logger: log,
	}))

	// Liveness probe and Prometheus scrape endpoint, outside API versioning
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.NewRouter(engine).
		Register(handler.NewTenantHandler(provisioningService, membershipService)).
		Register(handler.NewTicketHandler(ticketService)).
		Register(handler.NewBillingHandler(webhookService, ledgerService)).
		Register(handler.NewWebhookHandler(webhookService)).
		Register(handler.NewJobHandler(jobRepo)).
		Register(handler.NewSystemHandler(db)).
		Setup()

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
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if pool != nil {
		if err := pool.Stop(ctx); err != nil {
			log.Error("Worker pool forced to stop", zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}
