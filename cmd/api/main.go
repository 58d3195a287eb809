// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reportriser/backend/internal/admin"
	"github.com/reportriser/backend/internal/analytics"
	"github.com/reportriser/backend/internal/apikey"
	"github.com/reportriser/backend/internal/artifact"
	"github.com/reportriser/backend/internal/audit"
	"github.com/reportriser/backend/internal/auth"
	"github.com/reportriser/backend/internal/billing"
	"github.com/reportriser/backend/internal/config"
	"github.com/reportriser/backend/internal/core"
	"github.com/reportriser/backend/internal/entitlement"
	"github.com/reportriser/backend/internal/health"
	"github.com/reportriser/backend/internal/middleware"
	"github.com/reportriser/backend/internal/notify"
	"github.com/reportriser/backend/internal/report"
	"github.com/reportriser/backend/internal/server"
	"github.com/reportriser/backend/internal/site"
	"github.com/reportriser/backend/internal/user"
	"github.com/reportriser/backend/internal/vitals"
)

const (
	drainDelay = 5 * time.Second

	magicLinksPerHour = 5
	auditsPerMinute   = 10
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.GetKeyID(),
	)

	metrics := core.NewMetrics()
	metrics.Register(redis.Collectors()...)

	store, err := artifact.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	logger.Info("artifact store ready", "type", cfg.Storage.Type)

	userRepo := user.NewRepository(db.DB)
	engine := entitlement.NewEngine(entitlement.EngineConfig{
		Registry: site.NewRegistry(db.DB),
		Accounts: userRepo,
		Logger:   logger,
		Metrics:  metrics,
	})

	userSvc := user.NewService(userRepo, engine)
	userHandler := user.NewHandler(userSvc)

	mailer := newMailer(cfg.Mail, logger)
	accountMailer := notify.NewAccountMailer(mailer, userSvc, cfg.Mail.DashboardURL)

	authSvc := auth.NewService(auth.ServiceConfig{
		Repo:      auth.NewRepository(db.DB),
		JWT:       jwtManager,
		Users:     userSvc,
		Redis:     redis.Client,
		Mailer:    notify.NewMagicLinkSender(mailer),
		LinkTTL:   cfg.Auth.MagicLinkTTL,
		VerifyURL: cfg.Auth.VerifyURL,
		Logger:    logger,
	})
	authHandler := auth.NewHandler(authSvc)

	apiKeySvc := apikey.NewService(apikey.NewRepository(db.DB), userSvc, logger)
	apiKeyHandler := apikey.NewHandler(apiKeySvc)

	siteHandler := site.NewHandler(site.NewService(site.NewRepository(db.DB), userSvc, engine))

	vitalsProvider := vitals.NewFallbackProvider(
		vitals.NewCachedProvider(
			vitals.NewPageSpeedClient(vitals.PageSpeedOptions{
				APIKey:   cfg.PageSpeed.APIKey,
				BaseURL:  cfg.PageSpeed.BaseURL,
				Strategy: cfg.PageSpeed.Strategy,
				Timeout:  cfg.PageSpeed.Timeout,
			}),
			vitals.CacheOptions{
				Size:        cfg.Vitals.Size,
				TTL:         cfg.Vitals.TTL,
				Redis:       redis.Client,
				RedisPrefix: cfg.Vitals.RedisPrefix,
				Logger:      logger,
				Metrics:     metrics,
			},
		),
		logger,
		metrics,
	)

	reportRepo := report.NewRepository(db.DB)
	compositor := report.NewCompositor(report.CompositorConfig{WatermarkText: cfg.Report.WatermarkText})
	renderer := report.NewPDFRenderer(report.PDFOptions{ProductName: cfg.Report.ProductName})
	reportHandler := report.NewHandler(report.NewService(report.ServiceConfig{
		Repo:              reportRepo,
		TxRepo:            report.NewRepository,
		Deliverer:         accountMailer,
		Accounts:          userSvc,
		Engine:            engine,
		Vitals:            vitalsProvider,
		Analytics:         analytics.NewSampleProvider(nil),
		Compositor:        compositor,
		Sink:              report.NewArtifactSink(renderer, store),
		Metrics:           metrics,
		Logger:            logger,
		DefaultOrderValue: cfg.Report.DefaultOrderValue,
		HistoryLimit:      cfg.Report.HistoryLimit,
	}))

	demoHandler := report.NewDemoHandler(report.NewDemo(compositor, renderer))

	auditHandler := audit.NewHandler(audit.NewService(vitalsProvider, audit.NewHTTPPageChecker(nil), logger))

	billingHandler := billing.NewHandler(billing.HandlerConfig{
		Service: billing.NewService(billing.ServiceConfig{
			Tiers:       engine,
			Links:       userSvc,
			Notifier:    accountMailer,
			TierPrices:  cfg.Billing.TierPrices,
			DefaultTier: cfg.Billing.DefaultTier,
			Logger:      logger,
		}),
		Secret:    cfg.Billing.WebhookSecret,
		Tolerance: cfg.Billing.WebhookTolerance,
	})

	healthHandler := health.NewHandler(
		health.Check{Name: "database", Checker: db},
		health.Check{Name: "redis", Checker: redis},
		health.Check{Name: "artifact_store", Checker: store},
	)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:    db.Stats,
		RedisStats: redis.PoolStats,
		DBPing:     db.Ping,
		RedisPing:  redis.Ping,
		Users:      userSvc,
		Reports:    reportRepo,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics(metrics))
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.PerMinute(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
			),
			FailOpen: true,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	if cfg.Metrics.Enabled {
		router.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	authenticator := middleware.Authenticator(authSvc)
	adminOnly := middleware.RequireAdmin
	tiered := middleware.TieredRateLimiter(
		redis.Client,
		middleware.TiersFromConfig(cfg.RateLimit.Tiers),
	)
	reportAuth := func(next http.Handler) http.Handler {
		return middleware.APIKeyAuthenticator(apiKeySvc, authSvc)(tiered(next))
	}

	linkLimiter := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Limit:    middleware.PerHour(magicLinksPerHour, magicLinksPerHour),
		KeyFunc:  middleware.KeyByIP,
		FailOpen: true,
	}).Handler
	auditLimiter := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Limit:    middleware.PerMinute(auditsPerMinute, auditsPerMinute),
		KeyFunc:  middleware.KeyByIP,
		FailOpen: true,
	}).Handler

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator, linkLimiter)
		auditHandler.RegisterRoutes(r, auditLimiter)
		demoHandler.RegisterRoutes(r, auditLimiter)
		billingHandler.RegisterRoutes(r)

		userHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		siteHandler.RegisterRoutes(r, authenticator)
		apiKeyHandler.RegisterRoutes(r, authenticator)
		reportHandler.RegisterRoutes(r, reportAuth)
		adminHandler.RegisterRoutes(r, authenticator, adminOnly)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func newMailer(cfg config.MailConfig, logger *slog.Logger) notify.Mailer {
	if cfg.ResendAPIKey == "" {
		logger.Warn("no mail provider configured, outgoing mail will be logged")
		return notify.NewLogMailer(logger)
	}

	return notify.NewResendMailer(notify.ResendOptions{
		APIKey:  cfg.ResendAPIKey,
		BaseURL: cfg.BaseURL,
		From:    cfg.From,
		Timeout: cfg.Timeout,
	})
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
