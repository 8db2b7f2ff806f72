package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/shift-ledger-api/api/swagger"
	"github.com/noah-isme/shift-ledger-api/internal/handler"
	"github.com/noah-isme/shift-ledger-api/internal/middleware"
	"github.com/noah-isme/shift-ledger-api/internal/repository"
	"github.com/noah-isme/shift-ledger-api/internal/service"
	"github.com/noah-isme/shift-ledger-api/pkg/cache"
	"github.com/noah-isme/shift-ledger-api/pkg/config"
	"github.com/noah-isme/shift-ledger-api/pkg/database"
	"github.com/noah-isme/shift-ledger-api/pkg/export"
	"github.com/noah-isme/shift-ledger-api/pkg/jobs"
	"github.com/noah-isme/shift-ledger-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/shift-ledger-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/shift-ledger-api/pkg/middleware/requestid"
)

// @title Shift Ledger API
// @version 1.0.0
// @description Timecard submission, approval, auto-approval, disputes and payouts.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, stats cache and notifications disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	timecardRepo := repository.NewTimecardRepository(db)
	disputeRepo := repository.NewDisputeRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	statsRepo := repository.NewProviderStatsRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)

	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(redisClient, "shift-ledger"),
		metrics,
		cfg.ProviderStats.CacheTTL,
		logger.Component(logr, "cache"),
		redisClient != nil,
	)
	statsSvc := service.NewProviderStatsService(statsRepo, cacheSvc, cfg.ProviderStats.CacheTTL, logger.Component(logr, "provider-stats"))

	notifier := service.NewNotificationService(
		repository.NewPubSubRepository(redisClient),
		cfg.Notifications.ChannelPrefix,
		metrics,
		logger.Component(logr, "notifications"),
		cfg.Notifications.Enabled && redisClient != nil,
	)
	notifyQueue := jobs.NewQueue("notifications", notifier.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: 2,
		RetryDelay: time.Second,
		Logger:     logger.Component(logr, "notifications-queue"),
		OnGiveUp:   notifier.GiveUp,
	})
	notifier.SetQueue(notifyQueue)

	// The payout handler closes over payments, which is built once the
	// timecard service that marks cards paid exists.
	var payments *service.PaymentService
	payoutQueue := jobs.NewQueue("payouts", func(ctx context.Context, job jobs.Job) error {
		return payments.HandleJob(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Payouts.Workers,
		MaxRetries: cfg.Payouts.MaxRetries,
		RetryDelay: cfg.Payouts.RetryDelay,
		Logger:     logger.Component(logr, "payouts-queue"),
		OnGiveUp: func(job jobs.Job, err error) {
			payments.GiveUp(job, err)
		},
	})

	timecardOpts := []service.TimecardServiceOption{
		service.WithTimecardEvents(notifier),
		service.WithTimecardMetrics(metrics),
		service.WithProviderStats(statsSvc),
	}
	if cfg.Payouts.AutoPayout {
		timecardOpts = append(timecardOpts, service.WithPayoutDispatcher(payoutQueue))
	}
	timecardSvc := service.NewTimecardService(timecardRepo, auditRepo, validate, logger.Component(logr, "timecards"), timecardOpts...)
	payments = service.NewPaymentService(timecardRepo, timecardSvc, statsSvc, payoutRepo, metrics, logger.Component(logr, "payments"))
	payments.SetQueue(payoutQueue)

	disputeSvc := service.NewDisputeService(disputeRepo, timecardRepo, auditRepo, notifier, statsSvc, metrics, validate,
		logger.Component(logr, "disputes"), service.DisputeServiceConfig{AllowPaidReopen: cfg.Disputes.AllowPaidReopen})
	statementSvc := service.NewStatementService(timecardRepo, export.NewCSVExporter(), export.NewPDFExporter(), logger.Component(logr, "statements"))
	identitySvc := service.NewIdentityService(service.IdentityConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	})
	scheduler := service.NewDeadlineScheduler(timecardRepo, timecardSvc, metrics, logger.Component(logr, "auto-approval"), service.DeadlineSchedulerConfig{
		Interval:  cfg.AutoApproval.SweepInterval,
		BatchSize: cfg.AutoApproval.BatchSize,
	})

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	notifyQueue.Start(workerCtx)
	payoutQueue.Start(workerCtx)
	if cfg.AutoApproval.Enabled {
		scheduler.Start(workerCtx)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	checks := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return pingRedis(ctx, redisClient) }
	}
	metricsHandler := handler.NewMetricsHandler(metrics, checks, scheduler.LastSuccess)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Handlers{
		Timecards: handler.NewTimecardHandler(timecardSvc, payments, statementSvc),
		Disputes:  handler.NewDisputeHandler(disputeSvc),
		Admin:     handler.NewAdminHandler(scheduler, payments),
	}, identitySvc)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "auto_approval", cfg.AutoApproval.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("http shutdown failed", zap.Error(err))
	}
	scheduler.Stop()
	payoutQueue.Stop()
	notifyQueue.Stop()
	logr.Info("server stopped")
}

func pingRedis(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}
