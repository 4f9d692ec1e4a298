package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sevatrack/sevatrack/internal/app"
	"github.com/sevatrack/sevatrack/internal/auth"
	"github.com/sevatrack/sevatrack/internal/authz"
	"github.com/sevatrack/sevatrack/internal/beneficiaries"
	"github.com/sevatrack/sevatrack/internal/donations"
	"github.com/sevatrack/sevatrack/internal/observability"
	"github.com/sevatrack/sevatrack/internal/platform/cache"
	"github.com/sevatrack/sevatrack/internal/platform/db"
	"github.com/sevatrack/sevatrack/internal/regions"
	"github.com/sevatrack/sevatrack/internal/schemes"
	"github.com/sevatrack/sevatrack/internal/shared"
	"github.com/sevatrack/sevatrack/internal/users"
	"github.com/sevatrack/sevatrack/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if err := run(ctx, stop, cfg, logger); err != nil {
		logger.Error("startup failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	// A catalog drift between the permission and level tables must stop
	// the boot, not surface as request-time denials.
	catalog := authz.DefaultCatalog()
	if err := catalog.Validate(); err != nil {
		return fmt.Errorf("role catalog: %w", err)
	}

	metrics := observability.NewMetrics()

	assignments := authz.NewAssignmentRepository(dbpool)
	resolver := authz.NewResolver(assignments, catalog)
	engine := authz.NewEngine(resolver, catalog)
	authzMW := authz.Middleware{Engine: engine, Logger: logger, Observer: metrics}

	limiter := authz.NewRedisLimiter(redisClient, "sevatrack:attempts")

	sessionManager := shared.NewSessionManager(redisClient, "sevatrack_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(dbpool)
	reviewRecorder := shared.NewReviewRecorder(dbpool, logger)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		return fmt.Errorf("job client: %w", err)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(auth.ServiceConfig{
		Repo:          authRepo,
		Redis:         redisClient,
		Limiter:       limiter,
		Sender:        jobClient,
		Logger:        logger,
		OTPTTL:        cfg.OTPTTL,
		AttemptWindow: cfg.OTPAttemptWindow,
		MaxAttempts:   cfg.OTPMaxAttempts,
	})
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, engine, limiter, auditLogger, sessionManager, logger)
	usersHandler := users.NewHandler(logger, usersService, authzMW)

	regionsRepo := regions.NewRepository(dbpool)
	regionsHandler := regions.NewHandler(logger, regionsRepo, authzMW)

	beneficiariesRepo := beneficiaries.NewRepository(dbpool)
	beneficiariesService := beneficiaries.NewService(beneficiariesRepo, engine, resolver, logger)
	beneficiariesHandler := beneficiaries.NewHandler(logger, beneficiariesService, authzMW)

	schemesRepo := schemes.NewRepository(dbpool)
	schemesService := schemes.NewService(schemesRepo, beneficiariesRepo, engine, resolver, reviewRecorder, logger)
	schemesHandler := schemes.NewHandler(logger, schemesService, authzMW)

	donationsRepo := donations.NewRepository(dbpool)
	donationsService := donations.NewService(donations.ServiceConfig{
		Repo:        donationsRepo,
		Engine:      engine,
		Resolver:    resolver,
		Idempotency: idempotencyStore,
		Receipts:    jobClient,
		Redis:       redisClient,
		Logger:      logger,
	})
	donationsHandler := donations.NewHandler(logger, donationsService, authzMW)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		SessionManager:       sessionManager,
		CSRFManager:          csrfManager,
		AuthHandler:          authHandler,
		UsersHandler:         usersHandler,
		RegionsHandler:       regionsHandler,
		BeneficiariesHandler: beneficiariesHandler,
		SchemesHandler:       schemesHandler,
		DonationsHandler:     donationsHandler,
		Metrics:              metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return nil
}
