package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/sevatrack/sevatrack/internal/app"
	"github.com/sevatrack/sevatrack/internal/authz"
	"github.com/sevatrack/sevatrack/internal/donations"
	"github.com/sevatrack/sevatrack/internal/observability"
	"github.com/sevatrack/sevatrack/internal/platform/cache"
	"github.com/sevatrack/sevatrack/internal/platform/db"
	"github.com/sevatrack/sevatrack/internal/shared"
	"github.com/sevatrack/sevatrack/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("worker failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
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

	catalog := authz.DefaultCatalog()
	if err := catalog.Validate(); err != nil {
		return fmt.Errorf("role catalog: %w", err)
	}

	metrics := observability.NewMetrics()

	assignments := authz.NewAssignmentRepository(dbpool)
	resolver := authz.NewResolver(assignments, catalog)
	engine := authz.NewEngine(resolver, catalog)

	mailer := jobs.SMTPMailer{
		Addr: net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort)),
		From: cfg.SMTPFrom,
	}

	donationsRepo := donations.NewRepository(dbpool)
	donationsService := donations.NewService(donations.ServiceConfig{
		Repo:     donationsRepo,
		Engine:   engine,
		Resolver: resolver,
		Redis:    redisClient,
		Logger:   logger,
	})

	otpJob := jobs.NewOTPSendJob(jobs.MailOTPGateway{Mailer: mailer}, logger)
	receiptJob := jobs.NewReceiptJob(donationsRepo, mailer, logger)
	pledgeJob := jobs.NewPledgeRunJob(donationsService, logger, metrics)
	sweepJob := jobs.NewAssignmentSweepJob(dbpool, logger, metrics)
	cleanupJob := jobs.NewIdempotencyCleanupJob(shared.NewIdempotencyStore(dbpool), logger, metrics)

	pledgeTask, err := jobs.NewPledgeRunTask(jobs.PledgeRunPayload{Batch: 200})
	if err != nil {
		return fmt.Errorf("pledge task: %w", err)
	}
	sweepTask, err := jobs.NewAssignmentSweepTask()
	if err != nil {
		return fmt.Errorf("sweep task: %w", err)
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask()
	if err != nil {
		return fmt.Errorf("cleanup task: %w", err)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendOTP, Handler: otpJob.Handle},
			{Type: jobs.TaskTypeDonationReceipt, Handler: receiptJob.Handle},
			{Type: jobs.TaskTypePledgeRun, Handler: pledgeJob.Handle},
			{Type: jobs.TaskTypeAssignmentSweep, Handler: sweepJob.Handle},
			{Type: jobs.TaskTypeIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 3 * * *", Task: pledgeTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 0 * * *", Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 1 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		return fmt.Errorf("worker setup: %w", err)
	}

	logger.Info("worker starting", slog.String("redis", cfg.RedisAddr))
	return worker.Run(ctx)
}
