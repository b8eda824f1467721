package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/dentara-clinic/dentara/internal/app"
	"github.com/dentara-clinic/dentara/internal/inventory"
	"github.com/dentara-clinic/dentara/internal/ledger"
	"github.com/dentara-clinic/dentara/internal/plan"
	"github.com/dentara-clinic/dentara/internal/platform/db"
	"github.com/dentara-clinic/dentara/internal/shared"
	"github.com/dentara-clinic/dentara/jobs"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger)
	reconciler := inventory.NewReconciler(logger, inventoryService, idempotencyStore)

	// No undo controller in the worker: voids issued here delete directly.
	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(logger, ledgerRepo, auditLogger, reconciler, nil, cfg.ExchangeRate())

	planRepo := plan.NewRepository(pool)
	planService := plan.NewService(logger, planRepo, ledgerService, auditLogger)

	queue := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue close", slog.Any("error", err))
		}
	}()

	dueScanner := jobs.NewPlanDueScanner(logger, planService, queue)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskPlanDueScan, Handler: dueScanner.Handle},
			{Type: jobs.TaskSendReminder, Handler: jobs.HandleReminder(logger)},
			{Type: jobs.TaskIdempotencyCleanup, Handler: jobs.HandleIdempotencyCleanup(logger, idempotencyStore)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 7 * * *", Task: jobs.NewPlanDueScanTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 2 * * *", Task: jobs.NewIdempotencyCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
