package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dentara-clinic/dentara/internal/app"
	"github.com/dentara-clinic/dentara/internal/docgen"
	"github.com/dentara-clinic/dentara/internal/inventory"
	"github.com/dentara-clinic/dentara/internal/ledger"
	"github.com/dentara-clinic/dentara/internal/patients"
	"github.com/dentara-clinic/dentara/internal/plan"
	"github.com/dentara-clinic/dentara/internal/platform/cache"
	"github.com/dentara-clinic/dentara/internal/platform/db"
	"github.com/dentara-clinic/dentara/internal/portal"
	"github.com/dentara-clinic/dentara/internal/schedule"
	"github.com/dentara-clinic/dentara/internal/shared"
	"github.com/dentara-clinic/dentara/internal/staff"
	"github.com/dentara-clinic/dentara/internal/treatments"
	"github.com/dentara-clinic/dentara/internal/undo"
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	workdate := shared.NewWorkdateStore(redisClient, 24*time.Hour)

	undoController := undo.NewController(logger, cfg.UndoGrace)
	defer undoController.Close()

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger)

	ledgerRepo := ledger.NewRepository(pool)

	reconciler := inventory.NewReconciler(logger, inventoryService, idempotencyStore)
	ledgerService := ledger.NewService(logger, ledgerRepo, auditLogger, reconciler, undoController, cfg.ExchangeRate())

	planRepo := plan.NewRepository(pool)
	planService := plan.NewService(logger, planRepo, ledgerService, auditLogger)

	patientsRepo := patients.NewRepository(pool)
	patientsService := patients.NewService(patientsRepo, auditLogger)

	staffRepo := staff.NewRepository(pool)
	treatmentsRepo := treatments.NewRepository(pool)

	scheduleService := schedule.NewService(logger, ledgerService, redisClient)
	defer scheduleService.Close()

	portalService := portal.NewService(patientsService, ledgerService, planService)
	docBuilder := docgen.NewBuilder(cfg.ExchangeRate())

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		LedgerHandler:     ledger.NewHandler(logger, ledgerService),
		PlanHandler:       plan.NewHandler(logger, planService, workdate),
		InventoryHandler:  inventory.NewHandler(logger, inventoryService),
		PatientsHandler:   patients.NewHandler(logger, patientsService),
		StaffHandler:      staff.NewHandler(logger, staffRepo),
		TreatmentsHandler: treatments.NewHandler(logger, treatmentsRepo),
		ScheduleHandler:   schedule.NewHandler(logger, scheduleService, workdate),
		DocsHandler:       docgen.NewHandler(logger, docBuilder, ledgerService, planService, patientsService),
		PortalHandler:     portal.NewHandler(logger, portalService),
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
}
