package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/application/dispatch"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/application/port"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/application/service"
	appworkflow "github.com/claytonbench/underwriting-61kiqe-sub000/internal/application/workflow"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/config"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/workflow"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/infrastructure/persistence/repository"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/infrastructure/persistence/sqlite"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/worker"
	"github.com/claytonbench/underwriting-61kiqe-sub000/pkg/utils"
)

func main() {
	// Local overrides from .env, if present
	_ = gotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting underwriting workflow core",
		zap.String("db", cfg.Database.Path))

	// Database and migrations
	db, err := sqlite.Open(sqlite.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := sqlite.NewMigrator(db, logger)
	if err := migrator.RunMigrations(context.Background(), cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Repositories
	applicationRepo := repository.NewApplicationRepository(db.DB, logger)
	documentRepo := repository.NewDocumentRepository(db.DB, logger)
	fundingRepo := repository.NewFundingRepository(db.DB, logger)
	historyRepo := repository.NewHistoryRepository(db.DB, logger)
	scheduleRepo := repository.NewScheduleRepository(db.DB, logger)
	taskRepo := repository.NewTaskRepository(db.DB, logger)

	registry := port.NewRegistry()
	registry.Register(workflow.TypeApplication, applicationRepo)
	registry.Register(workflow.TypeDocument, documentRepo)
	registry.Register(workflow.TypeFunding, fundingRepo)

	// Services
	tables := workflow.LendingTables()
	slaService := service.NewSLAService(tables, logger)
	taskService := service.NewTaskService(taskRepo, tables, logger)
	schedulerService := service.NewSchedulerService(scheduleRepo, registry, logger)
	schedulerService.SetBatchSize(cfg.Scheduler.BatchSize)
	sweepService := service.NewSweepService(registry, documentRepo, slaService, logger)
	sweepService.SetBatchSize(cfg.Sweeps.SweepBatchSize)

	dispatcher := dispatch.NewDispatcher(logger)
	defer dispatcher.Close()

	factory, err := appworkflow.NewFactory(appworkflow.FactoryConfig{
		Tables:       tables,
		Registry:     registry,
		History:      historyRepo,
		Tx:           db,
		Applications: applicationRepo,
		Documents:    documentRepo,
		Funding:      fundingRepo,
		Tasks:        taskService,
		Scheduler:    schedulerService,
		SLA:          slaService,
		Notifier:     dispatcher,
		Logger:       logger,
	})
	if err != nil {
		logger.Fatal("Failed to build workflow handlers", zap.Error(err))
	}

	// Scheduled and swept transitions run through the same handlers as
	// caller-initiated ones.
	schedulerService.SetExecutor(factory)
	sweepService.SetExecutor(factory)

	// Workers
	manager := worker.NewManager(logger)

	poller := worker.NewTransitionPoller(schedulerService, cfg.Scheduler.PollInterval, logger)
	manager.Register(poller)

	cronRunner := worker.NewCronRunner(logger)
	if err := cronRunner.AddJob(cfg.Sweeps.DocumentExpirationCron, "document_expiration", func(ctx context.Context) {
		if _, err := sweepService.ExpireDocuments(ctx, time.Now().UTC()); err != nil {
			logger.Error("Document expiration sweep failed", zap.Error(err))
		}
	}); err != nil {
		logger.Fatal("Failed to register document expiration sweep", zap.Error(err))
	}
	if err := cronRunner.AddJob(cfg.Sweeps.SLARefreshCron, "sla_refresh", func(ctx context.Context) {
		if _, err := sweepService.RefreshSLAs(ctx, time.Now().UTC()); err != nil {
			logger.Error("SLA refresh sweep failed", zap.Error(err))
		}
	}); err != nil {
		logger.Fatal("Failed to register SLA refresh sweep", zap.Error(err))
	}
	manager.Register(cronRunner)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}

	logger.Info("Workflow core started")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	cancel()
	manager.StopAll()
	logger.Info("Shutdown complete")
}
