package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	appbulk "github.com/ledger/backend/internal/application/bulk"
	appledger "github.com/ledger/backend/internal/application/ledger"
	appperiod "github.com/ledger/backend/internal/application/period"
	"github.com/ledger/backend/internal/infrastructure/audit"
	"github.com/ledger/backend/internal/infrastructure/config"
	"github.com/ledger/backend/internal/infrastructure/logger"
	"github.com/ledger/backend/internal/infrastructure/notify"
	"github.com/ledger/backend/internal/infrastructure/persistence"
	"github.com/ledger/backend/internal/infrastructure/scheduler"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// serviceContainer bundles the application services for transport wiring
type serviceContainer struct {
	Locks       *appperiod.LockService
	Allocations *appledger.AllocationService
	Voids       *appledger.VoidService
	Receipts    *appledger.ReceiptService
	Imports     *appbulk.ImportService
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	log.Info("starting ledger backend",
		zap.String("env", cfg.App.Env),
		zap.String("name", cfg.App.Name))

	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}
	defer db.Close() //nolint:errcheck
	if err := db.Ping(); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close() //nolint:errcheck

	// Repositories
	customerRepo := persistence.NewGormCustomerRepository(db)
	sellerRepo := persistence.NewGormSellerRepository(db)
	invoiceRepo := persistence.NewGormInvoiceRepository(db)
	advanceRepo := persistence.NewGormAdvanceRepository(db)
	receiptRepo := persistence.NewGormReceiptRepository(db)
	allocationRepo := persistence.NewGormAllocationRepository(db)
	lockRepo := persistence.NewGormPeriodLockRepository(db)
	batchRepo := persistence.NewGormBatchRepository(db)
	rowRepo := persistence.NewGormStagingRowRepository(db)
	advisoryLocker := persistence.NewAdvisoryLocker(db)

	// Collaborators
	auditSink := audit.NewGormAuditSink(db.DB, log.Named("audit"))
	notifier := notify.NewRedisNotifier(redisClient, notify.AllowAllPreferences{}, log.Named("notify"))

	// Services. The transport layer (gRPC or HTTP) binds to this container;
	// until then the scheduler is the only caller.
	lockService := appperiod.NewLockService(lockRepo, auditSink, log.Named("period"))
	services := serviceContainer{
		Locks: lockService,
		Allocations: appledger.NewAllocationService(
			receiptRepo, invoiceRepo, advanceRepo, allocationRepo, customerRepo,
			lockService, db, auditSink, notifier, log.Named("allocation")),
		Voids: appledger.NewVoidService(
			receiptRepo, invoiceRepo, advanceRepo, allocationRepo, customerRepo,
			lockService, db, auditSink, log.Named("void")),
		Receipts: appledger.NewReceiptService(
			receiptRepo, customerRepo, sellerRepo, auditSink, log.Named("receipt")),
		Imports: appbulk.NewImportService(
			batchRepo, rowRepo, invoiceRepo, advanceRepo, receiptRepo, allocationRepo,
			customerRepo, sellerRepo, lockService, db, auditSink,
			cfg.Import.MaxRows, log.Named("import")),
	}
	// TODO: bind the transport layer to the container once the API surface lands
	_ = services

	balanceRecon := appledger.NewBalanceReconciliationService(
		customerRepo, invoiceRepo, advanceRepo, receiptRepo,
		advisoryLocker, db, auditSink, log.Named("balance_recon"))
	creditRecon := appledger.NewCreditReconciliationService(
		invoiceRepo, receiptRepo, allocationRepo,
		advisoryLocker, db, auditSink, log.Named("credit_recon"))

	tolerance, err := decimal.NewFromString(cfg.Jobs.BalanceReconTolerance)
	if err != nil {
		return fmt.Errorf("invalid balance reconciliation tolerance: %w", err)
	}

	var jobs []scheduler.Job
	if cfg.Jobs.BalanceReconEnabled {
		jobs = append(jobs, scheduler.Job{
			Name:     "balance_reconciliation",
			Interval: cfg.Jobs.BalanceReconInterval,
			Run: func(ctx context.Context) error {
				_, err := balanceRecon.Reconcile(ctx, appledger.ReconcileRequest{
					ApplyChanges: cfg.Jobs.BalanceReconRepair,
					Tolerance:    tolerance,
					PageSize:     cfg.Jobs.BalanceReconPageSize,
					MaxTopDrifts: cfg.Jobs.PartialSelectionLimit,
				})
				return err
			},
		})
	}
	if cfg.Jobs.CreditReconEnabled {
		jobs = append(jobs, scheduler.Job{
			Name:     "credit_reconciliation",
			Interval: cfg.Jobs.CreditReconInterval,
			Run: func(ctx context.Context) error {
				_, err := creditRecon.Reconcile(ctx)
				return err
			},
		})
	}

	sched := scheduler.NewScheduler(log.Named("scheduler"), jobs...)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	log.Info("ledger backend running", zap.Int("scheduled_jobs", len(jobs)))
	<-ctx.Done()

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Warn("scheduler did not stop cleanly", zap.Error(err))
	}
	return nil
}
