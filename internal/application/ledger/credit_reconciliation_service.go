package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/ledger/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// creditReconciliationLock is the storage-level mutex name for the job
const creditReconciliationLock = "credit_reconciliation"

// CreditReconciliationService matches idle approved-receipt credit against
// open invoices of the same seller and customer pair.
type CreditReconciliationService struct {
	invoiceRepo    ledger.InvoiceRepository
	receiptRepo    ledger.ReceiptRepository
	allocationRepo ledger.AllocationRepository
	locker         shared.MaintenanceLocker
	tx             shared.TransactionManager
	audit          shared.AuditSink
	logger         *zap.Logger
}

// NewCreditReconciliationService creates a new CreditReconciliationService
func NewCreditReconciliationService(
	invoiceRepo ledger.InvoiceRepository,
	receiptRepo ledger.ReceiptRepository,
	allocationRepo ledger.AllocationRepository,
	locker shared.MaintenanceLocker,
	tx shared.TransactionManager,
	audit shared.AuditSink,
	logger *zap.Logger,
) *CreditReconciliationService {
	return &CreditReconciliationService{
		invoiceRepo:    invoiceRepo,
		receiptRepo:    receiptRepo,
		allocationRepo: allocationRepo,
		locker:         locker,
		tx:             tx,
		audit:          audit,
		logger:         logger,
	}
}

// CreditReconcileResult summarizes one credit reconciliation run
type CreditReconcileResult struct {
	PairsScanned       int
	PairsFailed        int
	AllocationsCreated int
	InvoicesUpdated    int
	ReceiptsUpdated    int
	AmountMatched      decimal.Decimal
	SkippedLockHeld    bool
	StartedAt          time.Time
	FinishedAt         time.Time
}

// Reconcile scans every seller and customer pair that still has open
// invoices and applies any idle approved-receipt credit to them, oldest
// invoice by issue date first, oldest receipt first. Each pair commits in
// its own transaction; a failing pair is logged and skipped without
// aborting the run. Only one run may execute at a time across instances.
func (s *CreditReconciliationService) Reconcile(ctx context.Context) (*CreditReconcileResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "credit")
	defer span.End()

	release, acquired, err := s.locker.TryAcquire(ctx, creditReconciliationLock)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to acquire reconciliation lock: %w", err)
	}
	if !acquired {
		s.logger.Info("credit reconciliation already running elsewhere, skipping")
		return &CreditReconcileResult{SkippedLockHeld: true}, nil
	}
	defer release()

	result := &CreditReconcileResult{
		AmountMatched: decimal.Zero,
		StartedAt:     time.Now().UTC(),
	}

	pairs, err := s.invoiceRepo.DistinctOpenPairs(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to list open pairs: %w", err)
	}

	for _, pair := range pairs {
		result.PairsScanned++
		if err := s.reconcilePair(ctx, pair, result); err != nil {
			result.PairsFailed++
			s.logger.Warn("credit reconciliation failed for pair, skipping",
				zap.String("seller_code", pair.SellerCode),
				zap.String("customer_code", pair.CustomerCode),
				zap.Error(err))
		}
	}

	result.FinishedAt = time.Now().UTC()

	if result.AllocationsCreated > 0 {
		s.audit.Record(ctx, shared.AuditEntry{
			Action:     "CREDIT_RECONCILIATION_RUN",
			EntityType: "Receipt",
			After:      creditReconcileSummary(result),
			OccurredAt: result.FinishedAt,
		})
	}

	s.logger.Info("credit reconciliation finished",
		zap.Int("pairs_scanned", result.PairsScanned),
		zap.Int("pairs_failed", result.PairsFailed),
		zap.Int("allocations_created", result.AllocationsCreated),
		zap.String("amount_matched", result.AmountMatched.String()))
	return result, nil
}

// pairOutcome accumulates one pair's counters so a rolled back pair leaves
// the run totals untouched.
type pairOutcome struct {
	allocationsCreated int
	invoicesUpdated    int
	receiptsUpdated    int
	amountMatched      decimal.Decimal
}

// reconcilePair greedily matches idle credit to open invoices of one pair
// inside a single transaction.
func (s *CreditReconciliationService) reconcilePair(ctx context.Context, pair ledger.PairKey, result *CreditReconcileResult) error {
	outcome := pairOutcome{amountMatched: decimal.Zero}
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		invoices, err := s.invoiceRepo.FindOpenBySellerCustomer(ctx, pair.SellerCode, pair.CustomerCode)
		if err != nil {
			return fmt.Errorf("failed to load invoices: %w", err)
		}
		if len(invoices) == 0 {
			return nil
		}
		// Credit matching settles the longest outstanding document first,
		// so invoices order by issue date here, not by due date.
		sort.SliceStable(invoices, func(i, j int) bool {
			if !invoices[i].IssueDate.Equal(invoices[j].IssueDate) {
				return invoices[i].IssueDate.Before(invoices[j].IssueDate)
			}
			return invoices[i].CreatedAt.Before(invoices[j].CreatedAt)
		})

		receipts, err := s.receiptRepo.FindApprovedWithCredit(ctx, pair.SellerCode, pair.CustomerCode)
		if err != nil {
			return fmt.Errorf("failed to load receipts: %w", err)
		}
		if len(receipts) == 0 {
			return nil
		}

		touchedInvoices := make(map[int]bool)
		touchedReceipts := make(map[int]bool)

		receiptIdx := 0
		for i := range invoices {
			invoice := &invoices[i]
			for invoice.OutstandingAmount.GreaterThan(decimal.Zero) && receiptIdx < len(receipts) {
				receipt := &receipts[receiptIdx]
				if !receipt.HasIdleCredit() {
					receiptIdx++
					continue
				}
				applied := decimal.Min(invoice.OutstandingAmount, receipt.UnallocatedAmount)

				allocation, err := ledger.NewReceiptAllocation(receipt.ID,
					ledger.TargetRef{Kind: ledger.TargetKindInvoice, ID: invoice.ID}, applied)
				if err != nil {
					return err
				}
				if err := s.allocationRepo.Create(ctx, allocation); err != nil {
					return fmt.Errorf("failed to create allocation: %w", err)
				}
				if err := invoice.ApplyAllocation(applied); err != nil {
					return err
				}
				if err := receipt.Consume(applied); err != nil {
					return err
				}
				receipt.RecomputeAllocationStatus()

				outcome.allocationsCreated++
				outcome.amountMatched = outcome.amountMatched.Add(applied)
				touchedInvoices[i] = true
				touchedReceipts[receiptIdx] = true
			}
			if receiptIdx >= len(receipts) {
				break
			}
		}

		for i := range invoices {
			if !touchedInvoices[i] {
				continue
			}
			if err := s.invoiceRepo.SaveWithLock(ctx, &invoices[i]); err != nil {
				return fmt.Errorf("failed to save invoice: %w", err)
			}
			outcome.invoicesUpdated++
		}
		for i := range receipts {
			if !touchedReceipts[i] {
				continue
			}
			if err := s.receiptRepo.SaveWithLock(ctx, &receipts[i]); err != nil {
				return fmt.Errorf("failed to save receipt: %w", err)
			}
			outcome.receiptsUpdated++
		}
		return nil
	})
	if err != nil {
		return err
	}
	result.AllocationsCreated += outcome.allocationsCreated
	result.InvoicesUpdated += outcome.invoicesUpdated
	result.ReceiptsUpdated += outcome.receiptsUpdated
	result.AmountMatched = result.AmountMatched.Add(outcome.amountMatched)
	return nil
}

func creditReconcileSummary(result *CreditReconcileResult) string {
	return fmt.Sprintf(`{"pairs_scanned":%d,"pairs_failed":%d,"allocations_created":%d,"invoices_updated":%d,"receipts_updated":%d,"amount_matched":"%s"}`,
		result.PairsScanned, result.PairsFailed, result.AllocationsCreated,
		result.InvoicesUpdated, result.ReceiptsUpdated, result.AmountMatched)
}
