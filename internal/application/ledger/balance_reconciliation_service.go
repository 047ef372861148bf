package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/ledger/backend/internal/domain/partner"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/ledger/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// balanceReconciliationLock is the storage-level mutex name for the job
const balanceReconciliationLock = "balance_reconciliation"

// BalanceReconciliationService recomputes every customer's expected balance
// from the ledger rows and detects or repairs drift against the cached value.
type BalanceReconciliationService struct {
	customerRepo partner.CustomerRepository
	invoiceRepo  ledger.InvoiceRepository
	advanceRepo  ledger.AdvanceRepository
	receiptRepo  ledger.ReceiptRepository
	locker       shared.MaintenanceLocker
	tx           shared.TransactionManager
	audit        shared.AuditSink
	logger       *zap.Logger
}

// NewBalanceReconciliationService creates a new BalanceReconciliationService
func NewBalanceReconciliationService(
	customerRepo partner.CustomerRepository,
	invoiceRepo ledger.InvoiceRepository,
	advanceRepo ledger.AdvanceRepository,
	receiptRepo ledger.ReceiptRepository,
	locker shared.MaintenanceLocker,
	tx shared.TransactionManager,
	audit shared.AuditSink,
	logger *zap.Logger,
) *BalanceReconciliationService {
	return &BalanceReconciliationService{
		customerRepo: customerRepo,
		invoiceRepo:  invoiceRepo,
		advanceRepo:  advanceRepo,
		receiptRepo:  receiptRepo,
		locker:       locker,
		tx:           tx,
		audit:        audit,
		logger:       logger,
	}
}

// ReconcileRequest tunes one reconciliation run
type ReconcileRequest struct {
	// ApplyChanges repairs drifted balances; false reports only.
	ApplyChanges bool
	// Tolerance is the absolute drift below which a customer counts as
	// consistent.
	Tolerance decimal.Decimal
	// PageSize bounds how many customers are loaded per page.
	PageSize int
	// MaxTopDrifts caps the detail list in the result.
	MaxTopDrifts int
}

// CustomerDrift describes one customer whose cached balance drifted
type CustomerDrift struct {
	TaxCode         string
	StoredBalance   decimal.Decimal
	ExpectedBalance decimal.Decimal
	Drift           decimal.Decimal
	Repaired        bool
}

// ReconcileResult summarizes one reconciliation run
type ReconcileResult struct {
	CustomersChecked int
	CustomersDrifted int
	CustomersFixed   int
	TotalDrift       decimal.Decimal
	MaxDrift         decimal.Decimal
	TopDrifts        []CustomerDrift
	SkippedLockHeld  bool
	StartedAt        time.Time
	FinishedAt       time.Time
}

// Reconcile walks every customer, compares the cached balance with the sum
// of the customer's ledger rows and optionally repairs the drift. Only one
// run may execute at a time across all instances; when another holds the
// lock the run exits quietly.
func (s *BalanceReconciliationService) Reconcile(ctx context.Context, req ReconcileRequest) (*ReconcileResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "balance")
	defer span.End()

	if req.PageSize <= 0 {
		req.PageSize = 500
	}
	if req.MaxTopDrifts <= 0 {
		req.MaxTopDrifts = 20
	}
	if req.Tolerance.IsNegative() {
		return nil, shared.NewValidationError("INVALID_TOLERANCE", "Tolerance cannot be negative")
	}

	release, acquired, err := s.locker.TryAcquire(ctx, balanceReconciliationLock)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to acquire reconciliation lock: %w", err)
	}
	if !acquired {
		s.logger.Info("balance reconciliation already running elsewhere, skipping")
		return &ReconcileResult{SkippedLockHeld: true}, nil
	}
	defer release()

	result := &ReconcileResult{
		TotalDrift: decimal.Zero,
		MaxDrift:   decimal.Zero,
		StartedAt:  time.Now().UTC(),
	}

	// One pass of grouped sums per document kind instead of three queries
	// per customer.
	invoiceSums, err := s.invoiceRepo.SumTotalsByCustomer(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to sum invoices: %w", err)
	}
	advanceSums, err := s.advanceRepo.SumAmountsByCustomer(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to sum advances: %w", err)
	}
	receiptSums, err := s.receiptRepo.SumApprovedAmountsByCustomer(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to sum receipts: %w", err)
	}

	afterTaxCode := ""
	for {
		customers, err := s.customerRepo.ListPageByTaxCode(ctx, afterTaxCode, req.PageSize)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to list customers: %w", err)
		}
		if len(customers) == 0 {
			break
		}

		var drifted []partner.Customer
		var expectedByTaxCode = make(map[string]decimal.Decimal)
		for i := range customers {
			customer := customers[i]
			result.CustomersChecked++

			expected := sumOrZero(invoiceSums, customer.TaxCode).
				Add(sumOrZero(advanceSums, customer.TaxCode)).
				Sub(sumOrZero(receiptSums, customer.TaxCode))
			drift := customer.CurrentBalance.Sub(expected).Abs()
			if drift.LessThanOrEqual(req.Tolerance) {
				continue
			}

			result.CustomersDrifted++
			result.TotalDrift = result.TotalDrift.Add(drift)
			if drift.GreaterThan(result.MaxDrift) {
				result.MaxDrift = drift
			}
			recordTopDrift(result, CustomerDrift{
				TaxCode:         customer.TaxCode,
				StoredBalance:   customer.CurrentBalance,
				ExpectedBalance: expected,
				Drift:           drift,
				Repaired:        req.ApplyChanges,
			}, req.MaxTopDrifts)

			if req.ApplyChanges {
				drifted = append(drifted, customer)
				expectedByTaxCode[customer.TaxCode] = expected
			}
		}

		if len(drifted) > 0 {
			err := s.tx.Transaction(ctx, func(ctx context.Context) error {
				for i := range drifted {
					customer := &drifted[i]
					customer.SetBalance(expectedByTaxCode[customer.TaxCode])
					if err := s.customerRepo.SaveWithLock(ctx, customer); err != nil {
						return fmt.Errorf("failed to repair balance for %s: %w", customer.TaxCode, err)
					}
				}
				return nil
			})
			if err != nil {
				telemetry.RecordError(span, err)
				return nil, err
			}
			result.CustomersFixed += len(drifted)
		}

		afterTaxCode = customers[len(customers)-1].TaxCode
		if len(customers) < req.PageSize {
			break
		}
	}

	result.FinishedAt = time.Now().UTC()

	if result.CustomersDrifted > 0 || req.ApplyChanges {
		s.audit.Record(ctx, shared.AuditEntry{
			Action:     "BALANCE_RECONCILIATION_RUN",
			EntityType: "Customer",
			After:      reconcileSummary(result, req.ApplyChanges),
			OccurredAt: result.FinishedAt,
		})
	}

	s.logger.Info("balance reconciliation finished",
		zap.Int("checked", result.CustomersChecked),
		zap.Int("drifted", result.CustomersDrifted),
		zap.Int("fixed", result.CustomersFixed),
		zap.String("total_drift", result.TotalDrift.String()),
		zap.String("max_drift", result.MaxDrift.String()),
		zap.Bool("apply_changes", req.ApplyChanges))
	return result, nil
}

func sumOrZero(sums map[string]decimal.Decimal, taxCode string) decimal.Decimal {
	if sum, ok := sums[taxCode]; ok {
		return sum
	}
	return decimal.Zero
}

// recordTopDrift keeps the result's detail list bounded: the smallest entry
// is evicted once the list is full. Ties keep the earlier tax code.
func recordTopDrift(result *ReconcileResult, drift CustomerDrift, limit int) {
	result.TopDrifts = append(result.TopDrifts, drift)
	sort.SliceStable(result.TopDrifts, func(i, j int) bool {
		a, b := result.TopDrifts[i], result.TopDrifts[j]
		if !a.Drift.Equal(b.Drift) {
			return a.Drift.GreaterThan(b.Drift)
		}
		return a.TaxCode < b.TaxCode
	})
	if len(result.TopDrifts) > limit {
		result.TopDrifts = result.TopDrifts[:limit]
	}
}

func reconcileSummary(result *ReconcileResult, applied bool) string {
	return fmt.Sprintf(`{"checked":%d,"drifted":%d,"fixed":%d,"total_drift":"%s","max_drift":"%s","applied":%t}`,
		result.CustomersChecked, result.CustomersDrifted, result.CustomersFixed,
		result.TotalDrift, result.MaxDrift, applied)
}
