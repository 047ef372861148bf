// Package integration exercises the application services end to end against
// an in-memory database, with the real repositories, transaction manager and
// audit sink underneath.
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/ledger/backend/internal/application/bulk"
	ledgerapp "github.com/ledger/backend/internal/application/ledger"
	periodapp "github.com/ledger/backend/internal/application/period"
	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/ledger/backend/internal/domain/partner"
	"github.com/ledger/backend/internal/infrastructure/audit"
	"github.com/ledger/backend/internal/infrastructure/persistence"
	"github.com/ledger/backend/internal/infrastructure/persistence/models"
	"github.com/ledger/backend/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// env wires the full service stack over one in-memory database
type env struct {
	db          *persistence.Database
	customers   *persistence.GormCustomerRepository
	sellers     *persistence.GormSellerRepository
	invoices    *persistence.GormInvoiceRepository
	advances    *persistence.GormAdvanceRepository
	receipts    *persistence.GormReceiptRepository
	allocations *persistence.GormAllocationRepository
	locker      *testutil.FakeLocker
	notifier    *testutil.CaptureNotifier

	locks        *periodapp.LockService
	receiptSvc   *ledgerapp.ReceiptService
	allocator    *ledgerapp.AllocationService
	voids        *ledgerapp.VoidService
	imports      *bulk.ImportService
	balanceRecon *ledgerapp.BalanceReconciliationService
	creditRecon  *ledgerapp.CreditReconciliationService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	log := testutil.Logger()

	customerRepo := persistence.NewGormCustomerRepository(db)
	sellerRepo := persistence.NewGormSellerRepository(db)
	invoiceRepo := persistence.NewGormInvoiceRepository(db)
	advanceRepo := persistence.NewGormAdvanceRepository(db)
	receiptRepo := persistence.NewGormReceiptRepository(db)
	allocationRepo := persistence.NewGormAllocationRepository(db)
	lockRepo := persistence.NewGormPeriodLockRepository(db)
	batchRepo := persistence.NewGormBatchRepository(db)
	rowRepo := persistence.NewGormStagingRowRepository(db)

	auditSink := audit.NewGormAuditSink(db.DB, log)
	locker := testutil.NewFakeLocker()
	notifier := &testutil.CaptureNotifier{}
	lockService := periodapp.NewLockService(lockRepo, auditSink, log)

	return &env{
		db:          db,
		customers:   customerRepo,
		sellers:     sellerRepo,
		invoices:    invoiceRepo,
		advances:    advanceRepo,
		receipts:    receiptRepo,
		allocations: allocationRepo,
		locker:      locker,
		notifier:    notifier,
		locks:       lockService,
		receiptSvc: ledgerapp.NewReceiptService(
			receiptRepo, customerRepo, sellerRepo, auditSink, log),
		allocator: ledgerapp.NewAllocationService(
			receiptRepo, invoiceRepo, advanceRepo, allocationRepo, customerRepo,
			lockService, db, auditSink, notifier, log),
		voids: ledgerapp.NewVoidService(
			receiptRepo, invoiceRepo, advanceRepo, allocationRepo, customerRepo,
			lockService, db, auditSink, log),
		imports: bulk.NewImportService(
			batchRepo, rowRepo, invoiceRepo, advanceRepo, receiptRepo, allocationRepo,
			customerRepo, sellerRepo, lockService, db, auditSink, 1000, log),
		balanceRecon: ledgerapp.NewBalanceReconciliationService(
			customerRepo, invoiceRepo, advanceRepo, receiptRepo,
			locker, db, auditSink, log),
		creditRecon: ledgerapp.NewCreditReconciliationService(
			invoiceRepo, receiptRepo, allocationRepo,
			locker, db, auditSink, log),
	}
}

func (e *env) seedSeller(t *testing.T, code string) {
	t.Helper()
	seller, err := partner.NewSeller(code, "Seller "+code)
	require.NoError(t, err)
	require.NoError(t, e.sellers.Save(context.Background(), seller))
}

func (e *env) seedCustomer(t *testing.T, taxCode string, balance decimal.Decimal) *partner.Customer {
	t.Helper()
	customer, err := partner.NewCustomer(taxCode, "Customer "+taxCode, 30)
	require.NoError(t, err)
	customer.SetBalance(balance)
	require.NoError(t, e.customers.Save(context.Background(), customer))
	return customer
}

func (e *env) seedInvoice(t *testing.T, seller, customer, number string, issue, due time.Time, total int64) *ledger.Invoice {
	t.Helper()
	invoice, err := ledger.NewInvoice(seller, customer, "A", number, issue, due, decimal.NewFromInt(total))
	require.NoError(t, err)
	require.NoError(t, e.invoices.Create(context.Background(), invoice))
	return invoice
}

func (e *env) seedAdvance(t *testing.T, seller, customer, number string, issue, due time.Time, total int64) *ledger.Advance {
	t.Helper()
	advance, err := ledger.NewAdvance(seller, customer, "AV", number, issue, due, decimal.NewFromInt(total))
	require.NoError(t, err)
	require.NoError(t, e.advances.Create(context.Background(), advance))
	return advance
}

// seedApprovedReceipt inserts an already approved receipt with the given
// consumed portion; the remainder is idle credit.
func (e *env) seedApprovedReceipt(t *testing.T, seller, customer string, date time.Time, amount, consumed int64) *ledger.Receipt {
	t.Helper()
	receipt, err := ledger.NewReceipt(seller, customer, decimal.NewFromInt(amount), date, ledger.AllocationModeFIFO)
	require.NoError(t, err)
	if consumed > 0 {
		require.NoError(t, receipt.Consume(decimal.NewFromInt(consumed)))
	}
	require.NoError(t, receipt.FinalizeApproval())
	require.NoError(t, e.receipts.Create(context.Background(), receipt))
	return receipt
}

func (e *env) customerBalance(t *testing.T, taxCode string) decimal.Decimal {
	t.Helper()
	customer, err := e.customers.FindByTaxCode(context.Background(), taxCode)
	require.NoError(t, err)
	require.NotNil(t, customer)
	return customer.CurrentBalance
}

func (e *env) auditCount(t *testing.T, action string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.DB.
		Model(&models.AuditLogModel{}).
		Where("action = ?", action).
		Count(&count).Error)
	return count
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
