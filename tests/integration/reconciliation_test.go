package integration

import (
	"context"
	"testing"
	"time"

	ledgerapp "github.com/ledger/backend/internal/application/ledger"
	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalanceReconciliation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.seedSeller(t, "S1")
	// Cached balance is wrong on purpose: the ledger rows say 1200
	e.seedCustomer(t, "C1", decimal.NewFromInt(999))
	e.seedCustomer(t, "C2", decimal.NewFromInt(50))
	e.seedInvoice(t, "S1", "C1", "1001", date(2024, time.March, 1), date(2024, time.March, 31), 1000)
	e.seedAdvance(t, "S1", "C1", "501", date(2024, time.March, 5), date(2024, time.March, 31), 500)
	e.seedApprovedReceipt(t, "S1", "C1", date(2024, time.March, 10), 300, 0)
	e.seedInvoice(t, "S1", "C2", "1002", date(2024, time.March, 1), date(2024, time.March, 31), 50)

	t.Run("report-only run detects but does not repair", func(t *testing.T) {
		result, err := e.balanceRecon.Reconcile(ctx, ledgerapp.ReconcileRequest{
			Tolerance: decimal.RequireFromString("0.01"),
		})
		require.NoError(t, err)
		assert.Equal(t, 2, result.CustomersChecked)
		assert.Equal(t, 1, result.CustomersDrifted)
		assert.Equal(t, 0, result.CustomersFixed)
		assert.True(t, result.MaxDrift.Equal(decimal.NewFromInt(201)))

		require.Len(t, result.TopDrifts, 1)
		drift := result.TopDrifts[0]
		assert.Equal(t, "C1", drift.TaxCode)
		assert.True(t, drift.StoredBalance.Equal(decimal.NewFromInt(999)))
		assert.True(t, drift.ExpectedBalance.Equal(decimal.NewFromInt(1200)))
		assert.False(t, drift.Repaired)

		assert.True(t, e.customerBalance(t, "C1").Equal(decimal.NewFromInt(999)))
	})

	t.Run("repair run fixes the drift", func(t *testing.T) {
		result, err := e.balanceRecon.Reconcile(ctx, ledgerapp.ReconcileRequest{
			ApplyChanges: true,
			Tolerance:    decimal.RequireFromString("0.01"),
		})
		require.NoError(t, err)
		assert.Equal(t, 1, result.CustomersDrifted)
		assert.Equal(t, 1, result.CustomersFixed)
		assert.True(t, e.customerBalance(t, "C1").Equal(decimal.NewFromInt(1200)))
		// The report-only run above audited too
		assert.Equal(t, int64(2), e.auditCount(t, "BALANCE_RECONCILIATION_RUN"))
	})

	t.Run("clean second run finds nothing", func(t *testing.T) {
		result, err := e.balanceRecon.Reconcile(ctx, ledgerapp.ReconcileRequest{
			ApplyChanges: true,
			Tolerance:    decimal.RequireFromString("0.01"),
		})
		require.NoError(t, err)
		assert.Equal(t, 0, result.CustomersDrifted)
	})

	t.Run("held lock skips the run", func(t *testing.T) {
		e.locker.Hold("balance_reconciliation")
		result, err := e.balanceRecon.Reconcile(ctx, ledgerapp.ReconcileRequest{})
		require.NoError(t, err)
		assert.True(t, result.SkippedLockHeld)
	})
}

func TestBalanceReconciliationToleranceSwallowsSmallDrift(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.seedSeller(t, "S1")
	e.seedCustomer(t, "C1", decimal.RequireFromString("100.004"))
	e.seedInvoice(t, "S1", "C1", "1001", date(2024, time.March, 1), date(2024, time.March, 31), 100)

	result, err := e.balanceRecon.Reconcile(ctx, ledgerapp.ReconcileRequest{
		ApplyChanges: true,
		Tolerance:    decimal.RequireFromString("0.01"),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.CustomersDrifted)
	assert.True(t, e.customerBalance(t, "C1").Equal(decimal.RequireFromString("100.004")))
}

func TestCreditReconciliation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.seedSeller(t, "S1")
	e.seedCustomer(t, "C1", decimal.NewFromInt(1000))

	// Two open invoices; the older one by issue date settles first
	older := e.seedInvoice(t, "S1", "C1", "2001", date(2024, time.January, 10), date(2024, time.April, 30), 300)
	newer := e.seedInvoice(t, "S1", "C1", "2002", date(2024, time.February, 10), date(2024, time.March, 31), 400)

	// Approved receipt with 500 of idle credit
	receipt := e.seedApprovedReceipt(t, "S1", "C1", date(2024, time.February, 20), 500, 0)

	result, err := e.creditRecon.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.PairsScanned)
	assert.Equal(t, 0, result.PairsFailed)
	assert.Equal(t, 2, result.AllocationsCreated)
	assert.True(t, result.AmountMatched.Equal(decimal.NewFromInt(500)))

	reloaded, err := e.invoices.FindByID(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.InvoiceStatusPaid, reloaded.Status)

	reloaded, err = e.invoices.FindByID(ctx, newer.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.InvoiceStatusPartial, reloaded.Status)
	assert.True(t, reloaded.OutstandingAmount.Equal(decimal.NewFromInt(200)))

	matched, err := e.receipts.FindByID(ctx, receipt.ID)
	require.NoError(t, err)
	assert.False(t, matched.HasIdleCredit())
	assert.True(t, matched.UnallocatedAmount.IsZero())

	assert.Equal(t, int64(1), e.auditCount(t, "CREDIT_RECONCILIATION_RUN"))

	t.Run("second run has nothing left to match", func(t *testing.T) {
		result, err := e.creditRecon.Reconcile(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, result.AllocationsCreated)
		assert.True(t, result.AmountMatched.IsZero())
	})

	t.Run("held lock skips the run", func(t *testing.T) {
		e.locker.Hold("credit_reconciliation")
		result, err := e.creditRecon.Reconcile(ctx)
		require.NoError(t, err)
		assert.True(t, result.SkippedLockHeld)
	})
}
