package integration

import (
	"context"
	"testing"
	"time"

	ledgerapp "github.com/ledger/backend/internal/application/ledger"
	periodapp "github.com/ledger/backend/internal/application/period"
	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/ledger/backend/internal/domain/period"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/ledger/backend/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodLockGatesApproval(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := testutil.Actor(shared.RoleAdmin)
	clerk := testutil.Actor(shared.RoleClerk)

	e.seedSeller(t, "S1")
	e.seedCustomer(t, "C1", decimal.NewFromInt(1000))
	e.seedInvoice(t, "S1", "C1", "1001", date(2024, time.March, 1), date(2024, time.March, 31), 1000)

	lock, err := e.locks.Lock(ctx, periodapp.LockRequest{
		Type:  period.LockTypeMonth,
		Key:   "2024-03",
		Note:  "month closed",
		Actor: admin,
	})
	require.NoError(t, err)

	t.Run("locking the same period again returns the existing lock", func(t *testing.T) {
		again, err := e.locks.Lock(ctx, periodapp.LockRequest{
			Type:  period.LockTypeMonth,
			Key:   "2024-03",
			Actor: admin,
		})
		require.NoError(t, err)
		assert.Equal(t, lock.ID, again.ID)
	})

	receipt, err := e.receiptSvc.CreateReceipt(ctx, ledgerapp.CreateReceiptRequest{
		SellerCode:   "S1",
		CustomerCode: "C1",
		Amount:       decimal.NewFromInt(1000),
		ReceiptDate:  date(2024, time.March, 15),
		Mode:         ledger.AllocationModeFIFO,
		Actor:        clerk,
	})
	require.NoError(t, err)

	t.Run("approval into the locked month is refused", func(t *testing.T) {
		_, err := e.allocator.Approve(ctx, ledgerapp.ApproveRequest{
			ReceiptID:       receipt.ID,
			ExpectedVersion: receipt.Version,
			Actor:           clerk,
		})
		require.Error(t, err)
		assert.Equal(t, shared.KindPeriodLocked, shared.KindOf(err))

		var lockedErr *shared.PeriodLockedError
		require.ErrorAs(t, err, &lockedErr)
		assert.Contains(t, lockedErr.LockedPeriods, "MONTH:2024-03")
	})

	t.Run("clerks cannot override", func(t *testing.T) {
		_, err := e.allocator.Approve(ctx, ledgerapp.ApproveRequest{
			ReceiptID:       receipt.ID,
			ExpectedVersion: receipt.Version,
			Actor:           clerk,
			OverrideReason:  "boss said so",
		})
		require.Error(t, err)
		assert.Equal(t, shared.KindAuthorization, shared.KindOf(err))
	})

	t.Run("admin override succeeds with exactly one override audit entry", func(t *testing.T) {
		_, err := e.allocator.Approve(ctx, ledgerapp.ApproveRequest{
			ReceiptID:       receipt.ID,
			ExpectedVersion: receipt.Version,
			Actor:           admin,
			OverrideReason:  "late posting approved by CFO",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), e.auditCount(t, "RECEIPT_APPROVE_LOCK_OVERRIDE"))
	})
}

func TestPeriodUnlock(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := testutil.Actor(shared.RoleAdmin)

	e.seedSeller(t, "S1")
	e.seedCustomer(t, "C1", decimal.NewFromInt(500))
	e.seedInvoice(t, "S1", "C1", "2001", date(2024, time.July, 1), date(2024, time.July, 31), 500)

	lock, err := e.locks.Lock(ctx, periodapp.LockRequest{
		Type:  period.LockTypeMonth,
		Key:   "2024-07",
		Actor: admin,
	})
	require.NoError(t, err)

	t.Run("unlock requires a reason", func(t *testing.T) {
		err := e.locks.Unlock(ctx, periodapp.UnlockRequest{LockID: lock.ID, Actor: admin})
		require.Error(t, err)

		err = e.locks.Unlock(ctx, periodapp.UnlockRequest{LockID: lock.ID, Reason: "   ", Actor: admin})
		require.Error(t, err)
	})

	require.NoError(t, e.locks.Unlock(ctx, periodapp.UnlockRequest{
		LockID: lock.ID,
		Reason: "reopened for adjustments",
		Actor:  admin,
	}))

	receipt, err := e.receiptSvc.CreateReceipt(ctx, ledgerapp.CreateReceiptRequest{
		SellerCode:   "S1",
		CustomerCode: "C1",
		Amount:       decimal.NewFromInt(500),
		ReceiptDate:  date(2024, time.July, 10),
		Mode:         ledger.AllocationModeFIFO,
		Actor:        admin,
	})
	require.NoError(t, err)

	_, err = e.allocator.Approve(ctx, ledgerapp.ApproveRequest{
		ReceiptID:       receipt.ID,
		ExpectedVersion: receipt.Version,
		Actor:           admin,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.auditCount(t, "PERIOD_UNLOCKED"))
}

func TestQuarterLockCoversItsMonths(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := testutil.Actor(shared.RoleAdmin)

	e.seedSeller(t, "S1")
	e.seedCustomer(t, "C1", decimal.NewFromInt(100))
	e.seedInvoice(t, "S1", "C1", "3001", date(2024, time.February, 1), date(2024, time.February, 28), 100)

	_, err := e.locks.Lock(ctx, periodapp.LockRequest{
		Type:  period.LockTypeQuarter,
		Key:   "2024-Q1",
		Actor: admin,
	})
	require.NoError(t, err)

	receipt, err := e.receiptSvc.CreateReceipt(ctx, ledgerapp.CreateReceiptRequest{
		SellerCode:   "S1",
		CustomerCode: "C1",
		Amount:       decimal.NewFromInt(100),
		ReceiptDate:  date(2024, time.February, 15),
		Mode:         ledger.AllocationModeFIFO,
		Actor:        admin,
	})
	require.NoError(t, err)

	_, err = e.allocator.Approve(ctx, ledgerapp.ApproveRequest{
		ReceiptID:       receipt.ID,
		ExpectedVersion: receipt.Version,
		Actor:           admin,
	})
	require.Error(t, err)

	var lockedErr *shared.PeriodLockedError
	require.ErrorAs(t, err, &lockedErr)
	assert.Equal(t, []string{"QUARTER:2024-Q1"}, lockedErr.LockedPeriods)
}
