package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReceipt(t *testing.T, amount int64) *Receipt {
	t.Helper()
	r, err := NewReceipt("S1", "C1", decimal.NewFromInt(amount),
		time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), AllocationModeFIFO)
	require.NoError(t, err)
	return r
}

func TestNewReceipt(t *testing.T) {
	t.Run("creates a draft with full unallocated amount", func(t *testing.T) {
		r := newTestReceipt(t, 600)
		assert.Equal(t, ReceiptStatusDraft, r.Status)
		assert.Equal(t, AllocationStatusUnallocated, r.AllocationStatus)
		assert.True(t, r.UnallocatedAmount.Equal(r.Amount))
		assert.True(t, r.IsDraft())
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
		_, err := NewReceipt("", "C1", decimal.NewFromInt(1), date, AllocationModeFIFO)
		assert.Error(t, err)
		_, err = NewReceipt("S1", "C1", decimal.Zero, date, AllocationModeFIFO)
		assert.Error(t, err)
		_, err = NewReceipt("S1", "C1", decimal.NewFromInt(1), time.Time{}, AllocationModeFIFO)
		assert.Error(t, err)
		_, err = NewReceipt("S1", "C1", decimal.NewFromInt(1), date, AllocationMode("RANDOM"))
		assert.Error(t, err)
	})
}

func TestReceiptUpdateDraft(t *testing.T) {
	t.Run("edits amount, date and mode while draft", func(t *testing.T) {
		r := newTestReceipt(t, 600)
		newDate := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, r.UpdateDraft(decimal.NewFromInt(750), newDate, AllocationModeByPeriod, "2024-04"))
		assert.True(t, r.Amount.Equal(decimal.NewFromInt(750)))
		assert.True(t, r.UnallocatedAmount.Equal(decimal.NewFromInt(750)))
		assert.Equal(t, "2024-04", r.AppliedPeriodKey)
	})

	t.Run("BY_PERIOD requires an applied period", func(t *testing.T) {
		r := newTestReceipt(t, 600)
		err := r.UpdateDraft(r.Amount, r.ReceiptDate, AllocationModeByPeriod, "")
		assert.Error(t, err)
	})

	t.Run("approved receipt is frozen", func(t *testing.T) {
		r := newTestReceipt(t, 600)
		require.NoError(t, r.FinalizeApproval())
		err := r.UpdateDraft(decimal.NewFromInt(100), r.ReceiptDate, AllocationModeFIFO, "")
		assert.Error(t, err)
	})
}

func TestReceiptConsumeAndApproval(t *testing.T) {
	t.Run("full consumption approves as ALLOCATED", func(t *testing.T) {
		r := newTestReceipt(t, 600)
		require.NoError(t, r.Consume(decimal.NewFromInt(600)))
		require.NoError(t, r.FinalizeApproval())
		assert.Equal(t, ReceiptStatusApproved, r.Status)
		assert.Equal(t, AllocationStatusAllocated, r.AllocationStatus)
		assert.False(t, r.HasIdleCredit())
	})

	t.Run("remainder approves as PARTIAL, never discarded", func(t *testing.T) {
		r := newTestReceipt(t, 600)
		require.NoError(t, r.Consume(decimal.NewFromInt(500)))
		require.NoError(t, r.FinalizeApproval())
		assert.Equal(t, AllocationStatusPartial, r.AllocationStatus)
		assert.True(t, r.UnallocatedAmount.Equal(decimal.NewFromInt(100)))
		assert.True(t, r.HasIdleCredit())
	})

	t.Run("consuming beyond unallocated is rejected", func(t *testing.T) {
		r := newTestReceipt(t, 600)
		err := r.Consume(decimal.NewFromInt(601))
		assert.Error(t, err)
	})

	t.Run("approving twice is rejected", func(t *testing.T) {
		r := newTestReceipt(t, 600)
		require.NoError(t, r.FinalizeApproval())
		assert.Error(t, r.FinalizeApproval())
	})
}

func TestReceiptCreditBookkeeping(t *testing.T) {
	t.Run("restore credit clamps at the receipt amount", func(t *testing.T) {
		r := newTestReceipt(t, 600)
		require.NoError(t, r.Consume(decimal.NewFromInt(600)))
		require.NoError(t, r.FinalizeApproval())

		require.NoError(t, r.RestoreCredit(decimal.NewFromInt(700)))
		assert.True(t, r.UnallocatedAmount.Equal(r.Amount))
	})

	t.Run("recompute rederives the allocation status", func(t *testing.T) {
		r := newTestReceipt(t, 600)
		require.NoError(t, r.Consume(decimal.NewFromInt(600)))
		require.NoError(t, r.FinalizeApproval())

		require.NoError(t, r.RestoreCredit(decimal.NewFromInt(200)))
		r.RecomputeAllocationStatus()
		assert.Equal(t, AllocationStatusPartial, r.AllocationStatus)

		require.NoError(t, r.RestoreCredit(decimal.NewFromInt(400)))
		r.RecomputeAllocationStatus()
		assert.Equal(t, AllocationStatusUnallocated, r.AllocationStatus)
	})

	t.Run("recompute ignores drafts", func(t *testing.T) {
		r := newTestReceipt(t, 600)
		r.RecomputeAllocationStatus()
		assert.Equal(t, AllocationStatusUnallocated, r.AllocationStatus)
	})
}

func TestReceiptVoid(t *testing.T) {
	t.Run("void clears funds and records the reason", func(t *testing.T) {
		r := newTestReceipt(t, 600)
		require.NoError(t, r.FinalizeApproval())
		require.NoError(t, r.Void("bounced payment"))
		assert.Equal(t, ReceiptStatusVoid, r.Status)
		assert.Equal(t, AllocationStatusVoid, r.AllocationStatus)
		assert.True(t, r.UnallocatedAmount.IsZero())
		assert.NotNil(t, r.VoidedAt)
	})

	t.Run("void requires a reason", func(t *testing.T) {
		r := newTestReceipt(t, 600)
		assert.Error(t, r.Void(""))
	})

	t.Run("double void is rejected", func(t *testing.T) {
		r := newTestReceipt(t, 600)
		require.NoError(t, r.Void("first"))
		assert.Error(t, r.Void("second"))
	})
}

func TestReceiptMarkTargetsSelected(t *testing.T) {
	r := newTestReceipt(t, 600)
	require.NoError(t, r.MarkTargetsSelected())
	assert.Equal(t, AllocationModeManual, r.Mode)
	assert.Equal(t, AllocationStatusSelected, r.AllocationStatus)

	require.NoError(t, r.FinalizeApproval())
	assert.Error(t, r.MarkTargetsSelected())
}
