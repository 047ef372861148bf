package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openInvoiceItem(due time.Time, outstanding int64) OpenItem {
	return OpenItem{
		ID:                uuid.New(),
		Kind:              TargetKindInvoice,
		DueDate:           due,
		CreatedAt:         time.Now().UTC(),
		TotalAmount:       decimal.NewFromInt(outstanding),
		OutstandingAmount: decimal.NewFromInt(outstanding),
	}
}

func TestFIFOStrategy(t *testing.T) {
	t.Run("rejects non-positive funds", func(t *testing.T) {
		strategy := NewFIFOStrategy()
		_, err := strategy.Plan(decimal.Zero, nil)
		assert.Error(t, err)
		_, err = strategy.Plan(decimal.NewFromInt(-1), nil)
		assert.Error(t, err)
	})

	t.Run("empty items leave all funds remaining", func(t *testing.T) {
		strategy := NewFIFOStrategy()
		plan, err := strategy.Plan(decimal.NewFromInt(100), []OpenItem{})
		require.NoError(t, err)
		assert.Empty(t, plan.Allocations)
		assert.True(t, plan.RemainingFunds.Equal(decimal.NewFromInt(100)))
		assert.False(t, plan.FullySpent)
	})

	t.Run("settles oldest due item first and splits the remainder", func(t *testing.T) {
		january := openInvoiceItem(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), 500000)
		february := openInvoiceItem(time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), 700000)
		strategy := NewFIFOStrategy()

		// Items arrive out of order; the strategy must sort them itself.
		plan, err := strategy.Plan(decimal.NewFromInt(600000), []OpenItem{february, january})
		require.NoError(t, err)

		require.Len(t, plan.Allocations, 2)
		assert.Equal(t, january.ID, plan.Allocations[0].Target.ID)
		assert.True(t, plan.Allocations[0].Amount.Equal(decimal.NewFromInt(500000)))
		assert.Equal(t, february.ID, plan.Allocations[1].Target.ID)
		assert.True(t, plan.Allocations[1].Amount.Equal(decimal.NewFromInt(100000)))

		assert.True(t, plan.FullySpent)
		assert.True(t, plan.RemainingFunds.IsZero())
		assert.Equal(t, []uuid.UUID{january.ID}, plan.TargetsSettled)
		assert.Equal(t, []uuid.UUID{february.ID}, plan.TargetsPartial)
	})

	t.Run("funds beyond all outstanding stay unspent", func(t *testing.T) {
		item := openInvoiceItem(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 100)
		strategy := NewFIFOStrategy()
		plan, err := strategy.Plan(decimal.NewFromInt(250), []OpenItem{item})
		require.NoError(t, err)
		assert.True(t, plan.TotalAllocated.Equal(decimal.NewFromInt(100)))
		assert.True(t, plan.RemainingFunds.Equal(decimal.NewFromInt(150)))
		assert.False(t, plan.FullySpent)
	})

	t.Run("equal due dates break ties by creation time then id", func(t *testing.T) {
		due := time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)
		created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

		first := openInvoiceItem(due, 100)
		first.CreatedAt = created
		second := openInvoiceItem(due, 100)
		second.CreatedAt = created.Add(time.Minute)

		strategy := NewFIFOStrategy()
		plan, err := strategy.Plan(decimal.NewFromInt(100), []OpenItem{second, first})
		require.NoError(t, err)
		require.Len(t, plan.Allocations, 1)
		assert.Equal(t, first.ID, plan.Allocations[0].Target.ID)
	})

	t.Run("skips already settled items", func(t *testing.T) {
		settled := openInvoiceItem(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 100)
		settled.OutstandingAmount = decimal.Zero
		open := openInvoiceItem(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 100)

		strategy := NewFIFOStrategy()
		plan, err := strategy.Plan(decimal.NewFromInt(50), []OpenItem{settled, open})
		require.NoError(t, err)
		require.Len(t, plan.Allocations, 1)
		assert.Equal(t, open.ID, plan.Allocations[0].Target.ID)
	})
}

func TestPeriodStrategy(t *testing.T) {
	t.Run("requires an applied period", func(t *testing.T) {
		_, err := NewPeriodStrategy("")
		assert.Error(t, err)
	})

	t.Run("only items due within the period are candidates", func(t *testing.T) {
		march := openInvoiceItem(time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC), 300)
		april := openInvoiceItem(time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC), 300)

		strategy, err := NewPeriodStrategy("2024-03")
		require.NoError(t, err)

		plan, err := strategy.Plan(decimal.NewFromInt(500), []OpenItem{april, march})
		require.NoError(t, err)
		require.Len(t, plan.Allocations, 1)
		assert.Equal(t, march.ID, plan.Allocations[0].Target.ID)
		assert.True(t, plan.RemainingFunds.Equal(decimal.NewFromInt(200)))
	})

	t.Run("within the period the order is FIFO", func(t *testing.T) {
		early := openInvoiceItem(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), 100)
		late := openInvoiceItem(time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC), 100)

		strategy, err := NewPeriodStrategy("2024-03")
		require.NoError(t, err)

		plan, err := strategy.Plan(decimal.NewFromInt(150), []OpenItem{late, early})
		require.NoError(t, err)
		require.Len(t, plan.Allocations, 2)
		assert.Equal(t, early.ID, plan.Allocations[0].Target.ID)
		assert.True(t, plan.Allocations[1].Amount.Equal(decimal.NewFromInt(50)))
	})
}

func TestManualStrategy(t *testing.T) {
	t.Run("requires at least one target", func(t *testing.T) {
		_, err := NewManualStrategy(nil)
		assert.Error(t, err)
	})

	t.Run("spends in the caller's order, not due-date order", func(t *testing.T) {
		older := openInvoiceItem(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 100)
		newer := openInvoiceItem(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), 100)

		strategy, err := NewManualStrategy([]TargetRef{newer.Ref(), older.Ref()})
		require.NoError(t, err)

		plan, err := strategy.Plan(decimal.NewFromInt(150), []OpenItem{older, newer})
		require.NoError(t, err)
		require.Len(t, plan.Allocations, 2)
		assert.Equal(t, newer.ID, plan.Allocations[0].Target.ID)
		assert.True(t, plan.Allocations[0].Amount.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, older.ID, plan.Allocations[1].Target.ID)
		assert.True(t, plan.Allocations[1].Amount.Equal(decimal.NewFromInt(50)))
	})

	t.Run("unknown target is an error", func(t *testing.T) {
		item := openInvoiceItem(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 100)
		strategy, err := NewManualStrategy([]TargetRef{{Kind: TargetKindInvoice, ID: uuid.New()}})
		require.NoError(t, err)

		_, err = strategy.Plan(decimal.NewFromInt(50), []OpenItem{item})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "not an open item")
	})

	t.Run("settled target is an error rather than skipped", func(t *testing.T) {
		item := openInvoiceItem(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 100)
		item.OutstandingAmount = decimal.Zero

		strategy, err := NewManualStrategy([]TargetRef{item.Ref()})
		require.NoError(t, err)

		_, err = strategy.Plan(decimal.NewFromInt(50), []OpenItem{item})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "already fully satisfied")
	})

	t.Run("kind mismatch on the same id is rejected", func(t *testing.T) {
		item := openInvoiceItem(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 100)
		strategy, err := NewManualStrategy([]TargetRef{{Kind: TargetKindAdvance, ID: item.ID}})
		require.NoError(t, err)

		_, err = strategy.Plan(decimal.NewFromInt(50), []OpenItem{item})
		assert.Error(t, err)
	})
}

func TestStrategyForReceipt(t *testing.T) {
	newDraft := func(mode AllocationMode) *Receipt {
		r, err := NewReceipt("S1", "C1", decimal.NewFromInt(100), time.Now(), mode)
		require.NoError(t, err)
		return r
	}

	t.Run("explicit targets always select manual", func(t *testing.T) {
		r := newDraft(AllocationModeFIFO)
		strategy, err := StrategyForReceipt(r, []TargetRef{{Kind: TargetKindInvoice, ID: uuid.New()}})
		require.NoError(t, err)
		assert.Equal(t, AllocationModeManual, strategy.Mode())
	})

	t.Run("FIFO receipt uses FIFO", func(t *testing.T) {
		strategy, err := StrategyForReceipt(newDraft(AllocationModeFIFO), nil)
		require.NoError(t, err)
		assert.Equal(t, AllocationModeFIFO, strategy.Mode())
	})

	t.Run("manual receipt without targets falls back to FIFO", func(t *testing.T) {
		strategy, err := StrategyForReceipt(newDraft(AllocationModeManual), nil)
		require.NoError(t, err)
		assert.Equal(t, AllocationModeFIFO, strategy.Mode())
	})

	t.Run("BY_PERIOD receipt without applied period is rejected", func(t *testing.T) {
		r := newDraft(AllocationModeByPeriod)
		_, err := StrategyForReceipt(r, nil)
		assert.Error(t, err)
	})

	t.Run("BY_PERIOD receipt with applied period uses period strategy", func(t *testing.T) {
		r := newDraft(AllocationModeByPeriod)
		require.NoError(t, r.UpdateDraft(r.Amount, r.ReceiptDate, AllocationModeByPeriod, "2024-03"))
		strategy, err := StrategyForReceipt(r, nil)
		require.NoError(t, err)
		assert.Equal(t, AllocationModeByPeriod, strategy.Mode())
	})
}
