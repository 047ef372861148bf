package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInvoice(t *testing.T, total int64) *Invoice {
	t.Helper()
	inv, err := NewInvoice("S1", "C1", "A", "1001",
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		decimal.NewFromInt(total))
	require.NoError(t, err)
	return inv
}

func TestNewInvoice(t *testing.T) {
	t.Run("creates an open invoice with full outstanding", func(t *testing.T) {
		inv := newTestInvoice(t, 1000)
		assert.Equal(t, InvoiceStatusOpen, inv.Status)
		assert.True(t, inv.OutstandingAmount.Equal(inv.TotalAmount))
		assert.Equal(t, 1, inv.Version)
	})

	t.Run("due date falls back to issue date", func(t *testing.T) {
		inv, err := NewInvoice("S1", "C1", "A", "1002",
			time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC), time.Time{}, decimal.NewFromInt(10))
		require.NoError(t, err)
		assert.True(t, inv.DueDate.Equal(inv.IssueDate))
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		cases := []struct {
			name     string
			seller   string
			customer string
			number   string
			total    decimal.Decimal
		}{
			{"blank seller", " ", "C1", "1", decimal.NewFromInt(10)},
			{"blank customer", "S1", "", "1", decimal.NewFromInt(10)},
			{"empty number", "S1", "C1", "", decimal.NewFromInt(10)},
			{"zero total", "S1", "C1", "1", decimal.Zero},
			{"negative total", "S1", "C1", "1", decimal.NewFromInt(-5)},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := NewInvoice(tc.seller, tc.customer, "A", tc.number, date, date, tc.total)
				assert.Error(t, err)
			})
		}
	})
}

func TestInvoiceApplyAllocation(t *testing.T) {
	t.Run("partial allocation moves to PARTIAL", func(t *testing.T) {
		inv := newTestInvoice(t, 1000)
		require.NoError(t, inv.ApplyAllocation(decimal.NewFromInt(400)))
		assert.Equal(t, InvoiceStatusPartial, inv.Status)
		assert.True(t, inv.OutstandingAmount.Equal(decimal.NewFromInt(600)))
	})

	t.Run("full allocation moves to PAID", func(t *testing.T) {
		inv := newTestInvoice(t, 1000)
		require.NoError(t, inv.ApplyAllocation(decimal.NewFromInt(1000)))
		assert.Equal(t, InvoiceStatusPaid, inv.Status)
		assert.True(t, inv.IsFullySettled())
	})

	t.Run("over-allocation is rejected", func(t *testing.T) {
		inv := newTestInvoice(t, 1000)
		err := inv.ApplyAllocation(decimal.NewFromInt(1001))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds outstanding")
	})

	t.Run("paid invoice accepts no further allocation", func(t *testing.T) {
		inv := newTestInvoice(t, 100)
		require.NoError(t, inv.ApplyAllocation(decimal.NewFromInt(100)))
		assert.Error(t, inv.ApplyAllocation(decimal.NewFromInt(1)))
	})
}

func TestInvoiceRestoreAllocation(t *testing.T) {
	t.Run("restore recomputes the status from the amount", func(t *testing.T) {
		inv := newTestInvoice(t, 1000)
		require.NoError(t, inv.ApplyAllocation(decimal.NewFromInt(1000)))
		require.Equal(t, InvoiceStatusPaid, inv.Status)

		require.NoError(t, inv.RestoreAllocation(decimal.NewFromInt(400)))
		assert.Equal(t, InvoiceStatusPartial, inv.Status)

		require.NoError(t, inv.RestoreAllocation(decimal.NewFromInt(600)))
		assert.Equal(t, InvoiceStatusOpen, inv.Status)
		assert.True(t, inv.OutstandingAmount.Equal(inv.TotalAmount))
	})

	t.Run("restore clamps at the total", func(t *testing.T) {
		inv := newTestInvoice(t, 1000)
		require.NoError(t, inv.ApplyAllocation(decimal.NewFromInt(100)))
		require.NoError(t, inv.RestoreAllocation(decimal.NewFromInt(500)))
		assert.True(t, inv.OutstandingAmount.Equal(inv.TotalAmount))
		assert.Equal(t, InvoiceStatusOpen, inv.Status)
	})

	t.Run("void invoice cannot be restored", func(t *testing.T) {
		inv := newTestInvoice(t, 1000)
		require.NoError(t, inv.Void("duplicate"))
		assert.Error(t, inv.RestoreAllocation(decimal.NewFromInt(100)))
	})
}

func TestInvoiceVoid(t *testing.T) {
	t.Run("void zeroes outstanding", func(t *testing.T) {
		inv := newTestInvoice(t, 1000)
		require.NoError(t, inv.Void("issued in error"))
		assert.Equal(t, InvoiceStatusVoid, inv.Status)
		assert.True(t, inv.OutstandingAmount.IsZero())
		assert.NotNil(t, inv.VoidedAt)
		assert.Equal(t, "issued in error", inv.VoidReason)
	})

	t.Run("void requires a reason", func(t *testing.T) {
		inv := newTestInvoice(t, 1000)
		assert.Error(t, inv.Void("  "))
	})

	t.Run("double void is rejected", func(t *testing.T) {
		inv := newTestInvoice(t, 1000)
		require.NoError(t, inv.Void("first"))
		assert.Error(t, inv.Void("second"))
	})
}

func TestDedupKey(t *testing.T) {
	key := DedupKey("S1", "C1", "A", "1001", time.Date(2024, 3, 1, 18, 45, 0, 0, time.UTC))
	assert.Equal(t, "S1|C1|A|1001|2024-03-01", key)

	inv := newTestInvoice(t, 100)
	assert.Equal(t, "S1|C1|A|1001|2024-03-01", inv.DedupKey())
}
