package bulk

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStagingRow(t *testing.T) {
	t.Run("starts clean and committable", func(t *testing.T) {
		row, err := NewStagingRow(uuid.New(), 1, `{"amount":"100"}`)
		require.NoError(t, err)
		assert.Equal(t, RowStatusOK, row.Status)
		assert.Equal(t, RowActionInsert, row.Action)
		assert.True(t, row.IsCommittable())
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		_, err := NewStagingRow(uuid.Nil, 1, "")
		assert.Error(t, err)
		_, err = NewStagingRow(uuid.New(), 0, "")
		assert.Error(t, err)
	})
}

func TestStagingRowViolations(t *testing.T) {
	t.Run("warning degrades OK to WARN but stays committable", func(t *testing.T) {
		row, _ := NewStagingRow(uuid.New(), 1, "")
		row.AddViolation(ViolationDupInFile, false)
		assert.Equal(t, RowStatusWarn, row.Status)
		assert.True(t, row.IsCommittable())
	})

	t.Run("error marks the row as a skip", func(t *testing.T) {
		row, _ := NewStagingRow(uuid.New(), 1, "")
		row.AddViolation(ViolationBadAmount, true)
		assert.Equal(t, RowStatusError, row.Status)
		assert.Equal(t, RowActionSkip, row.Action)
		assert.False(t, row.IsCommittable())
	})

	t.Run("a row never improves", func(t *testing.T) {
		row, _ := NewStagingRow(uuid.New(), 1, "")
		row.AddViolation(ViolationBadDate, true)
		row.AddViolation(ViolationDupInFile, false)
		assert.Equal(t, RowStatusError, row.Status)
		assert.Len(t, row.Violations, 2)
	})

	t.Run("duplicates switch the action to SKIP without blocking", func(t *testing.T) {
		row, _ := NewStagingRow(uuid.New(), 1, "")
		row.MarkDuplicate(ViolationDupInDB)
		assert.Equal(t, RowStatusWarn, row.Status)
		assert.Equal(t, RowActionSkip, row.Action)
		assert.False(t, row.IsCommittable())
	})
}

func TestNormalizedRecordDedupKey(t *testing.T) {
	record := NormalizedRecord{
		SellerCode:   "S1",
		CustomerCode: "C1",
		Series:       "A",
		Number:       "42",
		IssueDate:    time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Amount:       decimal.NewFromInt(100),
	}
	assert.Equal(t, "S1|C1|A|42|2024-03-01", record.DedupKey())
}
