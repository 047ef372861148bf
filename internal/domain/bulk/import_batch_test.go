package bulk

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStagingBatch(t *testing.T) *ImportBatch {
	t.Helper()
	b, err := NewImportBatch(BatchTypeInvoices, "key-1", "invoices_march.xlsx", "abc123", uuid.New())
	require.NoError(t, err)
	return b
}

func TestNewImportBatch(t *testing.T) {
	t.Run("starts in STAGING", func(t *testing.T) {
		b := newStagingBatch(t)
		assert.Equal(t, BatchStatusStaging, b.Status)
		assert.True(t, b.IsStaging())
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		actor := uuid.New()
		_, err := NewImportBatch(BatchType("CSV"), "k", "s", "h", actor)
		assert.Error(t, err)
		_, err = NewImportBatch(BatchTypeInvoices, " ", "s", "h", actor)
		assert.Error(t, err)
		_, err = NewImportBatch(BatchTypeInvoices, "k", "s", "", actor)
		assert.Error(t, err)
		_, err = NewImportBatch(BatchTypeInvoices, "k", "s", "h", uuid.Nil)
		assert.Error(t, err)
	})

	t.Run("payload match compares the hash", func(t *testing.T) {
		b := newStagingBatch(t)
		assert.True(t, b.MatchesPayload("abc123"))
		assert.False(t, b.MatchesPayload("def456"))
	})
}

func TestImportBatchLifecycle(t *testing.T) {
	t.Run("commit from STAGING", func(t *testing.T) {
		b := newStagingBatch(t)
		b.RecordStagingCounts(10, 8, 1, 0, 1)
		require.NoError(t, b.Commit(9))
		assert.Equal(t, BatchStatusCommitted, b.Status)
		assert.Equal(t, 9, b.CommittedRows)
		assert.NotNil(t, b.CommittedAt)
	})

	t.Run("commit twice is rejected", func(t *testing.T) {
		b := newStagingBatch(t)
		require.NoError(t, b.Commit(1))
		assert.Error(t, b.Commit(1))
	})

	t.Run("cancel from STAGING records the reason", func(t *testing.T) {
		b := newStagingBatch(t)
		require.NoError(t, b.Cancel("wrong file"))
		assert.Equal(t, BatchStatusCancelled, b.Status)
		assert.Equal(t, "wrong file", b.FailureReason)
		assert.NotNil(t, b.CancelledAt)
	})

	t.Run("cancelling an already cancelled batch is a no-op", func(t *testing.T) {
		b := newStagingBatch(t)
		require.NoError(t, b.Cancel("first"))
		firstCancelledAt := *b.CancelledAt
		require.NoError(t, b.Cancel("second"))
		assert.Equal(t, "first", b.FailureReason)
		assert.Equal(t, firstCancelledAt, *b.CancelledAt)
	})

	t.Run("cancel after commit is rejected", func(t *testing.T) {
		b := newStagingBatch(t)
		require.NoError(t, b.Commit(1))
		assert.Error(t, b.Cancel("too late"))
	})

	t.Run("rollback only from COMMITTED", func(t *testing.T) {
		b := newStagingBatch(t)
		assert.Error(t, b.Rollback())

		require.NoError(t, b.Commit(1))
		require.NoError(t, b.Rollback())
		assert.Equal(t, BatchStatusRolledBack, b.Status)
		assert.NotNil(t, b.RolledBackAt)

		assert.Error(t, b.Rollback())
	})
}
