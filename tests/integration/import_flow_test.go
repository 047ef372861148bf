package integration

import (
	"context"
	"testing"
	"time"

	bulkapp "github.com/ledger/backend/internal/application/bulk"
	ledgerapp "github.com/ledger/backend/internal/application/ledger"
	"github.com/ledger/backend/internal/domain/bulk"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/ledger/backend/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invoiceRow(number, issueDate, amount string) map[string]string {
	return map[string]string{
		"seller_code":   "S1",
		"customer_code": "C1",
		"series":        "A",
		"number":        number,
		"issue_date":    issueDate,
		"amount":        amount,
	}
}

func TestImportInvoicesFullLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	actor := testutil.Actor(shared.RoleAccountant)

	e.seedSeller(t, "S1")
	e.seedCustomer(t, "C1", decimal.NewFromInt(100))

	batch, err := e.imports.CreateBatch(ctx, bulkapp.CreateBatchRequest{
		Type:           bulk.BatchTypeInvoices,
		IdempotencyKey: "import-2024-03",
		Source:         "invoices_march.xlsx",
		FileHash:       "hash-1",
		Actor:          actor,
	})
	require.NoError(t, err)

	t.Run("resubmitting the same payload returns the existing batch", func(t *testing.T) {
		again, err := e.imports.CreateBatch(ctx, bulkapp.CreateBatchRequest{
			Type:           bulk.BatchTypeInvoices,
			IdempotencyKey: "import-2024-03",
			Source:         "invoices_march.xlsx",
			FileHash:       "hash-1",
			Actor:          actor,
		})
		require.NoError(t, err)
		assert.Equal(t, batch.ID, again.ID)
	})

	t.Run("the same key with a different payload is rejected", func(t *testing.T) {
		_, err := e.imports.CreateBatch(ctx, bulkapp.CreateBatchRequest{
			Type:           bulk.BatchTypeInvoices,
			IdempotencyKey: "import-2024-03",
			Source:         "invoices_march.xlsx",
			FileHash:       "hash-2",
			Actor:          actor,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already used")
	})

	stageResult, err := e.imports.Stage(ctx, bulkapp.StageRequest{
		BatchID: batch.ID,
		Rows: []map[string]string{
			invoiceRow("10", "2024-03-01", "500"),
			invoiceRow("11", "01/03/2024", "700,00"),
			invoiceRow("10", "2024-03-01", "500"), // Same document again
		},
		Actor: actor,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, stageResult.TotalRows)
	assert.Equal(t, 2, stageResult.OKRows)
	assert.Equal(t, 1, stageResult.WarnRows)
	assert.Equal(t, 0, stageResult.ErrorRows)
	assert.Equal(t, 1, stageResult.Skipped)

	preview, err := e.imports.Preview(ctx, bulkapp.PreviewRequest{BatchID: batch.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(3), preview.Rows.Total)
	assert.Equal(t, 2, preview.Counts[bulk.RowStatusOK])
	assert.Equal(t, 1, preview.Counts[bulk.RowStatusWarn])

	commitResult, err := e.imports.Commit(ctx, bulkapp.CommitRequest{
		BatchID:         batch.ID,
		ExpectedVersion: preview.Batch.Version,
		Actor:           actor,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, commitResult.CommittedRows)
	assert.Equal(t, 1, commitResult.SkippedRows)

	exists, err := e.invoices.ExistsByDedupKey(ctx, "S1", "C1", "A", "10", date(2024, time.March, 1))
	require.NoError(t, err)
	assert.True(t, exists)
	assert.True(t, e.customerBalance(t, "C1").Equal(decimal.NewFromInt(1300)))
	assert.Equal(t, int64(1), e.auditCount(t, "IMPORT_COMMITTED"))

	committed, err := e.imports.Preview(ctx, bulkapp.PreviewRequest{BatchID: batch.ID})
	require.NoError(t, err)
	require.NoError(t, e.imports.Rollback(ctx, bulkapp.RollbackRequest{
		BatchID:         batch.ID,
		Reason:          "wrong file",
		ExpectedVersion: committed.Batch.Version,
		Actor:           actor,
	}))

	exists, err = e.invoices.ExistsByDedupKey(ctx, "S1", "C1", "A", "10", date(2024, time.March, 1))
	require.NoError(t, err)
	assert.False(t, exists)
	assert.True(t, e.customerBalance(t, "C1").Equal(decimal.NewFromInt(100)))

	final, err := e.imports.Preview(ctx, bulkapp.PreviewRequest{BatchID: batch.ID})
	require.NoError(t, err)
	assert.Equal(t, bulk.BatchStatusRolledBack, final.Batch.Status)
	assert.Equal(t, int64(1), e.auditCount(t, "IMPORT_ROLLED_BACK"))
}

func TestImportErrorRowsAreSkippedOnCommit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	actor := testutil.Actor(shared.RoleAccountant)

	e.seedSeller(t, "S1")
	e.seedCustomer(t, "C1", decimal.Zero)

	batch, err := e.imports.CreateBatch(ctx, bulkapp.CreateBatchRequest{
		Type:           bulk.BatchTypeInvoices,
		IdempotencyKey: "broken-import",
		FileHash:       "hash-err",
		Actor:          actor,
	})
	require.NoError(t, err)

	stageResult, err := e.imports.Stage(ctx, bulkapp.StageRequest{
		BatchID: batch.ID,
		Rows: []map[string]string{
			invoiceRow("20", "2024-04-01", "100"),
			invoiceRow("21", "2024-04-01", "not-a-number"),
		},
		Actor: actor,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stageResult.ErrorRows)
	assert.Equal(t, 1, stageResult.Skipped)

	preview, err := e.imports.Preview(ctx, bulkapp.PreviewRequest{BatchID: batch.ID})
	require.NoError(t, err)
	commitResult, err := e.imports.Commit(ctx, bulkapp.CommitRequest{
		BatchID:         batch.ID,
		ExpectedVersion: preview.Batch.Version,
		Actor:           actor,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, commitResult.CommittedRows)
	assert.Equal(t, 1, commitResult.SkippedRows)

	// The clean row landed, the broken one did not
	exists, err := e.invoices.ExistsByDedupKey(ctx, "S1", "C1", "A", "20", date(2024, time.April, 1))
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = e.invoices.ExistsByDedupKey(ctx, "S1", "C1", "A", "21", date(2024, time.April, 1))
	require.NoError(t, err)
	assert.False(t, exists)
	assert.True(t, e.customerBalance(t, "C1").Equal(decimal.NewFromInt(100)))
}

func TestImportCancel(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	actor := testutil.Actor(shared.RoleAccountant)

	e.seedSeller(t, "S1")
	e.seedCustomer(t, "C1", decimal.Zero)

	batch, err := e.imports.CreateBatch(ctx, bulkapp.CreateBatchRequest{
		Type:           bulk.BatchTypeInvoices,
		IdempotencyKey: "cancelled-import",
		FileHash:       "hash-c",
		Actor:          actor,
	})
	require.NoError(t, err)

	_, err = e.imports.Stage(ctx, bulkapp.StageRequest{
		BatchID: batch.ID,
		Rows:    []map[string]string{invoiceRow("30", "2024-05-01", "100")},
		Actor:   actor,
	})
	require.NoError(t, err)

	require.NoError(t, e.imports.Cancel(ctx, bulkapp.CancelRequest{
		BatchID: batch.ID,
		Reason:  "wrong file",
		Actor:   actor,
	}))

	preview, err := e.imports.Preview(ctx, bulkapp.PreviewRequest{BatchID: batch.ID})
	require.NoError(t, err)
	assert.Equal(t, bulk.BatchStatusCancelled, preview.Batch.Status)
	assert.Empty(t, preview.Rows.Items)

	t.Run("cancelling again is a no-op", func(t *testing.T) {
		require.NoError(t, e.imports.Cancel(ctx, bulkapp.CancelRequest{
			BatchID: batch.ID,
			Reason:  "again",
			Actor:   actor,
		}))
	})
}

func TestImportReceiptsCommitAndRollbackGuard(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	actor := testutil.Actor(shared.RoleAccountant)

	e.seedSeller(t, "S1")
	e.seedCustomer(t, "C1", decimal.NewFromInt(100))

	batch, err := e.imports.CreateBatch(ctx, bulkapp.CreateBatchRequest{
		Type:           bulk.BatchTypeReceipts,
		IdempotencyKey: "receipts-import",
		FileHash:       "hash-r",
		Actor:          actor,
	})
	require.NoError(t, err)

	_, err = e.imports.Stage(ctx, bulkapp.StageRequest{
		BatchID: batch.ID,
		Rows: []map[string]string{
			{"seller_code": "S1", "customer_code": "C1", "receipt_date": "2024-06-01", "amount": "250"},
			{"seller_code": "S1", "customer_code": "C1", "receipt_date": "2024-06-02", "amount": "750"},
		},
		Actor: actor,
	})
	require.NoError(t, err)

	preview, err := e.imports.Preview(ctx, bulkapp.PreviewRequest{BatchID: batch.ID})
	require.NoError(t, err)
	commitResult, err := e.imports.Commit(ctx, bulkapp.CommitRequest{
		BatchID:         batch.ID,
		ExpectedVersion: preview.Batch.Version,
		Actor:           actor,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, commitResult.CommittedRows)

	// Imported receipts are drafts; the customer balance does not move
	assert.True(t, e.customerBalance(t, "C1").Equal(decimal.NewFromInt(100)))

	receipts, err := e.receipts.ListBySourceBatch(ctx, batch.ID)
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	assert.True(t, receipts[0].IsDraft())

	// Approving one of them pins the batch
	_, err = e.allocator.Approve(ctx, ledgerapp.ApproveRequest{
		ReceiptID:       receipts[0].ID,
		ExpectedVersion: receipts[0].Version,
		Actor:           actor,
	})
	require.NoError(t, err)

	committed, err := e.imports.Preview(ctx, bulkapp.PreviewRequest{BatchID: batch.ID})
	require.NoError(t, err)
	err = e.imports.Rollback(ctx, bulkapp.RollbackRequest{
		BatchID:         batch.ID,
		Reason:          "mistake",
		ExpectedVersion: committed.Batch.Version,
		Actor:           actor,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rolled back")
}
