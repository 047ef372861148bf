package bulk

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/ledger/backend/internal/application/period"
	"github.com/ledger/backend/internal/domain/bulk"
	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/ledger/backend/internal/domain/partner"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/ledger/backend/internal/infrastructure/importer"
	"github.com/ledger/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ImportService drives a bulk import from staging through commit, cancel or
// rollback. Staged rows never touch the live tables until commit.
type ImportService struct {
	batchRepo      bulk.BatchRepository
	rowRepo        bulk.StagingRowRepository
	invoiceRepo    ledger.InvoiceRepository
	advanceRepo    ledger.AdvanceRepository
	receiptRepo    ledger.ReceiptRepository
	allocationRepo ledger.AllocationRepository
	customerRepo   partner.CustomerRepository
	sellerRepo     partner.SellerRepository
	lockService    *period.LockService
	tx             shared.TransactionManager
	audit          shared.AuditSink
	validate       *validator.Validate
	maxRows        int
	logger         *zap.Logger
}

// NewImportService creates a new ImportService
func NewImportService(
	batchRepo bulk.BatchRepository,
	rowRepo bulk.StagingRowRepository,
	invoiceRepo ledger.InvoiceRepository,
	advanceRepo ledger.AdvanceRepository,
	receiptRepo ledger.ReceiptRepository,
	allocationRepo ledger.AllocationRepository,
	customerRepo partner.CustomerRepository,
	sellerRepo partner.SellerRepository,
	lockService *period.LockService,
	tx shared.TransactionManager,
	audit shared.AuditSink,
	maxRows int,
	logger *zap.Logger,
) *ImportService {
	if maxRows <= 0 {
		maxRows = 10000
	}
	return &ImportService{
		batchRepo:      batchRepo,
		rowRepo:        rowRepo,
		invoiceRepo:    invoiceRepo,
		advanceRepo:    advanceRepo,
		receiptRepo:    receiptRepo,
		allocationRepo: allocationRepo,
		customerRepo:   customerRepo,
		sellerRepo:     sellerRepo,
		lockService:    lockService,
		tx:             tx,
		audit:          audit,
		validate:       validator.New(),
		maxRows:        maxRows,
		logger:         logger,
	}
}

// CreateBatchRequest opens a new import batch
type CreateBatchRequest struct {
	Type           bulk.BatchType `validate:"required"`
	IdempotencyKey string         `validate:"required,max=128"`
	Source         string         `validate:"max=255"`
	FileHash       string         `validate:"required,max=128"`
	Actor          shared.Actor
}

// CreateBatch opens a batch in STAGING. Resubmitting the same idempotency
// key with an identical type, source and payload hash returns the existing
// batch; the same key with a different payload is rejected.
func (s *ImportService) CreateBatch(ctx context.Context, req CreateBatchRequest) (*bulk.ImportBatch, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "import", "create_batch")
	defer span.End()

	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewValidationError("INVALID_REQUEST", err.Error())
	}

	existing, err := s.batchRepo.FindByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	if existing != nil {
		if existing.Type == req.Type && existing.Source == req.Source && existing.MatchesPayload(req.FileHash) {
			s.logger.Info("import batch resubmitted, returning existing",
				zap.String("batch_id", existing.ID.String()),
				zap.String("idempotency_key", req.IdempotencyKey))
			return existing, nil
		}
		return nil, shared.NewValidationError("IDEMPOTENCY_KEY_REUSED",
			"Idempotency key was already used for a different payload")
	}

	batch, err := bulk.NewImportBatch(req.Type, req.IdempotencyKey, req.Source, req.FileHash, req.Actor.ID)
	if err != nil {
		return nil, err
	}
	if err := s.batchRepo.Create(ctx, batch); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrBatchID, batch.ID.String())
	s.logger.Info("import batch created",
		zap.String("batch_id", batch.ID.String()),
		zap.String("type", batch.Type.String()),
		zap.String("source", batch.Source))
	return batch, nil
}

// StageRequest carries the raw rows of a batch
type StageRequest struct {
	BatchID uuid.UUID
	// Rows are key/value cell maps in file order, extracted upstream.
	Rows  []map[string]string
	Actor shared.Actor
}

// StageResult summarizes staging validation
type StageResult struct {
	BatchID   uuid.UUID
	TotalRows int
	OKRows    int
	WarnRows  int
	ErrorRows int
	Skipped   int
}

// Stage normalizes and validates the raw rows of a STAGING batch. Every row
// is kept with its verdict; duplicates within the file and against the live
// tables are marked for skip rather than dropped.
func (s *ImportService) Stage(ctx context.Context, req StageRequest) (*StageResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "import", "stage")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrBatchID, req.BatchID.String())

	batch, err := s.batchRepo.FindByID(ctx, req.BatchID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load batch: %w", err)
	}
	if batch == nil {
		return nil, shared.ErrNotFound
	}
	if !batch.IsStaging() {
		return nil, shared.NewValidationError("INVALID_STATE",
			fmt.Sprintf("Cannot stage rows into a batch in %s status", batch.Status))
	}
	if len(req.Rows) == 0 {
		return nil, shared.NewValidationError("EMPTY_IMPORT", "Import contains no rows")
	}
	if len(req.Rows) > s.maxRows {
		return nil, shared.NewValidationError("TOO_MANY_ROWS",
			fmt.Sprintf("Import exceeds the row limit of %d", s.maxRows))
	}
	if batch.TotalRows > 0 {
		return nil, shared.NewValidationError("ALREADY_STAGED", "Batch rows were already staged")
	}

	rows := make([]*bulk.StagingRow, 0, len(req.Rows))
	seenKeys := make(map[string]bool, len(req.Rows))
	sellerKnown := make(map[string]bool)
	result := &StageResult{BatchID: batch.ID, TotalRows: len(req.Rows)}

	for i, raw := range req.Rows {
		row, err := bulk.NewStagingRow(batch.ID, i+1, encodeRaw(raw))
		if err != nil {
			return nil, err
		}
		record, violations := importer.NormalizeRow(batch.Type, raw)
		row.Normalized = record
		for _, v := range violations {
			row.AddViolation(v.Code, v.IsError)
		}

		if record.SellerCode != "" {
			known, ok := sellerKnown[record.SellerCode]
			if !ok {
				known, err = s.sellerRepo.ExistsByCode(ctx, record.SellerCode)
				if err != nil {
					telemetry.RecordError(span, err)
					return nil, fmt.Errorf("failed to check seller: %w", err)
				}
				sellerKnown[record.SellerCode] = known
			}
			if !known {
				row.AddViolation(bulk.ViolationUnknownSeller, true)
			}
		}

		// Receipts carry no document series/number, so duplicate detection
		// applies to invoices and advances only.
		if batch.Type != bulk.BatchTypeReceipts && row.Status != bulk.RowStatusError {
			key := record.DedupKey()
			if seenKeys[key] {
				row.MarkDuplicate(bulk.ViolationDupInFile)
			} else {
				seenKeys[key] = true
				exists, err := s.dedupExists(ctx, batch.Type, record)
				if err != nil {
					telemetry.RecordError(span, err)
					return nil, fmt.Errorf("failed to check duplicates: %w", err)
				}
				if exists {
					row.MarkDuplicate(bulk.ViolationDupInDB)
				}
			}
		}

		switch row.Status {
		case bulk.RowStatusOK:
			result.OKRows++
		case bulk.RowStatusWarn:
			result.WarnRows++
		case bulk.RowStatusError:
			result.ErrorRows++
		}
		if row.Action == bulk.RowActionSkip {
			result.Skipped++
		}
		rows = append(rows, row)
	}

	err = s.tx.Transaction(ctx, func(ctx context.Context) error {
		if err := s.rowRepo.CreateAll(ctx, rows); err != nil {
			return fmt.Errorf("failed to persist staged rows: %w", err)
		}
		batch.RecordStagingCounts(result.TotalRows, result.OKRows, result.WarnRows, result.ErrorRows, result.Skipped)
		if err := s.batchRepo.SaveWithLock(ctx, batch); err != nil {
			return fmt.Errorf("failed to save batch: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("import batch staged",
		zap.String("batch_id", batch.ID.String()),
		zap.Int("total", result.TotalRows),
		zap.Int("ok", result.OKRows),
		zap.Int("warn", result.WarnRows),
		zap.Int("error", result.ErrorRows),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

func (s *ImportService) dedupExists(ctx context.Context, batchType bulk.BatchType, record *bulk.NormalizedRecord) (bool, error) {
	switch batchType {
	case bulk.BatchTypeInvoices:
		return s.invoiceRepo.ExistsByDedupKey(ctx, record.SellerCode, record.CustomerCode, record.Series, record.Number, record.IssueDate)
	case bulk.BatchTypeAdvances:
		return s.advanceRepo.ExistsByDedupKey(ctx, record.SellerCode, record.CustomerCode, record.Series, record.Number, record.IssueDate)
	}
	return false, nil
}

// PreviewRequest asks for a page of staged rows
type PreviewRequest struct {
	BatchID uuid.UUID
	Page    int
	PageSize int
	// Status filters rows by validation verdict when non-empty.
	Status bulk.RowValidationStatus
}

// PreviewResult is one page of staged rows plus aggregate counts
type PreviewResult struct {
	Batch  *bulk.ImportBatch
	Rows   *shared.Paginated[bulk.StagingRow]
	Counts map[bulk.RowValidationStatus]int
}

// Preview returns a page of a batch's staged rows with their violations and
// the batch-wide counts per validation status.
func (s *ImportService) Preview(ctx context.Context, req PreviewRequest) (*PreviewResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "import", "preview")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrBatchID, req.BatchID.String())

	batch, err := s.batchRepo.FindByID(ctx, req.BatchID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load batch: %w", err)
	}
	if batch == nil {
		return nil, shared.ErrNotFound
	}

	filter := shared.DefaultFilter()
	if req.Page > 0 {
		filter.Page = req.Page
	}
	if req.PageSize > 0 {
		filter.PageSize = req.PageSize
	}
	if req.Status != "" {
		filter.Filters["status"] = req.Status
	}

	rows, err := s.rowRepo.ListByBatch(ctx, batch.ID, filter)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to list staged rows: %w", err)
	}
	counts, err := s.rowRepo.CountByStatus(ctx, batch.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to count staged rows: %w", err)
	}
	return &PreviewResult{Batch: batch, Rows: rows, Counts: counts}, nil
}

// CommitRequest asks to commit a staged batch
type CommitRequest struct {
	BatchID         uuid.UUID
	ExpectedVersion int
	Actor           shared.Actor
	OverrideReason  string
}

// CommitResult summarizes a committed batch
type CommitResult struct {
	BatchID       uuid.UUID
	CommittedRows int
	SkippedRows   int
}

// Commit writes every committable staged row to the live tables in one
// all-or-nothing transaction. Error rows and duplicates are passed over as
// skipped. Customer balances move for invoices and advances; receipts enter
// as drafts and affect the balance only once approved.
func (s *ImportService) Commit(ctx context.Context, req CommitRequest) (*CommitResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "import", "commit")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrBatchID, req.BatchID.String())

	batch, err := s.batchRepo.FindByID(ctx, req.BatchID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load batch: %w", err)
	}
	if batch == nil {
		return nil, shared.ErrNotFound
	}
	if !batch.IsStaging() {
		return nil, shared.NewValidationError("INVALID_STATE",
			fmt.Sprintf("Cannot commit batch in %s status", batch.Status))
	}
	if err := batch.CheckVersion(req.ExpectedVersion); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	rows, err := s.rowRepo.ListCommittableByBatch(ctx, batch.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load committable rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, shared.NewValidationError("NOTHING_TO_COMMIT", "Batch has no committable rows")
	}

	// One aggregate lock check over every implicated date, before any write.
	gateDates := make([]time.Time, 0, len(rows)*2)
	for i := range rows {
		record := rows[i].Normalized
		if record == nil {
			continue
		}
		gateDates = append(gateDates, record.IssueDate)
		if !record.DueDate.IsZero() {
			gateDates = append(gateDates, record.DueDate)
		}
	}
	if err := s.lockService.Gate(ctx, period.GateRequest{
		Dates:          gateDates,
		Actor:          req.Actor,
		OverrideReason: req.OverrideReason,
		Action:         "IMPORT_COMMIT",
		EntityType:     "ImportBatch",
		EntityID:       batch.ID.String(),
	}); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	committed := 0
	err = s.tx.Transaction(ctx, func(ctx context.Context) error {
		balanceDeltas := make(map[string]decimalDelta)
		for i := range rows {
			record := rows[i].Normalized
			if record == nil {
				continue
			}
			if err := s.commitRow(ctx, batch, record, balanceDeltas); err != nil {
				return fmt.Errorf("line %d: %w", rows[i].LineNumber, err)
			}
			committed++
		}
		if err := s.applyBalanceDeltas(ctx, balanceDeltas); err != nil {
			return err
		}
		if err := batch.Commit(committed); err != nil {
			return err
		}
		if err := s.batchRepo.SaveWithLock(ctx, batch); err != nil {
			return fmt.Errorf("failed to save batch: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.audit.Record(ctx, shared.AuditEntry{
		Action:     "IMPORT_COMMITTED",
		EntityType: "ImportBatch",
		EntityID:   batch.ID.String(),
		After:      batchSnapshot(batch),
		ActorID:    req.Actor.ID,
		OccurredAt: time.Now().UTC(),
	})
	s.logger.Info("import batch committed",
		zap.String("batch_id", batch.ID.String()),
		zap.Int("committed", committed),
		zap.Int("skipped", batch.SkippedRows))
	return &CommitResult{BatchID: batch.ID, CommittedRows: committed, SkippedRows: batch.SkippedRows}, nil
}

// commitRow writes one normalized record to the live table for its type
func (s *ImportService) commitRow(ctx context.Context, batch *bulk.ImportBatch, record *bulk.NormalizedRecord, deltas map[string]decimalDelta) error {
	switch batch.Type {
	case bulk.BatchTypeInvoices:
		invoice, err := ledger.NewInvoice(record.SellerCode, record.CustomerCode,
			record.Series, record.Number, record.IssueDate, record.DueDate, record.Amount)
		if err != nil {
			return err
		}
		invoice.TagSourceBatch(batch.ID)
		if err := s.invoiceRepo.Create(ctx, invoice); err != nil {
			return fmt.Errorf("failed to insert invoice: %w", err)
		}
		addDelta(deltas, record.CustomerCode, record.Amount)
	case bulk.BatchTypeAdvances:
		advance, err := ledger.NewAdvance(record.SellerCode, record.CustomerCode,
			record.Series, record.Number, record.IssueDate, record.DueDate, record.Amount)
		if err != nil {
			return err
		}
		advance.TagSourceBatch(batch.ID)
		if err := s.advanceRepo.Create(ctx, advance); err != nil {
			return fmt.Errorf("failed to insert advance: %w", err)
		}
		addDelta(deltas, record.CustomerCode, record.Amount)
	case bulk.BatchTypeReceipts:
		receipt, err := ledger.NewReceipt(record.SellerCode, record.CustomerCode,
			record.Amount, record.IssueDate, ledger.AllocationMode(record.AllocationMode))
		if err != nil {
			return err
		}
		if record.AppliedPeriod != "" {
			if err := receipt.UpdateDraft(record.Amount, record.IssueDate,
				ledger.AllocationMode(record.AllocationMode), record.AppliedPeriod); err != nil {
				return err
			}
		}
		receipt.TagSourceBatch(batch.ID)
		if err := s.receiptRepo.Create(ctx, receipt); err != nil {
			return fmt.Errorf("failed to insert receipt: %w", err)
		}
	}
	return nil
}

// CancelRequest discards a staging batch
type CancelRequest struct {
	BatchID uuid.UUID
	Reason  string
	Actor   shared.Actor
}

// Cancel discards a STAGING batch and its staged rows. Cancelling an
// already cancelled batch succeeds without effect.
func (s *ImportService) Cancel(ctx context.Context, req CancelRequest) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "import", "cancel")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrBatchID, req.BatchID.String())

	batch, err := s.batchRepo.FindByID(ctx, req.BatchID)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to load batch: %w", err)
	}
	if batch == nil {
		return shared.ErrNotFound
	}
	if batch.Status == bulk.BatchStatusCancelled {
		return nil
	}

	err = s.tx.Transaction(ctx, func(ctx context.Context) error {
		if err := batch.Cancel(req.Reason); err != nil {
			return err
		}
		if err := s.rowRepo.DeleteByBatch(ctx, batch.ID); err != nil {
			return fmt.Errorf("failed to delete staged rows: %w", err)
		}
		if err := s.batchRepo.SaveWithLock(ctx, batch); err != nil {
			return fmt.Errorf("failed to save batch: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	s.audit.Record(ctx, shared.AuditEntry{
		Action:     "IMPORT_CANCELLED",
		EntityType: "ImportBatch",
		EntityID:   batch.ID.String(),
		After:      batchSnapshot(batch),
		ActorID:    req.Actor.ID,
		OccurredAt: time.Now().UTC(),
	})
	s.logger.Info("import batch cancelled",
		zap.String("batch_id", batch.ID.String()),
		zap.String("reason", req.Reason))
	return nil
}

// RollbackRequest reverses a committed batch
type RollbackRequest struct {
	BatchID         uuid.UUID
	Reason          string
	ExpectedVersion int
	Actor           shared.Actor
	OverrideReason  string
}

// Rollback removes every row a committed batch inserted and restores the
// customer balances it moved. A batch whose receipts were approved, or
// whose rows participate in any allocation, can no longer be rolled back.
func (s *ImportService) Rollback(ctx context.Context, req RollbackRequest) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "import", "rollback")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrBatchID, req.BatchID.String())

	batch, err := s.batchRepo.FindByID(ctx, req.BatchID)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to load batch: %w", err)
	}
	if batch == nil {
		return shared.ErrNotFound
	}
	if batch.Status != bulk.BatchStatusCommitted {
		return shared.NewValidationError("INVALID_STATE",
			fmt.Sprintf("Cannot roll back batch in %s status", batch.Status))
	}
	if err := batch.CheckVersion(req.ExpectedVersion); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	if batch.Type == bulk.BatchTypeReceipts {
		approved, err := s.receiptRepo.AnyApprovedInBatch(ctx, batch.ID)
		if err != nil {
			telemetry.RecordError(span, err)
			return fmt.Errorf("failed to check batch receipts: %w", err)
		}
		if approved {
			return shared.NewValidationError("BATCH_IN_USE",
				"Batch has approved receipts and can no longer be rolled back")
		}
	}
	allocated, err := s.allocationRepo.AnyForBatchRows(ctx, batch.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to check batch allocations: %w", err)
	}
	if allocated {
		return shared.NewValidationError("BATCH_IN_USE",
			"Batch rows participate in allocations and can no longer be rolled back")
	}

	invoices, advances, receipts, err := s.loadBatchRows(ctx, batch)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	gateDates := make([]time.Time, 0, len(invoices)*2+len(advances)*2+len(receipts))
	for i := range invoices {
		gateDates = append(gateDates, invoices[i].IssueDate, invoices[i].DueDate)
	}
	for i := range advances {
		gateDates = append(gateDates, advances[i].IssueDate, advances[i].DueDate)
	}
	for i := range receipts {
		gateDates = append(gateDates, receipts[i].ReceiptDate)
	}
	if err := s.lockService.Gate(ctx, period.GateRequest{
		Dates:          gateDates,
		Actor:          req.Actor,
		OverrideReason: req.OverrideReason,
		Action:         "IMPORT_ROLLBACK",
		EntityType:     "ImportBatch",
		EntityID:       batch.ID.String(),
	}); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	err = s.tx.Transaction(ctx, func(ctx context.Context) error {
		balanceDeltas := make(map[string]decimalDelta)
		for i := range invoices {
			if err := s.invoiceRepo.SoftDelete(ctx, invoices[i].ID); err != nil {
				return fmt.Errorf("failed to remove invoice: %w", err)
			}
			addDelta(balanceDeltas, invoices[i].CustomerCode, invoices[i].TotalAmount.Neg())
		}
		for i := range advances {
			if err := s.advanceRepo.SoftDelete(ctx, advances[i].ID); err != nil {
				return fmt.Errorf("failed to remove advance: %w", err)
			}
			addDelta(balanceDeltas, advances[i].CustomerCode, advances[i].TotalAmount.Neg())
		}
		for i := range receipts {
			if err := s.receiptRepo.SoftDelete(ctx, receipts[i].ID); err != nil {
				return fmt.Errorf("failed to remove receipt: %w", err)
			}
		}
		if err := s.applyBalanceDeltas(ctx, balanceDeltas); err != nil {
			return err
		}
		if err := batch.Rollback(); err != nil {
			return err
		}
		batch.FailureReason = req.Reason
		if err := s.batchRepo.SaveWithLock(ctx, batch); err != nil {
			return fmt.Errorf("failed to save batch: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	s.audit.Record(ctx, shared.AuditEntry{
		Action:     "IMPORT_ROLLED_BACK",
		EntityType: "ImportBatch",
		EntityID:   batch.ID.String(),
		After:      batchSnapshot(batch),
		ActorID:    req.Actor.ID,
		OccurredAt: time.Now().UTC(),
	})
	s.logger.Info("import batch rolled back",
		zap.String("batch_id", batch.ID.String()),
		zap.Int("invoices_removed", len(invoices)),
		zap.Int("advances_removed", len(advances)),
		zap.Int("receipts_removed", len(receipts)),
		zap.String("reason", req.Reason))
	return nil
}

func (s *ImportService) loadBatchRows(ctx context.Context, batch *bulk.ImportBatch) ([]ledger.Invoice, []ledger.Advance, []ledger.Receipt, error) {
	switch batch.Type {
	case bulk.BatchTypeInvoices:
		invoices, err := s.invoiceRepo.ListBySourceBatch(ctx, batch.ID)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to load batch invoices: %w", err)
		}
		return invoices, nil, nil, nil
	case bulk.BatchTypeAdvances:
		advances, err := s.advanceRepo.ListBySourceBatch(ctx, batch.ID)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to load batch advances: %w", err)
		}
		return nil, advances, nil, nil
	case bulk.BatchTypeReceipts:
		receipts, err := s.receiptRepo.ListBySourceBatch(ctx, batch.ID)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to load batch receipts: %w", err)
		}
		return nil, nil, receipts, nil
	}
	return nil, nil, nil, nil
}

// applyBalanceDeltas folds per-customer balance movements into one save per
// customer inside the surrounding transaction.
func (s *ImportService) applyBalanceDeltas(ctx context.Context, deltas map[string]decimalDelta) error {
	for customerCode, delta := range deltas {
		if delta.amount.IsZero() {
			continue
		}
		customer, err := s.customerRepo.FindByTaxCode(ctx, customerCode)
		if err != nil {
			return fmt.Errorf("failed to load customer %s: %w", customerCode, err)
		}
		if customer == nil {
			return shared.NewValidationError("UNKNOWN_CUSTOMER",
				fmt.Sprintf("Customer %s does not exist", customerCode))
		}
		customer.AdjustBalance(delta.amount)
		if err := s.customerRepo.SaveWithLock(ctx, customer); err != nil {
			return fmt.Errorf("failed to save customer %s: %w", customerCode, err)
		}
	}
	return nil
}
