package bulk

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/shared"
)

// BatchType identifies the kind of documents a batch carries
type BatchType string

const (
	BatchTypeInvoices BatchType = "INVOICES"
	BatchTypeAdvances BatchType = "ADVANCES"
	BatchTypeReceipts BatchType = "RECEIPTS"
)

// IsValid checks if the batch type is valid
func (t BatchType) IsValid() bool {
	switch t {
	case BatchTypeInvoices, BatchTypeAdvances, BatchTypeReceipts:
		return true
	}
	return false
}

// String returns the string representation of BatchType
func (t BatchType) String() string {
	return string(t)
}

// BatchStatus represents the lifecycle state of an import batch
type BatchStatus string

const (
	BatchStatusStaging    BatchStatus = "STAGING"     // Rows staged, nothing written to live tables
	BatchStatusCommitted  BatchStatus = "COMMITTED"   // Accepted rows written to live tables
	BatchStatusRolledBack BatchStatus = "ROLLED_BACK" // Committed rows removed again
	BatchStatusCancelled  BatchStatus = "CANCELLED"   // Discarded before commit
)

// IsValid checks if the status is a valid BatchStatus
func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusStaging, BatchStatusCommitted, BatchStatusRolledBack, BatchStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of BatchStatus
func (s BatchStatus) String() string {
	return string(s)
}

// ImportBatch tracks one bulk import from staging through commit or cancel.
// The idempotency key dedupes retried submissions; a resubmission with the
// same key but a different payload hash is rejected rather than replayed.
type ImportBatch struct {
	shared.BaseAggregateRoot
	Type           BatchType
	Status         BatchStatus
	IdempotencyKey string
	Source         string // Free-form origin label, e.g. a file name
	FileHash       string // Hash of the raw payload
	CreatedBy      uuid.UUID
	TotalRows      int
	OKRows         int
	WarnRows       int
	ErrorRows      int
	SkippedRows    int
	CommittedRows  int
	CommittedAt    *time.Time
	RolledBackAt   *time.Time
	CancelledAt    *time.Time
	FailureReason  string
}

// NewImportBatch creates a batch in STAGING
func NewImportBatch(batchType BatchType, idempotencyKey, source, fileHash string, createdBy uuid.UUID) (*ImportBatch, error) {
	if !batchType.IsValid() {
		return nil, shared.NewValidationError("INVALID_BATCH_TYPE", fmt.Sprintf("Invalid batch type: %s", batchType))
	}
	if strings.TrimSpace(idempotencyKey) == "" {
		return nil, shared.NewValidationError("INVALID_IDEMPOTENCY_KEY", "Idempotency key cannot be empty")
	}
	if strings.TrimSpace(fileHash) == "" {
		return nil, shared.NewValidationError("INVALID_FILE_HASH", "Payload hash cannot be empty")
	}
	if createdBy == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_ACTOR", "Batch creator is required")
	}
	return &ImportBatch{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Type:              batchType,
		Status:            BatchStatusStaging,
		IdempotencyKey:    idempotencyKey,
		Source:            source,
		FileHash:          fileHash,
		CreatedBy:         createdBy,
	}, nil
}

// MatchesPayload reports whether a resubmission carries the same payload
func (b *ImportBatch) MatchesPayload(fileHash string) bool {
	return b.FileHash == fileHash
}

// IsStaging returns true while the batch can still be previewed or committed
func (b *ImportBatch) IsStaging() bool {
	return b.Status == BatchStatusStaging
}

// RecordStagingCounts stores the validation summary of the staged rows
func (b *ImportBatch) RecordStagingCounts(total, ok, warn, errored, skipped int) {
	b.TotalRows = total
	b.OKRows = ok
	b.WarnRows = warn
	b.ErrorRows = errored
	b.SkippedRows = skipped
	b.touch()
}

// Commit transitions STAGING to COMMITTED
func (b *ImportBatch) Commit(committedRows int) error {
	if b.Status != BatchStatusStaging {
		return shared.NewValidationError("INVALID_STATE", fmt.Sprintf("Cannot commit batch in %s status", b.Status))
	}
	now := time.Now().UTC()
	b.Status = BatchStatusCommitted
	b.CommittedRows = committedRows
	b.CommittedAt = &now
	b.touch()
	return nil
}

// Cancel discards a staging batch. Cancelling an already cancelled batch is
// a no-op so retried cancel requests stay idempotent.
func (b *ImportBatch) Cancel(reason string) error {
	if b.Status == BatchStatusCancelled {
		return nil
	}
	if b.Status != BatchStatusStaging {
		return shared.NewValidationError("INVALID_STATE", fmt.Sprintf("Cannot cancel batch in %s status", b.Status))
	}
	now := time.Now().UTC()
	b.Status = BatchStatusCancelled
	b.CancelledAt = &now
	b.FailureReason = reason
	b.touch()
	return nil
}

// Rollback transitions COMMITTED to ROLLED_BACK
func (b *ImportBatch) Rollback() error {
	if b.Status != BatchStatusCommitted {
		return shared.NewValidationError("INVALID_STATE", fmt.Sprintf("Cannot roll back batch in %s status", b.Status))
	}
	now := time.Now().UTC()
	b.Status = BatchStatusRolledBack
	b.RolledBackAt = &now
	b.touch()
	return nil
}

func (b *ImportBatch) touch() {
	b.UpdatedAt = time.Now().UTC()
}
