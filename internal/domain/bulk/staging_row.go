package bulk

import (
	"time"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// RowValidationStatus is the verdict of staging validation on one row
type RowValidationStatus string

const (
	RowStatusOK    RowValidationStatus = "OK"    // Clean, will be inserted
	RowStatusWarn  RowValidationStatus = "WARN"  // Insertable, carries warnings
	RowStatusError RowValidationStatus = "ERROR" // Skipped on commit
)

// IsValid checks if the row status is valid
func (s RowValidationStatus) IsValid() bool {
	switch s {
	case RowStatusOK, RowStatusWarn, RowStatusError:
		return true
	}
	return false
}

// RowAction is the planned commit action for one staged row
type RowAction string

const (
	RowActionInsert RowAction = "INSERT"
	RowActionSkip   RowAction = "SKIP" // Invalid row or duplicate of an existing document
)

// Violation codes attached to staged rows during validation.
const (
	ViolationMissingField   = "MISSING_FIELD"
	ViolationBadDate        = "BAD_DATE"
	ViolationBadAmount      = "BAD_AMOUNT"
	ViolationNegativeAmount = "NEGATIVE_AMOUNT"
	ViolationUnknownSeller  = "UNKNOWN_SELLER"
	ViolationUnknownMode    = "UNKNOWN_MODE"
	ViolationDupInFile      = "DUP_IN_FILE"
	ViolationDupInDB        = "DUP_IN_DB"
)

// NormalizedRecord is the parsed, canonical form of one raw import row.
// Fields not used by the batch type stay at their zero values.
type NormalizedRecord struct {
	SellerCode     string
	CustomerCode   string
	CustomerTaxID  string
	Series         string
	Number         string
	IssueDate      time.Time
	DueDate        time.Time
	Amount         decimal.Decimal
	AllocationMode string // Receipts only
	AppliedPeriod  string // Receipts with BY_PERIOD only
}

// DedupKey returns the document identity used for duplicate detection,
// both within the file and against the live tables.
func (r NormalizedRecord) DedupKey() string {
	return r.SellerCode + "|" + r.CustomerCode + "|" + r.Series + "|" + r.Number + "|" + r.IssueDate.Format("2006-01-02")
}

// StagingRow is one raw row of an import batch together with its parsed
// form and validation verdict. Rows are written once during staging and
// never mutated afterwards.
type StagingRow struct {
	shared.BaseEntity
	BatchID    uuid.UUID
	LineNumber int
	RawData    string // Original row, retained verbatim for preview
	Status     RowValidationStatus
	Action     RowAction
	Violations []string // Violation codes, possibly with detail suffixes
	Normalized *NormalizedRecord
}

// NewStagingRow creates a staged row for a batch line
func NewStagingRow(batchID uuid.UUID, lineNumber int, rawData string) (*StagingRow, error) {
	if batchID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_BATCH", "Batch ID cannot be empty")
	}
	if lineNumber <= 0 {
		return nil, shared.NewValidationError("INVALID_LINE", "Line number must be positive")
	}
	return &StagingRow{
		BaseEntity: shared.NewBaseEntity(),
		BatchID:    batchID,
		LineNumber: lineNumber,
		RawData:    rawData,
		Status:     RowStatusOK,
		Action:     RowActionInsert,
		Violations: make([]string, 0),
	}, nil
}

// AddViolation records a violation and degrades the row status. Error
// violations win over warnings and take the row out of the commit; a row
// never improves.
func (r *StagingRow) AddViolation(code string, isError bool) {
	r.Violations = append(r.Violations, code)
	if isError {
		r.Status = RowStatusError
		r.Action = RowActionSkip
	} else if r.Status == RowStatusOK {
		r.Status = RowStatusWarn
	}
}

// MarkDuplicate flags the row as a duplicate. In-file duplicates after the
// first occurrence and database duplicates are skipped on commit but do not
// block the batch.
func (r *StagingRow) MarkDuplicate(code string) {
	r.Violations = append(r.Violations, code)
	if r.Status == RowStatusOK {
		r.Status = RowStatusWarn
	}
	r.Action = RowActionSkip
}

// IsCommittable reports whether the row participates in a commit
func (r *StagingRow) IsCommittable() bool {
	return r.Action == RowActionInsert
}
