package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/bulk"
)

// ImportBatchModel is the persistence model for the ImportBatch aggregate root
type ImportBatchModel struct {
	AggregateModel
	BatchType      bulk.BatchType   `gorm:"type:varchar(20);not null"`
	Status         bulk.BatchStatus `gorm:"type:varchar(20);not null;default:'STAGING';index"`
	IdempotencyKey string           `gorm:"type:varchar(100);not null;uniqueIndex"`
	Source         string           `gorm:"type:varchar(255)"`
	FileHash       string           `gorm:"type:varchar(64);not null"`
	CreatedBy      uuid.UUID        `gorm:"type:uuid;not null;index"`
	TotalRows      int              `gorm:"not null;default:0"`
	OKRows         int              `gorm:"not null;default:0"`
	WarnRows       int              `gorm:"not null;default:0"`
	ErrorRows      int              `gorm:"not null;default:0"`
	SkippedRows    int              `gorm:"not null;default:0"`
	CommittedRows  int              `gorm:"not null;default:0"`
	CommittedAt    *time.Time
	RolledBackAt   *time.Time
	CancelledAt    *time.Time
	FailureReason  string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (ImportBatchModel) TableName() string {
	return "import_batches"
}

// ToDomain converts the persistence model to a domain ImportBatch
func (m *ImportBatchModel) ToDomain() *bulk.ImportBatch {
	return &bulk.ImportBatch{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Type:              m.BatchType,
		Status:            m.Status,
		IdempotencyKey:    m.IdempotencyKey,
		Source:            m.Source,
		FileHash:          m.FileHash,
		CreatedBy:         m.CreatedBy,
		TotalRows:         m.TotalRows,
		OKRows:            m.OKRows,
		WarnRows:          m.WarnRows,
		ErrorRows:         m.ErrorRows,
		SkippedRows:       m.SkippedRows,
		CommittedRows:     m.CommittedRows,
		CommittedAt:       m.CommittedAt,
		RolledBackAt:      m.RolledBackAt,
		CancelledAt:       m.CancelledAt,
		FailureReason:     m.FailureReason,
	}
}

// FromDomain populates the persistence model from a domain ImportBatch
func (m *ImportBatchModel) FromDomain(b *bulk.ImportBatch) {
	m.FromDomainAggregateRoot(b.BaseAggregateRoot)
	m.BatchType = b.Type
	m.Status = b.Status
	m.IdempotencyKey = b.IdempotencyKey
	m.Source = b.Source
	m.FileHash = b.FileHash
	m.CreatedBy = b.CreatedBy
	m.TotalRows = b.TotalRows
	m.OKRows = b.OKRows
	m.WarnRows = b.WarnRows
	m.ErrorRows = b.ErrorRows
	m.SkippedRows = b.SkippedRows
	m.CommittedRows = b.CommittedRows
	m.CommittedAt = b.CommittedAt
	m.RolledBackAt = b.RolledBackAt
	m.CancelledAt = b.CancelledAt
	m.FailureReason = b.FailureReason
}

// ImportBatchModelFromDomain creates a new persistence model from a domain ImportBatch
func ImportBatchModelFromDomain(b *bulk.ImportBatch) *ImportBatchModel {
	m := &ImportBatchModel{}
	m.FromDomain(b)
	return m
}

// StagingRowModel is the persistence model for staged import rows
type StagingRowModel struct {
	BaseModel
	BatchID    uuid.UUID               `gorm:"type:uuid;not null;index:idx_staging_rows_batch"`
	LineNumber int                     `gorm:"not null"`
	RawData    string                  `gorm:"type:text;not null"`
	Status     bulk.RowValidationStatus `gorm:"type:varchar(10);not null;index"`
	Action     bulk.RowAction          `gorm:"type:varchar(10);not null"`
	Violations string                  `gorm:"type:jsonb;default:'[]'"`
	Normalized string                  `gorm:"type:jsonb"`
}

// TableName returns the table name for GORM
func (StagingRowModel) TableName() string {
	return "import_staging_rows"
}

// ToDomain converts the persistence model to a domain StagingRow
func (m *StagingRowModel) ToDomain() *bulk.StagingRow {
	row := &bulk.StagingRow{
		BaseEntity: m.BaseModel.ToDomain(),
		BatchID:    m.BatchID,
		LineNumber: m.LineNumber,
		RawData:    m.RawData,
		Status:     m.Status,
		Action:     m.Action,
		Violations: make([]string, 0),
	}
	if m.Violations != "" {
		_ = json.Unmarshal([]byte(m.Violations), &row.Violations)
	}
	if m.Normalized != "" {
		var rec bulk.NormalizedRecord
		if err := json.Unmarshal([]byte(m.Normalized), &rec); err == nil {
			row.Normalized = &rec
		}
	}
	return row
}

// FromDomain populates the persistence model from a domain StagingRow
func (m *StagingRowModel) FromDomain(r *bulk.StagingRow) {
	m.FromDomainBaseEntity(r.BaseEntity)
	m.BatchID = r.BatchID
	m.LineNumber = r.LineNumber
	m.RawData = r.RawData
	m.Status = r.Status
	m.Action = r.Action
	if data, err := json.Marshal(r.Violations); err == nil {
		m.Violations = string(data)
	} else {
		m.Violations = "[]"
	}
	if r.Normalized != nil {
		if data, err := json.Marshal(r.Normalized); err == nil {
			m.Normalized = string(data)
		}
	}
}

// StagingRowModelFromDomain creates a new persistence model from a domain StagingRow
func StagingRowModelFromDomain(r *bulk.StagingRow) *StagingRowModel {
	m := &StagingRowModel{}
	m.FromDomain(r)
	return m
}
