package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditLogModel is the persistence model for audit trail entries. Entries
// are append-only; there is no domain aggregate behind them.
type AuditLogModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	Action     string    `gorm:"type:varchar(50);not null;index"`
	EntityType string    `gorm:"type:varchar(50);not null;index:idx_audit_entity,priority:1"`
	EntityID   string    `gorm:"type:varchar(50);not null;index:idx_audit_entity,priority:2"`
	Before     string    `gorm:"type:jsonb"`
	After      string    `gorm:"type:jsonb"`
	ActorID    uuid.UUID `gorm:"type:uuid;not null;index"`
	OccurredAt time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (AuditLogModel) TableName() string {
	return "audit_logs"
}
