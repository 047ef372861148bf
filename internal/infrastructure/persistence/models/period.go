package models

import (
	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/period"
)

// PeriodLockModel is the persistence model for accounting period locks
type PeriodLockModel struct {
	BaseModel
	LockType  period.LockType `gorm:"type:varchar(10);not null;uniqueIndex:idx_period_locks_key,priority:1"`
	LockKey   string          `gorm:"type:varchar(10);not null;uniqueIndex:idx_period_locks_key,priority:2"`
	Note      string          `gorm:"type:varchar(500)"`
	LockedBy  uuid.UUID       `gorm:"type:uuid;not null"`
}

// TableName returns the table name for GORM
func (PeriodLockModel) TableName() string {
	return "period_locks"
}

// ToDomain converts the persistence model to a domain Lock
func (m *PeriodLockModel) ToDomain() *period.Lock {
	return &period.Lock{
		BaseEntity: m.BaseModel.ToDomain(),
		Type:       m.LockType,
		Key:        m.LockKey,
		Note:       m.Note,
		LockedBy:   m.LockedBy,
	}
}

// PeriodLockModelFromDomain creates a new persistence model from a domain Lock
func PeriodLockModelFromDomain(l *period.Lock) *PeriodLockModel {
	m := &PeriodLockModel{}
	m.FromDomainBaseEntity(l.BaseEntity)
	m.LockType = l.Type
	m.LockKey = l.Key
	m.Note = l.Note
	m.LockedBy = l.LockedBy
	return m
}
