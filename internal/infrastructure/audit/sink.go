// Package audit persists the append-only audit trail.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/ledger/backend/internal/infrastructure/persistence/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GormAuditSink writes audit entries to the audit_logs table. Failures are
// logged and swallowed so a broken trail never fails a business operation.
type GormAuditSink struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormAuditSink creates a new GormAuditSink
func NewGormAuditSink(db *gorm.DB, logger *zap.Logger) *GormAuditSink {
	return &GormAuditSink{db: db, logger: logger}
}

// Record appends one audit entry
func (s *GormAuditSink) Record(ctx context.Context, entry shared.AuditEntry) {
	occurredAt := entry.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	model := models.AuditLogModel{
		ID:         uuid.New(),
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Before:     entry.Before,
		After:      entry.After,
		ActorID:    entry.ActorID,
		OccurredAt: occurredAt,
	}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		s.logger.Error("failed to record audit entry",
			zap.String("action", entry.Action),
			zap.String("entity_type", entry.EntityType),
			zap.String("entity_id", entry.EntityID),
			zap.Error(err),
		)
	}
}

var _ shared.AuditSink = (*GormAuditSink)(nil)
