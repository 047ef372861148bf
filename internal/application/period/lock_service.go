package period

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/period"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/ledger/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// LockService manages accounting period locks and gates date-sensitive
// mutations on them.
type LockService struct {
	lockRepo period.LockRepository
	audit    shared.AuditSink
	logger   *zap.Logger
}

// NewLockService creates a new LockService
func NewLockService(lockRepo period.LockRepository, audit shared.AuditSink, logger *zap.Logger) *LockService {
	return &LockService{lockRepo: lockRepo, audit: audit, logger: logger}
}

// LockRequest asks to lock one period
type LockRequest struct {
	Type  period.LockType
	Key   string
	Note  string
	Actor shared.Actor
}

// Lock creates a period lock. Locking an already locked period returns the
// existing lock unchanged.
func (s *LockService) Lock(ctx context.Context, req LockRequest) (*period.Lock, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "period_lock", "lock")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrPeriodKey, req.Key)

	existing, err := s.lockRepo.FindByTypeAndKey(ctx, req.Type, req.Key)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to look up period lock: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	lock, err := period.NewLock(req.Type, req.Key, req.Note, req.Actor.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.lockRepo.Create(ctx, lock); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to create period lock: %w", err)
	}

	s.audit.Record(ctx, shared.AuditEntry{
		Action:     "PERIOD_LOCKED",
		EntityType: "PeriodLock",
		EntityID:   lock.ID.String(),
		After:      lockSnapshot(lock),
		ActorID:    req.Actor.ID,
		OccurredAt: time.Now().UTC(),
	})
	s.logger.Info("period locked",
		zap.String("type", lock.Type.String()),
		zap.String("key", lock.Key))
	return lock, nil
}

// UnlockRequest asks to remove a period lock
type UnlockRequest struct {
	LockID uuid.UUID
	Reason string
	Actor  shared.Actor
}

// Unlock removes a period lock. The reason is mandatory and audited.
func (s *LockService) Unlock(ctx context.Context, req UnlockRequest) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "period_lock", "unlock")
	defer span.End()

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return shared.NewValidationError("UNLOCK_REASON_REQUIRED", "Unlock reason cannot be empty")
	}

	lock, err := s.lockRepo.FindByID(ctx, req.LockID)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to look up period lock: %w", err)
	}
	if lock == nil {
		return shared.ErrNotFound
	}

	if err := s.lockRepo.Delete(ctx, lock.ID); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to delete period lock: %w", err)
	}

	s.audit.Record(ctx, shared.AuditEntry{
		Action:     "PERIOD_UNLOCKED",
		EntityType: "PeriodLock",
		EntityID:   lock.ID.String(),
		Before:     lockSnapshot(lock),
		After:      fmt.Sprintf(`{"reason":%q}`, reason),
		ActorID:    req.Actor.ID,
		OccurredAt: time.Now().UTC(),
	})
	s.logger.Info("period unlocked",
		zap.String("type", lock.Type.String()),
		zap.String("key", lock.Key),
		zap.String("reason", reason))
	return nil
}

// GetLockedPeriods returns the sorted, de-duplicated "TYPE:KEY" strings of
// locked periods that any of the given dates fall into.
func (s *LockService) GetLockedPeriods(ctx context.Context, dates []time.Time) ([]string, error) {
	keys := period.KeysForDates(dates)
	locks, err := s.lockRepo.FindMatching(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to match period locks: %w", err)
	}
	hits := make([]string, 0, len(locks))
	seen := make(map[string]bool, len(locks))
	for _, lock := range locks {
		key := lock.PeriodKey().String()
		if !seen[key] {
			seen[key] = true
			hits = append(hits, key)
		}
	}
	// FindMatching returns locks in key order, so hits stay sorted
	return hits, nil
}

// GateRequest describes one date-sensitive mutation to be gated on period
// locks. EntityType/EntityID identify the mutation target in the override
// audit entry.
type GateRequest struct {
	Dates          []time.Time
	Actor          shared.Actor
	OverrideReason string
	Action         string
	EntityType     string
	EntityID       string
}

// Gate refuses the mutation when its dates touch locked periods. An
// override by an admin or supervisor with a non-blank reason lifts the
// refusal and writes exactly one override audit entry.
func (s *LockService) Gate(ctx context.Context, req GateRequest) error {
	lockedPeriods, err := s.GetLockedPeriods(ctx, req.Dates)
	if err != nil {
		return err
	}
	if len(lockedPeriods) == 0 {
		return nil
	}
	if req.OverrideReason == "" {
		return shared.NewPeriodLockedError(lockedPeriods)
	}

	reason, err := period.RequireOverride(req.Actor, req.OverrideReason)
	if err != nil {
		return err
	}

	overrideDetail, _ := json.Marshal(map[string]interface{}{
		"reason":         reason,
		"locked_periods": lockedPeriods,
	})
	s.audit.Record(ctx, shared.AuditEntry{
		Action:     req.Action + "_LOCK_OVERRIDE",
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		After:      string(overrideDetail),
		ActorID:    req.Actor.ID,
		OccurredAt: time.Now().UTC(),
	})
	s.logger.Warn("period lock overridden",
		zap.String("action", req.Action),
		zap.Strings("locked_periods", lockedPeriods),
		zap.String("actor", req.Actor.ID.String()))
	return nil
}

func lockSnapshot(lock *period.Lock) string {
	data, _ := json.Marshal(map[string]interface{}{
		"type":      lock.Type,
		"key":       lock.Key,
		"note":      lock.Note,
		"locked_by": lock.LockedBy,
	})
	return string(data)
}
