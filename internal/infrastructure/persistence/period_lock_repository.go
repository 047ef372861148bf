package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/period"
	"github.com/ledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPeriodLockRepository implements period.LockRepository using GORM
type GormPeriodLockRepository struct {
	db *Database
}

// NewGormPeriodLockRepository creates a new GormPeriodLockRepository
func NewGormPeriodLockRepository(db *Database) *GormPeriodLockRepository {
	return &GormPeriodLockRepository{db: db}
}

// FindByID finds a period lock by ID
func (r *GormPeriodLockRepository) FindByID(ctx context.Context, id uuid.UUID) (*period.Lock, error) {
	var model models.PeriodLockModel
	if err := r.db.handle(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByTypeAndKey finds a period lock by its typed key
func (r *GormPeriodLockRepository) FindByTypeAndKey(ctx context.Context, lockType period.LockType, key string) (*period.Lock, error) {
	var model models.PeriodLockModel
	if err := r.db.handle(ctx).First(&model, "lock_type = ? AND lock_key = ?", lockType, key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindMatching returns every stored lock whose typed key appears in keys
func (r *GormPeriodLockRepository) FindMatching(ctx context.Context, keys []period.Key) ([]period.Lock, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	query := r.db.handle(ctx)
	conditions := r.db.handle(ctx).Session(&gorm.Session{NewDB: true})
	for i, k := range keys {
		if i == 0 {
			conditions = conditions.Where("lock_type = ? AND lock_key = ?", k.Type, k.Key)
		} else {
			conditions = conditions.Or("lock_type = ? AND lock_key = ?", k.Type, k.Key)
		}
	}
	var lockModels []models.PeriodLockModel
	if err := query.Where(conditions).Order("lock_type, lock_key").Find(&lockModels).Error; err != nil {
		return nil, err
	}
	locks := make([]period.Lock, len(lockModels))
	for i, model := range lockModels {
		locks[i] = *model.ToDomain()
	}
	return locks, nil
}

// FindAll returns every period lock
func (r *GormPeriodLockRepository) FindAll(ctx context.Context) ([]period.Lock, error) {
	var lockModels []models.PeriodLockModel
	if err := r.db.handle(ctx).Order("lock_type, lock_key").Find(&lockModels).Error; err != nil {
		return nil, err
	}
	locks := make([]period.Lock, len(lockModels))
	for i, model := range lockModels {
		locks[i] = *model.ToDomain()
	}
	return locks, nil
}

// Create inserts a new period lock
func (r *GormPeriodLockRepository) Create(ctx context.Context, lock *period.Lock) error {
	model := models.PeriodLockModelFromDomain(lock)
	return r.db.handle(ctx).Create(model).Error
}

// Delete removes a period lock. Unlocking is a hard delete.
func (r *GormPeriodLockRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.handle(ctx).Delete(&models.PeriodLockModel{}, "id = ?", id).Error
}

var _ period.LockRepository = (*GormPeriodLockRepository)(nil)
