package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/ledger/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormAdvanceRepository implements ledger.AdvanceRepository using GORM
type GormAdvanceRepository struct {
	db *Database
}

// NewGormAdvanceRepository creates a new GormAdvanceRepository
func NewGormAdvanceRepository(db *Database) *GormAdvanceRepository {
	return &GormAdvanceRepository{db: db}
}

// FindByID finds an advance by ID
func (r *GormAdvanceRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Advance, error) {
	var model models.AdvanceModel
	if err := r.db.handle(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindOpenBySellerCustomer returns approved advances with outstanding
// amounts for the pair, ordered by due date, then creation time.
func (r *GormAdvanceRepository) FindOpenBySellerCustomer(ctx context.Context, sellerCode, customerCode string) ([]ledger.Advance, error) {
	var advanceModels []models.AdvanceModel
	if err := r.db.handle(ctx).
		Where("seller_code = ? AND customer_code = ? AND status = ? AND outstanding_amount > 0",
			sellerCode, customerCode, ledger.AdvanceStatusApproved).
		Order("due_date ASC, created_at ASC, id ASC").
		Find(&advanceModels).Error; err != nil {
		return nil, err
	}
	advances := make([]ledger.Advance, len(advanceModels))
	for i, model := range advanceModels {
		advances[i] = *model.ToDomain()
	}
	return advances, nil
}

// ListBySourceBatch returns every advance created by an import batch
func (r *GormAdvanceRepository) ListBySourceBatch(ctx context.Context, batchID uuid.UUID) ([]ledger.Advance, error) {
	var advanceModels []models.AdvanceModel
	if err := r.db.handle(ctx).
		Where("source_batch_id = ?", batchID).
		Order("created_at ASC").
		Find(&advanceModels).Error; err != nil {
		return nil, err
	}
	advances := make([]ledger.Advance, len(advanceModels))
	for i, model := range advanceModels {
		advances[i] = *model.ToDomain()
	}
	return advances, nil
}

// Create inserts a new advance
func (r *GormAdvanceRepository) Create(ctx context.Context, advance *ledger.Advance) error {
	model := models.AdvanceModelFromDomain(advance)
	return r.db.handle(ctx).Create(model).Error
}

// Save creates or updates an advance without a version check
func (r *GormAdvanceRepository) Save(ctx context.Context, advance *ledger.Advance) error {
	model := models.AdvanceModelFromDomain(advance)
	return r.db.handle(ctx).Save(model).Error
}

// SaveWithLock saves the advance guarded by its version, advancing it by one
func (r *GormAdvanceRepository) SaveWithLock(ctx context.Context, advance *ledger.Advance) error {
	loadedVersion := advance.Version
	advance.Version++
	model := models.AdvanceModelFromDomain(advance)
	result := r.db.handle(ctx).
		Model(&models.AdvanceModel{}).
		Where("id = ? AND version = ?", advance.ID, loadedVersion).
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewConflictError("CONCURRENT_MODIFICATION", "The advance has been modified by another operation")
	}
	return nil
}

// SoftDelete hides the advance from active queries
func (r *GormAdvanceRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.db.handle(ctx).Delete(&models.AdvanceModel{}, "id = ?", id).Error
}

// ExistsByDedupKey reports whether a live advance with the same document
// identity already exists.
func (r *GormAdvanceRepository) ExistsByDedupKey(ctx context.Context, sellerCode, customerCode, series, number string, issueDate time.Time) (bool, error) {
	var count int64
	if err := r.db.handle(ctx).
		Model(&models.AdvanceModel{}).
		Where("seller_code = ? AND customer_code = ? AND series = ? AND number = ? AND issue_date = ?",
			sellerCode, customerCode, series, number, issueDate).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// SumAmountsByCustomer sums non-void advance totals grouped by customer code
func (r *GormAdvanceRepository) SumAmountsByCustomer(ctx context.Context) (map[string]decimal.Decimal, error) {
	return sumByCustomer(r.db.handle(ctx).
		Model(&models.AdvanceModel{}).
		Select("customer_code, COALESCE(SUM(total_amount), 0) AS total").
		Where("status <> ?", ledger.AdvanceStatusVoid).
		Group("customer_code"))
}

var _ ledger.AdvanceRepository = (*GormAdvanceRepository)(nil)
