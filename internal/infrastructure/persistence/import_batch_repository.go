package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/bulk"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/ledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormBatchRepository implements bulk.BatchRepository using GORM
type GormBatchRepository struct {
	db *Database
}

// NewGormBatchRepository creates a new GormBatchRepository
func NewGormBatchRepository(db *Database) *GormBatchRepository {
	return &GormBatchRepository{db: db}
}

// FindByID finds an import batch by ID
func (r *GormBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*bulk.ImportBatch, error) {
	var model models.ImportBatchModel
	if err := r.db.handle(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIdempotencyKey finds an import batch by its idempotency key
func (r *GormBatchRepository) FindByIdempotencyKey(ctx context.Context, key string) (*bulk.ImportBatch, error) {
	var model models.ImportBatchModel
	if err := r.db.handle(ctx).First(&model, "idempotency_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new import batch
func (r *GormBatchRepository) Create(ctx context.Context, batch *bulk.ImportBatch) error {
	model := models.ImportBatchModelFromDomain(batch)
	return r.db.handle(ctx).Create(model).Error
}

// Save creates or updates an import batch without a version check
func (r *GormBatchRepository) Save(ctx context.Context, batch *bulk.ImportBatch) error {
	model := models.ImportBatchModelFromDomain(batch)
	return r.db.handle(ctx).Save(model).Error
}

// SaveWithLock saves the batch guarded by its version, advancing it by one
func (r *GormBatchRepository) SaveWithLock(ctx context.Context, batch *bulk.ImportBatch) error {
	loadedVersion := batch.Version
	batch.Version++
	model := models.ImportBatchModelFromDomain(batch)
	result := r.db.handle(ctx).
		Model(&models.ImportBatchModel{}).
		Where("id = ? AND version = ?", batch.ID, loadedVersion).
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewConflictError("CONCURRENT_MODIFICATION", "The import batch has been modified by another operation")
	}
	return nil
}

// List returns a page of import batches, newest first
func (r *GormBatchRepository) List(ctx context.Context, filter shared.Filter) (*shared.Paginated[bulk.ImportBatch], error) {
	query := r.db.handle(ctx).Model(&models.ImportBatchModel{})

	if status, ok := filter.Filters["status"]; ok {
		query = query.Where("status = ?", status)
	}
	if batchType, ok := filter.Filters["type"]; ok {
		query = query.Where("batch_type = ?", batchType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var batchModels []models.ImportBatchModel
	if err := query.
		Order("created_at DESC").
		Limit(filter.PageSize).
		Offset((filter.Page - 1) * filter.PageSize).
		Find(&batchModels).Error; err != nil {
		return nil, err
	}

	batches := make([]bulk.ImportBatch, len(batchModels))
	for i, model := range batchModels {
		batches[i] = *model.ToDomain()
	}
	return shared.NewPaginated(batches, total, filter.Page, filter.PageSize), nil
}

var _ bulk.BatchRepository = (*GormBatchRepository)(nil)

// GormStagingRowRepository implements bulk.StagingRowRepository using GORM
type GormStagingRowRepository struct {
	db *Database
}

// NewGormStagingRowRepository creates a new GormStagingRowRepository
func NewGormStagingRowRepository(db *Database) *GormStagingRowRepository {
	return &GormStagingRowRepository{db: db}
}

// CreateAll inserts staged rows in chunks
func (r *GormStagingRowRepository) CreateAll(ctx context.Context, rows []*bulk.StagingRow) error {
	if len(rows) == 0 {
		return nil
	}
	rowModels := make([]models.StagingRowModel, len(rows))
	for i, row := range rows {
		rowModels[i].FromDomain(row)
	}
	return r.db.handle(ctx).CreateInBatches(rowModels, 500).Error
}

// ListByBatch returns a page of staged rows in line order
func (r *GormStagingRowRepository) ListByBatch(ctx context.Context, batchID uuid.UUID, filter shared.Filter) (*shared.Paginated[bulk.StagingRow], error) {
	query := r.db.handle(ctx).Model(&models.StagingRowModel{}).Where("batch_id = ?", batchID)

	if status, ok := filter.Filters["status"]; ok {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var rowModels []models.StagingRowModel
	if err := query.
		Order("line_number ASC").
		Limit(filter.PageSize).
		Offset((filter.Page - 1) * filter.PageSize).
		Find(&rowModels).Error; err != nil {
		return nil, err
	}

	rows := make([]bulk.StagingRow, len(rowModels))
	for i, model := range rowModels {
		rows[i] = *model.ToDomain()
	}
	return shared.NewPaginated(rows, total, filter.Page, filter.PageSize), nil
}

// ListCommittableByBatch returns every row a commit would insert
func (r *GormStagingRowRepository) ListCommittableByBatch(ctx context.Context, batchID uuid.UUID) ([]bulk.StagingRow, error) {
	var rowModels []models.StagingRowModel
	if err := r.db.handle(ctx).
		Where("batch_id = ? AND status <> ? AND action = ?", batchID, bulk.RowStatusError, bulk.RowActionInsert).
		Order("line_number ASC").
		Find(&rowModels).Error; err != nil {
		return nil, err
	}
	rows := make([]bulk.StagingRow, len(rowModels))
	for i, model := range rowModels {
		rows[i] = *model.ToDomain()
	}
	return rows, nil
}

// CountByStatus counts a batch's rows grouped by validation status
func (r *GormStagingRowRepository) CountByStatus(ctx context.Context, batchID uuid.UUID) (map[bulk.RowValidationStatus]int, error) {
	var rows []struct {
		Status bulk.RowValidationStatus
		Count  int
	}
	if err := r.db.handle(ctx).
		Model(&models.StagingRowModel{}).
		Select("status, COUNT(*) AS count").
		Where("batch_id = ?", batchID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[bulk.RowValidationStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// DeleteByBatch removes every staged row of a batch
func (r *GormStagingRowRepository) DeleteByBatch(ctx context.Context, batchID uuid.UUID) error {
	return r.db.handle(ctx).Where("batch_id = ?", batchID).Delete(&models.StagingRowModel{}).Error
}

var _ bulk.StagingRowRepository = (*GormStagingRowRepository)(nil)
