package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/partner"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/ledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormCustomerRepository implements partner.CustomerRepository using GORM
type GormCustomerRepository struct {
	db *Database
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *Database) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// FindByID finds a customer by ID
func (r *GormCustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*partner.Customer, error) {
	var model models.CustomerModel
	if err := r.db.handle(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByTaxCode finds a customer by tax code
func (r *GormCustomerRepository) FindByTaxCode(ctx context.Context, taxCode string) (*partner.Customer, error) {
	var model models.CustomerModel
	if err := r.db.handle(ctx).First(&model, "tax_code = ?", taxCode).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListPageByTaxCode walks customers in tax code order, returning the page
// strictly after the given cursor. An empty cursor starts from the beginning.
func (r *GormCustomerRepository) ListPageByTaxCode(ctx context.Context, afterTaxCode string, limit int) ([]partner.Customer, error) {
	var customerModels []models.CustomerModel
	query := r.db.handle(ctx).Order("tax_code ASC").Limit(limit)
	if afterTaxCode != "" {
		query = query.Where("tax_code > ?", afterTaxCode)
	}
	if err := query.Find(&customerModels).Error; err != nil {
		return nil, err
	}
	customers := make([]partner.Customer, len(customerModels))
	for i, model := range customerModels {
		customers[i] = *model.ToDomain()
	}
	return customers, nil
}

// Save creates or updates a customer without a version check
func (r *GormCustomerRepository) Save(ctx context.Context, customer *partner.Customer) error {
	model := models.CustomerModelFromDomain(customer)
	return r.db.handle(ctx).Save(model).Error
}

// SaveWithLock saves the customer guarded by its version. The update only
// lands when the stored version still matches the version the caller loaded;
// on success the version advances by one.
func (r *GormCustomerRepository) SaveWithLock(ctx context.Context, customer *partner.Customer) error {
	loadedVersion := customer.Version
	customer.Version++
	model := models.CustomerModelFromDomain(customer)
	result := r.db.handle(ctx).
		Model(&models.CustomerModel{}).
		Where("id = ? AND version = ?", customer.ID, loadedVersion).
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewConflictError("CONCURRENT_MODIFICATION", "The customer has been modified by another operation")
	}
	return nil
}

var _ partner.CustomerRepository = (*GormCustomerRepository)(nil)

// GormSellerRepository implements partner.SellerRepository using GORM
type GormSellerRepository struct {
	db *Database
}

// NewGormSellerRepository creates a new GormSellerRepository
func NewGormSellerRepository(db *Database) *GormSellerRepository {
	return &GormSellerRepository{db: db}
}

// FindByCode finds a seller by code
func (r *GormSellerRepository) FindByCode(ctx context.Context, code string) (*partner.Seller, error) {
	var model models.SellerModel
	if err := r.db.handle(ctx).First(&model, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ExistsByCode reports whether a seller with the code exists
func (r *GormSellerRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.handle(ctx).Model(&models.SellerModel{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates a seller
func (r *GormSellerRepository) Save(ctx context.Context, seller *partner.Seller) error {
	model := models.SellerModelFromDomain(seller)
	return r.db.handle(ctx).Save(model).Error
}

var _ partner.SellerRepository = (*GormSellerRepository)(nil)
