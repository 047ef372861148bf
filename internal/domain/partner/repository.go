package partner

import (
	"context"

	"github.com/google/uuid"
)

// CustomerRepository persists customers
type CustomerRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	FindByTaxCode(ctx context.Context, taxCode string) (*Customer, error)
	// ListPageByTaxCode walks customers in natural key order for the
	// reconciliation job: returns up to limit customers with tax code
	// strictly greater than afterTaxCode.
	ListPageByTaxCode(ctx context.Context, afterTaxCode string, limit int) ([]Customer, error)
	Save(ctx context.Context, customer *Customer) error
	// SaveWithLock saves with an optimistic version check; a concurrent
	// modification yields a Conflict error.
	SaveWithLock(ctx context.Context, customer *Customer) error
}

// SellerRepository persists sellers
type SellerRepository interface {
	FindByCode(ctx context.Context, code string) (*Seller, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	Save(ctx context.Context, seller *Seller) error
}
