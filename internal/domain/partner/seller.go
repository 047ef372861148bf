package partner

import (
	"strings"

	"github.com/ledger/backend/internal/domain/shared"
)

// Seller represents a selling entity that issues invoices and receives
// payments. Import commit refuses rows whose seller code is unknown.
type Seller struct {
	shared.BaseEntity
	Code string
	Name string
}

// NewSeller creates a new seller
func NewSeller(code, name string) (*Seller, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, shared.NewValidationError("INVALID_SELLER_CODE", "Seller code cannot be empty")
	}
	if name == "" {
		return nil, shared.NewValidationError("INVALID_SELLER_NAME", "Seller name cannot be empty")
	}
	return &Seller{
		BaseEntity: shared.NewBaseEntity(),
		Code:       code,
		Name:       name,
	}, nil
}
