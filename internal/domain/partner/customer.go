package partner

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Customer represents a customer whose receivables the ledger tracks.
// CurrentBalance is a derived, cached aggregate of the customer's non-void
// invoices, approved advances and approved receipts; the balance
// reconciliation job is the sole authority for correcting its drift.
type Customer struct {
	shared.BaseAggregateRoot
	TaxCode         string
	Name            string
	CurrentBalance  decimal.Decimal
	PaymentTermDays int
	OwnerID         *uuid.UUID
}

// NewCustomer creates a new customer
func NewCustomer(taxCode, name string, paymentTermDays int) (*Customer, error) {
	taxCode = strings.TrimSpace(taxCode)
	if taxCode == "" {
		return nil, shared.NewValidationError("INVALID_TAX_CODE", "Customer tax code cannot be empty")
	}
	if name == "" {
		return nil, shared.NewValidationError("INVALID_CUSTOMER_NAME", "Customer name cannot be empty")
	}
	if paymentTermDays < 0 {
		return nil, shared.NewValidationError("INVALID_PAYMENT_TERM", "Payment term days cannot be negative")
	}
	return &Customer{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		TaxCode:           taxCode,
		Name:              name,
		CurrentBalance:    decimal.Zero,
		PaymentTermDays:   paymentTermDays,
	}, nil
}

// AdjustBalance applies a signed delta to the cached balance
func (c *Customer) AdjustBalance(delta decimal.Decimal) {
	c.CurrentBalance = c.CurrentBalance.Add(delta)
	c.touch()
}

// SetBalance overwrites the cached balance with a recomputed value.
// Only the balance reconciliation job calls this.
func (c *Customer) SetBalance(expected decimal.Decimal) {
	c.CurrentBalance = expected
	c.touch()
}

// SetOwner assigns the owning user
func (c *Customer) SetOwner(ownerID uuid.UUID) {
	c.OwnerID = &ownerID
	c.touch()
}

func (c *Customer) touch() {
	c.UpdatedAt = time.Now().UTC()
}
