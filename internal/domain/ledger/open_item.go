package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OpenItem is a projection over invoices and advances used by allocation
// strategies. The Kind plus ID locate the backing aggregate.
type OpenItem struct {
	Kind              TargetKind
	ID                uuid.UUID
	SellerCode        string
	CustomerCode      string
	IssueDate         time.Time
	DueDate           time.Time
	CreatedAt         time.Time
	TotalAmount       decimal.Decimal
	OutstandingAmount decimal.Decimal
}

// Ref returns the target reference for this item
func (i OpenItem) Ref() TargetRef {
	return TargetRef{Kind: i.Kind, ID: i.ID}
}

// OpenItemFromInvoice projects an invoice into an open item
func OpenItemFromInvoice(inv *Invoice) OpenItem {
	return OpenItem{
		Kind:              TargetKindInvoice,
		ID:                inv.ID,
		SellerCode:        inv.SellerCode,
		CustomerCode:      inv.CustomerCode,
		IssueDate:         inv.IssueDate,
		DueDate:           inv.DueDate,
		CreatedAt:         inv.CreatedAt,
		TotalAmount:       inv.TotalAmount,
		OutstandingAmount: inv.OutstandingAmount,
	}
}

// OpenItemFromAdvance projects an advance into an open item
func OpenItemFromAdvance(a *Advance) OpenItem {
	return OpenItem{
		Kind:              TargetKindAdvance,
		ID:                a.ID,
		SellerCode:        a.SellerCode,
		CustomerCode:      a.CustomerCode,
		IssueDate:         a.IssueDate,
		DueDate:           a.DueDate,
		CreatedAt:         a.CreatedAt,
		TotalAmount:       a.TotalAmount,
		OutstandingAmount: a.OutstandingAmount,
	}
}

// PairKey identifies a (seller, customer) pair
type PairKey struct {
	SellerCode   string
	CustomerCode string
}
