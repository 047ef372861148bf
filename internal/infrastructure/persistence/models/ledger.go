package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceModel is the persistence model for the Invoice aggregate root
type InvoiceModel struct {
	AggregateModel
	SellerCode        string               `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoices_dedup,priority:1"`
	CustomerCode      string               `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoices_dedup,priority:2;index"`
	Series            string               `gorm:"type:varchar(20);not null;uniqueIndex:idx_invoices_dedup,priority:3"`
	Number            string               `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoices_dedup,priority:4"`
	IssueDate         time.Time            `gorm:"not null;uniqueIndex:idx_invoices_dedup,priority:5"`
	DueDate           time.Time            `gorm:"not null;index"`
	TotalAmount       decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	OutstandingAmount decimal.Decimal      `gorm:"type:decimal(18,4);not null;index"`
	Status            ledger.InvoiceStatus `gorm:"type:varchar(20);not null;default:'OPEN';index"`
	SourceBatchID     *uuid.UUID           `gorm:"type:uuid;index"`
	VoidedAt          *time.Time
	VoidReason        string         `gorm:"type:varchar(500)"`
	DeletedAt         gorm.DeletedAt `gorm:"index"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *ledger.Invoice {
	return &ledger.Invoice{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		SellerCode:        m.SellerCode,
		CustomerCode:      m.CustomerCode,
		Series:            m.Series,
		Number:            m.Number,
		IssueDate:         m.IssueDate,
		DueDate:           m.DueDate,
		TotalAmount:       m.TotalAmount,
		OutstandingAmount: m.OutstandingAmount,
		Status:            m.Status,
		SourceBatchID:     m.SourceBatchID,
		VoidedAt:          m.VoidedAt,
		VoidReason:        m.VoidReason,
	}
}

// FromDomain populates the persistence model from a domain Invoice
func (m *InvoiceModel) FromDomain(inv *ledger.Invoice) {
	m.FromDomainAggregateRoot(inv.BaseAggregateRoot)
	m.SellerCode = inv.SellerCode
	m.CustomerCode = inv.CustomerCode
	m.Series = inv.Series
	m.Number = inv.Number
	m.IssueDate = inv.IssueDate
	m.DueDate = inv.DueDate
	m.TotalAmount = inv.TotalAmount
	m.OutstandingAmount = inv.OutstandingAmount
	m.Status = inv.Status
	m.SourceBatchID = inv.SourceBatchID
	m.VoidedAt = inv.VoidedAt
	m.VoidReason = inv.VoidReason
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice
func InvoiceModelFromDomain(inv *ledger.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// AdvanceModel is the persistence model for the Advance aggregate root
type AdvanceModel struct {
	AggregateModel
	SellerCode        string               `gorm:"type:varchar(50);not null;uniqueIndex:idx_advances_dedup,priority:1"`
	CustomerCode      string               `gorm:"type:varchar(50);not null;uniqueIndex:idx_advances_dedup,priority:2;index"`
	Series            string               `gorm:"type:varchar(20);not null;uniqueIndex:idx_advances_dedup,priority:3"`
	Number            string               `gorm:"type:varchar(50);not null;uniqueIndex:idx_advances_dedup,priority:4"`
	IssueDate         time.Time            `gorm:"not null;uniqueIndex:idx_advances_dedup,priority:5"`
	DueDate           time.Time            `gorm:"not null;index"`
	TotalAmount       decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	OutstandingAmount decimal.Decimal      `gorm:"type:decimal(18,4);not null;index"`
	Status            ledger.AdvanceStatus `gorm:"type:varchar(20);not null;default:'APPROVED';index"`
	SourceBatchID     *uuid.UUID           `gorm:"type:uuid;index"`
	VoidedAt          *time.Time
	VoidReason        string         `gorm:"type:varchar(500)"`
	DeletedAt         gorm.DeletedAt `gorm:"index"`
}

// TableName returns the table name for GORM
func (AdvanceModel) TableName() string {
	return "advances"
}

// ToDomain converts the persistence model to a domain Advance
func (m *AdvanceModel) ToDomain() *ledger.Advance {
	return &ledger.Advance{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		SellerCode:        m.SellerCode,
		CustomerCode:      m.CustomerCode,
		Series:            m.Series,
		Number:            m.Number,
		IssueDate:         m.IssueDate,
		DueDate:           m.DueDate,
		TotalAmount:       m.TotalAmount,
		OutstandingAmount: m.OutstandingAmount,
		Status:            m.Status,
		SourceBatchID:     m.SourceBatchID,
		VoidedAt:          m.VoidedAt,
		VoidReason:        m.VoidReason,
	}
}

// FromDomain populates the persistence model from a domain Advance
func (m *AdvanceModel) FromDomain(a *ledger.Advance) {
	m.FromDomainAggregateRoot(a.BaseAggregateRoot)
	m.SellerCode = a.SellerCode
	m.CustomerCode = a.CustomerCode
	m.Series = a.Series
	m.Number = a.Number
	m.IssueDate = a.IssueDate
	m.DueDate = a.DueDate
	m.TotalAmount = a.TotalAmount
	m.OutstandingAmount = a.OutstandingAmount
	m.Status = a.Status
	m.SourceBatchID = a.SourceBatchID
	m.VoidedAt = a.VoidedAt
	m.VoidReason = a.VoidReason
}

// AdvanceModelFromDomain creates a new persistence model from a domain Advance
func AdvanceModelFromDomain(a *ledger.Advance) *AdvanceModel {
	m := &AdvanceModel{}
	m.FromDomain(a)
	return m
}

// ReceiptModel is the persistence model for the Receipt aggregate root
type ReceiptModel struct {
	AggregateModel
	SellerCode        string                         `gorm:"type:varchar(50);not null;index:idx_receipts_pair,priority:1"`
	CustomerCode      string                         `gorm:"type:varchar(50);not null;index:idx_receipts_pair,priority:2"`
	Amount            decimal.Decimal                `gorm:"type:decimal(18,4);not null"`
	UnallocatedAmount decimal.Decimal                `gorm:"type:decimal(18,4);not null;index"`
	Status            ledger.ReceiptStatus           `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	Mode              ledger.AllocationMode          `gorm:"type:varchar(20);not null"`
	AllocationStatus  ledger.ReceiptAllocationStatus `gorm:"type:varchar(20);not null;default:'UNALLOCATED'"`
	ReceiptDate       time.Time                      `gorm:"not null;index"`
	AppliedPeriodKey  string                         `gorm:"type:varchar(10)"`
	SourceBatchID     *uuid.UUID                     `gorm:"type:uuid;index"`
	VoidedAt          *time.Time
	VoidReason        string         `gorm:"type:varchar(500)"`
	DeletedAt         gorm.DeletedAt `gorm:"index"`
}

// TableName returns the table name for GORM
func (ReceiptModel) TableName() string {
	return "receipts"
}

// ToDomain converts the persistence model to a domain Receipt
func (m *ReceiptModel) ToDomain() *ledger.Receipt {
	return &ledger.Receipt{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		SellerCode:        m.SellerCode,
		CustomerCode:      m.CustomerCode,
		Amount:            m.Amount,
		UnallocatedAmount: m.UnallocatedAmount,
		Status:            m.Status,
		Mode:              m.Mode,
		AllocationStatus:  m.AllocationStatus,
		ReceiptDate:       m.ReceiptDate,
		AppliedPeriodKey:  m.AppliedPeriodKey,
		SourceBatchID:     m.SourceBatchID,
		VoidedAt:          m.VoidedAt,
		VoidReason:        m.VoidReason,
	}
}

// FromDomain populates the persistence model from a domain Receipt
func (m *ReceiptModel) FromDomain(r *ledger.Receipt) {
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	m.SellerCode = r.SellerCode
	m.CustomerCode = r.CustomerCode
	m.Amount = r.Amount
	m.UnallocatedAmount = r.UnallocatedAmount
	m.Status = r.Status
	m.Mode = r.Mode
	m.AllocationStatus = r.AllocationStatus
	m.ReceiptDate = r.ReceiptDate
	m.AppliedPeriodKey = r.AppliedPeriodKey
	m.SourceBatchID = r.SourceBatchID
	m.VoidedAt = r.VoidedAt
	m.VoidReason = r.VoidReason
}

// ReceiptModelFromDomain creates a new persistence model from a domain Receipt
func ReceiptModelFromDomain(r *ledger.Receipt) *ReceiptModel {
	m := &ReceiptModel{}
	m.FromDomain(r)
	return m
}

// ReceiptAllocationModel is the persistence model for allocation rows
type ReceiptAllocationModel struct {
	BaseModel
	ReceiptID uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceID *uuid.UUID      `gorm:"type:uuid;index"`
	AdvanceID *uuid.UUID      `gorm:"type:uuid;index"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (ReceiptAllocationModel) TableName() string {
	return "receipt_allocations"
}

// ToDomain converts the persistence model to a domain ReceiptAllocation
func (m *ReceiptAllocationModel) ToDomain() *ledger.ReceiptAllocation {
	return &ledger.ReceiptAllocation{
		BaseEntity: m.BaseModel.ToDomain(),
		ReceiptID:  m.ReceiptID,
		InvoiceID:  m.InvoiceID,
		AdvanceID:  m.AdvanceID,
		Amount:     m.Amount,
	}
}

// ReceiptAllocationModelFromDomain creates a new persistence model from a domain allocation
func ReceiptAllocationModelFromDomain(a *ledger.ReceiptAllocation) *ReceiptAllocationModel {
	m := &ReceiptAllocationModel{}
	m.FromDomainBaseEntity(a.BaseEntity)
	m.ReceiptID = a.ReceiptID
	m.InvoiceID = a.InvoiceID
	m.AdvanceID = a.AdvanceID
	m.Amount = a.Amount
	return m
}
