package models

import (
	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/partner"
	"github.com/shopspring/decimal"
)

// CustomerModel is the persistence model for the Customer aggregate root
type CustomerModel struct {
	AggregateModel
	TaxCode         string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name            string          `gorm:"type:varchar(200);not null"`
	CurrentBalance  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	PaymentTermDays int             `gorm:"not null;default:0"`
	OwnerID         *uuid.UUID      `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the persistence model to a domain Customer
func (m *CustomerModel) ToDomain() *partner.Customer {
	return &partner.Customer{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		TaxCode:           m.TaxCode,
		Name:              m.Name,
		CurrentBalance:    m.CurrentBalance,
		PaymentTermDays:   m.PaymentTermDays,
		OwnerID:           m.OwnerID,
	}
}

// FromDomain populates the persistence model from a domain Customer
func (m *CustomerModel) FromDomain(c *partner.Customer) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.TaxCode = c.TaxCode
	m.Name = c.Name
	m.CurrentBalance = c.CurrentBalance
	m.PaymentTermDays = c.PaymentTermDays
	m.OwnerID = c.OwnerID
}

// CustomerModelFromDomain creates a new persistence model from a domain Customer
func CustomerModelFromDomain(c *partner.Customer) *CustomerModel {
	m := &CustomerModel{}
	m.FromDomain(c)
	return m
}

// SellerModel is the persistence model for the Seller entity
type SellerModel struct {
	BaseModel
	Code string `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name string `gorm:"type:varchar(200);not null"`
}

// TableName returns the table name for GORM
func (SellerModel) TableName() string {
	return "sellers"
}

// ToDomain converts the persistence model to a domain Seller
func (m *SellerModel) ToDomain() *partner.Seller {
	return &partner.Seller{
		BaseEntity: m.BaseModel.ToDomain(),
		Code:       m.Code,
		Name:       m.Name,
	}
}

// SellerModelFromDomain creates a new persistence model from a domain Seller
func SellerModelFromDomain(s *partner.Seller) *SellerModel {
	m := &SellerModel{}
	m.FromDomainBaseEntity(s.BaseEntity)
	m.Code = s.Code
	m.Name = s.Name
	return m
}
