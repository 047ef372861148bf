package importer

import (
	"strings"

	"github.com/ledger/backend/internal/domain/bulk"
	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// Cell keys expected in raw import rows. Rows arrive as key/value maps
// extracted upstream by the spreadsheet-reading collaborator.
const (
	FieldSellerCode     = "seller_code"
	FieldCustomerCode   = "customer_code"
	FieldCustomerTaxID  = "customer_tax_id"
	FieldSeries         = "series"
	FieldNumber         = "number"
	FieldIssueDate      = "issue_date"
	FieldDueDate        = "due_date"
	FieldReceiptDate    = "receipt_date"
	FieldAmount         = "amount"
	FieldAllocationMode = "allocation_mode"
	FieldAppliedPeriod  = "applied_period"
)

// FieldViolation is one normalization finding for a row
type FieldViolation struct {
	Code    string
	IsError bool
}

// NormalizeRow parses one raw row into a NormalizedRecord for the batch
// type. The record is returned even when violations exist so previews can
// show the partially parsed values; rows with error violations never commit.
func NormalizeRow(batchType bulk.BatchType, raw map[string]string) (*bulk.NormalizedRecord, []FieldViolation) {
	var violations []FieldViolation
	record := &bulk.NormalizedRecord{
		SellerCode:    cell(raw, FieldSellerCode),
		CustomerCode:  cell(raw, FieldCustomerCode),
		CustomerTaxID: cell(raw, FieldCustomerTaxID),
		Series:        cell(raw, FieldSeries),
		Number:        cell(raw, FieldNumber),
	}

	requireField := func(value, name string) {
		if value == "" {
			violations = append(violations, FieldViolation{Code: bulk.ViolationMissingField + ":" + name, IsError: true})
		}
	}
	requireField(record.SellerCode, FieldSellerCode)
	requireField(record.CustomerCode, FieldCustomerCode)

	dateField := FieldIssueDate
	if batchType == bulk.BatchTypeReceipts {
		dateField = FieldReceiptDate
	} else {
		requireField(record.Series, FieldSeries)
		requireField(record.Number, FieldNumber)
	}

	if rawDate := cell(raw, dateField); rawDate == "" {
		violations = append(violations, FieldViolation{Code: bulk.ViolationMissingField + ":" + dateField, IsError: true})
	} else if parsed, err := ParseDate(rawDate); err != nil {
		violations = append(violations, FieldViolation{Code: bulk.ViolationBadDate + ":" + dateField, IsError: true})
	} else {
		record.IssueDate = parsed
	}

	if batchType != bulk.BatchTypeReceipts {
		if rawDue := cell(raw, FieldDueDate); rawDue == "" {
			// Due date falls back to the issue date downstream
			record.DueDate = record.IssueDate
		} else if parsed, err := ParseDate(rawDue); err != nil {
			violations = append(violations, FieldViolation{Code: bulk.ViolationBadDate + ":" + FieldDueDate, IsError: true})
		} else {
			record.DueDate = parsed
		}
	}

	if rawAmount := cell(raw, FieldAmount); rawAmount == "" {
		violations = append(violations, FieldViolation{Code: bulk.ViolationMissingField + ":" + FieldAmount, IsError: true})
	} else if parsed, err := ParseAmount(rawAmount); err != nil {
		violations = append(violations, FieldViolation{Code: bulk.ViolationBadAmount, IsError: true})
	} else {
		record.Amount = parsed
		if parsed.LessThanOrEqual(decimal.Zero) {
			violations = append(violations, FieldViolation{Code: bulk.ViolationNegativeAmount, IsError: true})
		}
	}

	if batchType == bulk.BatchTypeReceipts {
		mode := cell(raw, FieldAllocationMode)
		if mode == "" {
			mode = ledger.AllocationModeFIFO.String()
		}
		if !ledger.AllocationMode(mode).IsValid() {
			violations = append(violations, FieldViolation{Code: bulk.ViolationUnknownMode, IsError: true})
		}
		record.AllocationMode = mode
		record.AppliedPeriod = cell(raw, FieldAppliedPeriod)
		if ledger.AllocationMode(mode) == ledger.AllocationModeByPeriod && record.AppliedPeriod == "" {
			violations = append(violations, FieldViolation{Code: bulk.ViolationMissingField + ":" + FieldAppliedPeriod, IsError: true})
		}
	}

	return record, violations
}

func cell(raw map[string]string, key string) string {
	return strings.TrimSpace(raw[key])
}
