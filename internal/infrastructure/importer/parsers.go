// Package importer normalizes raw tabular import cells. Dates and amounts
// arrive in several notations; each parser list is tried in a fixed priority
// order and the first successful parse wins. A value valid under two
// notations therefore resolves by list order.
package importer

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dateLayouts is the fixed priority order for date notations
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02.01.2006",
	"2006/01/02",
	"02-01-2006",
}

// ParseDate parses a business date, returning it normalized to UTC midnight
func ParseDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date notation: %q", value)
}

// amountNormalizers rewrite a raw cell into canonical decimal syntax, in
// priority order: plain decimal point, comma thousands separators, European
// notation (dot thousands, comma decimals), bare comma decimals.
var amountNormalizers = []func(string) (string, bool){
	normalizePlain,
	normalizeCommaThousands,
	normalizeEuropean,
	normalizeCommaDecimal,
}

// ParseAmount parses an amount cell into a decimal
func ParseAmount(value string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	for _, normalize := range amountNormalizers {
		canonical, ok := normalize(trimmed)
		if !ok {
			continue
		}
		if amount, err := decimal.NewFromString(canonical); err == nil {
			return amount, nil
		}
	}
	return decimal.Zero, fmt.Errorf("unrecognized amount notation: %q", value)
}

// normalizePlain accepts values already in canonical syntax, e.g. "1234.56"
func normalizePlain(s string) (string, bool) {
	if strings.ContainsRune(s, ',') {
		return "", false
	}
	return s, true
}

// normalizeCommaThousands accepts "1,234,567.89"
func normalizeCommaThousands(s string) (string, bool) {
	if !strings.ContainsRune(s, ',') {
		return "", false
	}
	if strings.Count(s, ".") > 1 {
		return "", false
	}
	// Every comma group must be exactly three digits
	intPart := s
	if dot := strings.IndexRune(s, '.'); dot >= 0 {
		intPart = s[:dot]
	}
	groups := strings.Split(intPart, ",")
	if len(groups) < 2 {
		return "", false
	}
	for i, g := range groups {
		if i > 0 && len(g) != 3 {
			return "", false
		}
	}
	return strings.ReplaceAll(s, ",", ""), true
}

// normalizeEuropean accepts "1.234.567,89"
func normalizeEuropean(s string) (string, bool) {
	if strings.Count(s, ",") != 1 {
		return "", false
	}
	comma := strings.IndexRune(s, ',')
	if strings.ContainsRune(s[comma:], '.') {
		return "", false
	}
	intPart := strings.ReplaceAll(s[:comma], ".", "")
	return intPart + "." + s[comma+1:], true
}

// normalizeCommaDecimal accepts "1234,56"
func normalizeCommaDecimal(s string) (string, bool) {
	if strings.Count(s, ",") != 1 || strings.ContainsRune(s, '.') {
		return "", false
	}
	return strings.Replace(s, ",", ".", 1), true
}
