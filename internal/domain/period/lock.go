package period

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ledger/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// LockType represents the granularity of a period lock
type LockType string

const (
	LockTypeMonth   LockType = "MONTH"
	LockTypeQuarter LockType = "QUARTER"
	LockTypeYear    LockType = "YEAR"
)

// IsValid checks if the lock type is valid
func (t LockType) IsValid() bool {
	switch t {
	case LockTypeMonth, LockTypeQuarter, LockTypeYear:
		return true
	}
	return false
}

// String returns the string representation of LockType
func (t LockType) String() string {
	return string(t)
}

// Key identifies one lockable period: a type plus its normalized key,
// e.g. MONTH "2024-03", QUARTER "2024-Q1", YEAR "2024".
type Key struct {
	Type LockType
	Key  string
}

// String renders the key in its canonical "TYPE:KEY" form
func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.Type, k.Key)
}

// MonthKey derives the MONTH key for a date
func MonthKey(date time.Time) string {
	return date.UTC().Format("2006-01")
}

// QuarterKey derives the QUARTER key for a date
func QuarterKey(date time.Time) string {
	d := date.UTC()
	quarter := (int(d.Month()) + 2) / 3
	return fmt.Sprintf("%d-Q%d", d.Year(), quarter)
}

// YearKey derives the YEAR key for a date
func YearKey(date time.Time) string {
	return date.UTC().Format("2006")
}

// KeysForDate derives the three period keys a calendar date falls into
func KeysForDate(date time.Time) []Key {
	return []Key{
		{Type: LockTypeMonth, Key: MonthKey(date)},
		{Type: LockTypeQuarter, Key: QuarterKey(date)},
		{Type: LockTypeYear, Key: YearKey(date)},
	}
}

// KeysForDates derives the de-duplicated union of period keys for a set of
// dates, sorted by their canonical string form.
func KeysForDates(dates []time.Time) []Key {
	seen := make(map[string]Key)
	for _, d := range dates {
		for _, k := range KeysForDate(d) {
			seen[k.String()] = k
		}
	}
	keys := make([]Key, 0, len(seen))
	for _, k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

// Lock represents an administrative block on mutations dated within a period.
// Its presence alone blocks; there is no enabled flag.
type Lock struct {
	shared.BaseEntity
	Type     LockType
	Key      string
	Note     string
	LockedBy uuid.UUID
}

// NewLock creates a new period lock
func NewLock(lockType LockType, key, note string, lockedBy uuid.UUID) (*Lock, error) {
	if !lockType.IsValid() {
		return nil, shared.NewValidationError("INVALID_LOCK_TYPE", fmt.Sprintf("Invalid period lock type: %s", lockType))
	}
	if err := validateKey(lockType, key); err != nil {
		return nil, err
	}
	return &Lock{
		BaseEntity: shared.NewBaseEntity(),
		Type:       lockType,
		Key:        key,
		Note:       note,
		LockedBy:   lockedBy,
	}, nil
}

// PeriodKey returns the typed key of this lock
func (l *Lock) PeriodKey() Key {
	return Key{Type: l.Type, Key: l.Key}
}

// validateKey checks the normalized key format for the given type
func validateKey(lockType LockType, key string) error {
	var layoutOK bool
	switch lockType {
	case LockTypeMonth:
		_, err := time.Parse("2006-01", key)
		layoutOK = err == nil
	case LockTypeQuarter:
		var year, quarter int
		n, err := fmt.Sscanf(key, "%d-Q%d", &year, &quarter)
		layoutOK = err == nil && n == 2 && quarter >= 1 && quarter <= 4 && len(key) == 7
	case LockTypeYear:
		_, err := time.Parse("2006", key)
		layoutOK = err == nil && len(key) == 4
	}
	if !layoutOK {
		return shared.NewValidationError("INVALID_PERIOD_KEY", fmt.Sprintf("Invalid %s period key: %q", lockType, key))
	}
	return nil
}

// RequireOverride authorizes a period-lock override. Only admins and
// supervisors may override, and a non-blank reason is mandatory. Returns the
// trimmed reason for the audit trail.
func RequireOverride(actor shared.Actor, reason string) (string, error) {
	if !actor.CanOverridePeriodLock() {
		return "", shared.NewAuthorizationError("OVERRIDE_FORBIDDEN", "Only admins and supervisors may override period locks")
	}
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		return "", shared.NewValidationError("OVERRIDE_REASON_REQUIRED", "Override reason cannot be blank")
	}
	return trimmed, nil
}
