package period

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyDerivation(t *testing.T) {
	t.Run("month, quarter and year keys", func(t *testing.T) {
		cases := []struct {
			date    time.Time
			month   string
			quarter string
			year    string
		}{
			{time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), "2024-01", "2024-Q1", "2024"},
			{time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC), "2024-03", "2024-Q1", "2024"},
			{time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), "2024-04", "2024-Q2", "2024"},
			{time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC), "2024-09", "2024-Q3", "2024"},
			{time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), "2024-12", "2024-Q4", "2024"},
		}
		for _, tc := range cases {
			assert.Equal(t, tc.month, MonthKey(tc.date))
			assert.Equal(t, tc.quarter, QuarterKey(tc.date))
			assert.Equal(t, tc.year, YearKey(tc.date))
		}
	})

	t.Run("keys derive from the UTC date", func(t *testing.T) {
		// 2024-01-31 23:00 in UTC+2 is still January in UTC.
		loc := time.FixedZone("UTC+2", 2*3600)
		d := time.Date(2024, 2, 1, 0, 30, 0, 0, loc)
		assert.Equal(t, "2024-01", MonthKey(d))
	})

	t.Run("KeysForDate yields all three granularities", func(t *testing.T) {
		keys := KeysForDate(time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC))
		require.Len(t, keys, 3)
		assert.Equal(t, Key{Type: LockTypeMonth, Key: "2024-05"}, keys[0])
		assert.Equal(t, Key{Type: LockTypeQuarter, Key: "2024-Q2"}, keys[1])
		assert.Equal(t, Key{Type: LockTypeYear, Key: "2024"}, keys[2])
	})

	t.Run("KeysForDates dedupes and sorts", func(t *testing.T) {
		keys := KeysForDates([]time.Time{
			time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		})
		// Two months, one quarter, one year; same-month dates collapse.
		require.Len(t, keys, 4)
		rendered := make([]string, len(keys))
		for i, k := range keys {
			rendered[i] = k.String()
		}
		assert.Equal(t, []string{"MONTH:2024-03", "MONTH:2024-04", "QUARTER:2024-Q2", "YEAR:2024"}, rendered)
	})
}

func TestNewLock(t *testing.T) {
	actor := uuid.New()

	t.Run("valid keys per type", func(t *testing.T) {
		for _, tc := range []struct {
			lockType LockType
			key      string
		}{
			{LockTypeMonth, "2024-03"},
			{LockTypeQuarter, "2024-Q1"},
			{LockTypeQuarter, "2024-Q4"},
			{LockTypeYear, "2024"},
		} {
			lock, err := NewLock(tc.lockType, tc.key, "closing", actor)
			require.NoError(t, err, "%s %s", tc.lockType, tc.key)
			assert.Equal(t, tc.key, lock.Key)
			assert.Equal(t, tc.lockType.String()+":"+tc.key, lock.PeriodKey().String())
		}
	})

	t.Run("malformed keys are rejected", func(t *testing.T) {
		for _, tc := range []struct {
			lockType LockType
			key      string
		}{
			{LockTypeMonth, "2024-13"},
			{LockTypeMonth, "2024"},
			{LockTypeQuarter, "2024-Q5"},
			{LockTypeQuarter, "2024-Q0"},
			{LockTypeQuarter, "2024-03"},
			{LockTypeYear, "24"},
			{LockType("WEEK"), "2024-W01"},
		} {
			_, err := NewLock(tc.lockType, tc.key, "", actor)
			assert.Error(t, err, "%s %s", tc.lockType, tc.key)
		}
	})
}

func TestRequireOverride(t *testing.T) {
	admin := shared.Actor{ID: uuid.New(), Roles: []shared.Role{shared.RoleAdmin}}
	supervisor := shared.Actor{ID: uuid.New(), Roles: []shared.Role{shared.RoleSupervisor}}
	accountant := shared.Actor{ID: uuid.New(), Roles: []shared.Role{shared.RoleAccountant}}

	t.Run("admin and supervisor may override", func(t *testing.T) {
		for _, actor := range []shared.Actor{admin, supervisor} {
			reason, err := RequireOverride(actor, "  late posting approved by CFO  ")
			require.NoError(t, err)
			assert.Equal(t, "late posting approved by CFO", reason)
		}
	})

	t.Run("other roles are refused", func(t *testing.T) {
		_, err := RequireOverride(accountant, "reason")
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, shared.KindAuthorization, domainErr.Kind)
	})

	t.Run("blank reason is refused even for admins", func(t *testing.T) {
		_, err := RequireOverride(admin, "   ")
		assert.Error(t, err)
	})
}
