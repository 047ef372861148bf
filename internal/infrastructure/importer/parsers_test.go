package importer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	t.Run("accepted notations", func(t *testing.T) {
		expected := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
		cases := []string{
			"2024-03-05",
			"05/03/2024",
			"05.03.2024",
			"2024/03/05",
			"05-03-2024",
			"  2024-03-05  ",
		}
		for _, value := range cases {
			parsed, err := ParseDate(value)
			require.NoError(t, err, value)
			assert.True(t, expected.Equal(parsed), value)
		}
	})

	t.Run("day-first wins over month-first for ambiguous values", func(t *testing.T) {
		// 04/03/2024 parses as 4 March, not 3 April.
		parsed, err := ParseDate("04/03/2024")
		require.NoError(t, err)
		assert.Equal(t, time.March, parsed.Month())
		assert.Equal(t, 4, parsed.Day())
	})

	t.Run("result is UTC midnight", func(t *testing.T) {
		parsed, err := ParseDate("2024-03-05")
		require.NoError(t, err)
		assert.Equal(t, time.UTC, parsed.Location())
		h, m, s := parsed.Clock()
		assert.Zero(t, h+m+s)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		for _, value := range []string{"", "   ", "not-a-date", "2024-13-01", "31/02/2024", "2024-03"} {
			_, err := ParseDate(value)
			assert.Error(t, err, "%q", value)
		}
	})
}

func TestParseAmount(t *testing.T) {
	t.Run("accepted notations", func(t *testing.T) {
		cases := []struct {
			value    string
			expected string
		}{
			{"1234.56", "1234.56"},
			{"1234", "1234"},
			{"0.01", "0.01"},
			{"-5.50", "-5.5"},
			{"1,234.56", "1234.56"},
			{"1,234,567.89", "1234567.89"},
			{"1.234,56", "1234.56"},
			{"1.234.567,89", "1234567.89"},
			{"1234,56", "1234.56"},
			{" 100.00 ", "100"},
		}
		for _, tc := range cases {
			parsed, err := ParseAmount(tc.value)
			require.NoError(t, err, tc.value)
			assert.Equal(t, tc.expected, parsed.String(), tc.value)
		}
	})

	t.Run("plain notation wins when no comma is present", func(t *testing.T) {
		// "1.234" is one point two three four, not European thousands.
		parsed, err := ParseAmount("1.234")
		require.NoError(t, err)
		assert.Equal(t, "1.234", parsed.String())
	})

	t.Run("comma thousands wins over comma decimal", func(t *testing.T) {
		// "1,234" has a three-digit comma group, so it reads as 1234.
		parsed, err := ParseAmount("1,234")
		require.NoError(t, err)
		assert.Equal(t, "1234", parsed.String())
	})

	t.Run("short comma group falls through to comma decimal", func(t *testing.T) {
		parsed, err := ParseAmount("1,23")
		require.NoError(t, err)
		assert.Equal(t, "1.23", parsed.String())
	})

	t.Run("rejects garbage", func(t *testing.T) {
		for _, value := range []string{"", "   ", "abc", "12.34.56", "1,2,3", "1,234,56.7"} {
			_, err := ParseAmount(value)
			assert.Error(t, err, "%q", value)
		}
	})
}
