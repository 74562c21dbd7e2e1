package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddsbook/ledger-engine/ledger"
)

func TestParseDateInterval_Valid(t *testing.T) {
	iv, err := ledger.ParseDateInterval("01.03.25-15.03.25")
	require.NoError(t, err)

	assert.Equal(t, 2025, iv.Start.Year())
	assert.Equal(t, time.March, iv.Start.Month())
	assert.Equal(t, 1, iv.Start.Day())
	assert.Equal(t, 0, iv.Start.Hour())

	assert.Equal(t, 15, iv.End.Day())
	assert.Equal(t, 23, iv.End.Hour())
	assert.Equal(t, 59, iv.End.Minute())
}

func TestParseDateInterval_StripsSpaces(t *testing.T) {
	iv, err := ledger.ParseDateInterval("01.03.25 - 15.03.25")
	require.NoError(t, err)
	assert.Equal(t, 1, iv.Start.Day())
	assert.Equal(t, 15, iv.End.Day())
}

func TestParseDateInterval_SingleDay(t *testing.T) {
	// Same day twice covers exactly that day.
	iv, err := ledger.ParseDateInterval("10.06.25-10.06.25")
	require.NoError(t, err)

	noon := time.Date(2025, time.June, 10, 12, 0, 0, 0, time.Local)
	assert.True(t, iv.Contains(noon))
	assert.False(t, iv.Contains(noon.AddDate(0, 0, 1)))
	assert.False(t, iv.Contains(noon.AddDate(0, 0, -1)))
}

func TestParseDateInterval_Invalid(t *testing.T) {
	cases := []string{
		"",
		"01.03.25",
		"01.03.25-15.03.25-20.03.25",
		"2025-03-01-2025-03-15",
		"32.01.25-02.02.25",
		"15.03.25-01.03.25", // inverted
	}
	for _, s := range cases {
		_, err := ledger.ParseDateInterval(s)
		require.Error(t, err, s)
		assert.ErrorIs(t, err, ledger.ErrInvalidInterval, s)
		assert.True(t, ledger.IsValidation(err), s)
	}
}

func TestTodayInterval_ContainsNowOnly(t *testing.T) {
	now := time.Date(2025, time.July, 4, 14, 30, 0, 0, time.Local)
	iv := ledger.TodayInterval(now)

	assert.True(t, iv.Contains(now))
	assert.True(t, iv.Contains(iv.Start))
	assert.True(t, iv.Contains(iv.End))
	assert.False(t, iv.Contains(now.AddDate(0, 0, -1)))
	assert.False(t, iv.Contains(now.AddDate(0, 0, 1)))
}
