package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddsbook/ledger-engine/ledger"
)

func testConverter() *ledger.Converter {
	return ledger.NewConverter([]ledger.Currency{
		{ID: 1, Name: "Euro", Symbol: "€", Rate: dec("1")},
		{ID: 2, Name: "Hryvnia", Symbol: "₴", Rate: dec("0.025")},
	})
}

func TestConverter_RoundTrip(t *testing.T) {
	c := testConverter()

	base, err := c.ToBase(dec("4000"), 2)
	require.NoError(t, err)
	assertDec(t, "100", base)

	display, err := c.FromBase(base, 2)
	require.NoError(t, err)
	assertDec(t, "4000", display)
}

func TestConverter_BaseCurrencyIsIdentity(t *testing.T) {
	c := testConverter()

	base, err := c.ToBase(dec("123.45"), 1)
	require.NoError(t, err)
	assertDec(t, "123.45", base)
}

func TestConverter_RoundsToCents(t *testing.T) {
	c := testConverter()

	base, err := c.ToBase(dec("7"), 2) // 0.175 -> 0.18
	require.NoError(t, err)
	assertDec(t, "0.18", base)
}

func TestConverter_UnknownCurrency(t *testing.T) {
	c := testConverter()

	_, err := c.ToBase(dec("1"), 99)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrUnknownCurrency)
	assert.True(t, ledger.IsValidation(err))

	_, err = c.FromBase(dec("1"), 99)
	assert.ErrorIs(t, err, ledger.ErrUnknownCurrency)

	_, err = c.Currency(99)
	assert.ErrorIs(t, err, ledger.ErrUnknownCurrency)
}
