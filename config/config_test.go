package config_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddsbook/ledger-engine/config"
	"github.com/oddsbook/ledger-engine/ledger"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Port)
	assert.Equal(t, "ledger.db", c.DBPath)
	require.Len(t, c.Currencies, 1)
	assert.Equal(t, "Euro", c.Currencies[0].Name)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load("/does/not/exist.yaml")
	require.Error(t, err)
}

func TestConfig_Rules(t *testing.T) {
	c, err := config.Load("")
	require.NoError(t, err)

	r := c.Rules()
	assert.Equal(t, ledger.PartnerID(1), r.FeeSchedulePartner)
	assert.Equal(t, ledger.PartnerID(2), r.SharedSecondaryPartner)
	assert.True(t, decimal.NewFromFloat(0.30).Equal(r.FeeScheduleFraction))
	assert.True(t, decimal.NewFromFloat(0.005).Equal(r.CharityFraction))
}

func TestConfig_CurrencyTable(t *testing.T) {
	c, err := config.Load("")
	require.NoError(t, err)

	table := c.CurrencyTable()
	require.Len(t, table, 1)
	assert.Equal(t, ledger.CurrencyID(1), table[0].ID)
	assert.True(t, decimal.NewFromInt(1).Equal(table[0].Rate))
}
