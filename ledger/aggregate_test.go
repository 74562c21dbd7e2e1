package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddsbook/ledger-engine/ledger"
)

func TestAggregator_Totals_SumsActiveMembersOnly(t *testing.T) {
	// GIVEN: two members with reports, one later removed
	// WHEN: totals are computed
	// THEN: the removed member's balances and accounts are excluded

	eng, reg, mem := newTestEngine(t)
	ctx := context.Background()
	onboard(t, reg, 100)
	_, err := reg.Onboard(ctx, 200, "bob", 1)
	require.NoError(t, err)

	_, _, err = eng.Create(ctx, report(100, plainPartner, "1000", "1300", 10, false))
	require.NoError(t, err)
	_, _, err = eng.Create(ctx, report(200, plainPartner, "1000", "1200", 10, false))
	require.NoError(t, err)

	agg := ledger.NewAggregator(mem, ledger.DefaultRules())

	totals, err := agg.Totals(ctx)
	require.NoError(t, err)
	assertDec(t, "500", totals.Balance)          // 300 + 200
	assertDec(t, "50", totals.CommissionDefault) // 30 + 20
	assertDec(t, "10", totals.CharityAmount)     // 5 + 5

	require.NoError(t, reg.Remove(ctx, 200))

	totals, err = agg.Totals(ctx)
	require.NoError(t, err)
	assertDec(t, "300", totals.Balance)
	assertDec(t, "30", totals.CommissionDefault)
	assertDec(t, "5", totals.CharityAmount)
}

func TestAggregator_IntervalStats_ExcludesReversedReports(t *testing.T) {
	// GIVEN: two reports, one of which is reversed
	// WHEN: interval stats are computed for today
	// THEN: only the surviving report counts

	eng, reg, mem := newTestEngine(t)
	ctx := context.Background()
	onboard(t, reg, 100)

	_, _, err := eng.Create(ctx, report(100, plainPartner, "1000", "1300", 10, false))
	require.NoError(t, err)
	r2, _, err := eng.Create(ctx, report(100, plainPartner, "500", "400", 10, false))
	require.NoError(t, err)
	_, _, err = eng.Reverse(ctx, r2.ID)
	require.NoError(t, err)

	agg := ledger.NewAggregator(mem, ledger.DefaultRules())
	today := ledger.TodayInterval(time.Now())

	stats, err := agg.IntervalStats(ctx, ledger.ReportFilter{Interval: &today})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)
	assertDec(t, "1000", stats.Turnover)
	assertDec(t, "300", stats.Profit)
}

func TestAggregator_IntervalStats_ExcludesDeactivatedPartners(t *testing.T) {
	eng, reg, mem := newTestEngine(t)
	ctx := context.Background()
	onboard(t, reg, 100)

	_, _, err := eng.Create(ctx, report(100, plainPartner, "1000", "1300", 10, false))
	require.NoError(t, err)
	_, _, err = eng.Create(ctx, report(100, feePartner, "500", "600", 0, false))
	require.NoError(t, err)

	require.NoError(t, reg.DeactivatePartner(ctx, plainPartner))

	agg := ledger.NewAggregator(mem, ledger.DefaultRules())
	stats, err := agg.IntervalStats(ctx, ledger.ReportFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)
	assertDec(t, "500", stats.Turnover)
}

func TestAggregator_IntervalStats_Empty(t *testing.T) {
	_, reg, mem := newTestEngine(t)
	onboard(t, reg, 100)

	agg := ledger.NewAggregator(mem, ledger.DefaultRules())
	stats, err := agg.IntervalStats(context.Background(), ledger.ReportFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Count)
	assertDec(t, "0", stats.Turnover)
	assertDec(t, "0", stats.Profit)
}

func TestAggregator_CharityAccrued_SumOfStakeFractions(t *testing.T) {
	// stake 1000 and stake 500 at 0.5% -> 5.00 + 2.50 = 7.50

	eng, reg, mem := newTestEngine(t)
	ctx := context.Background()
	onboard(t, reg, 100)

	_, _, err := eng.Create(ctx, report(100, plainPartner, "1000", "900", 10, false))
	require.NoError(t, err)
	_, _, err = eng.Create(ctx, report(100, plainPartner, "500", "800", 10, false))
	require.NoError(t, err)

	agg := ledger.NewAggregator(mem, ledger.DefaultRules())
	today := ledger.TodayInterval(time.Now())

	total, err := agg.CharityAccrued(ctx, today)
	require.NoError(t, err)
	assertDec(t, "7.50", total)
}

func TestAggregator_PartnerTotals_FiltersByUserAndPartner(t *testing.T) {
	eng, reg, mem := newTestEngine(t)
	ctx := context.Background()
	onboard(t, reg, 100)
	_, err := reg.Onboard(ctx, 200, "bob", 1)
	require.NoError(t, err)

	_, _, err = eng.Create(ctx, report(100, feePartner, "500", "700", 0, false))
	require.NoError(t, err)
	_, _, err = eng.Create(ctx, report(100, feePartner, "300", "250", 0, false))
	require.NoError(t, err)
	_, _, err = eng.Create(ctx, report(100, plainPartner, "900", "1000", 10, false))
	require.NoError(t, err)
	_, _, err = eng.Create(ctx, report(200, feePartner, "100", "150", 0, false))
	require.NoError(t, err)

	agg := ledger.NewAggregator(mem, ledger.DefaultRules())
	profit, stake, err := agg.PartnerTotals(ctx, 100, feePartner, nil)
	require.NoError(t, err)
	assertDec(t, "150", profit) // 200 - 50
	assertDec(t, "800", stake)  // 500 + 300
}
