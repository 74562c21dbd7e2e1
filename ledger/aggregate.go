/*
aggregate.go - Read-only rollups over active records

Pure projections: sums of balances and accounts, count/turnover/profit over
a date interval, per-partner totals. Never mutates state, always excludes
soft-deleted reports, partners, and users. An empty result set is a valid
answer, not an error.
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// IntervalStats summarizes the reports of one interval.
type IntervalStats struct {
	Count    int
	Turnover decimal.Decimal // sum of stakes
	Profit   decimal.Decimal // sum of profits
}

// Totals is the global snapshot across all active members.
type Totals struct {
	Balance           decimal.Decimal
	SecondaryBalance  decimal.Decimal
	CommissionDefault decimal.Decimal
	CommissionPartner decimal.Decimal
	CharityAmount     decimal.Decimal
	CharityLifetime   decimal.Decimal
}

// Aggregator serves the read side.
type Aggregator struct {
	store Store
	rules Rules
}

func NewAggregator(store Store, rules Rules) *Aggregator {
	return &Aggregator{store: store, rules: rules}
}

// Totals sums every ledger across active members.
func (a *Aggregator) Totals(ctx context.Context) (Totals, error) {
	var t Totals

	users, err := a.store.ActiveUsers(ctx)
	if err != nil {
		return Totals{}, err
	}
	for _, u := range users {
		t.Balance = t.Balance.Add(u.Balance)
		t.SecondaryBalance = t.SecondaryBalance.Add(u.SecondaryBalance)
	}

	for _, kind := range []CommissionKind{KindDefault, KindPartnerSchedule} {
		accounts, err := a.store.Commissions(ctx, kind)
		if err != nil {
			return Totals{}, err
		}
		for _, acc := range accounts {
			if kind == KindDefault {
				t.CommissionDefault = t.CommissionDefault.Add(acc.Amount)
			} else {
				t.CommissionPartner = t.CommissionPartner.Add(acc.Amount)
			}
		}
	}

	charities, err := a.store.Charities(ctx)
	if err != nil {
		return Totals{}, err
	}
	for _, c := range charities {
		t.CharityAmount = t.CharityAmount.Add(c.Amount)
		t.CharityLifetime = t.CharityLifetime.Add(c.TotalAmount)
	}
	return t, nil
}

// IntervalStats counts and sums the active reports matching the filter.
func (a *Aggregator) IntervalStats(ctx context.Context, f ReportFilter) (IntervalStats, error) {
	reports, err := a.store.Reports(ctx, f)
	if err != nil {
		return IntervalStats{}, err
	}
	stats := IntervalStats{Turnover: decimal.Zero, Profit: decimal.Zero}
	for _, r := range reports {
		stats.Count++
		stats.Turnover = stats.Turnover.Add(r.Amount)
		stats.Profit = stats.Profit.Add(r.Profit())
	}
	return stats, nil
}

// CharityAccrued is sum(stake * CharityFraction) over the interval, the
// number reported to the charity recipients.
func (a *Aggregator) CharityAccrued(ctx context.Context, interval DateInterval) (decimal.Decimal, error) {
	reports, err := a.store.Reports(ctx, ReportFilter{Interval: &interval})
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, r := range reports {
		total = total.Add(r.Amount.Mul(a.rules.CharityFraction))
	}
	return total.Round(2), nil
}

// PartnerTotals sums one user's profit and stake under one partner, from an
// optional starting point. The fee-schedule statement uses this with the
// account's LastDebitedAt to show what accrued since the last collection.
func (a *Aggregator) PartnerTotals(ctx context.Context, user UserID, partner PartnerID, since *time.Time) (profit, stake decimal.Decimal, err error) {
	f := ReportFilter{UserID: &user, PartnerID: &partner}
	if since != nil {
		f.Interval = &DateInterval{Start: *since, End: time.Now()}
	}
	reports, err := a.store.Reports(ctx, f)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	profit, stake = decimal.Zero, decimal.Zero
	for _, r := range reports {
		profit = profit.Add(r.Profit())
		stake = stake.Add(r.Amount)
	}
	return profit.Round(2), stake.Round(2), nil
}
