/*
collect.go - Commission collection (salary removal/assignment)

Two administrative events, each one atomic unit under the user's lock:

  Collect:   pay out the whole uncollected amount. Zeroes Amount, stamps
             LastDebitedAt, debits the balance by the snapshot. An empty or
             negative account is a NO-OP - reported as a normal result, not
             an error, with zero mutation.
  SetAmount: force Amount to a value and adjust the balance by the signed
             difference so balance and commission stay reciprocal.
             TotalAmount is never touched here.
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// CollectResult tells the caller what, if anything, was paid out.
type CollectResult struct {
	Collected bool            // false means no-op: nothing to collect
	Amount    decimal.Decimal // snapshot paid out; zero when Collected=false
}

// Collector performs the two collection events.
type Collector struct {
	reg *Registry
}

func NewCollector(reg *Registry) *Collector {
	return &Collector{reg: reg}
}

// Collect zeroes the account and debits the user's balance by the snapshot.
func (c *Collector) Collect(ctx context.Context, id UserID, kind CommissionKind) (CollectResult, error) {
	var res CollectResult
	err := c.reg.InUserTx(ctx, id, func(tx Tx) error {
		acc, err := tx.Commission(id, kind)
		if err != nil {
			return err
		}
		if !acc.Amount.IsPositive() {
			return nil // no-op, nothing staged
		}

		snapshot := acc.Amount
		now := c.reg.clock()
		acc.Amount = decimal.Zero
		acc.LastDebitedAt = &now
		if err := tx.SaveCommission(acc); err != nil {
			return err
		}

		u, err := tx.User(id)
		if err != nil {
			return err
		}
		u.Balance = u.Balance.Sub(snapshot)
		if err := tx.SaveUser(u); err != nil {
			return err
		}

		res = CollectResult{Collected: true, Amount: snapshot}
		return nil
	})
	if err != nil {
		return CollectResult{}, wrapTxErr(err)
	}
	return res, nil
}

// SetAmount forces the account to amount and moves the balance by the signed
// difference from whatever the account previously held.
func (c *Collector) SetAmount(ctx context.Context, id UserID, kind CommissionKind, amount decimal.Decimal) (decimal.Decimal, error) {
	var diff decimal.Decimal
	err := c.reg.InUserTx(ctx, id, func(tx Tx) error {
		acc, err := tx.Commission(id, kind)
		if err != nil {
			return err
		}
		diff = amount.Sub(acc.Amount)
		now := c.reg.clock()
		acc.Amount = amount
		acc.LastDebitedAt = &now
		if err := tx.SaveCommission(acc); err != nil {
			return err
		}

		u, err := tx.User(id)
		if err != nil {
			return err
		}
		u.Balance = u.Balance.Add(diff)
		return tx.SaveUser(u)
	})
	if err != nil {
		return decimal.Zero, wrapTxErr(err)
	}
	return diff, nil
}
