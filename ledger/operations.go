/*
operations.go - Manual balance adjustments (the operation ledger)

An Operation is an administrative credit/debit with a free-text reason:
append-only insert plus a single-account balance mutation in one atomic
unit. There is no reversal - operations are corrections, not undoable
report effects. A correction of a correction is just another operation.
*/
package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IssueReason is recorded when an admin credits a balance directly without
// entering a reason, so the audit trail never has silent mutations.
const IssueReason = "balance issue"

type OperationLedger struct {
	reg *Registry
}

func NewOperationLedger(reg *Registry) *OperationLedger {
	return &OperationLedger{reg: reg}
}

// Record appends the operation and applies its balance effect atomically.
// When secondary is set, the same amount also moves the secondary balance.
func (o *OperationLedger) Record(ctx context.Context, id UserID, amount decimal.Decimal, reason string, secondary bool) (Operation, error) {
	op := Operation{
		ID:        OperationID(uuid.NewString()),
		UserID:    id,
		Amount:    amount,
		Reason:    reason,
		Secondary: secondary,
		CreatedAt: o.reg.clock(),
	}

	err := o.reg.InUserTx(ctx, id, func(tx Tx) error {
		if err := tx.InsertOperation(op); err != nil {
			return err
		}
		u, err := tx.User(id)
		if err != nil {
			return err
		}
		u.Balance = u.Balance.Add(amount)
		if secondary {
			u.SecondaryBalance = u.SecondaryBalance.Add(amount)
		}
		return tx.SaveUser(u)
	})
	if err != nil {
		return Operation{}, wrapTxErr(err)
	}
	return op, nil
}

// Issue credits the balance with the fixed issue reason.
func (o *OperationLedger) Issue(ctx context.Context, id UserID, amount decimal.Decimal) (Operation, error) {
	return o.Record(ctx, id, amount, IssueReason, false)
}
