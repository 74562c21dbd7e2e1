/*
engine.go - Report ledger engine: forward application and exact reversal

PURPOSE:
  Turns a submitted report into its delta set and applies it atomically;
  later, re-derives the same set from the stored report and applies the
  negation. Reversal never inspects current account values - no clamping,
  no zero floors - so create/reverse cycles are exact inverses regardless
  of what other reports have since modified the accounts.

DERIVATION (per report):
  profit = refund - stake

  1. Commission:
     fee-schedule partner  -> partner-schedule account, fixed fraction,
                              per-report percent ignored and stored as 0
     any other partner     -> default account, fraction = percent/100
     erroneous             -> ordinary accrual suppressed entirely; if the
                              report is additionally a loss, a penalty
                              fine = profit * 3 * DefaultFraction
                              hits the DEFAULT account's Amount only
                              (TotalAmount untouched)
  2. Balance: user.Balance += profit, always.
  3. Shared-secondary partner: user.SecondaryBalance += profit * SecondaryShare.
  4. Charity: Amount and TotalAmount += stake * CharityFraction, always -
     charity is earned on stake volume, not on profit.

KNOWN ASYMMETRY (kept deliberately):
  The erroneous-loss fine debits the Default account even when the report
  belongs to the fee-schedule partner. Product has been asked to sign off;
  until then the behavior is preserved as-is. Reversal negates the same
  derivation, so the asymmetry round-trips cleanly either way.

RETRY CONTRACT:
  Create is NOT idempotent. A failed Create rolled back completely; blind
  resubmission after an ambiguous failure double-counts. Callers own
  deduplication.
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReportFields is a fully validated report-creation request. Amounts are
// already in the base currency; the conversational layer converts before
// the request reaches the engine.
type ReportFields struct {
	UserID        UserID
	PartnerID     PartnerID
	Amount        decimal.Decimal
	RefundAmount  decimal.Decimal
	SalaryPercent int
	Erroneous     bool
	Photo         string
}

// Engine applies and reverses report delta sets through the registry.
type Engine struct {
	reg   *Registry
	rules Rules
	clock func() time.Time
}

func NewEngine(reg *Registry, rules Rules) *Engine {
	return &Engine{reg: reg, rules: rules, clock: time.Now}
}

// Rules returns the constants the engine derives deltas with.
func (e *Engine) Rules() Rules { return e.rules }

// =============================================================================
// DELTA DERIVATION - pure function of the stored report
// =============================================================================

// DeltasFor derives the full delta set a report causes. Pure: no store
// access, no dependence on current balances.
func (e *Engine) DeltasFor(r Report) DeltaSet {
	profit := r.Profit()
	var ds DeltaSet

	// Commission or fine.
	account := AccountCommissionDefault
	fraction := decimal.NewFromInt(int64(r.SalaryPercent)).Div(decimal.NewFromInt(100))
	if r.PartnerID == e.rules.FeeSchedulePartner {
		account = AccountCommissionPartner
		fraction = e.rules.FeeScheduleFraction
	}
	if r.Erroneous {
		if profit.IsNegative() {
			fine := profit.Mul(decimal.NewFromInt(3)).Mul(e.rules.DefaultFraction)
			ds = append(ds, Delta{r.UserID, AccountCommissionDefault, FieldAmount, fine})
		}
	} else {
		accrual := profit.Mul(fraction)
		ds = append(ds,
			Delta{r.UserID, account, FieldAmount, accrual},
			Delta{r.UserID, account, FieldTotalAmount, accrual},
		)
	}

	// Balance, regardless of the erroneous flag.
	ds = append(ds, Delta{r.UserID, AccountUser, FieldBalance, profit})
	if r.PartnerID == e.rules.SharedSecondaryPartner {
		ds = append(ds, Delta{r.UserID, AccountUser, FieldSecondaryBalance, profit.Mul(e.rules.SecondaryShare)})
	}

	// Charity, regardless of erroneous flag or profit sign.
	charity := r.Amount.Mul(e.rules.CharityFraction)
	ds = append(ds,
		Delta{r.UserID, AccountCharity, FieldAmount, charity},
		Delta{r.UserID, AccountCharity, FieldTotalAmount, charity},
	)
	return ds
}

// =============================================================================
// CREATE
// =============================================================================

// Create persists the report and applies its delta set as one atomic unit.
// Returns the stored report together with the applied deltas so the caller
// can compose notifications.
func (e *Engine) Create(ctx context.Context, f ReportFields) (Report, DeltaSet, error) {
	percent := f.SalaryPercent
	if f.PartnerID == e.rules.FeeSchedulePartner {
		// Percent is meaningless for the fee-schedule partner; normalize so
		// the stored report re-derives identically forever.
		percent = 0
	} else if percent < e.rules.MinSalaryPercent || percent > e.rules.MaxSalaryPercent {
		return Report{}, nil, &PercentError{Percent: percent, Min: e.rules.MinSalaryPercent, Max: e.rules.MaxSalaryPercent}
	}

	r := Report{
		ID:            ReportID(uuid.NewString()),
		UserID:        f.UserID,
		PartnerID:     f.PartnerID,
		Photo:         f.Photo,
		Amount:        f.Amount,
		RefundAmount:  f.RefundAmount,
		SalaryPercent: percent,
		Erroneous:     f.Erroneous,
		Active:        true,
		CreatedAt:     e.clock(),
	}
	ds := e.DeltasFor(r)

	err := e.reg.InUserTx(ctx, r.UserID, func(tx Tx) error {
		if err := tx.InsertReport(r); err != nil {
			return err
		}
		return applyDeltas(tx, ds)
	})
	if err != nil {
		return Report{}, nil, wrapTxErr(err)
	}
	return r, ds, nil
}

// =============================================================================
// REVERSE
// =============================================================================

// Reverse re-derives the stored report's delta set, applies the negation of
// every delta, and flips the report inactive. Reversing a missing or
// already-inactive report is rejected before any mutation is attempted.
func (e *Engine) Reverse(ctx context.Context, id ReportID) (Report, DeltaSet, error) {
	// Cheap pre-check outside the lock for the common illegal-state cases.
	r, err := e.reg.store.Report(ctx, id)
	if err != nil {
		return Report{}, nil, err
	}
	if !r.Active {
		return Report{}, nil, fmt.Errorf("%w: %s", ErrReportInactive, id)
	}

	var negated DeltaSet
	err = e.reg.InUserTx(ctx, r.UserID, func(tx Tx) error {
		// Re-check under the lock: a concurrent reversal may have won.
		cur, err := tx.Report(id)
		if err != nil {
			return err
		}
		if !cur.Active {
			return fmt.Errorf("%w: %s", ErrReportInactive, id)
		}
		negated = e.DeltasFor(cur).Negated()
		if err := applyDeltas(tx, negated); err != nil {
			return err
		}
		return tx.DeactivateReport(id)
	})
	if err != nil {
		return Report{}, nil, wrapTxErr(err)
	}
	r.Active = false
	return r, negated, nil
}

// wrapTxErr keeps engine-level errors (validation, illegal state, missing
// records) intact and tags everything else as a rolled-back transaction.
func wrapTxErr(err error) error {
	if err == nil {
		return nil
	}
	if IsValidation(err) || IsIllegalState(err) || IsNotFound(err) || errors.Is(err, ErrTransactionFailed) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
}
