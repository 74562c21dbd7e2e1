/*
delta.go - The delta set: the exact per-account effect of one event

PURPOSE:
  Every engine event is expressed as a DeltaSet before anything is written.
  The set is derived purely from a report's stored fields, so reversal is
  simply the negation of the same derivation. Callers also receive the set
  so the notification layer can tell each affected member what changed.

CRITICAL INVARIANTS:
  1. A delta set is applied all-or-nothing inside one store transaction.
  2. Negation is exact: Apply(ds) then Apply(ds.Negated()) restores every
     touched field bit-for-bit, regardless of concurrent history. No
     clamping, no special-casing on current values.
  3. An account absent from the set is untouched - not written with a zero.
*/
package ledger

import "github.com/shopspring/decimal"

// =============================================================================
// ACCOUNT ADDRESSING
// =============================================================================

// AccountKind names one of a user's ledgers.
type AccountKind string

const (
	AccountUser              AccountKind = "user"
	AccountCommissionDefault AccountKind = "commission_default"
	AccountCommissionPartner AccountKind = "commission_partner"
	AccountCharity           AccountKind = "charity"
)

// AccountField names the mutated column within the account record.
type AccountField string

const (
	FieldBalance          AccountField = "balance"           // AccountUser
	FieldSecondaryBalance AccountField = "secondary_balance" // AccountUser
	FieldAmount           AccountField = "amount"            // commission/charity
	FieldTotalAmount      AccountField = "total_amount"      // commission/charity
)

// =============================================================================
// DELTAS
// =============================================================================

// Delta is one signed mutation of one field of one account.
type Delta struct {
	UserID  UserID
	Account AccountKind
	Field   AccountField
	Value   decimal.Decimal
}

type DeltaSet []Delta

// Negated returns the exact inverse set.
func (ds DeltaSet) Negated() DeltaSet {
	out := make(DeltaSet, len(ds))
	for i, d := range ds {
		d.Value = d.Value.Neg()
		out[i] = d
	}
	return out
}

// Find returns the summed value of deltas matching account and field.
// Convenience for callers composing notifications and for tests.
func (ds DeltaSet) Find(account AccountKind, field AccountField) decimal.Decimal {
	sum := decimal.Zero
	for _, d := range ds {
		if d.Account == account && d.Field == field {
			sum = sum.Add(d.Value)
		}
	}
	return sum
}

// Touches reports whether any delta addresses the account at all.
func (ds DeltaSet) Touches(account AccountKind) bool {
	for _, d := range ds {
		if d.Account == account {
			return true
		}
	}
	return false
}

// =============================================================================
// APPLICATION
// =============================================================================

// applyDeltas folds a delta set into the account records through tx.
// Each record is loaded once, mutated in memory, and saved once. Must run
// inside the owning user's critical section.
func applyDeltas(tx Tx, ds DeltaSet) error {
	users := map[UserID]*User{}
	commissions := map[UserID]map[CommissionKind]*CommissionAccount{}
	charities := map[UserID]*CharityAccount{}

	for _, d := range ds {
		switch d.Account {
		case AccountUser:
			u := users[d.UserID]
			if u == nil {
				loaded, err := tx.User(d.UserID)
				if err != nil {
					return err
				}
				u = &loaded
				users[d.UserID] = u
			}
			switch d.Field {
			case FieldBalance:
				u.Balance = u.Balance.Add(d.Value)
			case FieldSecondaryBalance:
				u.SecondaryBalance = u.SecondaryBalance.Add(d.Value)
			}

		case AccountCommissionDefault, AccountCommissionPartner:
			kind := KindDefault
			if d.Account == AccountCommissionPartner {
				kind = KindPartnerSchedule
			}
			if commissions[d.UserID] == nil {
				commissions[d.UserID] = map[CommissionKind]*CommissionAccount{}
			}
			acc := commissions[d.UserID][kind]
			if acc == nil {
				loaded, err := tx.Commission(d.UserID, kind)
				if err != nil {
					return err
				}
				acc = &loaded
				commissions[d.UserID][kind] = acc
			}
			switch d.Field {
			case FieldAmount:
				acc.Amount = acc.Amount.Add(d.Value)
			case FieldTotalAmount:
				acc.TotalAmount = acc.TotalAmount.Add(d.Value)
			}

		case AccountCharity:
			ch := charities[d.UserID]
			if ch == nil {
				loaded, err := tx.Charity(d.UserID)
				if err != nil {
					return err
				}
				ch = &loaded
				charities[d.UserID] = ch
			}
			switch d.Field {
			case FieldAmount:
				ch.Amount = ch.Amount.Add(d.Value)
			case FieldTotalAmount:
				ch.TotalAmount = ch.TotalAmount.Add(d.Value)
			}
		}
	}

	for _, u := range users {
		if err := tx.SaveUser(*u); err != nil {
			return err
		}
	}
	for _, byKind := range commissions {
		for _, acc := range byKind {
			if err := tx.SaveCommission(*acc); err != nil {
				return err
			}
		}
	}
	for _, ch := range charities {
		if err := tx.SaveCharity(*ch); err != nil {
			return err
		}
	}
	return nil
}
