/*
Package ledger is the accounting core of the betting-operation tracker.

PURPOSE:
  Members submit reports of individual bets (stake, refund, commission
  percentage, partner, error flag). This package turns each report into a
  consistent set of balance mutations across several per-user ledgers
  (balance, secondary balance, two commission accounts, charity) and can
  exactly undo those mutations when a report is later invalidated.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money is decimal.Decimal everywhere. No float arithmetic in the engine.
  - All stored monetary fields are in the base currency; display-currency
    conversion happens only at the system boundary (see currency.go).
  - Records are soft-deleted: the Active flag is flipped, rows are never
    physically removed, so history stays queryable for audit and reversal.

DESIGN PRINCIPLES:
  1. A report's ledger effect is a pure function of its stored fields.
     Re-deriving the effect from a stored report always reproduces the same
     deltas it originally caused (reversibility).
  2. Commission and charity TotalAmount only grow from report accrual; they
     are decremented only when a reversal undoes a forward accrual.
  3. Every event (create, reverse, collect, set, operation) is one atomic
     unit applied under per-user serialization.

SEE ALSO:
  - engine.go:   delta derivation and the create/reverse pair
  - registry.go: account ownership, locking, lifecycle
  - store.go:    the transactional persistence contract
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// UserID is the member's stable external identity (assigned by the chat
// platform, not by this system).
type UserID int64

type PartnerID int64

type ReportID string

type OperationID string

type CurrencyID int64

// =============================================================================
// COMMISSION ACCOUNT KINDS
// =============================================================================

// CommissionKind selects one of the two per-user commission ledgers.
type CommissionKind string

const (
	// KindDefault accrues at the per-report salary percent.
	KindDefault CommissionKind = "default"

	// KindPartnerSchedule accrues at the fixed fee-schedule fraction and is
	// only touched by reports belonging to the fee-schedule partner.
	KindPartnerSchedule CommissionKind = "partner_schedule"
)

// =============================================================================
// RECORDS
// =============================================================================

// User holds the member's mutable balances plus reference data.
// Removal flips Active; the row and its history stay.
type User struct {
	ID               UserID
	Username         string
	Balance          decimal.Decimal
	SecondaryBalance decimal.Decimal
	CurrencyID       CurrencyID
	Admin            bool
	Active           bool
	CreatedAt        time.Time
}

// CommissionAccount is keyed by (user, kind). Never deleted, only zeroed.
type CommissionAccount struct {
	UserID        UserID
	Kind          CommissionKind
	Amount        decimal.Decimal // current uncollected commission
	TotalAmount   decimal.Decimal // lifetime accrued
	LastDebitedAt *time.Time
}

// CharityAccount is one per user, earned on stake volume rather than profit.
type CharityAccount struct {
	UserID        UserID
	Amount        decimal.Decimal
	TotalAmount   decimal.Decimal
	LastDebitedAt *time.Time
}

type Partner struct {
	ID     PartnerID
	Name   string
	Active bool
}

// Report is immutable once created except for Active, which is the only
// field reversal mutates.
type Report struct {
	ID            ReportID
	UserID        UserID
	PartnerID     PartnerID
	Photo         string
	Amount        decimal.Decimal // stake, base currency
	RefundAmount  decimal.Decimal // base currency
	SalaryPercent int             // 0 for fee-schedule-partner reports
	Erroneous     bool
	Active        bool
	CreatedAt     time.Time
}

// Profit is refund minus stake. Negative for a losing bet.
func (r Report) Profit() decimal.Decimal {
	return r.RefundAmount.Sub(r.Amount)
}

// Operation is an administrative credit/debit. Append-only, no reversal:
// operations are corrections, not undoable report effects.
type Operation struct {
	ID        OperationID
	UserID    UserID
	Amount    decimal.Decimal
	Reason    string
	Secondary bool // also applied to the secondary balance
	CreatedAt time.Time
}

// =============================================================================
// RULES - Reference constants for delta derivation
// =============================================================================

// Rules parameterizes the engine: which partners get special treatment and
// the fractions the delta derivation uses. Immutable after construction.
type Rules struct {
	// FeeSchedulePartner reports ignore the per-report percent and accrue at
	// FeeScheduleFraction into the KindPartnerSchedule account.
	FeeSchedulePartner PartnerID

	// SharedSecondaryPartner reports additionally move
	// profit * SecondaryShare into the user's secondary balance.
	SharedSecondaryPartner PartnerID

	FeeScheduleFraction decimal.Decimal
	DefaultFraction     decimal.Decimal // used by the erroneous-loss penalty
	CharityFraction     decimal.Decimal
	SecondaryShare      decimal.Decimal

	MinSalaryPercent int
	MaxSalaryPercent int
}

// DefaultRules returns the production constants.
func DefaultRules() Rules {
	return Rules{
		FeeSchedulePartner:     1,
		SharedSecondaryPartner: 2,
		FeeScheduleFraction:    decimal.NewFromFloat(0.30),
		DefaultFraction:        decimal.NewFromFloat(0.12),
		CharityFraction:        decimal.NewFromFloat(0.005),
		SecondaryShare:         decimal.NewFromFloat(0.5),
		MinSalaryPercent:       0,
		MaxSalaryPercent:       12,
	}
}

// =============================================================================
// DATE INTERVALS
// =============================================================================

// DateInterval is the inclusive [Start, End] window aggregation queries use.
type DateInterval struct {
	Start time.Time
	End   time.Time
}

func (i DateInterval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && !t.After(i.End)
}
