/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers (the API layer, the conversational front-end) branch on category:

  - Validation errors:    nothing happened, fix the input and retry.
  - Illegal-state errors: the action cannot be repeated (already deleted,
                          account missing). Distinct from validation so the
                          front end presents the correct follow-up.
  - Transactional errors: storage failed mid-apply and rolled back fully.
                          The engine never retries; Create is NOT idempotent,
                          so callers must not retry blindly.

  No-op conditions (collecting an empty commission account) are normal
  results, not errors. See CollectResult in collect.go.

USAGE:
  if ledger.IsIllegalState(err) { ... 409 ... }
  if ledger.IsValidation(err)   { ... 400 ... }
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrReportNotFound is returned when reversing a report that was never
	// created. Rejected before any account mutation.
	ErrReportNotFound = errors.New("report not found")

	// ErrReportInactive is returned when reversing a report that was already
	// reversed. Re-reversing would double-undo, so this is illegal state.
	ErrReportInactive = errors.New("report already inactive")

	// ErrUserNotFound is returned when an event references a member that was
	// never onboarded.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists is returned when onboarding an already-known member.
	ErrUserExists = errors.New("user already exists")

	// ErrAccountNotFound is returned when a commission or charity account is
	// missing. Accounts are created with the user, so this is data corruption,
	// not user input.
	ErrAccountNotFound = errors.New("account not found")

	// ErrPartnerNotFound is returned when a report references an unknown partner.
	ErrPartnerNotFound = errors.New("partner not found")

	// ErrUnknownCurrency is returned for a currency id missing from the rate
	// table. The table is fixed at startup, so the id itself is the bad input.
	ErrUnknownCurrency = errors.New("unknown currency")

	// ErrPercentOutOfRange is returned when a report's salary percent is
	// outside [MinSalaryPercent, MaxSalaryPercent].
	ErrPercentOutOfRange = errors.New("salary percent out of range")

	// ErrInvalidInterval is returned for an unparseable or inverted date interval.
	ErrInvalidInterval = errors.New("invalid date interval")

	// ErrTransactionFailed wraps storage failures mid-apply. The whole delta
	// set rolled back; nothing was applied.
	ErrTransactionFailed = errors.New("transaction failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// PercentError reports the offending value alongside the allowed range.
type PercentError struct {
	Percent int
	Min     int
	Max     int
}

func (e *PercentError) Error() string {
	return fmt.Sprintf("salary percent %d outside [%d, %d]", e.Percent, e.Min, e.Max)
}

func (e *PercentError) Unwrap() error { return ErrPercentOutOfRange }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true for errors the submitter can fix and resubmit.
func IsValidation(err error) bool {
	return errors.Is(err, ErrPercentOutOfRange) ||
		errors.Is(err, ErrInvalidInterval) ||
		errors.Is(err, ErrUnknownCurrency)
}

// IsIllegalState returns true for actions that cannot be repeated as-is.
func IsIllegalState(err error) bool {
	return errors.Is(err, ErrReportInactive) ||
		errors.Is(err, ErrUserExists)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrReportNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrPartnerNotFound)
}
