/*
store.go - Persistence contract for accounts, reports, and operations

PURPOSE:
  Defines the interface between the engine and the database. The engine only
  requires two things of storage:

  1. Atomic multi-row read-modify-write within one transaction (WithTx):
     if fn returns an error, every write inside it rolls back. No delta of
     a set is considered applied unless all deltas committed.
  2. Soft delete: reports and partners are flagged inactive, never removed,
     so reversal and audit stay possible.

  Read-side queries live directly on Store and run outside any transaction;
  aggregation is a pure projection over active records.

IMPLEMENTATIONS:
  - store/sqlite:       production SQLite (WAL)
  - ledger/store:       in-memory, for tests/dev
*/
package ledger

import "context"

// =============================================================================
// TRANSACTIONAL VIEW
// =============================================================================

// Tx is the mutable view handed to WithTx callbacks. All reads inside a Tx
// observe writes made earlier in the same Tx.
type Tx interface {
	// Account-group records. Save* overwrites the full record.
	User(id UserID) (User, error)
	SaveUser(u User) error
	Commission(id UserID, kind CommissionKind) (CommissionAccount, error)
	SaveCommission(a CommissionAccount) error
	Charity(id UserID) (CharityAccount, error)
	SaveCharity(a CharityAccount) error
	Charities() ([]CharityAccount, error)

	// Lifecycle.
	InsertUser(u User, commissions []CommissionAccount, charity CharityAccount) error
	InsertPartner(p Partner) (PartnerID, error)
	SetPartnerActive(id PartnerID, active bool) error

	// Reports. DeactivateReport is the only report mutation that exists.
	InsertReport(r Report) error
	Report(id ReportID) (Report, error)
	DeactivateReport(id ReportID) error

	// Operations are append-only.
	InsertOperation(op Operation) error
}

// =============================================================================
// STORE
// =============================================================================

// ReportFilter narrows interval queries. Nil fields match everything.
// Inactive reports are always excluded.
type ReportFilter struct {
	Interval  *DateInterval
	UserID    *UserID
	PartnerID *PartnerID
}

// Store is the persistence boundary.
type Store interface {
	// WithTx executes fn atomically. If fn returns an error the transaction
	// is rolled back and the error is returned wrapped in ErrTransactionFailed
	// semantics by the caller.
	WithTx(ctx context.Context, fn func(Tx) error) error

	// Single-record reads.
	User(ctx context.Context, id UserID) (User, error)
	Report(ctx context.Context, id ReportID) (Report, error)
	Partner(ctx context.Context, id PartnerID) (Partner, error)
	Commission(ctx context.Context, id UserID, kind CommissionKind) (CommissionAccount, error)
	Charity(ctx context.Context, id UserID) (CharityAccount, error)

	// Collection reads. "Active" queries exclude soft-deleted rows; commission
	// and charity listings exclude accounts of inactive users.
	ActiveUsers(ctx context.Context) ([]User, error)
	ActivePartners(ctx context.Context) ([]Partner, error)
	Commissions(ctx context.Context, kind CommissionKind) ([]CommissionAccount, error)
	Charities(ctx context.Context) ([]CharityAccount, error)
	Reports(ctx context.Context, f ReportFilter) ([]Report, error)
	Operations(ctx context.Context, interval DateInterval) ([]Operation, error)

	Close() error
}
