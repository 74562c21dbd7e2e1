/*
Package sqlite provides the SQLite-backed Store.

PURPOSE:
  Production persistence for accounts, reports, and operations. The same
  patterns apply to PostgreSQL - only minor dialect differences.

TRANSACTIONAL CONTRACT:
  WithTx wraps the callback in one database transaction: commit on nil,
  rollback on error. Every engine event (report create/reverse, collection,
  operation) funnels through WithTx, so a crash mid-apply leaves no partial
  delta set behind.

SOFT DELETE:
  Reports, partners, and users carry an `active` column. Nothing is ever
  DELETEd; reversal and audit need the history.

MONEY:
  Monetary columns are TEXT holding decimal strings. SQLite REAL would
  reintroduce the float drift the engine exists to avoid.

WAL MODE:
  Opened with WAL for better concurrency: readers don't block, single
  writer, better crash recovery. A process-level write mutex backs the
  single-writer assumption for :memory: databases too.

USAGE:
  st, err := sqlite.New("./data/ledger.db")
  if err != nil { ... }
  defer st.Close()
  reg := ledger.NewRegistry(st)
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/oddsbook/ledger-engine/ledger"
)

// Store implements ledger.Store on SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex // serializes writers
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps :memory: databases coherent and matches the
	// single-writer model.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		username TEXT NOT NULL DEFAULT '',
		balance TEXT NOT NULL DEFAULT '0',
		secondary_balance TEXT NOT NULL DEFAULT '0',
		currency_id INTEGER NOT NULL DEFAULT 1,
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS commission_accounts (
		user_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL DEFAULT '0',
		total_amount TEXT NOT NULL DEFAULT '0',
		last_debited_at TEXT,
		PRIMARY KEY (user_id, kind)
	);

	CREATE TABLE IF NOT EXISTS charity_accounts (
		user_id INTEGER PRIMARY KEY,
		amount TEXT NOT NULL DEFAULT '0',
		total_amount TEXT NOT NULL DEFAULT '0',
		last_debited_at TEXT
	);

	CREATE TABLE IF NOT EXISTS partners (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		partner_id INTEGER NOT NULL,
		photo TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		refund_amount TEXT NOT NULL,
		salary_percent INTEGER NOT NULL DEFAULT 0,
		erroneous BOOLEAN NOT NULL DEFAULT FALSE,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_user_created
		ON reports(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_reports_partner_created
		ON reports(partner_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_reports_active
		ON reports(active);

	CREATE TABLE IF NOT EXISTS operations (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		amount TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		secondary BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_operations_created
		ON operations(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ENCODING HELPERS
// =============================================================================

// Times are stored as UTC RFC3339Nano so string comparison orders correctly.
const timeLayout = time.RFC3339Nano

func encodeTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func decodeTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func encodeNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func decodeNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := decodeTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func decodeDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn in one database transaction under the writer mutex.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(&sqliteTx{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// sqliteTx implements ledger.Tx on a live *sql.Tx.
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) User(id ledger.UserID) (ledger.User, error) {
	return scanUser(t.tx.QueryRow(
		`SELECT id, username, balance, secondary_balance, currency_id, is_admin, active, created_at
		 FROM users WHERE id = ?`, id))
}

func (t *sqliteTx) SaveUser(u ledger.User) error {
	res, err := t.tx.Exec(
		`UPDATE users SET username=?, balance=?, secondary_balance=?, currency_id=?, is_admin=?, active=? WHERE id=?`,
		u.Username, u.Balance.String(), u.SecondaryBalance.String(), u.CurrencyID, u.Admin, u.Active, u.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ledger.ErrUserNotFound, u.ID)
	}
	return nil
}

func (t *sqliteTx) Commission(id ledger.UserID, kind ledger.CommissionKind) (ledger.CommissionAccount, error) {
	return scanCommission(t.tx.QueryRow(
		`SELECT user_id, kind, amount, total_amount, last_debited_at
		 FROM commission_accounts WHERE user_id = ? AND kind = ?`, id, string(kind)))
}

func (t *sqliteTx) SaveCommission(a ledger.CommissionAccount) error {
	_, err := t.tx.Exec(
		`INSERT INTO commission_accounts (user_id, kind, amount, total_amount, last_debited_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, kind) DO UPDATE SET
		   amount=excluded.amount, total_amount=excluded.total_amount, last_debited_at=excluded.last_debited_at`,
		a.UserID, string(a.Kind), a.Amount.String(), a.TotalAmount.String(), encodeNullTime(a.LastDebitedAt))
	return err
}

func (t *sqliteTx) Charity(id ledger.UserID) (ledger.CharityAccount, error) {
	return scanCharity(t.tx.QueryRow(
		`SELECT user_id, amount, total_amount, last_debited_at
		 FROM charity_accounts WHERE user_id = ?`, id))
}

func (t *sqliteTx) SaveCharity(a ledger.CharityAccount) error {
	_, err := t.tx.Exec(
		`INSERT INTO charity_accounts (user_id, amount, total_amount, last_debited_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   amount=excluded.amount, total_amount=excluded.total_amount, last_debited_at=excluded.last_debited_at`,
		a.UserID, a.Amount.String(), a.TotalAmount.String(), encodeNullTime(a.LastDebitedAt))
	return err
}

func (t *sqliteTx) Charities() ([]ledger.CharityAccount, error) {
	rows, err := t.tx.Query(
		`SELECT user_id, amount, total_amount, last_debited_at FROM charity_accounts ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCharities(rows)
}

func (t *sqliteTx) InsertUser(u ledger.User, commissions []ledger.CommissionAccount, charity ledger.CharityAccount) error {
	_, err := t.tx.Exec(
		`INSERT INTO users (id, username, balance, secondary_balance, currency_id, is_admin, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Balance.String(), u.SecondaryBalance.String(), u.CurrencyID, u.Admin, u.Active, encodeTime(u.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %d", ledger.ErrUserExists, u.ID)
		}
		return err
	}
	for _, c := range commissions {
		if err := t.SaveCommission(c); err != nil {
			return err
		}
	}
	return t.SaveCharity(charity)
}

func (t *sqliteTx) InsertPartner(p ledger.Partner) (ledger.PartnerID, error) {
	res, err := t.tx.Exec(`INSERT INTO partners (name, active) VALUES (?, ?)`, p.Name, p.Active)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return ledger.PartnerID(id), nil
}

func (t *sqliteTx) SetPartnerActive(id ledger.PartnerID, active bool) error {
	res, err := t.tx.Exec(`UPDATE partners SET active=? WHERE id=?`, active, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ledger.ErrPartnerNotFound, id)
	}
	return nil
}

func (t *sqliteTx) InsertReport(r ledger.Report) error {
	_, err := t.tx.Exec(
		`INSERT INTO reports (id, user_id, partner_id, photo, amount, refund_amount, salary_percent, erroneous, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(r.ID), r.UserID, r.PartnerID, r.Photo, r.Amount.String(), r.RefundAmount.String(),
		r.SalaryPercent, r.Erroneous, r.Active, encodeTime(r.CreatedAt))
	return err
}

func (t *sqliteTx) Report(id ledger.ReportID) (ledger.Report, error) {
	return scanReport(t.tx.QueryRow(reportSelect+` WHERE id = ?`, string(id)))
}

func (t *sqliteTx) DeactivateReport(id ledger.ReportID) error {
	res, err := t.tx.Exec(`UPDATE reports SET active=FALSE WHERE id=?`, string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrReportNotFound, id)
	}
	return nil
}

func (t *sqliteTx) InsertOperation(op ledger.Operation) error {
	_, err := t.tx.Exec(
		`INSERT INTO operations (id, user_id, amount, reason, secondary, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(op.ID), op.UserID, op.Amount.String(), op.Reason, op.Secondary, encodeTime(op.CreatedAt))
	return err
}

// =============================================================================
// ROW SCANNING
// =============================================================================

const reportSelect = `SELECT id, user_id, partner_id, photo, amount, refund_amount, salary_percent, erroneous, active, created_at FROM reports`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (ledger.User, error) {
	var (
		u         ledger.User
		balance   string
		secondary string
		createdAt string
	)
	err := row.Scan(&u.ID, &u.Username, &balance, &secondary, &u.CurrencyID, &u.Admin, &u.Active, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.User{}, ledger.ErrUserNotFound
	}
	if err != nil {
		return ledger.User{}, err
	}
	if u.Balance, err = decodeDecimal(balance); err != nil {
		return ledger.User{}, err
	}
	if u.SecondaryBalance, err = decodeDecimal(secondary); err != nil {
		return ledger.User{}, err
	}
	if u.CreatedAt, err = decodeTime(createdAt); err != nil {
		return ledger.User{}, err
	}
	return u, nil
}

func scanCommission(row rowScanner) (ledger.CommissionAccount, error) {
	var (
		a       ledger.CommissionAccount
		kind    string
		amount  string
		total   string
		debited sql.NullString
	)
	err := row.Scan(&a.UserID, &kind, &amount, &total, &debited)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.CommissionAccount{}, ledger.ErrAccountNotFound
	}
	if err != nil {
		return ledger.CommissionAccount{}, err
	}
	a.Kind = ledger.CommissionKind(kind)
	if a.Amount, err = decodeDecimal(amount); err != nil {
		return ledger.CommissionAccount{}, err
	}
	if a.TotalAmount, err = decodeDecimal(total); err != nil {
		return ledger.CommissionAccount{}, err
	}
	if a.LastDebitedAt, err = decodeNullTime(debited); err != nil {
		return ledger.CommissionAccount{}, err
	}
	return a, nil
}

func scanCharity(row rowScanner) (ledger.CharityAccount, error) {
	var (
		a       ledger.CharityAccount
		amount  string
		total   string
		debited sql.NullString
	)
	err := row.Scan(&a.UserID, &amount, &total, &debited)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.CharityAccount{}, ledger.ErrAccountNotFound
	}
	if err != nil {
		return ledger.CharityAccount{}, err
	}
	if a.Amount, err = decodeDecimal(amount); err != nil {
		return ledger.CharityAccount{}, err
	}
	if a.TotalAmount, err = decodeDecimal(total); err != nil {
		return ledger.CharityAccount{}, err
	}
	if a.LastDebitedAt, err = decodeNullTime(debited); err != nil {
		return ledger.CharityAccount{}, err
	}
	return a, nil
}

func scanReport(row rowScanner) (ledger.Report, error) {
	var (
		r         ledger.Report
		id        string
		amount    string
		refund    string
		createdAt string
	)
	err := row.Scan(&id, &r.UserID, &r.PartnerID, &r.Photo, &amount, &refund, &r.SalaryPercent, &r.Erroneous, &r.Active, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Report{}, ledger.ErrReportNotFound
	}
	if err != nil {
		return ledger.Report{}, err
	}
	r.ID = ledger.ReportID(id)
	if r.Amount, err = decodeDecimal(amount); err != nil {
		return ledger.Report{}, err
	}
	if r.RefundAmount, err = decodeDecimal(refund); err != nil {
		return ledger.Report{}, err
	}
	if r.CreatedAt, err = decodeTime(createdAt); err != nil {
		return ledger.Report{}, err
	}
	return r, nil
}

func collectCharities(rows *sql.Rows) ([]ledger.CharityAccount, error) {
	var out []ledger.CharityAccount
	for rows.Next() {
		a, err := scanCharity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// READ SIDE
// =============================================================================

func (s *Store) User(ctx context.Context, id ledger.UserID) (ledger.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, balance, secondary_balance, currency_id, is_admin, active, created_at
		 FROM users WHERE id = ?`, id))
}

func (s *Store) Report(ctx context.Context, id ledger.ReportID) (ledger.Report, error) {
	return scanReport(s.db.QueryRowContext(ctx, reportSelect+` WHERE id = ?`, string(id)))
}

func (s *Store) Partner(ctx context.Context, id ledger.PartnerID) (ledger.Partner, error) {
	var p ledger.Partner
	err := s.db.QueryRowContext(ctx, `SELECT id, name, active FROM partners WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Partner{}, fmt.Errorf("%w: %d", ledger.ErrPartnerNotFound, id)
	}
	if err != nil {
		return ledger.Partner{}, err
	}
	return p, nil
}

func (s *Store) Commission(ctx context.Context, id ledger.UserID, kind ledger.CommissionKind) (ledger.CommissionAccount, error) {
	return scanCommission(s.db.QueryRowContext(ctx,
		`SELECT user_id, kind, amount, total_amount, last_debited_at
		 FROM commission_accounts WHERE user_id = ? AND kind = ?`, id, string(kind)))
}

func (s *Store) Charity(ctx context.Context, id ledger.UserID) (ledger.CharityAccount, error) {
	return scanCharity(s.db.QueryRowContext(ctx,
		`SELECT user_id, amount, total_amount, last_debited_at
		 FROM charity_accounts WHERE user_id = ?`, id))
}

func (s *Store) ActiveUsers(ctx context.Context) ([]ledger.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, balance, secondary_balance, currency_id, is_admin, active, created_at
		 FROM users WHERE active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) ActivePartners(ctx context.Context) ([]ledger.Partner, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, active FROM partners WHERE active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.Partner
	for rows.Next() {
		var p ledger.Partner
		if err := rows.Scan(&p.ID, &p.Name, &p.Active); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Commissions lists accounts of one kind for active users only.
func (s *Store) Commissions(ctx context.Context, kind ledger.CommissionKind) ([]ledger.CommissionAccount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.user_id, c.kind, c.amount, c.total_amount, c.last_debited_at
		 FROM commission_accounts c
		 JOIN users u ON u.id = c.user_id AND u.active
		 WHERE c.kind = ? ORDER BY c.user_id`, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.CommissionAccount
	for rows.Next() {
		a, err := scanCommission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Charities lists accounts for active users only.
func (s *Store) Charities(ctx context.Context) ([]ledger.CharityAccount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.user_id, c.amount, c.total_amount, c.last_debited_at
		 FROM charity_accounts c
		 JOIN users u ON u.id = c.user_id AND u.active
		 ORDER BY c.user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCharities(rows)
}

// Reports lists active reports matching the filter, oldest first. Reports of
// deactivated partners are excluded; the rows stay retrievable by id.
func (s *Store) Reports(ctx context.Context, f ledger.ReportFilter) ([]ledger.Report, error) {
	q := `SELECT r.id, r.user_id, r.partner_id, r.photo, r.amount, r.refund_amount, r.salary_percent, r.erroneous, r.active, r.created_at
	      FROM reports r
	      LEFT JOIN partners p ON p.id = r.partner_id
	      WHERE r.active AND (p.id IS NULL OR p.active)`
	var args []any
	if f.UserID != nil {
		q += ` AND r.user_id = ?`
		args = append(args, *f.UserID)
	}
	if f.PartnerID != nil {
		q += ` AND r.partner_id = ?`
		args = append(args, *f.PartnerID)
	}
	if f.Interval != nil {
		q += ` AND r.created_at >= ? AND r.created_at <= ?`
		args = append(args, encodeTime(f.Interval.Start), encodeTime(f.Interval.End))
	}
	q += ` ORDER BY r.created_at`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Operations(ctx context.Context, interval ledger.DateInterval) ([]ledger.Operation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, amount, reason, secondary, created_at
		 FROM operations WHERE created_at >= ? AND created_at <= ? ORDER BY created_at`,
		encodeTime(interval.Start), encodeTime(interval.End))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.Operation
	for rows.Next() {
		var (
			op        ledger.Operation
			id        string
			amount    string
			createdAt string
		)
		if err := rows.Scan(&id, &op.UserID, &amount, &op.Reason, &op.Secondary, &createdAt); err != nil {
			return nil, err
		}
		op.ID = ledger.OperationID(id)
		if op.Amount, err = decodeDecimal(amount); err != nil {
			return nil, err
		}
		if op.CreatedAt, err = decodeTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, rows.Err()
}
