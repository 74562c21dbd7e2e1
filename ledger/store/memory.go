// Package store provides the in-memory Store implementation (tests/dev).
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/oddsbook/ledger-engine/ledger"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type commissionKey struct {
	UserID ledger.UserID
	Kind   ledger.CommissionKind
}

type Memory struct {
	mu sync.RWMutex

	users       map[ledger.UserID]ledger.User
	commissions map[commissionKey]ledger.CommissionAccount
	charities   map[ledger.UserID]ledger.CharityAccount
	partners    map[ledger.PartnerID]ledger.Partner
	reports     map[ledger.ReportID]ledger.Report
	operations  []ledger.Operation

	nextPartner ledger.PartnerID
}

func NewMemory() *Memory {
	return &Memory{
		users:       make(map[ledger.UserID]ledger.User),
		commissions: make(map[commissionKey]ledger.CommissionAccount),
		charities:   make(map[ledger.UserID]ledger.CharityAccount),
		partners:    make(map[ledger.PartnerID]ledger.Partner),
		reports:     make(map[ledger.ReportID]ledger.Report),
		nextPartner: 1,
	}
}

// SeedPartner installs a partner row with a fixed id. Intended for wiring the
// special partners (fee schedule, shared secondary) in tests and dev setups.
func (m *Memory) SeedPartner(p ledger.Partner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.partners[p.ID] = p
	if p.ID >= m.nextPartner {
		m.nextPartner = p.ID + 1
	}
}

// =============================================================================
// TRANSACTIONS - snapshot on entry, restore on error
// =============================================================================

// WithTx simulates a database transaction: deep-copy the state, run fn
// against the live maps, and restore the copy if fn fails.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&memTx{m: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	users       map[ledger.UserID]ledger.User
	commissions map[commissionKey]ledger.CommissionAccount
	charities   map[ledger.UserID]ledger.CharityAccount
	partners    map[ledger.PartnerID]ledger.Partner
	reports     map[ledger.ReportID]ledger.Report
	operations  []ledger.Operation
	nextPartner ledger.PartnerID
}

func (m *Memory) snapshot() memSnapshot {
	s := memSnapshot{
		users:       make(map[ledger.UserID]ledger.User, len(m.users)),
		commissions: make(map[commissionKey]ledger.CommissionAccount, len(m.commissions)),
		charities:   make(map[ledger.UserID]ledger.CharityAccount, len(m.charities)),
		partners:    make(map[ledger.PartnerID]ledger.Partner, len(m.partners)),
		reports:     make(map[ledger.ReportID]ledger.Report, len(m.reports)),
		operations:  append([]ledger.Operation{}, m.operations...),
		nextPartner: m.nextPartner,
	}
	for k, v := range m.users {
		s.users[k] = v
	}
	for k, v := range m.commissions {
		s.commissions[k] = v
	}
	for k, v := range m.charities {
		s.charities[k] = v
	}
	for k, v := range m.partners {
		s.partners[k] = v
	}
	for k, v := range m.reports {
		s.reports[k] = v
	}
	return s
}

func (m *Memory) restore(s memSnapshot) {
	m.users = s.users
	m.commissions = s.commissions
	m.charities = s.charities
	m.partners = s.partners
	m.reports = s.reports
	m.operations = s.operations
	m.nextPartner = s.nextPartner
}

// memTx is the transactional view. The parent's lock is held for the whole
// callback, so no further synchronization is needed here.
type memTx struct {
	m *Memory
}

func (t *memTx) User(id ledger.UserID) (ledger.User, error) {
	u, ok := t.m.users[id]
	if !ok {
		return ledger.User{}, fmt.Errorf("%w: %d", ledger.ErrUserNotFound, id)
	}
	return u, nil
}

func (t *memTx) SaveUser(u ledger.User) error {
	if _, ok := t.m.users[u.ID]; !ok {
		return fmt.Errorf("%w: %d", ledger.ErrUserNotFound, u.ID)
	}
	t.m.users[u.ID] = u
	return nil
}

func (t *memTx) Commission(id ledger.UserID, kind ledger.CommissionKind) (ledger.CommissionAccount, error) {
	acc, ok := t.m.commissions[commissionKey{id, kind}]
	if !ok {
		return ledger.CommissionAccount{}, fmt.Errorf("%w: commission %s for user %d", ledger.ErrAccountNotFound, kind, id)
	}
	return acc, nil
}

func (t *memTx) SaveCommission(a ledger.CommissionAccount) error {
	t.m.commissions[commissionKey{a.UserID, a.Kind}] = a
	return nil
}

func (t *memTx) Charity(id ledger.UserID) (ledger.CharityAccount, error) {
	c, ok := t.m.charities[id]
	if !ok {
		return ledger.CharityAccount{}, fmt.Errorf("%w: charity for user %d", ledger.ErrAccountNotFound, id)
	}
	return c, nil
}

func (t *memTx) SaveCharity(a ledger.CharityAccount) error {
	t.m.charities[a.UserID] = a
	return nil
}

func (t *memTx) Charities() ([]ledger.CharityAccount, error) {
	out := make([]ledger.CharityAccount, 0, len(t.m.charities))
	for _, c := range t.m.charities {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (t *memTx) InsertUser(u ledger.User, commissions []ledger.CommissionAccount, charity ledger.CharityAccount) error {
	if _, ok := t.m.users[u.ID]; ok {
		return fmt.Errorf("%w: %d", ledger.ErrUserExists, u.ID)
	}
	t.m.users[u.ID] = u
	for _, c := range commissions {
		t.m.commissions[commissionKey{c.UserID, c.Kind}] = c
	}
	t.m.charities[charity.UserID] = charity
	return nil
}

func (t *memTx) InsertPartner(p ledger.Partner) (ledger.PartnerID, error) {
	id := t.m.nextPartner
	t.m.nextPartner++
	p.ID = id
	t.m.partners[id] = p
	return id, nil
}

func (t *memTx) SetPartnerActive(id ledger.PartnerID, active bool) error {
	p, ok := t.m.partners[id]
	if !ok {
		return fmt.Errorf("%w: %d", ledger.ErrPartnerNotFound, id)
	}
	p.Active = active
	t.m.partners[id] = p
	return nil
}

func (t *memTx) InsertReport(r ledger.Report) error {
	t.m.reports[r.ID] = r
	return nil
}

func (t *memTx) Report(id ledger.ReportID) (ledger.Report, error) {
	r, ok := t.m.reports[id]
	if !ok {
		return ledger.Report{}, fmt.Errorf("%w: %s", ledger.ErrReportNotFound, id)
	}
	return r, nil
}

func (t *memTx) DeactivateReport(id ledger.ReportID) error {
	r, ok := t.m.reports[id]
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrReportNotFound, id)
	}
	r.Active = false
	t.m.reports[id] = r
	return nil
}

func (t *memTx) InsertOperation(op ledger.Operation) error {
	t.m.operations = append(t.m.operations, op)
	return nil
}

// =============================================================================
// READ SIDE
// =============================================================================

func (m *Memory) User(_ context.Context, id ledger.UserID) (ledger.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return ledger.User{}, fmt.Errorf("%w: %d", ledger.ErrUserNotFound, id)
	}
	return u, nil
}

func (m *Memory) Report(_ context.Context, id ledger.ReportID) (ledger.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[id]
	if !ok {
		return ledger.Report{}, fmt.Errorf("%w: %s", ledger.ErrReportNotFound, id)
	}
	return r, nil
}

func (m *Memory) Partner(_ context.Context, id ledger.PartnerID) (ledger.Partner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.partners[id]
	if !ok {
		return ledger.Partner{}, fmt.Errorf("%w: %d", ledger.ErrPartnerNotFound, id)
	}
	return p, nil
}

func (m *Memory) Commission(_ context.Context, id ledger.UserID, kind ledger.CommissionKind) (ledger.CommissionAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acc, ok := m.commissions[commissionKey{id, kind}]
	if !ok {
		return ledger.CommissionAccount{}, fmt.Errorf("%w: commission %s for user %d", ledger.ErrAccountNotFound, kind, id)
	}
	return acc, nil
}

func (m *Memory) Charity(_ context.Context, id ledger.UserID) (ledger.CharityAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.charities[id]
	if !ok {
		return ledger.CharityAccount{}, fmt.Errorf("%w: charity for user %d", ledger.ErrAccountNotFound, id)
	}
	return c, nil
}

func (m *Memory) ActiveUsers(_ context.Context) ([]ledger.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.User
	for _, u := range m.users {
		if u.Active {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ActivePartners(_ context.Context) ([]ledger.Partner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.Partner
	for _, p := range m.partners {
		if p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Commissions lists accounts of one kind for active users only.
func (m *Memory) Commissions(_ context.Context, kind ledger.CommissionKind) ([]ledger.CommissionAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.CommissionAccount
	for k, acc := range m.commissions {
		if k.Kind != kind {
			continue
		}
		if u, ok := m.users[k.UserID]; !ok || !u.Active {
			continue
		}
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// Charities lists accounts for active users only.
func (m *Memory) Charities(_ context.Context) ([]ledger.CharityAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.CharityAccount
	for id, c := range m.charities {
		if u, ok := m.users[id]; !ok || !u.Active {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// Reports returns active reports matching the filter, oldest first.
// Reports of deactivated partners are excluded, matching the aggregation
// contract; the rows themselves stay retrievable by id.
func (m *Memory) Reports(_ context.Context, f ledger.ReportFilter) ([]ledger.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.Report
	for _, r := range m.reports {
		if !r.Active {
			continue
		}
		if p, ok := m.partners[r.PartnerID]; ok && !p.Active {
			continue
		}
		if f.UserID != nil && r.UserID != *f.UserID {
			continue
		}
		if f.PartnerID != nil && r.PartnerID != *f.PartnerID {
			continue
		}
		if f.Interval != nil && !f.Interval.Contains(r.CreatedAt) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) Operations(_ context.Context, interval ledger.DateInterval) ([]ledger.Operation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.Operation
	for _, op := range m.operations {
		if interval.Contains(op.CreatedAt) {
			out = append(out, op)
		}
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
