/*
registry.go - Account ownership, per-user serialization, and lifecycle

PURPOSE:
  The Registry owns the mutable account records and is the single gate every
  mutation passes through. It layers the locking discipline on top of the
  Store's transactionality:

  - Per-user critical section: concurrent events touching the same user's
    account group (two reports, a report racing a collection) never
    interleave their read-modify-write steps.
  - Cross-user events run fully in parallel.
  - Registry-wide events (charity reset) take the exclusive lock and see a
    quiesced registry.

LOCK ORDER:
  global.RLock -> user lock -> store transaction. The exclusive path takes
  global.Lock only. No path acquires two user locks, so there is no ordering
  between them to get wrong.

CANCELLATION:
  None mid-flight. Once admitted past the locks, an event runs to completion
  or fails atomically; ctx is passed to the store but the delta sequence is
  never interrupted between writes.
*/
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Registry serializes access to per-user account groups.
type Registry struct {
	store Store

	global sync.RWMutex
	mu     sync.Mutex
	users  map[UserID]*sync.Mutex

	clock func() time.Time
}

func NewRegistry(store Store) *Registry {
	return &Registry{
		store: store,
		users: make(map[UserID]*sync.Mutex),
		clock: time.Now,
	}
}

// Store exposes the read side for aggregation.
func (r *Registry) Store() Store { return r.store }

func (r *Registry) userLock(id UserID) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.users[id]
	if !ok {
		l = &sync.Mutex{}
		r.users[id] = l
	}
	return l
}

// InUserTx runs fn inside the user's critical section and one store
// transaction. This is the only mutation path for a user's account group.
func (r *Registry) InUserTx(ctx context.Context, id UserID, fn func(Tx) error) error {
	r.global.RLock()
	defer r.global.RUnlock()

	l := r.userLock(id)
	l.Lock()
	defer l.Unlock()

	return r.store.WithTx(ctx, fn)
}

// InGlobalTx runs fn with the whole registry quiesced. Used by events that
// touch every user's accounts at once.
func (r *Registry) InGlobalTx(ctx context.Context, fn func(Tx) error) error {
	r.global.Lock()
	defer r.global.Unlock()

	return r.store.WithTx(ctx, fn)
}

// =============================================================================
// MEMBER LIFECYCLE
// =============================================================================

// Onboard creates the user row together with both commission accounts and
// the charity account, atomically. Accounts are never created later and
// never deleted, only zeroed.
func (r *Registry) Onboard(ctx context.Context, id UserID, username string, currency CurrencyID) (User, error) {
	now := r.clock()
	u := User{
		ID:               id,
		Username:         username,
		Balance:          decimal.Zero,
		SecondaryBalance: decimal.Zero,
		CurrencyID:       currency,
		Active:           true,
		CreatedAt:        now,
	}
	commissions := []CommissionAccount{
		{UserID: id, Kind: KindDefault, Amount: decimal.Zero, TotalAmount: decimal.Zero},
		{UserID: id, Kind: KindPartnerSchedule, Amount: decimal.Zero, TotalAmount: decimal.Zero},
	}
	charity := CharityAccount{UserID: id, Amount: decimal.Zero, TotalAmount: decimal.Zero}

	err := r.InUserTx(ctx, id, func(tx Tx) error {
		return tx.InsertUser(u, commissions, charity)
	})
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// Remove soft-deletes the member. History and accounts stay.
func (r *Registry) Remove(ctx context.Context, id UserID) error {
	return r.InUserTx(ctx, id, func(tx Tx) error {
		u, err := tx.User(id)
		if err != nil {
			return err
		}
		u.Active = false
		return tx.SaveUser(u)
	})
}

// SetAdmin grants or revokes the admin flag.
func (r *Registry) SetAdmin(ctx context.Context, id UserID, admin bool) error {
	return r.InUserTx(ctx, id, func(tx Tx) error {
		u, err := tx.User(id)
		if err != nil {
			return err
		}
		u.Admin = admin
		return tx.SaveUser(u)
	})
}

// SetCurrency reassigns the member's display currency. Stored balances are
// in the base currency, so nothing is converted.
func (r *Registry) SetCurrency(ctx context.Context, id UserID, currency CurrencyID) error {
	return r.InUserTx(ctx, id, func(tx Tx) error {
		u, err := tx.User(id)
		if err != nil {
			return err
		}
		u.CurrencyID = currency
		return tx.SaveUser(u)
	})
}

// SetSecondaryBalance sets the secondary balance to an absolute value.
func (r *Registry) SetSecondaryBalance(ctx context.Context, id UserID, amount decimal.Decimal) error {
	return r.InUserTx(ctx, id, func(tx Tx) error {
		u, err := tx.User(id)
		if err != nil {
			return err
		}
		u.SecondaryBalance = amount
		return tx.SaveUser(u)
	})
}

// =============================================================================
// PARTNERS
// =============================================================================

func (r *Registry) CreatePartner(ctx context.Context, name string) (Partner, error) {
	p := Partner{Name: name, Active: true}
	err := r.InGlobalTx(ctx, func(tx Tx) error {
		id, err := tx.InsertPartner(p)
		if err != nil {
			return err
		}
		p.ID = id
		return nil
	})
	if err != nil {
		return Partner{}, err
	}
	return p, nil
}

// DeactivatePartner soft-deletes the partner; its reports stay reversible.
func (r *Registry) DeactivatePartner(ctx context.Context, id PartnerID) error {
	return r.InGlobalTx(ctx, func(tx Tx) error {
		return tx.SetPartnerActive(id, false)
	})
}

// =============================================================================
// CHARITY RESET
// =============================================================================

// ResetCharity zeroes every charity Amount, stamping LastDebitedAt.
// TotalAmount is untouched: lifetime accrual survives collection.
func (r *Registry) ResetCharity(ctx context.Context) error {
	now := r.clock()
	return r.InGlobalTx(ctx, func(tx Tx) error {
		charities, err := tx.Charities()
		if err != nil {
			return err
		}
		for _, c := range charities {
			c.Amount = decimal.Zero
			c.LastDebitedAt = &now
			if err := tx.SaveCharity(c); err != nil {
				return err
			}
		}
		return nil
	})
}
