package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"crosslend/crypto"
	"crosslend/native/lending"
	"crosslend/native/tier"
	"crosslend/storage"
)

var errReadOnly = errors.New("state: write in read-only transaction")

// Manager serialises transitions over a key-value database. Each Update
// runs against a private overlay that is committed as one batch, or
// dropped entirely when the callback fails.
type Manager struct {
	mu sync.RWMutex
	db storage.Database
}

func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Update runs fn in a read-write transaction.
func (m *Manager) Update(fn func(*Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := newTx(m.db, false)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

// View runs fn against committed state. Writes fail with an error.
func (m *Manager) View(fn func(*Tx) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(newTx(m.db, true))
}

// Lending adapts the manager to the lending engine's Store.
func (m *Manager) Lending() lending.Store { return lendingStore{m} }

// Tiers adapts the manager to the tier engine's Store.
func (m *Manager) Tiers() tier.Store { return tierStore{m} }

type lendingStore struct{ m *Manager }

func (s lendingStore) Update(fn func(lending.State) error) error {
	return s.m.Update(func(tx *Tx) error { return fn(tx) })
}

func (s lendingStore) View(fn func(lending.State) error) error {
	return s.m.View(func(tx *Tx) error { return fn(tx) })
}

type tierStore struct{ m *Manager }

func (s tierStore) Update(fn func(tier.State) error) error {
	return s.m.Update(func(tx *Tx) error { return fn(tx) })
}

func (s tierStore) View(fn func(tier.State) error) error {
	return s.m.View(func(tx *Tx) error { return fn(tx) })
}

// ListLendOffers returns every lend offer recorded for lender.
func (m *Manager) ListLendOffers(lender crypto.Address) ([]*lending.LendOffer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := join(lendOfferPrefix, lender[:])
	var out []*lending.LendOffer
	err := m.db.ForEachPrefix(prefix, func(_, value []byte) error {
		offer := new(lending.LendOffer)
		if err := rlp.DecodeBytes(value, offer); err != nil {
			return fmt.Errorf("state: decode lend offer: %w", err)
		}
		out = append(out, offer)
		return nil
	})
	return out, err
}

// ListLoanOffers returns every loan offer recorded for borrower.
func (m *Manager) ListLoanOffers(borrower crypto.Address) ([]*lending.LoanOffer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := join(loanOfferPrefix, borrower[:])
	var out []*lending.LoanOffer
	err := m.db.ForEachPrefix(prefix, func(_, value []byte) error {
		loan := new(lending.LoanOffer)
		if err := rlp.DecodeBytes(value, loan); err != nil {
			return fmt.Errorf("state: decode loan offer: %w", err)
		}
		out = append(out, loan)
		return nil
	})
	return out, err
}
