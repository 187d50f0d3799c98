package lending

import (
	"math/big"

	"crosslend/crypto"
	"crosslend/native/attest"
	"crosslend/native/custody"
	"crosslend/native/tier"
)

type ownedKey struct {
	owner crypto.Address
	id    string
}

type pairKey struct {
	owner crypto.Address
	mint  crypto.Address
}

type seqKey struct {
	chain   uint16
	emitter attest.EmitterAddress
}

type mockEngineState struct {
	tiers     map[string]*tier.Config
	assets    map[crypto.Address]*custody.Asset
	balances  map[pairKey]*big.Int
	lends     map[ownedKey]*LendOffer
	loans     map[ownedKey]*LoanOffer
	emitters  map[uint16]attest.EmitterAddress
	sequences map[seqKey]uint64
}

func newMockEngineState() *mockEngineState {
	return &mockEngineState{
		tiers:     map[string]*tier.Config{},
		assets:    map[crypto.Address]*custody.Asset{},
		balances:  map[pairKey]*big.Int{},
		lends:     map[ownedKey]*LendOffer{},
		loans:     map[ownedKey]*LoanOffer{},
		emitters:  map[uint16]attest.EmitterAddress{},
		sequences: map[seqKey]uint64{},
	}
}

func (m *mockEngineState) clone() *mockEngineState {
	c := newMockEngineState()
	for k, v := range m.tiers {
		c.tiers[k] = v.Clone()
	}
	for k, v := range m.assets {
		c.assets[k] = v.Clone()
	}
	for k, v := range m.balances {
		c.balances[k] = new(big.Int).Set(v)
	}
	for k, v := range m.lends {
		c.lends[k] = v.Clone()
	}
	for k, v := range m.loans {
		c.loans[k] = v.Clone()
	}
	for k, v := range m.emitters {
		c.emitters[k] = v
	}
	for k, v := range m.sequences {
		c.sequences[k] = v
	}
	return c
}

func (m *mockEngineState) GetTier(id string) (*tier.Config, bool, error) {
	cfg, ok := m.tiers[id]
	return cfg.Clone(), ok, nil
}

func (m *mockEngineState) GetAsset(mint crypto.Address) (*custody.Asset, bool, error) {
	a, ok := m.assets[mint]
	return a.Clone(), ok, nil
}

func (m *mockEngineState) PutAsset(a *custody.Asset) error {
	m.assets[a.Mint] = a.Clone()
	return nil
}

func (m *mockEngineState) GetBalance(owner, mint crypto.Address) (*big.Int, error) {
	if b, ok := m.balances[pairKey{owner, mint}]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (m *mockEngineState) PutBalance(owner, mint crypto.Address, amount *big.Int) error {
	m.balances[pairKey{owner, mint}] = new(big.Int).Set(amount)
	return nil
}

func (m *mockEngineState) GetLendOffer(lender crypto.Address, id string) (*LendOffer, bool, error) {
	o, ok := m.lends[ownedKey{lender, id}]
	return o.Clone(), ok, nil
}

func (m *mockEngineState) PutLendOffer(o *LendOffer) error {
	m.lends[ownedKey{o.Lender, o.ID}] = o.Clone()
	return nil
}

func (m *mockEngineState) DeleteLendOffer(lender crypto.Address, id string) error {
	delete(m.lends, ownedKey{lender, id})
	return nil
}

func (m *mockEngineState) GetLoanOffer(borrower crypto.Address, id string) (*LoanOffer, bool, error) {
	l, ok := m.loans[ownedKey{borrower, id}]
	return l.Clone(), ok, nil
}

func (m *mockEngineState) PutLoanOffer(l *LoanOffer) error {
	m.loans[ownedKey{l.Borrower, l.ID}] = l.Clone()
	return nil
}

func (m *mockEngineState) GetEmitter(chainID uint16) (attest.EmitterAddress, bool, error) {
	e, ok := m.emitters[chainID]
	return e, ok, nil
}

func (m *mockEngineState) PutEmitter(chainID uint16, e attest.EmitterAddress) error {
	m.emitters[chainID] = e
	return nil
}

func (m *mockEngineState) GetSequence(chainID uint16, e attest.EmitterAddress) (uint64, bool, error) {
	s, ok := m.sequences[seqKey{chainID, e}]
	return s, ok, nil
}

func (m *mockEngineState) PutSequence(chainID uint16, e attest.EmitterAddress, s uint64) error {
	m.sequences[seqKey{chainID, e}] = s
	return nil
}

// mockStore runs each transition against a scratch copy and swaps it in
// only when the callback succeeds.
// open reports whether a transaction is in progress.
type mockStore struct {
	committed *mockEngineState
	open      bool
}

func (s *mockStore) Update(fn func(State) error) error {
	s.open = true
	defer func() { s.open = false }()
	scratch := s.committed.clone()
	if err := fn(scratch); err != nil {
		return err
	}
	s.committed = scratch
	return nil
}

func (s *mockStore) View(fn func(State) error) error {
	s.open = true
	defer func() { s.open = false }()
	return fn(s.committed.clone())
}
