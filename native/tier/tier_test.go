package tier

import (
	"errors"
	"testing"

	"crosslend/core/events"
	"crosslend/crypto"
	"crosslend/native/common"
)

type mockState struct {
	tiers map[string]*Config
}

func (m *mockState) GetTier(id string) (*Config, bool, error) {
	cfg, ok := m.tiers[id]
	return cfg.Clone(), ok, nil
}

func (m *mockState) PutTier(cfg *Config) error {
	m.tiers[cfg.ID] = cfg.Clone()
	return nil
}

func (m *mockState) DeleteTier(id string) error {
	delete(m.tiers, id)
	return nil
}

// mockStore applies fn to a scratch copy and keeps it only on success.
type mockStore struct {
	committed map[string]*Config
}

func (s *mockStore) Update(fn func(State) error) error {
	scratch := &mockState{tiers: map[string]*Config{}}
	for k, v := range s.committed {
		scratch.tiers[k] = v.Clone()
	}
	if err := fn(scratch); err != nil {
		return err
	}
	s.committed = scratch.tiers
	return nil
}

func (s *mockStore) View(fn func(State) error) error {
	return fn(&mockState{tiers: s.committed})
}

func addr(b byte) crypto.Address {
	var a crypto.Address
	a[0] = b
	return a
}

func sampleConfig() Config {
	return Config{ID: " gold ", Amount: 100, LendMint: addr(0x10), LenderFeeBps: 500, Duration: 86_400, Receiver: addr(0x20)}
}

func TestCreateAndCloseTier(t *testing.T) {
	store := &mockStore{committed: map[string]*Config{}}
	authority := addr(0x01)
	engine := NewEngine(store, authority)
	rec := &events.Recorder{}
	engine.SetEmitter(rec)

	cfg, err := engine.CreateTier(authority, sampleConfig())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if cfg.ID != "gold" || cfg.Owner != authority {
		t.Fatalf("unexpected tier %+v", cfg)
	}
	if _, err := engine.CreateTier(authority, sampleConfig()); !errors.Is(err, common.ErrInvalidTierId) {
		t.Fatalf("expected duplicate to fail with ErrInvalidTierId, got %v", err)
	}
	if err := engine.CloseTier(addr(0x02), "gold"); !errors.Is(err, common.ErrInvalidOwner) {
		t.Fatalf("expected ErrInvalidOwner, got %v", err)
	}
	if err := engine.CloseTier(authority, "silver"); !errors.Is(err, common.ErrInvalidTierId) {
		t.Fatalf("expected ErrInvalidTierId, got %v", err)
	}
	if err := engine.CloseTier(authority, "gold"); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := engine.Tier("gold"); !errors.Is(err, common.ErrInvalidTierId) {
		t.Fatalf("expected closed tier to be gone, got %v", err)
	}

	evts := rec.Events()
	if len(evts) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evts))
	}
	if evts[1].Type != events.TypeSettingAccountClosed || evts[1].Attribute("tierId") != "gold" {
		t.Fatalf("unexpected close event %+v", evts[1])
	}
}

func TestCreateTierValidation(t *testing.T) {
	authority := addr(0x01)
	engine := NewEngine(&mockStore{committed: map[string]*Config{}}, authority)

	if _, err := engine.CreateTier(addr(0x09), sampleConfig()); !errors.Is(err, common.ErrInvalidOwner) {
		t.Fatalf("expected ErrInvalidOwner, got %v", err)
	}
	bad := sampleConfig()
	bad.Receiver = crypto.Address{}
	if _, err := engine.CreateTier(authority, bad); !errors.Is(err, common.ErrInvalidReceiver) {
		t.Fatalf("expected ErrInvalidReceiver, got %v", err)
	}
	bad = sampleConfig()
	bad.Amount = 0
	if _, err := engine.CreateTier(authority, bad); !errors.Is(err, common.ErrInvalidLendAmount) {
		t.Fatalf("expected ErrInvalidLendAmount, got %v", err)
	}
	bad = sampleConfig()
	bad.Duration = MaxDuration + 1
	if _, err := engine.CreateTier(authority, bad); !errors.Is(err, common.ErrInvalidTierId) {
		t.Fatalf("expected ErrInvalidTierId for oversized duration, got %v", err)
	}
	engine.SetPauses(common.StaticPauses{"tier": true})
	if _, err := engine.CreateTier(authority, sampleConfig()); !errors.Is(err, common.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
}
