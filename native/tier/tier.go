// Package tier manages the tier configurations lend offers are created
// against.
package tier

import (
	"strings"

	"crosslend/core/events"
	"crosslend/crypto"
	"crosslend/native/common"
)

const (
	moduleName  = "tier"
	maxIDLength = 32
	maxFeeBps   = 10_000

	// MaxDuration caps a tier's loan term at ten years, in seconds.
	MaxDuration uint64 = 10 * 365 * 24 * 60 * 60
)

// Config bundles the principal, fee, duration and custody receiver applied
// to every lend offer created under it. Lend offers copy the fields they
// need, so closing a tier never changes existing offers.
type Config struct {
	ID           string
	Amount       uint64
	LendMint     crypto.Address
	LenderFeeBps uint64
	Duration     uint64
	Receiver     crypto.Address
	Owner        crypto.Address
}

func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// State is the transaction-scoped tier storage.
type State interface {
	GetTier(id string) (*Config, bool, error)
	PutTier(cfg *Config) error
	DeleteTier(id string) error
}

// Store runs fn inside a single atomic transaction.
type Store interface {
	Update(fn func(State) error) error
	View(fn func(State) error) error
}

// NormalizeID trims whitespace from a tier identifier.
func NormalizeID(id string) string { return strings.TrimSpace(id) }

type Engine struct {
	store     Store
	authority crypto.Address
	emitter   events.Emitter
	pauses    common.PauseView
}

// NewEngine returns an engine where only authority may create tiers.
func NewEngine(store Store, authority crypto.Address) *Engine {
	return &Engine{store: store, authority: authority, emitter: events.NoopEmitter{}}
}

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// CreateTier stores cfg with owner recorded as its owner.
func (e *Engine) CreateTier(owner crypto.Address, cfg Config) (*Config, error) {
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if owner.IsZero() || owner != e.authority {
		return nil, common.ErrInvalidOwner
	}
	cfg.ID = NormalizeID(cfg.ID)
	cfg.Owner = owner
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	var buf events.Buffer
	err := e.store.Update(func(st State) error {
		if _, exists, err := st.GetTier(cfg.ID); err != nil {
			return err
		} else if exists {
			return common.Wrap(common.ErrInvalidTierId, "tier %q already exists", cfg.ID)
		}
		if err := st.PutTier(&cfg); err != nil {
			return err
		}
		buf.Add(events.TierCreated{
			TierID:       cfg.ID,
			Owner:        owner,
			Mint:         cfg.LendMint,
			Amount:       cfg.Amount,
			LenderFeeBps: cfg.LenderFeeBps,
			Duration:     cfg.Duration,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	buf.Flush(e.emitter)
	return cfg.Clone(), nil
}

// CloseTier removes a tier configuration owned by owner.
func (e *Engine) CloseTier(owner crypto.Address, id string) error {
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	id = NormalizeID(id)
	var buf events.Buffer
	err := e.store.Update(func(st State) error {
		cfg, ok, err := st.GetTier(id)
		if err != nil {
			return err
		}
		if !ok {
			return common.Wrap(common.ErrInvalidTierId, "tier %q not found", id)
		}
		if cfg.Owner != owner {
			return common.ErrInvalidOwner
		}
		if err := st.DeleteTier(id); err != nil {
			return err
		}
		buf.Add(events.SettingAccountClosed{TierID: id})
		return nil
	})
	if err != nil {
		return err
	}
	buf.Flush(e.emitter)
	return nil
}

// Tier returns the stored configuration for id.
func (e *Engine) Tier(id string) (*Config, error) {
	var out *Config
	err := e.store.View(func(st State) error {
		cfg, ok, err := st.GetTier(NormalizeID(id))
		if err != nil {
			return err
		}
		if !ok {
			return common.Wrap(common.ErrInvalidTierId, "tier %q not found", id)
		}
		out = cfg
		return nil
	})
	return out, err
}

func validate(cfg *Config) error {
	if cfg.ID == "" || len(cfg.ID) > maxIDLength {
		return common.Wrap(common.ErrInvalidTierId, "tier id must be 1-%d characters", maxIDLength)
	}
	if cfg.Amount == 0 {
		return common.Wrap(common.ErrInvalidLendAmount, "tier amount must be positive")
	}
	if cfg.LendMint.IsZero() {
		return common.Wrap(common.ErrInvalidMintAsset, "tier lend mint required")
	}
	if cfg.LenderFeeBps >= maxFeeBps {
		return common.Wrap(common.ErrInvalidTierId, "lender fee %d bps out of range", cfg.LenderFeeBps)
	}
	if cfg.Duration == 0 || cfg.Duration > MaxDuration {
		return common.Wrap(common.ErrInvalidTierId, "tier duration must be 1-%d seconds", MaxDuration)
	}
	if cfg.Receiver.IsZero() {
		return common.ErrInvalidReceiver
	}
	return nil
}
