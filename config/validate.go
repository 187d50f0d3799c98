package config

import (
	"fmt"
	"math/big"
	"time"

	"crosslend/crypto"
	"crosslend/native/attest"
	"crosslend/native/common"
	"crosslend/native/custody"
	"crosslend/native/lending"
	"crosslend/native/tier"
)

// EmitterBinding is a parsed attestation emitter entry.
type EmitterBinding struct {
	ChainID uint16
	Emitter attest.EmitterAddress
}

// GenesisBalance is a parsed bootstrap credit.
type GenesisBalance struct {
	Owner  crypto.Address
	Mint   crypto.Address
	Amount *big.Int
}

func (cfg *Config) validate() error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	if _, err := cfg.OperatorAddress(); err != nil {
		return fmt.Errorf("operator: %w", err)
	}
	if _, err := cfg.TierAuthorityAddress(); err != nil {
		return fmt.Errorf("tier_authority: %w", err)
	}
	if _, err := cfg.LendingParams(); err != nil {
		return fmt.Errorf("risk: %w", err)
	}
	if cfg.Attestation.LocalChainID == 0 {
		return fmt.Errorf("attestation: local_chain_id required")
	}
	if _, err := cfg.EmitterBindings(); err != nil {
		return fmt.Errorf("attestation: %w", err)
	}
	assets, err := cfg.AssetRecords()
	if err != nil {
		return fmt.Errorf("assets: %w", err)
	}
	known := make(map[crypto.Address]struct{}, len(assets))
	for _, a := range assets {
		known[a.Mint] = struct{}{}
	}
	tiers, err := cfg.TierConfigs()
	if err != nil {
		return fmt.Errorf("tiers: %w", err)
	}
	for _, t := range tiers {
		if _, ok := known[t.LendMint]; !ok {
			return fmt.Errorf("tiers: %s lends unregistered mint %s", t.ID, t.LendMint)
		}
		if t.Duration == 0 || t.Duration > tier.MaxDuration {
			return fmt.Errorf("tiers: %s duration_secs must be 1-%d", t.ID, tier.MaxDuration)
		}
	}
	if _, err := cfg.GenesisBalances(); err != nil {
		return fmt.Errorf("balances: %w", err)
	}
	switch cfg.EventStore.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("event_store: unsupported driver %q", cfg.EventStore.Driver)
	}
	if cfg.EventStore.DSN == "" {
		return fmt.Errorf("event_store: dsn required for %s", cfg.EventStore.Driver)
	}
	if cfg.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("rate_limit: requests_per_minute must be non-negative")
	}
	return nil
}

func (cfg *Config) OperatorAddress() (crypto.Address, error) {
	return requiredAddress(cfg.Operator)
}

func (cfg *Config) TierAuthorityAddress() (crypto.Address, error) {
	return requiredAddress(cfg.TierAuthority)
}

// LendingParams maps the risk section onto validated engine parameters.
func (cfg *Config) LendingParams() (lending.Params, error) {
	vault, err := requiredAddress(cfg.Risk.CollateralVault)
	if err != nil {
		return lending.Params{}, fmt.Errorf("collateral_vault: %w", err)
	}
	collector, err := requiredAddress(cfg.Risk.FeeCollector)
	if err != nil {
		return lending.Params{}, fmt.Errorf("fee_collector: %w", err)
	}
	params := lending.Params{
		MaxAllowedInterestBps:          cfg.Risk.MaxAllowedInterestBps,
		MinHealthRatioToBorrowBps:      cfg.Risk.MinHealthRatioToBorrowBps,
		LiquidationHealthRatioLimitBps: cfg.Risk.LiquidationHealthRatioLimitBps,
		RepayGracePeriod:               secs(cfg.Risk.RepayGraceSecs),
		MaxPriceAge:                    secs(cfg.Risk.MaxPriceAgeSecs),
		MaxConfidenceBps:               cfg.Risk.MaxConfidenceBps,
		CollateralVault:                vault,
		FeeCollector:                   collector,
	}
	if err := params.Validate(); err != nil {
		return lending.Params{}, err
	}
	return params, nil
}

func (cfg *Config) ValidityWindow() time.Duration { return secs(cfg.Attestation.ValiditySecs) }

func (cfg *Config) HTTPTimeout() time.Duration { return secs(cfg.Oracle.HTTPTimeoutSecs) }

func (cfg *Config) ClockSkew() time.Duration { return secs(cfg.Auth.ClockSkewSecs) }

func (cfg *Config) EmitterBindings() ([]EmitterBinding, error) {
	seen := make(map[uint16]struct{}, len(cfg.Attestation.Emitters))
	out := make([]EmitterBinding, 0, len(cfg.Attestation.Emitters))
	for _, e := range cfg.Attestation.Emitters {
		if e.ChainID == 0 {
			return nil, fmt.Errorf("emitter chain_id required")
		}
		if e.ChainID == cfg.Attestation.LocalChainID {
			return nil, fmt.Errorf("emitter chain %d is the local chain", e.ChainID)
		}
		if _, dup := seen[e.ChainID]; dup {
			return nil, fmt.Errorf("duplicate emitter for chain %d", e.ChainID)
		}
		seen[e.ChainID] = struct{}{}
		addr, err := attest.ParseEmitter(e.Address)
		if err != nil {
			return nil, fmt.Errorf("chain %d: %w", e.ChainID, err)
		}
		if addr.IsZero() {
			return nil, fmt.Errorf("chain %d: zero emitter", e.ChainID)
		}
		out = append(out, EmitterBinding{ChainID: e.ChainID, Emitter: addr})
	}
	return out, nil
}

func (cfg *Config) AssetRecords() ([]*custody.Asset, error) {
	seen := make(map[crypto.Address]struct{}, len(cfg.Assets))
	out := make([]*custody.Asset, 0, len(cfg.Assets))
	for _, a := range cfg.Assets {
		mint, err := requiredAddress(a.Mint)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.Symbol, err)
		}
		if _, dup := seen[mint]; dup {
			return nil, fmt.Errorf("duplicate mint %s", mint)
		}
		seen[mint] = struct{}{}
		if a.Decimals > attest.MaxCollateralDecimals {
			return nil, fmt.Errorf("%s: decimals %d exceed %d", a.Symbol, a.Decimals, attest.MaxCollateralDecimals)
		}
		if a.PriceFeed == "" {
			return nil, fmt.Errorf("%s: price_feed required", a.Symbol)
		}
		out = append(out, &custody.Asset{Mint: mint, Symbol: a.Symbol, Decimals: a.Decimals, PriceFeedID: a.PriceFeed})
	}
	return out, nil
}

func (cfg *Config) TierConfigs() ([]tier.Config, error) {
	owner, err := cfg.TierAuthorityAddress()
	if err != nil {
		return nil, err
	}
	out := make([]tier.Config, 0, len(cfg.Tiers))
	for _, t := range cfg.Tiers {
		mint, err := requiredAddress(t.LendMint)
		if err != nil {
			return nil, fmt.Errorf("%s lend_mint: %w", t.ID, err)
		}
		receiver, err := requiredAddress(t.Receiver)
		if err != nil {
			return nil, fmt.Errorf("%s receiver: %w", t.ID, err)
		}
		out = append(out, tier.Config{
			ID:           t.ID,
			Amount:       t.Amount,
			LendMint:     mint,
			LenderFeeBps: t.LenderFeeBps,
			Duration:     t.DurationSecs,
			Receiver:     receiver,
			Owner:        owner,
		})
	}
	return out, nil
}

func (cfg *Config) GenesisBalances() ([]GenesisBalance, error) {
	out := make([]GenesisBalance, 0, len(cfg.Balances))
	for _, b := range cfg.Balances {
		owner, err := requiredAddress(b.Owner)
		if err != nil {
			return nil, fmt.Errorf("owner: %w", err)
		}
		mint, err := requiredAddress(b.Mint)
		if err != nil {
			return nil, fmt.Errorf("mint: %w", err)
		}
		amount, ok := new(big.Int).SetString(b.Amount, 10)
		if !ok || amount.Sign() < 0 {
			return nil, fmt.Errorf("invalid amount %q for %s", b.Amount, owner)
		}
		out = append(out, GenesisBalance{Owner: owner, Mint: mint, Amount: amount})
	}
	return out, nil
}

// PauseView exposes the pause switches to the engines.
func (cfg *Config) PauseView() common.StaticPauses {
	return common.StaticPauses{
		"lending": cfg.Pauses.Lending,
		"tier":    cfg.Pauses.Tier,
	}
}

func requiredAddress(value string) (crypto.Address, error) {
	if value == "" {
		return crypto.Address{}, fmt.Errorf("address required")
	}
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return crypto.Address{}, err
	}
	if addr.IsZero() {
		return crypto.Address{}, fmt.Errorf("zero address")
	}
	return addr, nil
}

func secs(n uint64) time.Duration { return time.Duration(n) * time.Second }
