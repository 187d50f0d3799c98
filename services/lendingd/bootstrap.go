package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"crosslend/config"
	"crosslend/core/state"
	"crosslend/native/attest"
	"crosslend/native/common"
	"crosslend/native/custody"
	"crosslend/native/tier"
)

// bootstrap brings persisted state in line with the configuration. Asset and
// emitter registrations are rewritten every start; genesis balances are
// credited once; configured tiers are created when missing.
func bootstrap(cfg *config.Config, mgr *state.Manager, tiers *tier.Engine, now time.Time, logger *slog.Logger) error {
	assets, err := cfg.AssetRecords()
	if err != nil {
		return err
	}
	emitters, err := cfg.EmitterBindings()
	if err != nil {
		return err
	}
	balances, err := cfg.GenesisBalances()
	if err != nil {
		return err
	}
	tierConfigs, err := cfg.TierConfigs()
	if err != nil {
		return err
	}

	credited := false
	err = mgr.Update(func(tx *state.Tx) error {
		for _, asset := range assets {
			if err := custody.RegisterAsset(tx, asset); err != nil {
				return fmt.Errorf("register asset %s: %w", asset.Symbol, err)
			}
		}
		for _, binding := range emitters {
			if err := attest.RegisterEmitter(tx, binding.ChainID, binding.Emitter); err != nil {
				return fmt.Errorf("register emitter for chain %d: %w", binding.ChainID, err)
			}
		}
		if _, applied, err := tx.GenesisApplied(); err != nil {
			return err
		} else if applied {
			return nil
		}
		ledger := custody.NewLedger(tx)
		for _, bal := range balances {
			if err := ledger.Credit(bal.Owner, bal.Mint, bal.Amount); err != nil {
				return fmt.Errorf("credit %s: %w", bal.Owner, err)
			}
		}
		credited = true
		return tx.MarkGenesis(uint64(now.Unix()))
	})
	if err != nil {
		return err
	}
	if credited {
		logger.Info("genesis balances credited", slog.Int("accounts", len(balances)))
	}

	for _, cfgTier := range tierConfigs {
		if _, err := tiers.Tier(cfgTier.ID); err == nil {
			continue
		} else if !errors.Is(err, common.ErrInvalidTierId) {
			return err
		}
		if _, err := tiers.CreateTier(cfgTier.Owner, cfgTier); err != nil {
			return fmt.Errorf("create tier %s: %w", cfgTier.ID, err)
		}
		logger.Info("tier created from config", slog.String("tier", cfgTier.ID))
	}
	return nil
}
