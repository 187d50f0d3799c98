package main

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"crosslend/config"
	"crosslend/core/state"
	"crosslend/crypto"
	"crosslend/native/custody"
	"crosslend/native/tier"
	"crosslend/storage"
)

func addrString(b byte) string {
	var a crypto.Address
	a[len(a)-1] = b
	return a.String()
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Operator = addrString(3)
	cfg.TierAuthority = addrString(3)
	cfg.Attestation.LocalChainID = 1
	cfg.Attestation.Emitters = []config.Emitter{{ChainID: 2, Address: "0x" + "00000000000000000000000000000000000000000000000000000000000000aa"}}
	cfg.Assets = []config.Asset{{Mint: addrString(0xA1), Symbol: "usdc", Decimals: 6, PriceFeed: "usdc/usd"}}
	cfg.Tiers = []config.Tier{{ID: "gold", Amount: 100, LendMint: addrString(0xA1), LenderFeeBps: 1000, DurationSecs: 86400, Receiver: addrString(4)}}
	cfg.Balances = []config.Balance{{Owner: addrString(1), Mint: addrString(0xA1), Amount: "1000000000"}}
	return cfg
}

func TestBootstrapIsIdempotent(t *testing.T) {
	cfg := testConfig()
	mgr := state.NewManager(storage.NewMemDB())
	owner, err := cfg.TierAuthorityAddress()
	require.NoError(t, err)
	tiers := tier.NewEngine(mgr.Tiers(), owner)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	now := time.Unix(1_700_000_000, 0)
	require.NoError(t, bootstrap(cfg, mgr, tiers, now, logger))
	require.NoError(t, bootstrap(cfg, mgr, tiers, now.Add(time.Hour), logger))

	lender, err := crypto.ParseAddress(addrString(1))
	require.NoError(t, err)
	mint, err := crypto.ParseAddress(addrString(0xA1))
	require.NoError(t, err)
	require.NoError(t, mgr.View(func(tx *state.Tx) error {
		bal, err := custody.NewLedger(tx).Balance(lender, mint)
		require.NoError(t, err)
		require.Equal(t, int64(1_000_000_000), bal.Int64())
		at, ok, err := tx.GenesisApplied()
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, uint64(now.Unix()), at)
		emitter, ok, err := tx.GetEmitter(2)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, byte(0xaa), emitter[31])
		return nil
	}))

	gold, err := tiers.Tier("gold")
	require.NoError(t, err)
	require.Equal(t, uint64(100), gold.Amount)
}
