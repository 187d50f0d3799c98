package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"crosslend/crypto"
	"crosslend/observability/logging"
)

func testAddr(b byte) string {
	var a crypto.Address
	a[0] = 0x42
	a[len(a)-1] = b
	return a.String()
}

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func sampleTOML() string {
	return fmt.Sprintf(`ListenAddress = "127.0.0.1:9500"
DataDir = "./data"
Environment = "test"
Operator = "%s"

[risk]
MinHealthRatioToBorrowBps = 16000
LiquidationHealthRatioLimitBps = 11000
CollateralVault = "%s"
FeeCollector = "%s"

[attestation]
LocalChainID = 1
ValiditySecs = 300

[[attestation.Emitters]]
ChainID = 2
Address = "0x77"

[[assets]]
Mint = "%s"
Symbol = "usdc"
Decimals = 6
PriceFeed = "USDC/USD"

[[tiers]]
ID = "gold"
Amount = 100
LendMint = "%s"
LenderFeeBps = 1000
DurationSecs = 86400
Receiver = "%s"

[[balances]]
Owner = "%s"
Mint = "%s"
Amount = "1000000000"
`, testAddr(1), testAddr(5), testAddr(6), testAddr(0xA1), testAddr(0xA1), testAddr(4), testAddr(7), testAddr(0xA1))
}

func TestLoadTOML(t *testing.T) {
	cfg, err := Load(writeFile(t, "lendingd.toml", sampleTOML()))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != "127.0.0.1:9500" {
		t.Fatalf("listen = %q", cfg.ListenAddress)
	}
	if cfg.TierAuthority != cfg.Operator {
		t.Fatalf("tier authority should default to the operator")
	}
	params, err := cfg.LendingParams()
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if params.MinHealthRatioToBorrowBps != 16000 || params.LiquidationHealthRatioLimitBps != 11000 {
		t.Fatalf("unexpected ratios: %+v", params)
	}
	if params.MaxAllowedInterestBps != 10_000 || params.RepayGracePeriod != time.Hour {
		t.Fatalf("defaults not applied: %+v", params)
	}
	if cfg.ValidityWindow() != 5*time.Minute {
		t.Fatalf("validity window = %s", cfg.ValidityWindow())
	}
	emitters, err := cfg.EmitterBindings()
	if err != nil || len(emitters) != 1 || emitters[0].Emitter[31] != 0x77 {
		t.Fatalf("emitters = %+v, err %v", emitters, err)
	}
	assets, _ := cfg.AssetRecords()
	if assets[0].Symbol != "USDC" || assets[0].PriceFeedID != "usdc/usd" {
		t.Fatalf("asset not normalised: %+v", assets[0])
	}
	tiers, _ := cfg.TierConfigs()
	if tiers[0].Duration != 86400 || tiers[0].Owner.String() != cfg.Operator {
		t.Fatalf("tier = %+v", tiers[0])
	}
	balances, _ := cfg.GenesisBalances()
	if balances[0].Amount.String() != "1000000000" {
		t.Fatalf("balance = %s", balances[0].Amount)
	}
	if cfg.EventStore.DSN != filepath.Join("./data", "events.db") {
		t.Fatalf("event store dsn = %q", cfg.EventStore.DSN)
	}
}

func TestLoadYAML(t *testing.T) {
	contents := fmt.Sprintf(`listen: ":9600"
operator: "%s"
risk:
  collateral_vault: "%s"
  fee_collector: "%s"
attestation:
  local_chain_id: 1
  emitters:
    - chain_id: 5
      address: "0x0abc"
event_store:
  driver: postgres
  dsn: "postgres://lend@localhost/lend"
pauses:
  lending: true
`, testAddr(1), testAddr(5), testAddr(6))
	cfg, err := Load(writeFile(t, "lendingd.yaml", contents))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":9600" || cfg.EventStore.Driver != "postgres" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if !cfg.PauseView().IsPaused("lending") || cfg.PauseView().IsPaused("tier") {
		t.Fatalf("pause view = %+v", cfg.PauseView())
	}
	if cfg.Sanitized().EventStore.DSN != logging.RedactedValue {
		t.Fatalf("postgres dsn must be masked")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	base := sampleTOML()
	cases := map[string]struct {
		name     string
		contents string
		want     string
	}{
		"unknown field": {"a.toml", base + "\nBogus = 1\n", "unknown field"},
		"limit above minimum": {"b.toml", strings.Replace(base,
			"LiquidationHealthRatioLimitBps = 11000", "LiquidationHealthRatioLimitBps = 17000", 1), "liquidation limit"},
		"local emitter": {"c.toml", strings.Replace(base, "ChainID = 2", "ChainID = 1", 1), "local chain"},
		"missing chain": {"d.toml", strings.Replace(base, "LocalChainID = 1", "LocalChainID = 0", 1), "local_chain_id"},
		"bad extension": {"e.json", base, "unsupported"},
		"bad driver":    {"f.toml", base + "\n[event_store]\nDriver = \"mysql\"\n", "unsupported driver"},
		"tier duration": {"g.toml", strings.Replace(base, "DurationSecs = 86400", "DurationSecs = 999999999999", 1), "duration_secs"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, tc.name, tc.contents))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestWriteRoundTrip(t *testing.T) {
	cfg, err := Load(writeFile(t, "lendingd.toml", sampleTOML()))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	path := filepath.Join(t.TempDir(), "out", "lendingd.toml")
	if err := Write(path, cfg); err != nil {
		t.Fatalf("write: %v", err)
	}
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Operator != cfg.Operator || len(again.Tiers) != 1 || again.Tiers[0].Amount != 100 {
		t.Fatalf("round trip mismatch: %+v", again)
	}
}
