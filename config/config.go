package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"crosslend/observability/logging"
)

const (
	defaultListenAddress  = ":9444"
	defaultDataDir        = "./lend-data"
	defaultEventDriver    = "sqlite"
	defaultValiditySecs   = 600
	defaultRepayGraceSecs = 3600
	defaultPriceAgeSecs   = 60
	defaultHTTPTimeout    = 5
	defaultRatePerMinute  = 120
	defaultRateBurst      = 20
	defaultClockSkewSecs  = 120
)

// Config is the lendingd runtime configuration. It is loaded once at
// startup and never changes while the process runs.
type Config struct {
	ListenAddress string `toml:"ListenAddress" yaml:"listen"`
	DataDir       string `toml:"DataDir" yaml:"data_dir"`
	Environment   string `toml:"Environment" yaml:"environment"`
	Operator      string `toml:"Operator" yaml:"operator"`
	TierAuthority string `toml:"TierAuthority" yaml:"tier_authority"`

	Risk        Risk        `toml:"risk" yaml:"risk"`
	Attestation Attestation `toml:"attestation" yaml:"attestation"`
	Assets      []Asset     `toml:"assets" yaml:"assets"`
	Tiers       []Tier      `toml:"tiers" yaml:"tiers"`
	Balances    []Balance   `toml:"balances" yaml:"balances"`
	Oracle      Oracle      `toml:"oracle" yaml:"oracle"`
	EventStore  EventStore  `toml:"event_store" yaml:"event_store"`
	Auth        Auth        `toml:"auth" yaml:"auth"`
	RateLimit   RateLimit   `toml:"rate_limit" yaml:"rate_limit"`
	Log         Log         `toml:"log" yaml:"log"`
	Pauses      Pauses      `toml:"pauses" yaml:"pauses"`
}

// Default returns a configuration with every optional field populated.
// Addresses are left empty and must come from the file.
func Default() *Config {
	return &Config{
		ListenAddress: defaultListenAddress,
		DataDir:       defaultDataDir,
		Risk: Risk{
			MaxAllowedInterestBps:          10_000,
			MinHealthRatioToBorrowBps:      15_000,
			LiquidationHealthRatioLimitBps: 12_000,
			RepayGraceSecs:                 defaultRepayGraceSecs,
			MaxPriceAgeSecs:                defaultPriceAgeSecs,
		},
		Attestation: Attestation{ValiditySecs: defaultValiditySecs},
		Oracle:      Oracle{HTTPTimeoutSecs: defaultHTTPTimeout},
		EventStore:  EventStore{Driver: defaultEventDriver},
		Auth:        Auth{ClockSkewSecs: defaultClockSkewSecs},
		RateLimit:   RateLimit{RequestsPerMinute: defaultRatePerMinute, Burst: defaultRateBurst},
	}
}

// Load reads a TOML or YAML file, chosen by extension, over Default and
// validates the result.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(bytes.NewReader(raw))
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	case ".toml", "":
		meta, err := toml.Decode(string(raw), cfg)
		if err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s has unknown field %s", path, undecoded[0])
		}
	default:
		return nil, fmt.Errorf("unsupported config extension %q", ext)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Write encodes cfg as TOML. lendctl uses it to scaffold a config file.
func Write(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// HMACSecret resolves the token signing secret.
func (cfg *Config) HMACSecret() string {
	if secret := strings.TrimSpace(cfg.Auth.HMACSecret); secret != "" {
		return secret
	}
	if cfg.Auth.HMACSecretEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(cfg.Auth.HMACSecretEnv))
}

// Sanitized returns a copy safe to log.
func (cfg Config) Sanitized() Config {
	clone := cfg
	clone.Auth.HMACSecret = logging.MaskValue(clone.Auth.HMACSecret)
	if clone.EventStore.Driver == "postgres" {
		clone.EventStore.DSN = logging.MaskValue(clone.EventStore.DSN)
	}
	return clone
}

func (cfg *Config) normalize() {
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListenAddress
	}
	cfg.DataDir = strings.TrimSpace(cfg.DataDir)
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	cfg.Environment = strings.TrimSpace(cfg.Environment)
	cfg.Operator = strings.TrimSpace(cfg.Operator)
	cfg.TierAuthority = strings.TrimSpace(cfg.TierAuthority)
	if cfg.TierAuthority == "" {
		cfg.TierAuthority = cfg.Operator
	}
	cfg.Risk.CollateralVault = strings.TrimSpace(cfg.Risk.CollateralVault)
	cfg.Risk.FeeCollector = strings.TrimSpace(cfg.Risk.FeeCollector)
	for i := range cfg.Attestation.Emitters {
		cfg.Attestation.Emitters[i].Address = strings.TrimSpace(cfg.Attestation.Emitters[i].Address)
	}
	for i := range cfg.Assets {
		a := &cfg.Assets[i]
		a.Mint = strings.TrimSpace(a.Mint)
		a.Symbol = strings.ToUpper(strings.TrimSpace(a.Symbol))
		a.PriceFeed = strings.ToLower(strings.TrimSpace(a.PriceFeed))
	}
	for i := range cfg.Tiers {
		t := &cfg.Tiers[i]
		t.ID = strings.TrimSpace(t.ID)
		t.LendMint = strings.TrimSpace(t.LendMint)
		t.Receiver = strings.TrimSpace(t.Receiver)
	}
	for i := range cfg.Oracle.Quotes {
		q := &cfg.Oracle.Quotes[i]
		q.Feed = strings.ToLower(strings.TrimSpace(q.Feed))
	}
	cfg.Oracle.HTTPEndpoint = strings.TrimSpace(cfg.Oracle.HTTPEndpoint)
	if cfg.Oracle.HTTPTimeoutSecs == 0 {
		cfg.Oracle.HTTPTimeoutSecs = defaultHTTPTimeout
	}
	cfg.EventStore.Driver = strings.ToLower(strings.TrimSpace(cfg.EventStore.Driver))
	if cfg.EventStore.Driver == "" {
		cfg.EventStore.Driver = defaultEventDriver
	}
	cfg.EventStore.DSN = strings.TrimSpace(cfg.EventStore.DSN)
	if cfg.EventStore.DSN == "" && cfg.EventStore.Driver == defaultEventDriver {
		cfg.EventStore.DSN = filepath.Join(cfg.DataDir, "events.db")
	}
	cfg.Auth.HMACSecretEnv = strings.TrimSpace(cfg.Auth.HMACSecretEnv)
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = defaultRateBurst
	}
}
