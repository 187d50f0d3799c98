package config

// Risk holds the process-wide lending parameters. Ratios and rates are in
// basis points; 15000 is 150.0%.
type Risk struct {
	MaxAllowedInterestBps          uint64 `toml:"MaxAllowedInterestBps" yaml:"max_allowed_interest_bps"`
	MinHealthRatioToBorrowBps      uint64 `toml:"MinHealthRatioToBorrowBps" yaml:"min_health_ratio_to_borrow_bps"`
	LiquidationHealthRatioLimitBps uint64 `toml:"LiquidationHealthRatioLimitBps" yaml:"liquidation_health_ratio_limit_bps"`
	RepayGraceSecs                 uint64 `toml:"RepayGraceSecs" yaml:"repay_grace_secs"`
	MaxPriceAgeSecs                uint64 `toml:"MaxPriceAgeSecs" yaml:"max_price_age_secs"`
	MaxConfidenceBps               uint64 `toml:"MaxConfidenceBps" yaml:"max_confidence_bps"`
	CollateralVault                string `toml:"CollateralVault" yaml:"collateral_vault"`
	FeeCollector                   string `toml:"FeeCollector" yaml:"fee_collector"`
}

// Emitter binds a foreign chain to the only contract allowed to attest
// deposits from it.
type Emitter struct {
	ChainID uint16 `toml:"ChainID" yaml:"chain_id"`
	Address string `toml:"Address" yaml:"address"`
}

// Attestation configures cross-chain message acceptance.
type Attestation struct {
	LocalChainID uint16    `toml:"LocalChainID" yaml:"local_chain_id"`
	ValiditySecs uint64    `toml:"ValiditySecs" yaml:"validity_secs"`
	Emitters     []Emitter `toml:"Emitters" yaml:"emitters"`
}

// Asset registers a mint with its decimals and price feed.
type Asset struct {
	Mint      string `toml:"Mint" yaml:"mint"`
	Symbol    string `toml:"Symbol" yaml:"symbol"`
	Decimals  uint8  `toml:"Decimals" yaml:"decimals"`
	PriceFeed string `toml:"PriceFeed" yaml:"price_feed"`
}

// Tier is created at startup by the tier authority when missing.
type Tier struct {
	ID           string `toml:"ID" yaml:"id"`
	Amount       uint64 `toml:"Amount" yaml:"amount"`
	LendMint     string `toml:"LendMint" yaml:"lend_mint"`
	LenderFeeBps uint64 `toml:"LenderFeeBps" yaml:"lender_fee_bps"`
	DurationSecs uint64 `toml:"DurationSecs" yaml:"duration_secs"`
	Receiver     string `toml:"Receiver" yaml:"receiver"`
}

// Quote seeds the manual price feed.
type Quote struct {
	Feed       string `toml:"Feed" yaml:"feed"`
	Rate       string `toml:"Rate" yaml:"rate"`
	Confidence string `toml:"Confidence" yaml:"confidence"`
}

// Oracle selects the price sources. HTTPEndpoint is optional; manual quotes
// always act as the fallback source.
type Oracle struct {
	HTTPEndpoint    string  `toml:"HTTPEndpoint" yaml:"http_endpoint"`
	HTTPTimeoutSecs uint64  `toml:"HTTPTimeoutSecs" yaml:"http_timeout_secs"`
	Quotes          []Quote `toml:"Quotes" yaml:"quotes"`
}

// Balance credits an account at bootstrap. Amounts are base units.
type Balance struct {
	Owner  string `toml:"Owner" yaml:"owner"`
	Mint   string `toml:"Mint" yaml:"mint"`
	Amount string `toml:"Amount" yaml:"amount"`
}

// EventStore persists committed events for the query API.
type EventStore struct {
	Driver string `toml:"Driver" yaml:"driver"`
	DSN    string `toml:"DSN" yaml:"dsn"`
}

// Auth configures bearer token verification. The secret is read from
// HMACSecretEnv when HMACSecret is empty.
type Auth struct {
	HMACSecret    string `toml:"HMACSecret" yaml:"hmac_secret"`
	HMACSecretEnv string `toml:"HMACSecretEnv" yaml:"hmac_secret_env"`
	Issuer        string `toml:"Issuer" yaml:"issuer"`
	Audience      string `toml:"Audience" yaml:"audience"`
	ClockSkewSecs uint64 `toml:"ClockSkewSecs" yaml:"clock_skew_secs"`
}

// RateLimit bounds requests per authenticated caller.
type RateLimit struct {
	RequestsPerMinute float64 `toml:"RequestsPerMinute" yaml:"requests_per_minute"`
	Burst             int     `toml:"Burst" yaml:"burst"`
}

// Log controls optional rotating file output alongside stdout.
type Log struct {
	File       string `toml:"File" yaml:"file"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"max_size_mb"`
	MaxBackups int    `toml:"MaxBackups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"MaxAgeDays" yaml:"max_age_days"`
}

// Pauses halts individual modules.
type Pauses struct {
	Lending bool `toml:"Lending" yaml:"lending"`
	Tier    bool `toml:"Tier" yaml:"tier"`
}
