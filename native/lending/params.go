package lending

import (
	"fmt"
	"time"

	"crosslend/crypto"
)

const (
	// DefaultMaxAllowedInterestBps is 100.0%.
	DefaultMaxAllowedInterestBps   = 10_000
	DefaultMinHealthRatioToBorrow  = 15_000
	DefaultLiquidationHealthRatio  = 12_000
	DefaultRepayGracePeriod        = time.Hour
	DefaultMaxPriceAge             = 60 * time.Second
	maxLiquidationHealthRatioLimit = 1_000_000
)

// Params are the process-wide risk and routing settings. They are loaded
// once at startup and never change while the engine runs.
type Params struct {
	// MaxAllowedInterestBps is the exclusive upper bound on offer interest.
	MaxAllowedInterestBps uint64
	// MinHealthRatioToBorrowBps is the activation floor, e.g. 15000 = 150%.
	MinHealthRatioToBorrowBps uint64
	// LiquidationHealthRatioLimitBps must be below the activation floor.
	LiquidationHealthRatioLimitBps uint64
	RepayGracePeriod               time.Duration
	MaxPriceAge                    time.Duration
	// MaxConfidenceBps rejects quotes whose confidence interval is wider
	// than this share of the price. Zero disables the check.
	MaxConfidenceBps uint64
	CollateralVault  crypto.Address
	FeeCollector     crypto.Address
}

func DefaultParams() Params {
	return Params{
		MaxAllowedInterestBps:          DefaultMaxAllowedInterestBps,
		MinHealthRatioToBorrowBps:      DefaultMinHealthRatioToBorrow,
		LiquidationHealthRatioLimitBps: DefaultLiquidationHealthRatio,
		RepayGracePeriod:               DefaultRepayGracePeriod,
		MaxPriceAge:                    DefaultMaxPriceAge,
	}
}

// Validate checks the internal consistency of the parameters.
func (p Params) Validate() error {
	if p.MaxAllowedInterestBps == 0 || p.MaxAllowedInterestBps > DefaultMaxAllowedInterestBps {
		return fmt.Errorf("lending: max allowed interest must be within (0, %d] bps", DefaultMaxAllowedInterestBps)
	}
	if p.LiquidationHealthRatioLimitBps == 0 || p.LiquidationHealthRatioLimitBps > maxLiquidationHealthRatioLimit {
		return fmt.Errorf("lending: liquidation health ratio limit out of range")
	}
	if p.LiquidationHealthRatioLimitBps >= p.MinHealthRatioToBorrowBps {
		return fmt.Errorf("lending: liquidation limit %d must be below borrow minimum %d",
			p.LiquidationHealthRatioLimitBps, p.MinHealthRatioToBorrowBps)
	}
	if p.RepayGracePeriod < 0 || p.MaxPriceAge < 0 {
		return fmt.Errorf("lending: durations must not be negative")
	}
	if p.MaxConfidenceBps > basisPointsDenominator {
		return fmt.Errorf("lending: max confidence must not exceed %d bps", basisPointsDenominator)
	}
	if p.CollateralVault.IsZero() {
		return fmt.Errorf("lending: collateral vault required")
	}
	if p.FeeCollector.IsZero() {
		return fmt.Errorf("lending: fee collector required")
	}
	return nil
}
