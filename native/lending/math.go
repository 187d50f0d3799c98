package lending

import (
	"math"
	"math/big"

	"github.com/holiman/uint256"

	"crosslend/native/common"
)

const basisPointsDenominator = 10_000

var (
	basisPoints    = big.NewInt(basisPointsDenominator)
	basisPointsRat = new(big.Rat).SetInt(basisPoints)
)

// ScaleAmount converts an unscaled tier amount into base units,
// amount * 10^decimals, failing instead of truncating on overflow.
func ScaleAmount(amount uint64, decimals uint8) (*big.Int, error) {
	if amount == 0 {
		return nil, common.Wrap(common.ErrInvalidLendAmount, "amount must be positive")
	}
	if decimals > 77 {
		return nil, common.Wrap(common.ErrInvalidLendAmount, "decimals %d overflow", decimals)
	}
	pow := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals)))
	scaled, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(amount), pow)
	if overflow {
		return nil, common.Wrap(common.ErrInvalidLendAmount, "%d * 10^%d overflows", amount, decimals)
	}
	return scaled.ToBig(), nil
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

// AssetValue returns amount / 10^decimals * price.
func AssetValue(amount *big.Int, decimals uint8, price *big.Rat) *big.Rat {
	if amount == nil || price == nil {
		return new(big.Rat)
	}
	value := new(big.Rat).SetFrac(amount, pow10(decimals))
	return value.Mul(value, price)
}

// HealthRatio returns collateralValue / loanValue.
func HealthRatio(collateralValue, loanValue *big.Rat) (*big.Rat, error) {
	if loanValue == nil || loanValue.Sign() == 0 {
		return nil, common.ErrHealthRatioInvalid
	}
	if collateralValue == nil {
		collateralValue = new(big.Rat)
	}
	return new(big.Rat).Quo(collateralValue, loanValue), nil
}

// RatioBps renders ratio in basis points rounded down, saturating at
// MaxUint64.
func RatioBps(ratio *big.Rat) uint64 {
	if ratio == nil || ratio.Sign() <= 0 {
		return 0
	}
	scaled := new(big.Rat).Mul(ratio, basisPointsRat)
	q := new(big.Int).Quo(scaled.Num(), scaled.Denom())
	if !q.IsUint64() {
		return math.MaxUint64
	}
	return q.Uint64()
}

// ratioAtLeast reports ratio >= bps/10000 without rounding.
func ratioAtLeast(ratio *big.Rat, bps uint64) bool {
	threshold := new(big.Rat).SetFrac(new(big.Int).SetUint64(bps), basisPoints)
	return ratio.Cmp(threshold) >= 0
}

// CanActivate applies the activation policy.
func CanActivate(ratio *big.Rat, minBps uint64) error {
	if !ratioAtLeast(ratio, minBps) {
		return common.Wrap(common.ErrHealthRatioNotValid, "ratio %d bps below %d", RatioBps(ratio), minBps)
	}
	return nil
}

// Liquidatable reports whether ratio is strictly below the liquidation limit.
func Liquidatable(ratio *big.Rat, limitBps uint64) bool {
	return !ratioAtLeast(ratio, limitBps)
}

// AccruedInterest prorates the full-term interest linearly over elapsed
// seconds, capped at duration, rounding up:
//
//	ceil(principal * interestBps * min(elapsed, duration) / (10000 * duration))
func AccruedInterest(principal *big.Int, interestBps, elapsed, duration uint64) *big.Int {
	if principal == nil || principal.Sign() <= 0 || interestBps == 0 || elapsed == 0 {
		return big.NewInt(0)
	}
	switch {
	case duration == 0:
		// A zero-length term owes the full interest immediately.
		elapsed, duration = 1, 1
	case elapsed > duration:
		elapsed = duration
	}
	num := new(big.Int).Mul(principal, new(big.Int).SetUint64(interestBps))
	num.Mul(num, new(big.Int).SetUint64(elapsed))
	den := new(big.Int).Mul(basisPoints, new(big.Int).SetUint64(duration))
	return ceilDiv(num, den)
}

// TotalRepay returns principal plus interest accrued after elapsed seconds.
func TotalRepay(principal *big.Int, interestBps, elapsed, duration uint64) *big.Int {
	total := AccruedInterest(principal, interestBps, elapsed, duration)
	if principal != nil {
		total.Add(total, principal)
	}
	return total
}

// SplitRepayment divides total into the lender's share and the protocol fee,
// fee = floor(total * feeBps / 10000). The parts always sum to total.
func SplitRepayment(total *big.Int, feeBps uint64) (lenderShare, fee *big.Int) {
	if total == nil || total.Sign() <= 0 {
		return big.NewInt(0), big.NewInt(0)
	}
	if feeBps > basisPointsDenominator {
		feeBps = basisPointsDenominator
	}
	fee = new(big.Int).Mul(total, new(big.Int).SetUint64(feeBps))
	fee.Quo(fee, basisPoints)
	lenderShare = new(big.Int).Sub(total, fee)
	return lenderShare, fee
}

func ceilDiv(num, den *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
