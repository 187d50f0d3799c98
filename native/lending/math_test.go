package lending

import (
	"errors"
	"math/big"
	"testing"

	"crosslend/native/common"
)

func TestScaleAmountExact(t *testing.T) {
	for _, tc := range []struct {
		amount   uint64
		decimals uint8
		want     string
	}{
		{100, 6, "100000000"},
		{1, 0, "1"},
		{18_446_744_073_709_551_615, 18, "18446744073709551615000000000000000000"},
		{7, 9, "7000000000"},
	} {
		got, err := ScaleAmount(tc.amount, tc.decimals)
		if err != nil {
			t.Fatalf("scale %d^%d: %v", tc.amount, tc.decimals, err)
		}
		if got.String() != tc.want {
			t.Fatalf("scale %d by %d: got %s want %s", tc.amount, tc.decimals, got, tc.want)
		}
	}
	if _, err := ScaleAmount(0, 6); !errors.Is(err, common.ErrInvalidLendAmount) {
		t.Fatalf("expected zero amount to fail, got %v", err)
	}
	if _, err := ScaleAmount(2, 77); !errors.Is(err, common.ErrInvalidLendAmount) {
		t.Fatalf("expected overflow to fail, got %v", err)
	}
}

func TestHealthRatio(t *testing.T) {
	collateral := AssetValue(big.NewInt(3_000_000_000), 9, big.NewRat(50, 1)) // 3 tokens at 50
	loan := AssetValue(big.NewInt(100_000_000), 6, big.NewRat(1, 1))          // 100 at 1
	ratio, err := HealthRatio(collateral, loan)
	if err != nil {
		t.Fatalf("ratio: %v", err)
	}
	if RatioBps(ratio) != 15_000 {
		t.Fatalf("expected 15000 bps, got %d", RatioBps(ratio))
	}
	if err := CanActivate(ratio, 15_000); err != nil {
		t.Fatalf("ratio equal to minimum must activate: %v", err)
	}
	if err := CanActivate(ratio, 15_001); !errors.Is(err, common.ErrHealthRatioNotValid) {
		t.Fatalf("expected ErrHealthRatioNotValid, got %v", err)
	}
	if Liquidatable(ratio, 15_000) {
		t.Fatalf("ratio equal to limit must not be liquidatable")
	}
	if !Liquidatable(ratio, 15_001) {
		t.Fatalf("ratio below limit must be liquidatable")
	}
	if _, err := HealthRatio(collateral, new(big.Rat)); !errors.Is(err, common.ErrHealthRatioInvalid) {
		t.Fatalf("expected ErrHealthRatioInvalid, got %v", err)
	}
}

func TestAccruedInterestLinearAndCapped(t *testing.T) {
	principal := big.NewInt(100_000_000)
	// 5% over a 100 second term.
	if got := AccruedInterest(principal, 500, 50, 100); got.Cmp(big.NewInt(2_500_000)) != 0 {
		t.Fatalf("half term: got %s", got)
	}
	if got := AccruedInterest(principal, 500, 100, 100); got.Cmp(big.NewInt(5_000_000)) != 0 {
		t.Fatalf("full term: got %s", got)
	}
	if got := AccruedInterest(principal, 500, 1_000, 100); got.Cmp(big.NewInt(5_000_000)) != 0 {
		t.Fatalf("capped: got %s", got)
	}
	if got := AccruedInterest(big.NewInt(10), 500, 1, 3); got.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected rounding up to 1, got %s", got)
	}
	if got := AccruedInterest(principal, 500, 0, 100); got.Sign() != 0 {
		t.Fatalf("expected zero interest at start, got %s", got)
	}
	total := TotalRepay(principal, 500, 50, 100)
	if total.Cmp(big.NewInt(102_500_000)) != 0 {
		t.Fatalf("total repay: got %s", total)
	}
}

func TestSplitRepaymentConserves(t *testing.T) {
	for _, total := range []int64{1, 7, 99, 102_500_001} {
		for _, fee := range []uint64{0, 1, 250, 9_999} {
			share, cut := SplitRepayment(big.NewInt(total), fee)
			sum := new(big.Int).Add(share, cut)
			if sum.Cmp(big.NewInt(total)) != 0 {
				t.Fatalf("split of %d at %d bps lost units: %s + %s", total, fee, share, cut)
			}
		}
	}
	share, cut := SplitRepayment(big.NewInt(10_000), 250)
	if share.Int64() != 9_750 || cut.Int64() != 250 {
		t.Fatalf("unexpected split %s/%s", share, cut)
	}
}
