package lending

import (
	"math/big"

	"crosslend/core/events"
	"crosslend/crypto"
	"crosslend/native/common"
)

// LiquidationResult summarises a forced close.
type LiquidationResult struct {
	TotalRepay       *big.Int
	LenderShare      *big.Int
	ProtocolFee      *big.Int
	CollateralSeized *big.Int
	HealthRatioBps   uint64
}

// Liquidate force-closes an active loan whose health ratio, recomputed now,
// is below the liquidation limit. The operator covers the lender's total
// repay and takes over the collateral.
func (e *Engine) Liquidate(capability OperatorCapability, borrower crypto.Address, loanID string, expectedLender crypto.Address) (*LiquidationResult, error) {
	if err := e.authority.verify(capability); err != nil {
		return nil, err
	}
	prices := e.snapshotPrices(e.loanFeeds(borrower, loanID))
	var result *LiquidationResult
	err := e.execute("liquidate", func(st State, cust AssetCustody, buf *events.Buffer) error {
		loan, ok, err := st.GetLoanOffer(borrower, normalizeID(loanID))
		if err != nil {
			return err
		}
		if !ok || loan.Borrower != borrower {
			return common.Wrap(common.ErrInvalidBorrower, "no loan %q for borrower", loanID)
		}
		if loan.Lender != expectedLender {
			return common.Wrap(common.ErrInvalidLender, "loan %q belongs to another lender", loan.ID)
		}
		next, err := loan.Status.Transition(LoanEventLiquidate)
		if err != nil {
			return err
		}
		now := e.now()
		total := TotalRepay(loan.Principal, loan.InterestBps, elapsedSince(loan.StartedAt, now), loan.Duration)
		ratio, err := healthRatio(st, loan, total, prices)
		if err != nil {
			return err
		}
		if !Liquidatable(ratio, e.params.LiquidationHealthRatioLimitBps) {
			return common.Wrap(common.ErrHealthRatioLimit, "ratio %d bps, limit %d", RatioBps(ratio), e.params.LiquidationHealthRatioLimitBps)
		}
		offer, ok, err := st.GetLendOffer(loan.Lender, loan.LendOfferID)
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrLendOfferIsNotAvailable
		}
		nextOffer, err := offer.Status.Transition(LendEventSettle)
		if err != nil {
			return err
		}

		operator := capability.Operator()
		available, err := cust.Balance(operator, loan.LendMint)
		if err != nil {
			return err
		}
		if available.Cmp(total) < 0 {
			return common.Wrap(common.ErrNotEnoughAmount, "operator balance %s below %s", available, total)
		}
		lenderShare, fee := SplitRepayment(total, loan.LenderFeeBps)
		if err := cust.Withdraw(operator, loan.Lender, loan.LendMint, lenderShare, loan.LendDecimals); err != nil {
			return err
		}
		if err := cust.Withdraw(operator, e.params.FeeCollector, loan.LendMint, fee, loan.LendDecimals); err != nil {
			return err
		}
		if !loan.ForeignCollateral {
			if err := cust.Withdraw(e.params.CollateralVault, operator, loan.CollateralMint, loan.CollateralAmount, loan.CollateralDecimals); err != nil {
				return err
			}
		}

		loan.Status = next
		loan.ClosedAt = now
		loan.HealthRatioBps = RatioBps(ratio)
		offer.Status = nextOffer
		if err := st.PutLoanOffer(loan); err != nil {
			return err
		}
		if err := st.PutLendOffer(offer); err != nil {
			return err
		}
		seized := new(big.Int).Set(loan.CollateralAmount)
		buf.Add(events.LoanLiquidated{
			LoanID:           loan.ID,
			Borrower:         borrower,
			Lender:           loan.Lender,
			Operator:         operator,
			TotalRepay:       total,
			CollateralSeized: seized,
			HealthRatioBps:   loan.HealthRatioBps,
		})
		result = &LiquidationResult{
			TotalRepay:       total,
			LenderShare:      lenderShare,
			ProtocolFee:      fee,
			CollateralSeized: seized,
			HealthRatioBps:   loan.HealthRatioBps,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// HealthRatioBps recomputes the current health ratio of an active loan.
func (e *Engine) HealthRatioBps(borrower crypto.Address, loanID string) (uint64, error) {
	var (
		loan               *LoanOffer
		collFeed, lendFeed string
	)
	err := e.store.View(func(st State) error {
		found, ok, err := st.GetLoanOffer(borrower, normalizeID(loanID))
		if err != nil {
			return err
		}
		if !ok {
			return common.Wrap(common.ErrInvalidBorrower, "no loan %q for borrower", loanID)
		}
		if found.Status != LoanActive {
			return common.Wrap(common.ErrInvalidOfferStatus, "loan offer is %s", found.Status)
		}
		collFeed, lendFeed, err = registeredFeeds(st, found)
		loan = found
		return err
	})
	if err != nil {
		return 0, err
	}
	total := TotalRepay(loan.Principal, loan.InterestBps, elapsedSince(loan.StartedAt, e.now()), loan.Duration)
	ratio, err := e.snapshotPrices(collFeed, lendFeed).ratio(loan, total)
	if err != nil {
		return 0, err
	}
	return RatioBps(ratio), nil
}
