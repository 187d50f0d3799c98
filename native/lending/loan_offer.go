package lending

import (
	"math/big"
	"time"

	"crosslend/core/events"
	"crosslend/crypto"
	"crosslend/native/attest"
	"crosslend/native/common"
	"crosslend/native/tier"
)

// MatchRequest describes a borrower's quote against a lend offer.
type MatchRequest struct {
	LoanID            string
	Lender            crypto.Address
	LendOfferID       string
	CollateralMint    crypto.Address
	QuotedInterestBps uint64
}

// MatchLendOffer opens a LoanOffer in AwaitingCollateral. The lend offer is
// only consumed on activation, so several borrowers may race for it.
func (e *Engine) MatchLendOffer(borrower crypto.Address, req MatchRequest) (*LoanOffer, error) {
	if borrower.IsZero() {
		return nil, common.ErrInvalidBorrower
	}
	loanID := normalizeID(req.LoanID)
	if err := validateID(loanID); err != nil {
		return nil, err
	}
	var created *LoanOffer
	err := e.execute("match_lend_offer", func(st State, _ AssetCustody, buf *events.Buffer) error {
		offer, ok, err := st.GetLendOffer(req.Lender, normalizeID(req.LendOfferID))
		if err != nil {
			return err
		}
		if !ok {
			return common.Wrap(common.ErrInvalidLender, "no offer %q for lender", req.LendOfferID)
		}
		if offer.Status != LendOfferCreated {
			return common.Wrap(common.ErrLendOfferIsNotAvailable, "lend offer is %s", offer.Status)
		}
		if offer.Lender == borrower {
			return common.Wrap(common.ErrInvalidBorrower, "lender cannot borrow own offer")
		}
		if req.QuotedInterestBps != offer.InterestBps {
			return common.Wrap(common.ErrLendInterestUpdated, "quoted %d bps, offer at %d", req.QuotedInterestBps, offer.InterestBps)
		}
		asset, ok, err := st.GetAsset(req.CollateralMint)
		if err != nil {
			return err
		}
		if !ok || req.CollateralMint == offer.LendMint {
			return common.Wrap(common.ErrInvalidCollateralMintAsset, "mint %s", req.CollateralMint)
		}
		if _, exists, err := st.GetLoanOffer(borrower, loanID); err != nil {
			return err
		} else if exists {
			return common.Wrap(common.ErrInvalidOfferId, "loan %q already exists", loanID)
		}
		now := e.now()
		expiresAt, ok := addSecs(now, offer.Duration)
		if !ok || offer.Duration > tier.MaxDuration {
			return common.Wrap(common.ErrInvalidTierId, "offer duration %d out of range", offer.Duration)
		}
		loan := &LoanOffer{
			ID:                  loanID,
			Borrower:            borrower,
			Lender:              offer.Lender,
			LendOfferID:         offer.ID,
			LendMint:            offer.LendMint,
			LendDecimals:        offer.Decimals,
			Principal:           new(big.Int).Set(offer.Amount),
			InterestBps:         req.QuotedInterestBps,
			LenderFeeBps:        offer.LenderFeeBps,
			Duration:            offer.Duration,
			CollateralMint:      req.CollateralMint,
			CollateralDecimals:  asset.Decimals,
			CollateralAmount:    big.NewInt(0),
			RemainingCollateral: big.NewInt(0),
			Status:              LoanAwaitingCollateral,
			CreatedAt:           now,
			ExpiresAt:           expiresAt,
		}
		if err := st.PutLoanOffer(loan); err != nil {
			return err
		}
		buf.Add(events.LoanMatched{
			LoanID:         loan.ID,
			Borrower:       borrower,
			Lender:         loan.Lender,
			OfferID:        loan.LendOfferID,
			CollateralMint: loan.CollateralMint,
			ExpiresAt:      loan.ExpiresAt,
		})
		created = loan.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// openLoan loads an unexpired AwaitingCollateral loan owned by borrower.
// statusErr is reported when the loan has left AwaitingCollateral.
func (e *Engine) openLoan(st State, borrower crypto.Address, loanID string, statusErr *common.Error) (*LoanOffer, error) {
	loan, ok, err := st.GetLoanOffer(borrower, normalizeID(loanID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.Wrap(common.ErrInvalidBorrower, "no loan %q for borrower", loanID)
	}
	if loan.Status != LoanAwaitingCollateral {
		return nil, common.Wrap(statusErr, "loan offer is %s", loan.Status)
	}
	if e.now() >= loan.ExpiresAt {
		return nil, common.ErrLoanOfferExpired
	}
	return loan, nil
}

// DepositCollateral moves local collateral from borrower into the vault.
func (e *Engine) DepositCollateral(borrower crypto.Address, loanID string, amount *big.Int, decimals uint8) (*LoanOffer, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, common.Wrap(common.ErrInvalidCollateralAmount, "amount must be positive")
	}
	var updated *LoanOffer
	err := e.execute("deposit_collateral", func(st State, cust AssetCustody, buf *events.Buffer) error {
		loan, err := e.openLoan(st, borrower, loanID, common.ErrCollateralNotAccepted)
		if err != nil {
			return err
		}
		if loan.ForeignCollateral {
			return common.Wrap(common.ErrCollateralNotAccepted, "loan is collateralised from chain %d", loan.SourceChain)
		}
		if decimals != loan.CollateralDecimals {
			return common.Wrap(common.ErrInvalidCollateralDecimal, "expected %d, got %d", loan.CollateralDecimals, decimals)
		}
		if err := cust.Deposit(borrower, e.params.CollateralVault, loan.CollateralMint, amount, decimals); err != nil {
			return err
		}
		loan.CollateralAmount = new(big.Int).Add(loan.CollateralAmount, amount)
		if err := st.PutLoanOffer(loan); err != nil {
			return err
		}
		buf.Add(events.CollateralDeposited{
			LoanID:   loan.ID,
			Borrower: borrower,
			Amount:   amount,
			Decimals: decimals,
			Total:    loan.CollateralAmount,
		})
		updated = loan.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DepositForeignCollateral credits collateral locked on another chain to
// borrower's loan. Only the operator relays attestations: the envelope must
// already have been authenticated by the cross-chain transport. The
// attestation is verified inside the same transaction, so a rejected deposit
// never consumes its sequence. amount and decimals must equal the attested
// values.
func (e *Engine) DepositForeignCollateral(capability OperatorCapability, borrower crypto.Address, loanID string, att attest.Attestation, amount *big.Int, decimals uint8) (*LoanOffer, error) {
	if err := e.authority.verify(capability); err != nil {
		return nil, err
	}
	if e.verifier == nil {
		return nil, errNilVerifier
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, common.Wrap(common.ErrInvalidCollateralAmount, "amount must be positive")
	}
	var updated *LoanOffer
	err := e.execute("deposit_foreign_collateral", func(st State, _ AssetCustody, buf *events.Buffer) error {
		loan, err := e.openLoan(st, borrower, loanID, common.ErrCollateralNotAccepted)
		if err != nil {
			return err
		}
		if loan.ForeignCollateral && loan.SourceChain != att.ChainID {
			return common.Wrap(common.ErrCollateralNotAccepted, "loan is collateralised from chain %d", loan.SourceChain)
		}
		if !loan.ForeignCollateral && loan.CollateralAmount.Sign() > 0 {
			return common.Wrap(common.ErrCollateralNotAccepted, "loan already holds local collateral")
		}
		parsed, err := e.verifier.VerifyAndParse(st, e.nowFn(), att)
		if err != nil {
			return err
		}
		if !amount.IsUint64() || amount.Uint64() != parsed.CollateralAmount {
			return common.Wrap(common.ErrInvalidCollateralAmount, "attested %d, got %s", parsed.CollateralAmount, amount)
		}
		if decimals != parsed.CollateralDecimals {
			return common.Wrap(common.ErrInvalidCollateralDecimal, "attested %d, got %d", parsed.CollateralDecimals, decimals)
		}
		if decimals != loan.CollateralDecimals {
			return common.Wrap(common.ErrInvalidCollateralDecimal, "collateral asset uses %d", loan.CollateralDecimals)
		}
		loan.ForeignCollateral = true
		loan.SourceChain = parsed.SourceChain
		loan.CollateralAmount = new(big.Int).Add(loan.CollateralAmount, amount)
		loan.RemainingCollateral = new(big.Int).SetUint64(parsed.RemainingCollateralAmount)
		if err := st.PutLoanOffer(loan); err != nil {
			return err
		}
		buf.Add(events.CollateralDeposited{
			LoanID:      loan.ID,
			Borrower:    borrower,
			Amount:      amount,
			Decimals:    decimals,
			Total:       loan.CollateralAmount,
			SourceChain: parsed.SourceChain,
			Sequence:    parsed.Sequence,
			Digest:      parsed.DigestHex(),
		})
		updated = loan.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Activate checks the health ratio against the minimum and, on success,
// releases the principal to the borrower.
func (e *Engine) Activate(borrower crypto.Address, loanID, collateralFeedID, lendFeedID string) (*LoanOffer, error) {
	prices := e.snapshotPrices(collateralFeedID, lendFeedID)
	var updated *LoanOffer
	err := e.execute("activate", func(st State, cust AssetCustody, buf *events.Buffer) error {
		loan, err := e.openLoan(st, borrower, loanID, common.ErrInvalidOfferStatus)
		if err != nil {
			return err
		}
		offer, ok, err := st.GetLendOffer(loan.Lender, loan.LendOfferID)
		if err != nil {
			return err
		}
		if !ok || offer.Status != LendOfferCreated {
			return common.ErrLendOfferIsNotAvailable
		}
		if offer.InterestBps != loan.InterestBps {
			return common.Wrap(common.ErrLendInterestUpdated, "quoted %d bps, offer at %d", loan.InterestBps, offer.InterestBps)
		}
		if err := checkFeedIDs(st, loan, collateralFeedID, lendFeedID); err != nil {
			return err
		}
		if loan.CollateralAmount.Sign() == 0 {
			return common.ErrNotEnoughCollateral
		}
		ratio, err := healthRatio(st, loan, loan.Principal, prices)
		if err != nil {
			return err
		}
		if err := CanActivate(ratio, e.params.MinHealthRatioToBorrowBps); err != nil {
			return err
		}
		nextLoan, err := loan.Status.Transition(LoanEventActivate)
		if err != nil {
			return err
		}
		nextOffer, err := offer.Status.Transition(LendEventMatch)
		if err != nil {
			return err
		}
		if err := cust.Withdraw(offer.Receiver, borrower, offer.LendMint, loan.Principal, offer.Decimals); err != nil {
			return err
		}
		now := e.now()
		offer.Status = nextOffer
		offer.Borrower = borrower
		offer.LoanID = loan.ID
		loan.Status = nextLoan
		loan.StartedAt = now
		loan.HealthRatioBps = RatioBps(ratio)
		if err := st.PutLendOffer(offer); err != nil {
			return err
		}
		if err := st.PutLoanOffer(loan); err != nil {
			return err
		}
		buf.Add(events.LoanActivated{
			LoanID:         loan.ID,
			Borrower:       borrower,
			Lender:         loan.Lender,
			OfferID:        offer.ID,
			Principal:      loan.Principal,
			HealthRatioBps: loan.HealthRatioBps,
			StartedAt:      now,
		})
		updated = loan.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func checkFeedIDs(st State, loan *LoanOffer, collateralFeedID, lendFeedID string) error {
	collFeed, lendFeed, err := registeredFeeds(st, loan)
	if err != nil {
		return err
	}
	if collFeed != normalizeID(collateralFeedID) {
		return common.Wrap(common.ErrInvalidPriceFeedForCollateral, "feed %q", collateralFeedID)
	}
	if lendFeed != normalizeID(lendFeedID) {
		return common.Wrap(common.ErrInvalidPriceFeedForLend, "feed %q", lendFeedID)
	}
	return nil
}

// RepayQuote returns the amount Repay would charge right now.
func (e *Engine) RepayQuote(borrower crypto.Address, loanID string) (*big.Int, error) {
	loan, err := e.LoanOffer(borrower, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != LoanActive {
		return nil, common.Wrap(common.ErrInvalidOfferStatus, "loan offer is %s", loan.Status)
	}
	return TotalRepay(loan.Principal, loan.InterestBps, elapsedSince(loan.StartedAt, e.now()), loan.Duration), nil
}

// Repay settles an active loan. amount must cover principal plus accrued
// interest; exactly that total is charged.
func (e *Engine) Repay(borrower crypto.Address, loanID string, amount *big.Int) (*big.Int, error) {
	var charged *big.Int
	err := e.execute("repay", func(st State, cust AssetCustody, buf *events.Buffer) error {
		loan, ok, err := st.GetLoanOffer(borrower, normalizeID(loanID))
		if err != nil {
			return err
		}
		if !ok {
			return common.Wrap(common.ErrInvalidBorrower, "no loan %q for borrower", loanID)
		}
		next, err := loan.Status.Transition(LoanEventRepay)
		if err != nil {
			return err
		}
		now := e.now()
		deadline := e.repayDeadline(loan)
		if now < loan.StartedAt || now > deadline {
			return common.Wrap(common.ErrTimeUnmet, "repay window ends at %d", deadline)
		}
		total := TotalRepay(loan.Principal, loan.InterestBps, elapsedSince(loan.StartedAt, now), loan.Duration)
		if amount == nil || amount.Cmp(total) < 0 {
			return common.Wrap(common.ErrNotEnoughAmount, "total repay is %s", total)
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
		lenderShare, fee := SplitRepayment(total, loan.LenderFeeBps)
		if err := cust.Deposit(borrower, loan.Lender, loan.LendMint, lenderShare, loan.LendDecimals); err != nil {
			return err
		}
		if err := cust.Deposit(borrower, e.params.FeeCollector, loan.LendMint, fee, loan.LendDecimals); err != nil {
			return err
		}
		if !loan.ForeignCollateral {
			if err := cust.Withdraw(e.params.CollateralVault, borrower, loan.CollateralMint, loan.CollateralAmount, loan.CollateralDecimals); err != nil {
				return err
			}
		}
		loan.Status = next
		loan.ClosedAt = now
		offer.Status = nextOffer
		if err := st.PutLoanOffer(loan); err != nil {
			return err
		}
		if err := st.PutLendOffer(offer); err != nil {
			return err
		}
		buf.Add(events.LoanRepaid{
			LoanID:      loan.ID,
			Borrower:    borrower,
			Lender:      loan.Lender,
			TotalRepay:  total,
			LenderShare: lenderShare,
			ProtocolFee: fee,
		})
		charged = total
		return nil
	})
	if err != nil {
		return nil, err
	}
	return charged, nil
}

// repayDeadline is the last second Repay accepts for loan. It saturates
// instead of wrapping.
func (e *Engine) repayDeadline(loan *LoanOffer) uint64 {
	var grace uint64
	if e.params.RepayGracePeriod > 0 {
		grace = uint64(e.params.RepayGracePeriod / time.Second)
	}
	deadline, _ := addSecs(loan.StartedAt, loan.Duration, grace)
	return deadline
}

// ExpireWithdraw closes a loan that never activated once its deadline has
// passed, returning any local collateral to the borrower. Either party may
// call it.
func (e *Engine) ExpireWithdraw(caller, borrower crypto.Address, loanID string) (*big.Int, error) {
	var returned *big.Int
	err := e.execute("expire_withdraw", func(st State, cust AssetCustody, buf *events.Buffer) error {
		loan, ok, err := st.GetLoanOffer(borrower, normalizeID(loanID))
		if err != nil {
			return err
		}
		if !ok {
			return common.Wrap(common.ErrInvalidBorrower, "no loan %q for borrower", loanID)
		}
		if caller != loan.Borrower && caller != loan.Lender {
			return common.ErrInvalidSigner
		}
		if loan.Status != LoanAwaitingCollateral {
			return common.Wrap(common.ErrNotAvailableToWithdraw, "loan offer is %s", loan.Status)
		}
		now := e.now()
		if now < loan.ExpiresAt {
			return common.Wrap(common.ErrLoanOfferNotExpired, "expires at %d", loan.ExpiresAt)
		}
		next, err := loan.Status.Transition(LoanEventExpire)
		if err != nil {
			return err
		}
		refund := big.NewInt(0)
		if !loan.ForeignCollateral && loan.CollateralAmount.Sign() > 0 {
			refund = new(big.Int).Set(loan.CollateralAmount)
			if err := cust.Withdraw(e.params.CollateralVault, loan.Borrower, loan.CollateralMint, refund, loan.CollateralDecimals); err != nil {
				return err
			}
		}
		loan.Status = next
		loan.ClosedAt = now
		if err := st.PutLoanOffer(loan); err != nil {
			return err
		}
		buf.Add(events.LoanExpired{LoanID: loan.ID, Borrower: loan.Borrower, Returned: refund})
		returned = refund
		return nil
	})
	if err != nil {
		return nil, err
	}
	return returned, nil
}
