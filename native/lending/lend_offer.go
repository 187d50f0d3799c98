package lending

import (
	"math/big"

	"crosslend/core/events"
	"crosslend/crypto"
	"crosslend/native/common"
	"crosslend/native/tier"
)

func (e *Engine) checkInterest(interestBps uint64) error {
	if interestBps == 0 {
		return common.ErrInterestGreaterThanZero
	}
	if interestBps >= e.params.MaxAllowedInterestBps {
		return common.Wrap(common.ErrInterestOverLimit, "%d bps, limit %d", interestBps, e.params.MaxAllowedInterestBps)
	}
	return nil
}

// CreateLendOffer escrows tier.amount * 10^decimals of mint from lender into
// the tier's custody receiver and records the offer as Created.
func (e *Engine) CreateLendOffer(lender crypto.Address, tierID, offerID string, interestBps uint64, mint crypto.Address) (*LendOffer, error) {
	if lender.IsZero() {
		return nil, common.ErrInvalidLender
	}
	if err := e.checkInterest(interestBps); err != nil {
		return nil, err
	}
	offerID = normalizeID(offerID)
	if err := validateID(offerID); err != nil {
		return nil, err
	}
	var created *LendOffer
	err := e.execute("create_lend_offer", func(st State, cust AssetCustody, buf *events.Buffer) error {
		cfg, ok, err := st.GetTier(normalizeID(tierID))
		if err != nil {
			return err
		}
		if !ok {
			return common.Wrap(common.ErrInvalidTierId, "tier %q not found", tierID)
		}
		if cfg.Duration == 0 || cfg.Duration > tier.MaxDuration {
			return common.Wrap(common.ErrInvalidTierId, "tier %s duration %d out of range", cfg.ID, cfg.Duration)
		}
		if mint != cfg.LendMint {
			return common.Wrap(common.ErrInvalidMintAsset, "tier %s lends %s", cfg.ID, cfg.LendMint)
		}
		asset, ok, err := st.GetAsset(mint)
		if err != nil {
			return err
		}
		if !ok {
			return common.Wrap(common.ErrInvalidMintAsset, "mint %s not registered", mint)
		}
		if _, exists, err := st.GetLendOffer(lender, offerID); err != nil {
			return err
		} else if exists {
			return common.Wrap(common.ErrInvalidOfferId, "offer %q already exists", offerID)
		}
		amount, err := ScaleAmount(cfg.Amount, asset.Decimals)
		if err != nil {
			return err
		}
		balance, err := cust.Balance(lender, mint)
		if err != nil {
			return err
		}
		if balance.Cmp(amount) < 0 {
			return common.Wrap(common.ErrNotEnoughAmount, "balance %s below escrow %s", balance, amount)
		}
		if err := cust.Deposit(lender, cfg.Receiver, mint, amount, asset.Decimals); err != nil {
			return err
		}
		offer := &LendOffer{
			ID:           offerID,
			Lender:       lender,
			TierID:       cfg.ID,
			LendMint:     mint,
			Decimals:     asset.Decimals,
			Amount:       amount,
			InterestBps:  interestBps,
			LenderFeeBps: cfg.LenderFeeBps,
			Duration:     cfg.Duration,
			Receiver:     cfg.Receiver,
			Status:       LendOfferCreated,
			CreatedAt:    e.now(),
		}
		if err := st.PutLendOffer(offer); err != nil {
			return err
		}
		buf.Add(events.OfferCreated{
			OfferID:      offer.ID,
			TierID:       offer.TierID,
			Lender:       lender,
			Mint:         mint,
			Amount:       amount,
			InterestBps:  interestBps,
			LenderFeeBps: offer.LenderFeeBps,
			Duration:     offer.Duration,
		})
		created = offer.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateLendOfferInterest lets the lender reprice an offer that has not been
// matched. Borrowers holding a quote at the old rate fail activation with
// CanNotCreateLoanCauseLendInterestUpdated.
func (e *Engine) UpdateLendOfferInterest(lender crypto.Address, offerID string, interestBps uint64) error {
	if err := e.checkInterest(interestBps); err != nil {
		return err
	}
	return e.execute("update_lend_offer_interest", func(st State, _ AssetCustody, _ *events.Buffer) error {
		offer, err := lenderOffer(st, lender, offerID)
		if err != nil {
			return err
		}
		if offer.Status != LendOfferCreated {
			return common.Wrap(common.ErrInvalidOfferStatus, "lend offer is %s", offer.Status)
		}
		offer.InterestBps = interestBps
		return st.PutLendOffer(offer)
	})
}

// RequestCancel records the lender's intent to cancel. Funds move only when
// the operator executes the cancellation.
func (e *Engine) RequestCancel(lender crypto.Address, offerID string) error {
	return e.execute("request_cancel", func(st State, _ AssetCustody, buf *events.Buffer) error {
		offer, err := lenderOffer(st, lender, offerID)
		if err != nil {
			return err
		}
		next, err := offer.Status.Transition(LendEventRequestCancel)
		if err != nil {
			return err
		}
		offer.Status = next
		if err := st.PutLendOffer(offer); err != nil {
			return err
		}
		buf.Add(events.OfferCancelRequested{OfferID: offer.ID, Lender: lender})
		return nil
	})
}

// ExecuteCancel settles a Canceling offer: the operator pays the escrowed
// amount plus waitingInterest to the lender.
func (e *Engine) ExecuteCancel(capability OperatorCapability, lender crypto.Address, offerID string, waitingInterest *big.Int) (*big.Int, error) {
	if err := e.authority.verify(capability); err != nil {
		return nil, err
	}
	if waitingInterest == nil {
		waitingInterest = big.NewInt(0)
	}
	if waitingInterest.Sign() < 0 {
		return nil, common.Wrap(common.ErrNotEnoughAmount, "waiting interest must not be negative")
	}
	var total *big.Int
	err := e.execute("execute_cancel", func(st State, cust AssetCustody, buf *events.Buffer) error {
		offer, ok, err := st.GetLendOffer(lender, normalizeID(offerID))
		if err != nil {
			return err
		}
		if !ok {
			return common.Wrap(common.ErrInvalidLender, "no offer %q for lender", offerID)
		}
		next, err := offer.Status.Transition(LendEventExecuteCancel)
		if err != nil {
			return err
		}
		totalRepay := new(big.Int).Add(offer.Amount, waitingInterest)
		source := capability.Operator()
		available, err := cust.Balance(source, offer.LendMint)
		if err != nil {
			return err
		}
		if available.Cmp(totalRepay) < 0 {
			return common.Wrap(common.ErrNotEnoughAmount, "operator balance %s below %s", available, totalRepay)
		}
		if err := cust.Withdraw(source, offer.Lender, offer.LendMint, totalRepay, offer.Decimals); err != nil {
			return err
		}
		offer.Status = next
		if err := st.PutLendOffer(offer); err != nil {
			return err
		}
		buf.Add(events.OfferCanceled{
			OfferID:      offer.ID,
			Lender:       offer.Lender,
			Amount:       totalRepay,
			InterestBps:  offer.InterestBps,
			LenderFeeBps: offer.LenderFeeBps,
			Duration:     offer.Duration,
		})
		total = totalRepay
		return nil
	})
	if err != nil {
		return nil, err
	}
	return total, nil
}

// CloseLendOffer deletes a Canceled or Settled offer record.
func (e *Engine) CloseLendOffer(lender crypto.Address, offerID string) error {
	return e.execute("close_lend_offer", func(st State, _ AssetCustody, buf *events.Buffer) error {
		offer, err := lenderOffer(st, lender, offerID)
		if err != nil {
			return err
		}
		if !offer.Status.Terminal() {
			return common.Wrap(common.ErrInvalidOfferStatus, "lend offer is %s", offer.Status)
		}
		if err := st.DeleteLendOffer(lender, offer.ID); err != nil {
			return err
		}
		buf.Add(events.LendOfferClosed{OfferID: offer.ID, Lender: lender})
		return nil
	})
}

// lenderOffer loads an offer owned by lender; any other caller sees
// InvalidLender.
func lenderOffer(st State, lender crypto.Address, offerID string) (*LendOffer, error) {
	offer, ok, err := st.GetLendOffer(lender, normalizeID(offerID))
	if err != nil {
		return nil, err
	}
	if !ok || offer.Lender != lender {
		return nil, common.Wrap(common.ErrInvalidLender, "no offer %q for lender", offerID)
	}
	return offer, nil
}
