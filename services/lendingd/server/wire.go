package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"crosslend/crypto"
	"crosslend/native/lending"
	"crosslend/native/tier"
	"crosslend/services/lendingd/eventstore"
)

const maxBodyBytes = 1 << 20

// Amounts travel as base-10 strings so values above 2^53 survive JSON
// clients.

type tierJSON struct {
	ID           string `json:"id"`
	Amount       uint64 `json:"amount"`
	LendMint     string `json:"lend_mint"`
	LenderFeeBps uint64 `json:"lender_fee_bps"`
	DurationSecs uint64 `json:"duration_secs"`
	Receiver     string `json:"receiver"`
	Owner        string `json:"owner,omitempty"`
}

type lendOfferJSON struct {
	ID           string `json:"id"`
	Lender       string `json:"lender"`
	TierID       string `json:"tier_id"`
	LendMint     string `json:"lend_mint"`
	Decimals     uint8  `json:"decimals"`
	Amount       string `json:"amount"`
	InterestBps  uint64 `json:"interest_bps"`
	LenderFeeBps uint64 `json:"lender_fee_bps"`
	DurationSecs uint64 `json:"duration_secs"`
	Receiver     string `json:"receiver"`
	Status       string `json:"status"`
	CreatedAt    uint64 `json:"created_at"`
	Borrower     string `json:"borrower,omitempty"`
	LoanID       string `json:"loan_id,omitempty"`
}

type loanOfferJSON struct {
	ID                  string `json:"id"`
	Borrower            string `json:"borrower"`
	Lender              string `json:"lender"`
	LendOfferID         string `json:"lend_offer_id"`
	LendMint            string `json:"lend_mint"`
	Principal           string `json:"principal"`
	InterestBps         uint64 `json:"interest_bps"`
	LenderFeeBps        uint64 `json:"lender_fee_bps"`
	DurationSecs        uint64 `json:"duration_secs"`
	CollateralMint      string `json:"collateral_mint,omitempty"`
	CollateralDecimals  uint8  `json:"collateral_decimals"`
	CollateralAmount    string `json:"collateral_amount"`
	ForeignCollateral   bool   `json:"foreign_collateral"`
	SourceChain         uint16 `json:"source_chain,omitempty"`
	RemainingCollateral string `json:"remaining_collateral"`
	HealthRatioBps      uint64 `json:"health_ratio_bps"`
	Status              string `json:"status"`
	CreatedAt           uint64 `json:"created_at"`
	ExpiresAt           uint64 `json:"expires_at,omitempty"`
	StartedAt           uint64 `json:"started_at,omitempty"`
	ClosedAt            uint64 `json:"closed_at,omitempty"`
}

type eventJSON struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	LoanID     string            `json:"loan_id,omitempty"`
	OfferID    string            `json:"offer_id,omitempty"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  string            `json:"created_at"`
}

type createTierRequest struct {
	ID           string `json:"id"`
	Amount       uint64 `json:"amount"`
	LendMint     string `json:"lend_mint"`
	LenderFeeBps uint64 `json:"lender_fee_bps"`
	DurationSecs uint64 `json:"duration_secs"`
	Receiver     string `json:"receiver"`
}

type createLendOfferRequest struct {
	TierID      string `json:"tier_id"`
	OfferID     string `json:"offer_id"`
	InterestBps uint64 `json:"interest_bps"`
	Mint        string `json:"mint"`
}

type updateInterestRequest struct {
	InterestBps uint64 `json:"interest_bps"`
}

type executeCancelRequest struct {
	Lender          string `json:"lender"`
	WaitingInterest string `json:"waiting_interest"`
}

type matchRequest struct {
	LoanID         string `json:"loan_id"`
	Lender         string `json:"lender"`
	LendOfferID    string `json:"lend_offer_id"`
	CollateralMint string `json:"collateral_mint"`
	InterestBps    uint64 `json:"interest_bps"`
}

type depositRequest struct {
	Amount   string `json:"amount"`
	Decimals uint8  `json:"decimals"`
}

type foreignDepositRequest struct {
	Borrower  string `json:"borrower"`
	Amount    string `json:"amount"`
	Decimals  uint8  `json:"decimals"`
	ChainID   uint16 `json:"chain_id"`
	Emitter   string `json:"emitter"`
	Sequence  uint64 `json:"sequence"`
	Timestamp uint64 `json:"timestamp"`
	// Message is the hex encoded, length-prefixed payload frame.
	Message string `json:"message"`
}

type activateRequest struct {
	CollateralFeed string `json:"collateral_feed"`
	LendFeed       string `json:"lend_feed"`
}

type repayRequest struct {
	Amount string `json:"amount"`
}

type liquidateRequest struct {
	Borrower string `json:"borrower"`
	Lender   string `json:"lender"`
}

type priceRequest struct {
	Feed       string `json:"feed"`
	Rate       string `json:"rate"`
	Confidence string `json:"confidence,omitempty"`
}

type amountResponse struct {
	Amount string `json:"amount"`
}

type healthResponse struct {
	HealthRatioBps uint64 `json:"health_ratio_bps"`
}

type liquidationResponse struct {
	TotalRepay       string `json:"total_repay"`
	LenderShare      string `json:"lender_share"`
	ProtocolFee      string `json:"protocol_fee"`
	CollateralSeized string `json:"collateral_seized"`
	HealthRatioBps   uint64 `json:"health_ratio_bps"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body required")
		}
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func parseAmount(field, value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("%s required", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("%s must be a non-negative integer", field)
	}
	return amount, nil
}

func parseAddressField(field, value string) (crypto.Address, error) {
	addr, err := crypto.ParseAddress(strings.TrimSpace(value))
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%s: %w", field, err)
	}
	return addr, nil
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func addressString(a crypto.Address) string {
	if a.IsZero() {
		return ""
	}
	return a.String()
}

func tierToJSON(cfg *tier.Config) tierJSON {
	return tierJSON{
		ID:           cfg.ID,
		Amount:       cfg.Amount,
		LendMint:     cfg.LendMint.String(),
		LenderFeeBps: cfg.LenderFeeBps,
		DurationSecs: cfg.Duration,
		Receiver:     cfg.Receiver.String(),
		Owner:        addressString(cfg.Owner),
	}
}

func lendOfferToJSON(o *lending.LendOffer) lendOfferJSON {
	return lendOfferJSON{
		ID:           o.ID,
		Lender:       o.Lender.String(),
		TierID:       o.TierID,
		LendMint:     o.LendMint.String(),
		Decimals:     o.Decimals,
		Amount:       amountString(o.Amount),
		InterestBps:  o.InterestBps,
		LenderFeeBps: o.LenderFeeBps,
		DurationSecs: o.Duration,
		Receiver:     o.Receiver.String(),
		Status:       o.Status.String(),
		CreatedAt:    o.CreatedAt,
		Borrower:     addressString(o.Borrower),
		LoanID:       o.LoanID,
	}
}

func loanOfferToJSON(o *lending.LoanOffer) loanOfferJSON {
	return loanOfferJSON{
		ID:                  o.ID,
		Borrower:            o.Borrower.String(),
		Lender:              o.Lender.String(),
		LendOfferID:         o.LendOfferID,
		LendMint:            o.LendMint.String(),
		Principal:           amountString(o.Principal),
		InterestBps:         o.InterestBps,
		LenderFeeBps:        o.LenderFeeBps,
		DurationSecs:        o.Duration,
		CollateralMint:      addressString(o.CollateralMint),
		CollateralDecimals:  o.CollateralDecimals,
		CollateralAmount:    amountString(o.CollateralAmount),
		ForeignCollateral:   o.ForeignCollateral,
		SourceChain:         o.SourceChain,
		RemainingCollateral: amountString(o.RemainingCollateral),
		HealthRatioBps:      o.HealthRatioBps,
		Status:              o.Status.String(),
		CreatedAt:           o.CreatedAt,
		ExpiresAt:           o.ExpiresAt,
		StartedAt:           o.StartedAt,
		ClosedAt:            o.ClosedAt,
	}
}

func eventToJSON(rec eventstore.Record) (eventJSON, error) {
	evt, err := rec.Event()
	if err != nil {
		return eventJSON{}, err
	}
	return eventJSON{
		ID:         rec.ID.String(),
		Type:       rec.Type,
		LoanID:     rec.LoanID,
		OfferID:    rec.OfferID,
		Attributes: evt.Attributes,
		CreatedAt:  rec.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}
