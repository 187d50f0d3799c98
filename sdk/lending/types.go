package lending

import (
	"fmt"
	"math/big"
	"strings"
)

// Amounts are base-10 strings in base units of the asset.

type LendOffer struct {
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

type LoanOffer struct {
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

type Liquidation struct {
	TotalRepay       string `json:"total_repay"`
	LenderShare      string `json:"lender_share"`
	ProtocolFee      string `json:"protocol_fee"`
	CollateralSeized string `json:"collateral_seized"`
	HealthRatioBps   uint64 `json:"health_ratio_bps"`
}

type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	LoanID     string            `json:"loan_id,omitempty"`
	OfferID    string            `json:"offer_id,omitempty"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  string            `json:"created_at"`
}

// MatchParams quotes a borrower against a lend offer.
type MatchParams struct {
	LoanID         string `json:"loan_id"`
	Lender         string `json:"lender"`
	LendOfferID    string `json:"lend_offer_id"`
	CollateralMint string `json:"collateral_mint"`
	InterestBps    uint64 `json:"interest_bps"`
}

// ForeignDeposit carries an attested collateral message. Message is the hex
// encoded length-prefixed payload.
// ForeignDeposit is a relayed attestation. Only the operator token may
// submit it.
type ForeignDeposit struct {
	Borrower  string `json:"borrower"`
	Amount    string `json:"amount"`
	Decimals  uint8  `json:"decimals"`
	ChainID   uint16 `json:"chain_id"`
	Emitter   string `json:"emitter"`
	Sequence  uint64 `json:"sequence"`
	Timestamp uint64 `json:"timestamp"`
	Message   string `json:"message"`
}

type EventFilter struct {
	Type    string
	LoanID  string
	OfferID string
	Limit   int
}

type amountBody struct {
	Amount string `json:"amount"`
}

// ensurePositiveAmount normalises a base-10 amount and rejects zero or
// negative values before they reach the wire.
func ensurePositiveAmount(label, amount string) (string, error) {
	trimmed := strings.TrimSpace(amount)
	if trimmed == "" {
		return "", fmt.Errorf("%s amount required", label)
	}
	parsed, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || parsed.Sign() <= 0 {
		return "", fmt.Errorf("%s amount must be a positive integer", label)
	}
	return parsed.String(), nil
}
