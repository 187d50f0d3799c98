package events

import (
	"math/big"
	"strconv"
	"strings"

	"crosslend/core/types"
	"crosslend/crypto"
)

const (
	TypeTierCreated          = "tier.created"
	TypeSettingAccountClosed = "tier.closed"
	TypeOfferCreated         = "lend_offer.created"
	TypeOfferCancelRequested = "lend_offer.cancel_requested"
	TypeOfferCanceled        = "lend_offer.canceled"
	TypeLendOfferClosed      = "lend_offer.closed"
	TypeLoanMatched          = "loan_offer.matched"
	TypeCollateralDeposited  = "loan_offer.collateral_deposited"
	TypeLoanActivated        = "loan_offer.activated"
	TypeLoanRepaid           = "loan_offer.repaid"
	TypeLoanExpired          = "loan_offer.expired"
	TypeLoanLiquidated       = "loan_offer.liquidated"
)

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

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

// TierCreated is emitted when the tier authority registers a configuration.
type TierCreated struct {
	TierID       string
	Owner        crypto.Address
	Mint         crypto.Address
	Amount       uint64
	LenderFeeBps uint64
	Duration     uint64
}

func (TierCreated) EventType() string { return TypeTierCreated }

func (e TierCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeTierCreated,
		Attributes: map[string]string{
			"tierId":       strings.TrimSpace(e.TierID),
			"owner":        addressString(e.Owner),
			"mint":         addressString(e.Mint),
			"amount":       u64(e.Amount),
			"lenderFeeBps": u64(e.LenderFeeBps),
			"duration":     u64(e.Duration),
		},
	}
}

// SettingAccountClosed is emitted when a tier configuration is closed.
type SettingAccountClosed struct {
	TierID string
}

func (SettingAccountClosed) EventType() string { return TypeSettingAccountClosed }

func (e SettingAccountClosed) Event() *types.Event {
	return &types.Event{
		Type:       TypeSettingAccountClosed,
		Attributes: map[string]string{"tierId": strings.TrimSpace(e.TierID)},
	}
}

// OfferCreated records an escrowed lend offer.
type OfferCreated struct {
	OfferID      string
	TierID       string
	Lender       crypto.Address
	Mint         crypto.Address
	Amount       *big.Int
	InterestBps  uint64
	LenderFeeBps uint64
	Duration     uint64
}

func (OfferCreated) EventType() string { return TypeOfferCreated }

func (e OfferCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeOfferCreated,
		Attributes: map[string]string{
			"offerId":      e.OfferID,
			"tierId":       e.TierID,
			"lender":       addressString(e.Lender),
			"mint":         addressString(e.Mint),
			"amount":       amountString(e.Amount),
			"interestBps":  u64(e.InterestBps),
			"lenderFeeBps": u64(e.LenderFeeBps),
			"duration":     u64(e.Duration),
		},
	}
}

// OfferCancelRequested records the lender's cancellation intent.
type OfferCancelRequested struct {
	OfferID string
	Lender  crypto.Address
}

func (OfferCancelRequested) EventType() string { return TypeOfferCancelRequested }

func (e OfferCancelRequested) Event() *types.Event {
	return &types.Event{
		Type: TypeOfferCancelRequested,
		Attributes: map[string]string{
			"offerId": e.OfferID,
			"lender":  addressString(e.Lender),
		},
	}
}

// OfferCanceled records the operator-settled cancellation. Amount is the total
// returned to the lender, escrow plus waiting interest.
type OfferCanceled struct {
	OfferID      string
	Lender       crypto.Address
	Amount       *big.Int
	InterestBps  uint64
	LenderFeeBps uint64
	Duration     uint64
}

func (OfferCanceled) EventType() string { return TypeOfferCanceled }

func (e OfferCanceled) Event() *types.Event {
	return &types.Event{
		Type: TypeOfferCanceled,
		Attributes: map[string]string{
			"offerId":      e.OfferID,
			"lender":       addressString(e.Lender),
			"amount":       amountString(e.Amount),
			"interestBps":  u64(e.InterestBps),
			"lenderFeeBps": u64(e.LenderFeeBps),
			"duration":     u64(e.Duration),
		},
	}
}

// LendOfferClosed records the removal of a terminal lend offer record.
type LendOfferClosed struct {
	OfferID string
	Lender  crypto.Address
}

func (LendOfferClosed) EventType() string { return TypeLendOfferClosed }

func (e LendOfferClosed) Event() *types.Event {
	return &types.Event{
		Type: TypeLendOfferClosed,
		Attributes: map[string]string{
			"offerId": e.OfferID,
			"lender":  addressString(e.Lender),
		},
	}
}

type LoanMatched struct {
	LoanID         string
	Borrower       crypto.Address
	Lender         crypto.Address
	OfferID        string
	CollateralMint crypto.Address
	ExpiresAt      uint64
}

func (LoanMatched) EventType() string { return TypeLoanMatched }

func (e LoanMatched) Event() *types.Event {
	return &types.Event{
		Type: TypeLoanMatched,
		Attributes: map[string]string{
			"loanId":         e.LoanID,
			"borrower":       addressString(e.Borrower),
			"lender":         addressString(e.Lender),
			"offerId":        e.OfferID,
			"collateralMint": addressString(e.CollateralMint),
			"expiresAt":      u64(e.ExpiresAt),
		},
	}
}

// CollateralDeposited covers both local and attested foreign deposits.
// SourceChain is zero for local deposits.
type CollateralDeposited struct {
	LoanID      string
	Borrower    crypto.Address
	Amount      *big.Int
	Decimals    uint8
	Total       *big.Int
	SourceChain uint16
	Sequence    uint64
	Digest      string
}

func (CollateralDeposited) EventType() string { return TypeCollateralDeposited }

func (e CollateralDeposited) Event() *types.Event {
	attrs := map[string]string{
		"loanId":   e.LoanID,
		"borrower": addressString(e.Borrower),
		"amount":   amountString(e.Amount),
		"decimals": strconv.Itoa(int(e.Decimals)),
		"total":    amountString(e.Total),
	}
	if e.SourceChain != 0 {
		attrs["sourceChain"] = strconv.Itoa(int(e.SourceChain))
		attrs["sequence"] = u64(e.Sequence)
		attrs["payloadDigest"] = e.Digest
	}
	return &types.Event{Type: TypeCollateralDeposited, Attributes: attrs}
}

type LoanActivated struct {
	LoanID         string
	Borrower       crypto.Address
	Lender         crypto.Address
	OfferID        string
	Principal      *big.Int
	HealthRatioBps uint64
	StartedAt      uint64
}

func (LoanActivated) EventType() string { return TypeLoanActivated }

func (e LoanActivated) Event() *types.Event {
	return &types.Event{
		Type: TypeLoanActivated,
		Attributes: map[string]string{
			"loanId":         e.LoanID,
			"borrower":       addressString(e.Borrower),
			"lender":         addressString(e.Lender),
			"offerId":        e.OfferID,
			"principal":      amountString(e.Principal),
			"healthRatioBps": u64(e.HealthRatioBps),
			"startedAt":      u64(e.StartedAt),
		},
	}
}

type LoanRepaid struct {
	LoanID      string
	Borrower    crypto.Address
	Lender      crypto.Address
	TotalRepay  *big.Int
	LenderShare *big.Int
	ProtocolFee *big.Int
}

func (LoanRepaid) EventType() string { return TypeLoanRepaid }

func (e LoanRepaid) Event() *types.Event {
	return &types.Event{
		Type: TypeLoanRepaid,
		Attributes: map[string]string{
			"loanId":      e.LoanID,
			"borrower":    addressString(e.Borrower),
			"lender":      addressString(e.Lender),
			"totalRepay":  amountString(e.TotalRepay),
			"lenderShare": amountString(e.LenderShare),
			"protocolFee": amountString(e.ProtocolFee),
		},
	}
}

type LoanExpired struct {
	LoanID   string
	Borrower crypto.Address
	Returned *big.Int
}

func (LoanExpired) EventType() string { return TypeLoanExpired }

func (e LoanExpired) Event() *types.Event {
	return &types.Event{
		Type: TypeLoanExpired,
		Attributes: map[string]string{
			"loanId":   e.LoanID,
			"borrower": addressString(e.Borrower),
			"returned": amountString(e.Returned),
		},
	}
}

type LoanLiquidated struct {
	LoanID           string
	Borrower         crypto.Address
	Lender           crypto.Address
	Operator         crypto.Address
	TotalRepay       *big.Int
	CollateralSeized *big.Int
	HealthRatioBps   uint64
}

func (LoanLiquidated) EventType() string { return TypeLoanLiquidated }

func (e LoanLiquidated) Event() *types.Event {
	return &types.Event{
		Type: TypeLoanLiquidated,
		Attributes: map[string]string{
			"loanId":           e.LoanID,
			"borrower":         addressString(e.Borrower),
			"lender":           addressString(e.Lender),
			"operator":         addressString(e.Operator),
			"totalRepay":       amountString(e.TotalRepay),
			"collateralSeized": amountString(e.CollateralSeized),
			"healthRatioBps":   u64(e.HealthRatioBps),
		},
	}
}
