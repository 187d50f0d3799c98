package lending

import (
	"math/big"

	"crosslend/crypto"
	"crosslend/native/common"
)

// LendOfferStatus is the lifecycle of a lender's escrowed principal.
//
//	Created -> Canceling -> Canceled
//	Created -> Matched -> Settled
type LendOfferStatus uint8

const (
	LendOfferCreated LendOfferStatus = iota + 1
	LendOfferCanceling
	LendOfferCanceled
	LendOfferMatched
	LendOfferSettled
)

// LendOfferEvent drives LendOfferStatus transitions.
type LendOfferEvent uint8

const (
	LendEventRequestCancel LendOfferEvent = iota + 1
	LendEventExecuteCancel
	LendEventMatch
	LendEventSettle
)

// Valid reports whether the status value is within the supported range.
func (s LendOfferStatus) Valid() bool {
	switch s {
	case LendOfferCreated, LendOfferCanceling, LendOfferCanceled, LendOfferMatched, LendOfferSettled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is possible.
func (s LendOfferStatus) Terminal() bool {
	return s == LendOfferCanceled || s == LendOfferSettled
}

func (s LendOfferStatus) String() string {
	switch s {
	case LendOfferCreated:
		return "created"
	case LendOfferCanceling:
		return "canceling"
	case LendOfferCanceled:
		return "canceled"
	case LendOfferMatched:
		return "matched"
	case LendOfferSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// Transition returns the status reached by applying ev, or
// ErrInvalidOfferStatus when the edge does not exist.
func (s LendOfferStatus) Transition(ev LendOfferEvent) (LendOfferStatus, error) {
	switch {
	case s == LendOfferCreated && ev == LendEventRequestCancel:
		return LendOfferCanceling, nil
	case s == LendOfferCanceling && ev == LendEventExecuteCancel:
		return LendOfferCanceled, nil
	case s == LendOfferCreated && ev == LendEventMatch:
		return LendOfferMatched, nil
	case s == LendOfferMatched && ev == LendEventSettle:
		return LendOfferSettled, nil
	}
	return s, common.Wrap(common.ErrInvalidOfferStatus, "lend offer is %s", s)
}

// LoanOfferStatus is the lifecycle of a borrower's collateralised position.
//
//	AwaitingCollateral -> Active -> Repaid | Liquidated
//	AwaitingCollateral -> Expired
type LoanOfferStatus uint8

const (
	LoanAwaitingCollateral LoanOfferStatus = iota + 1
	LoanActive
	LoanRepaid
	LoanLiquidated
	LoanExpired
)

type LoanOfferEvent uint8

const (
	LoanEventActivate LoanOfferEvent = iota + 1
	LoanEventRepay
	LoanEventLiquidate
	LoanEventExpire
)

func (s LoanOfferStatus) Valid() bool {
	switch s {
	case LoanAwaitingCollateral, LoanActive, LoanRepaid, LoanLiquidated, LoanExpired:
		return true
	default:
		return false
	}
}

func (s LoanOfferStatus) Terminal() bool {
	return s == LoanRepaid || s == LoanLiquidated || s == LoanExpired
}

func (s LoanOfferStatus) String() string {
	switch s {
	case LoanAwaitingCollateral:
		return "awaiting_collateral"
	case LoanActive:
		return "active"
	case LoanRepaid:
		return "repaid"
	case LoanLiquidated:
		return "liquidated"
	case LoanExpired:
		return "expired"
	default:
		return "unknown"
	}
}

func (s LoanOfferStatus) Transition(ev LoanOfferEvent) (LoanOfferStatus, error) {
	switch {
	case s == LoanAwaitingCollateral && ev == LoanEventActivate:
		return LoanActive, nil
	case s == LoanAwaitingCollateral && ev == LoanEventExpire:
		return LoanExpired, nil
	case s == LoanActive && ev == LoanEventRepay:
		return LoanRepaid, nil
	case s == LoanActive && ev == LoanEventLiquidate:
		return LoanLiquidated, nil
	}
	return s, common.Wrap(common.ErrInvalidOfferStatus, "loan offer is %s", s)
}

// LendOffer is a lender's escrowed principal. Tier terms are copied at
// creation so later tier changes cannot alter the offer.
type LendOffer struct {
	ID           string
	Lender       crypto.Address
	TierID       string
	LendMint     crypto.Address
	Decimals     uint8
	Amount       *big.Int
	InterestBps  uint64
	LenderFeeBps uint64
	Duration     uint64
	Receiver     crypto.Address
	Status       LendOfferStatus
	CreatedAt    uint64
	Borrower     crypto.Address
	LoanID       string
}

// Clone returns a deep copy of the offer.
func (o *LendOffer) Clone() *LendOffer {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Amount = cloneInt(o.Amount)
	return &clone
}

// LoanOffer is a borrower's position against a lend offer.
type LoanOffer struct {
	ID                  string
	Borrower            crypto.Address
	Lender              crypto.Address
	LendOfferID         string
	LendMint            crypto.Address
	LendDecimals        uint8
	Principal           *big.Int
	InterestBps         uint64
	LenderFeeBps        uint64
	Duration            uint64
	CollateralMint      crypto.Address
	CollateralDecimals  uint8
	CollateralAmount    *big.Int
	ForeignCollateral   bool
	SourceChain         uint16
	RemainingCollateral *big.Int
	HealthRatioBps      uint64
	Status              LoanOfferStatus
	CreatedAt           uint64
	ExpiresAt           uint64
	StartedAt           uint64
	ClosedAt            uint64
}

func (o *LoanOffer) Clone() *LoanOffer {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Principal = cloneInt(o.Principal)
	clone.CollateralAmount = cloneInt(o.CollateralAmount)
	clone.RemainingCollateral = cloneInt(o.RemainingCollateral)
	return &clone
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
