package common

import (
	"errors"
	"fmt"
)

// Category groups failures by the kind of check that rejected a transition.
type Category string

const (
	CategoryValidation    Category = "validation"
	CategoryState         Category = "state"
	CategoryFinancial     Category = "financial"
	CategoryRisk          Category = "risk"
	CategoryCrossChain    Category = "cross_chain"
	CategoryAuthorization Category = "authorization"
	CategoryInternal      Category = "internal"
)

// Error is a ledger failure carrying a stable discriminant. Sentinels are
// compared with errors.Is; callers may wrap them with additional context.
type Error struct {
	Code     string
	Category Category
	Message  string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func newError(category Category, code, message string) *Error {
	return &Error{Code: code, Category: category, Message: message}
}

// Wrap annotates a sentinel with call-site detail while keeping errors.Is and
// CodeOf working.
func Wrap(sentinel *Error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// CodeOf returns the stable code carried by err, or "Internal" when err does
// not originate from the ledger taxonomy.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var target *Error
	if errors.As(err, &target) {
		return target.Code
	}
	return "Internal"
}

// CategoryOf mirrors CodeOf for the error category.
func CategoryOf(err error) Category {
	var target *Error
	if errors.As(err, &target) {
		return target.Category
	}
	return CategoryInternal
}

var (
	ErrModulePaused = newError(CategoryState, "ModulePaused", "module paused")

	// Validation.
	ErrInvalidTierId              = newError(CategoryValidation, "InvalidTierId", "tier: unknown or duplicate tier id")
	ErrInvalidOwner               = newError(CategoryValidation, "InvalidOwner", "tier: caller is not the tier owner")
	ErrInvalidLendAmount          = newError(CategoryValidation, "InvalidLendAmount", "lend offer: escrow amount invalid or overflows")
	ErrInvalidMintAsset           = newError(CategoryValidation, "InvalidMintAsset", "lend offer: mint does not match tier asset")
	ErrInvalidCollateralMintAsset = newError(CategoryValidation, "InvalidCollateralMintAsset", "loan offer: collateral mint not registered")
	ErrInvalidOfferId             = newError(CategoryValidation, "InvalidOfferId", "offer: invalid or duplicate offer id")
	ErrInvalidLender              = newError(CategoryValidation, "InvalidLender", "offer: lender does not match")
	ErrInvalidBorrower            = newError(CategoryValidation, "InvalidBorrower", "loan offer: borrower does not match")
	ErrInvalidReceiver            = newError(CategoryValidation, "InvalidReceiver", "offer: receiver does not match tier")
	ErrInvalidCollateralAmount    = newError(CategoryValidation, "InvalidCollateralAmount", "collateral: invalid amount")
	ErrInvalidCollateralDecimal   = newError(CategoryValidation, "InvalidCollateralDecimal", "collateral: invalid decimals")
	ErrInvalidRemainingCollateral = newError(CategoryValidation, "InvalidRemainingCollateralAmount", "collateral: invalid remaining amount")
	ErrPayloadTooLarge            = newError(CategoryValidation, "PayloadTooLarge", "wire: payload exceeds 300 bytes")
	ErrMalformedMessage           = newError(CategoryValidation, "MalformedMessage", "wire: message shorter than length prefix")
	ErrLengthMismatch             = newError(CategoryValidation, "LengthMismatch", "wire: declared length does not match body")

	// State.
	ErrInvalidOfferStatus      = newError(CategoryState, "InvalidOfferStatus", "offer: status does not allow this transition")
	ErrLendOfferIsNotAvailable = newError(CategoryState, "LendOfferIsNotAvailable", "lend offer: not available for matching")
	ErrLoanOfferExpired        = newError(CategoryState, "LoanOfferExpired", "loan offer: expired")
	ErrLoanOfferNotExpired     = newError(CategoryState, "LoanOfferNotExpired", "loan offer: not expired yet")
	ErrNotAvailableToWithdraw  = newError(CategoryState, "NotAvailableToWithdraw", "loan offer: collateral not withdrawable in this status")
	ErrTimeUnmet               = newError(CategoryState, "TimeUnmetException", "loan offer: outside repay window")
	ErrCollateralNotAccepted   = newError(CategoryState, "CanNotDepositCollateralToContractThatNotAvailable", "loan offer: not accepting collateral")
	ErrLendInterestUpdated     = newError(CategoryState, "CanNotCreateLoanCauseLendInterestUpdated", "loan offer: lend interest changed since quote")

	// Financial.
	ErrNotEnoughAmount         = newError(CategoryFinancial, "NotEnoughAmount", "insufficient amount")
	ErrNotEnoughCollateral     = newError(CategoryFinancial, "NotEnoughCollateral", "loan offer: no collateral deposited")
	ErrInterestOverLimit       = newError(CategoryFinancial, "InterestOverLimit", "lend offer: interest at or above maximum")
	ErrInterestGreaterThanZero = newError(CategoryFinancial, "InterestGreaterThanZero", "lend offer: interest must be greater than zero")

	// Risk.
	ErrHealthRatioInvalid            = newError(CategoryRisk, "HealthRatioInvalid", "health: loan value is zero")
	ErrHealthRatioLimit              = newError(CategoryRisk, "HealthRatioLimit", "health: ratio at or above liquidation limit")
	ErrHealthRatioNotValid           = newError(CategoryRisk, "CanNotTakeALoanBecauseHealthRatioIsNotValid", "health: ratio below borrow minimum")
	ErrInvalidPriceFeedAccount       = newError(CategoryRisk, "InvalidPriceFeedAccount", "price feed: quote stale or unusable")
	ErrInvalidPriceFeedForCollateral = newError(CategoryRisk, "InvalidPriceFeedAccountForCollateralAsset", "price feed: wrong feed for collateral asset")
	ErrInvalidPriceFeedForLend       = newError(CategoryRisk, "InvalidPriceFeedAccountForLendAsset", "price feed: wrong feed for lend asset")

	// Cross-chain.
	ErrInvalidForeignEmitter = newError(CategoryCrossChain, "InvalidForeignEmitter", "attestation: emitter not registered for chain")
	ErrNotSupportThisChainId = newError(CategoryCrossChain, "NotSupportThisChainId", "attestation: chain id not registered")
	ErrInvalidSequence       = newError(CategoryCrossChain, "InvalidSequence", "attestation: sequence already consumed")
	ErrPostedVaaExpired      = newError(CategoryCrossChain, "PostedVaaExpired", "attestation: outside validity window")
	ErrInvalidTargetChain    = newError(CategoryCrossChain, "InvalidTargetChain", "attestation: payload targets another chain")
	ErrInvalidMessage        = newError(CategoryCrossChain, "InvalidMessage", "attestation: malformed payload")

	// Authorization.
	ErrInvalidSystem = newError(CategoryAuthorization, "InvalidSystem", "caller is not the system operator")
	ErrInvalidSigner = newError(CategoryAuthorization, "InvalidSigner", "signer not allowed for this operation")
)
