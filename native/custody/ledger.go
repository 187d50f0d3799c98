// Package custody implements the asset ledger that escrow, collateral and
// settlement transfers move through.
package custody

import (
	"errors"
	"math/big"
	"strings"

	"crosslend/crypto"
	"crosslend/native/common"
)

var errInvalidAmount = errors.New("custody: amount must not be negative")

// Asset is a registered mint together with its decimals and price feed.
type Asset struct {
	Mint        crypto.Address
	Symbol      string
	Decimals    uint8
	PriceFeedID string
}

// Clone returns a copy of the asset.
func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}

// Store is the balance and registry state the ledger operates on. The
// ledger never commits; callers hand it a transaction-scoped store.
type Store interface {
	GetAsset(mint crypto.Address) (*Asset, bool, error)
	PutAsset(asset *Asset) error
	GetBalance(owner, mint crypto.Address) (*big.Int, error)
	PutBalance(owner, mint crypto.Address, amount *big.Int) error
}

// RegisterAsset validates and stores asset metadata.
func RegisterAsset(store Store, asset *Asset) error {
	if asset == nil || asset.Mint.IsZero() {
		return common.Wrap(common.ErrInvalidMintAsset, "mint required")
	}
	if asset.Decimals > 18 {
		return common.Wrap(common.ErrInvalidMintAsset, "decimals %d out of range", asset.Decimals)
	}
	clone := asset.Clone()
	clone.Symbol = strings.ToUpper(strings.TrimSpace(clone.Symbol))
	clone.PriceFeedID = strings.TrimSpace(clone.PriceFeedID)
	return store.PutAsset(clone)
}

// Ledger moves balances between accounts for registered mints.
type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger { return &Ledger{store: store} }

// Deposit moves amount from an account into a custody account.
func (l *Ledger) Deposit(from, custodyAccount, mint crypto.Address, amount *big.Int, decimals uint8) error {
	return l.transfer(from, custodyAccount, mint, amount, decimals)
}

// Withdraw moves amount out of a custody account.
func (l *Ledger) Withdraw(custodyAccount, to, mint crypto.Address, amount *big.Int, decimals uint8) error {
	return l.transfer(custodyAccount, to, mint, amount, decimals)
}

func (l *Ledger) Balance(owner, mint crypto.Address) (*big.Int, error) {
	bal, err := l.store.GetBalance(owner, mint)
	if err != nil {
		return nil, err
	}
	if bal == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(bal), nil
}

// Credit mints amount into owner's balance. Operators use it to fund
// settlement reserves; it is not reachable from borrower or lender flows.
func (l *Ledger) Credit(owner, mint crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errInvalidAmount
	}
	if _, ok, err := l.store.GetAsset(mint); err != nil {
		return err
	} else if !ok {
		return common.Wrap(common.ErrInvalidMintAsset, "mint %s not registered", mint)
	}
	bal, err := l.Balance(owner, mint)
	if err != nil {
		return err
	}
	return l.store.PutBalance(owner, mint, bal.Add(bal, amount))
}

func (l *Ledger) transfer(from, to, mint crypto.Address, amount *big.Int, decimals uint8) error {
	if amount == nil || amount.Sign() < 0 {
		return errInvalidAmount
	}
	asset, ok, err := l.store.GetAsset(mint)
	if err != nil {
		return err
	}
	if !ok {
		return common.Wrap(common.ErrInvalidMintAsset, "mint %s not registered", mint)
	}
	if asset.Decimals != decimals {
		return common.Wrap(common.ErrInvalidMintAsset, "mint %s has %d decimals, got %d", mint, asset.Decimals, decimals)
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	fromBal, err := l.Balance(from, mint)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return common.Wrap(common.ErrNotEnoughAmount, "balance %s below %s", fromBal, amount)
	}
	toBal, err := l.Balance(to, mint)
	if err != nil {
		return err
	}
	if err := l.store.PutBalance(from, mint, fromBal.Sub(fromBal, amount)); err != nil {
		return err
	}
	return l.store.PutBalance(to, mint, toBal.Add(toBal, amount))
}
