package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"crosslend/crypto"
	"crosslend/native/attest"
	"crosslend/native/custody"
	"crosslend/native/lending"
	"crosslend/native/tier"
	"crosslend/storage"
)

// Tx stages reads and writes for one transition. A nil overlay value marks
// a pending delete.
type Tx struct {
	db       storage.Database
	overlay  map[string][]byte
	order    []string
	readOnly bool
}

func newTx(db storage.Database, readOnly bool) *Tx {
	return &Tx{db: db, overlay: make(map[string][]byte), readOnly: readOnly}
}

func (tx *Tx) get(key []byte) ([]byte, bool, error) {
	if value, ok := tx.overlay[string(key)]; ok {
		if value == nil {
			return nil, false, nil
		}
		return value, true, nil
	}
	value, err := tx.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (tx *Tx) stage(key []byte, value []byte) error {
	if tx.readOnly {
		return errReadOnly
	}
	k := string(key)
	if _, seen := tx.overlay[k]; !seen {
		tx.order = append(tx.order, k)
	}
	tx.overlay[k] = value
	return nil
}

func (tx *Tx) putRecord(key []byte, record any) error {
	encoded, err := rlp.EncodeToBytes(record)
	if err != nil {
		return fmt.Errorf("state: encode: %w", err)
	}
	return tx.stage(key, encoded)
}

func (tx *Tx) getRecord(key []byte, out any) (bool, error) {
	raw, ok, err := tx.get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("state: decode: %w", err)
	}
	return true, nil
}

func (tx *Tx) delete(key []byte) error { return tx.stage(key, nil) }

func (tx *Tx) commit() error {
	if len(tx.order) == 0 {
		return nil
	}
	batch := tx.db.NewBatch()
	for _, k := range tx.order {
		if value := tx.overlay[k]; value == nil {
			batch.Delete([]byte(k))
		} else {
			batch.Put([]byte(k), value)
		}
	}
	return batch.Write()
}

// --- tiers ---

func (tx *Tx) GetTier(id string) (*tier.Config, bool, error) {
	cfg := new(tier.Config)
	ok, err := tx.getRecord(tierKey(id), cfg)
	if !ok {
		return nil, false, err
	}
	return cfg, true, nil
}

func (tx *Tx) PutTier(cfg *tier.Config) error { return tx.putRecord(tierKey(cfg.ID), cfg) }

func (tx *Tx) DeleteTier(id string) error { return tx.delete(tierKey(id)) }

// --- assets and balances ---

func (tx *Tx) GetAsset(mint crypto.Address) (*custody.Asset, bool, error) {
	asset := new(custody.Asset)
	ok, err := tx.getRecord(assetKey(mint), asset)
	if !ok {
		return nil, false, err
	}
	return asset, true, nil
}

func (tx *Tx) PutAsset(asset *custody.Asset) error {
	return tx.putRecord(assetKey(asset.Mint), asset)
}

func (tx *Tx) GetBalance(owner, mint crypto.Address) (*big.Int, error) {
	bal := new(big.Int)
	if _, err := tx.getRecord(balanceKey(owner, mint), bal); err != nil {
		return nil, err
	}
	return bal, nil
}

func (tx *Tx) PutBalance(owner, mint crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: invalid balance")
	}
	if amount.Sign() == 0 {
		return tx.delete(balanceKey(owner, mint))
	}
	return tx.putRecord(balanceKey(owner, mint), amount)
}

// --- offers ---

func (tx *Tx) GetLendOffer(lender crypto.Address, id string) (*lending.LendOffer, bool, error) {
	offer := new(lending.LendOffer)
	ok, err := tx.getRecord(LendOfferKey(lender, id), offer)
	if !ok {
		return nil, false, err
	}
	return offer, true, nil
}

func (tx *Tx) PutLendOffer(offer *lending.LendOffer) error {
	return tx.putRecord(LendOfferKey(offer.Lender, offer.ID), offer)
}

func (tx *Tx) DeleteLendOffer(lender crypto.Address, id string) error {
	return tx.delete(LendOfferKey(lender, id))
}

func (tx *Tx) GetLoanOffer(borrower crypto.Address, id string) (*lending.LoanOffer, bool, error) {
	loan := new(lending.LoanOffer)
	ok, err := tx.getRecord(LoanOfferKey(borrower, id), loan)
	if !ok {
		return nil, false, err
	}
	return loan, true, nil
}

func (tx *Tx) PutLoanOffer(loan *lending.LoanOffer) error {
	return tx.putRecord(LoanOfferKey(loan.Borrower, loan.ID), loan)
}

// --- cross-chain registry ---

func (tx *Tx) GetEmitter(chainID uint16) (attest.EmitterAddress, bool, error) {
	var out attest.EmitterAddress
	raw, ok, err := tx.get(emitterKey(chainID))
	if err != nil || !ok {
		return out, false, err
	}
	if len(raw) != len(out) {
		return out, false, fmt.Errorf("state: corrupt emitter record for chain %d", chainID)
	}
	copy(out[:], raw)
	return out, true, nil
}

func (tx *Tx) PutEmitter(chainID uint16, emitter attest.EmitterAddress) error {
	return tx.stage(emitterKey(chainID), append([]byte(nil), emitter[:]...))
}

func (tx *Tx) GetSequence(chainID uint16, emitter attest.EmitterAddress) (uint64, bool, error) {
	var seq uint64
	ok, err := tx.getRecord(sequenceKey(chainID, emitter), &seq)
	return seq, ok, err
}

func (tx *Tx) PutSequence(chainID uint16, emitter attest.EmitterAddress, sequence uint64) error {
	return tx.putRecord(sequenceKey(chainID, emitter), sequence)
}

// --- bootstrap marker ---

// GenesisApplied reports whether the configured genesis balances were
// already credited, and when.
func (tx *Tx) GenesisApplied() (uint64, bool, error) {
	var at uint64
	ok, err := tx.getRecord(genesisKey, &at)
	return at, ok, err
}

func (tx *Tx) MarkGenesis(at uint64) error {
	return tx.putRecord(genesisKey, at)
}

var (
	_ lending.State = (*Tx)(nil)
	_ tier.State    = (*Tx)(nil)
)
