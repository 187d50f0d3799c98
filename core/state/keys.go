package state

import (
	"encoding/binary"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"crosslend/crypto"
	"crosslend/native/attest"
)

// Keys are namespace | owner | keccak(identifier). Owner bytes stay in the
// clear so every record of one owner can be listed by prefix.
var (
	tierPrefix      = []byte("tier/")
	assetPrefix     = []byte("asset/")
	balancePrefix   = []byte("balance/")
	lendOfferPrefix = []byte("lend/")
	loanOfferPrefix = []byte("loan/")
	emitterPrefix   = []byte("emitter/")
	sequencePrefix  = []byte("sequence/")

	genesisKey = []byte("meta/genesis")
)

func join(parts ...[]byte) []byte {
	size := 0
	for _, p := range parts {
		size += len(p)
	}
	buf := make([]byte, 0, size)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return buf
}

func tierKey(id string) []byte {
	return join(tierPrefix, ethcrypto.Keccak256([]byte(id)))
}

func assetKey(mint crypto.Address) []byte {
	return join(assetPrefix, mint[:])
}

func balanceKey(owner, mint crypto.Address) []byte {
	return join(balancePrefix, owner[:], mint[:])
}

// LendOfferKey is the deterministic storage key of a lend offer.
func LendOfferKey(lender crypto.Address, id string) []byte {
	return join(lendOfferPrefix, lender[:], ethcrypto.Keccak256([]byte(id)))
}

// LoanOfferKey is the deterministic storage key of a loan offer.
func LoanOfferKey(borrower crypto.Address, id string) []byte {
	return join(loanOfferPrefix, borrower[:], ethcrypto.Keccak256([]byte(id)))
}

func chainBytes(chainID uint16) []byte {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], chainID)
	return buf[:]
}

func emitterKey(chainID uint16) []byte {
	return join(emitterPrefix, chainBytes(chainID))
}

func sequenceKey(chainID uint16, emitter attest.EmitterAddress) []byte {
	return join(sequencePrefix, chainBytes(chainID), emitter[:])
}
