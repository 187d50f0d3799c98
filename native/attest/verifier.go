package attest

import (
	"math"
	"time"

	"crosslend/native/common"
)

// Ledger is the state the verifier reads and writes. Implementations must
// stage writes in the caller's transaction so a rejected transition also
// rolls back the sequence bump.
type Ledger interface {
	GetEmitter(chainID uint16) (EmitterAddress, bool, error)
	PutEmitter(chainID uint16, emitter EmitterAddress) error
	GetSequence(chainID uint16, emitter EmitterAddress) (uint64, bool, error)
	PutSequence(chainID uint16, emitter EmitterAddress, sequence uint64) error
}

// Verifier authenticates foreign collateral notices against the emitter
// registry and the anti-replay ledger.
type Verifier struct {
	localChainID uint16
	window       time.Duration
}

func NewVerifier(localChainID uint16, window time.Duration) *Verifier {
	return &Verifier{localChainID: localChainID, window: window}
}

func (v *Verifier) LocalChainID() uint16 { return v.localChainID }

func (v *Verifier) ValidityWindow() time.Duration { return v.window }

// RegisterEmitter records the authorised emitter for chainID, replacing any
// previous entry. The consumed-sequence ledger is keyed by emitter, so
// rotating an emitter starts a fresh sequence space.
func RegisterEmitter(ledger Ledger, chainID uint16, emitter EmitterAddress) error {
	if chainID == 0 || emitter.IsZero() {
		return common.Wrap(common.ErrInvalidForeignEmitter, "chain id and emitter required")
	}
	return ledger.PutEmitter(chainID, emitter)
}

// VerifyAndParse checks, in order: emitter registration, sequence freshness,
// validity window, payload schema. On success the sequence ledger entry is
// advanced to att.Sequence within ledger.
func (v *Verifier) VerifyAndParse(ledger Ledger, now time.Time, att Attestation) (Parsed, error) {
	registered, ok, err := ledger.GetEmitter(att.ChainID)
	if err != nil {
		return Parsed{}, err
	}
	if !ok {
		return Parsed{}, common.Wrap(common.ErrNotSupportThisChainId, "chain %d", att.ChainID)
	}
	if registered != att.Emitter {
		return Parsed{}, common.Wrap(common.ErrInvalidForeignEmitter, "chain %d emitter %s", att.ChainID, att.Emitter)
	}

	last, seen, err := ledger.GetSequence(att.ChainID, att.Emitter)
	if err != nil {
		return Parsed{}, err
	}
	if seen && att.Sequence <= last {
		return Parsed{}, common.Wrap(common.ErrInvalidSequence, "sequence %d, last consumed %d", att.Sequence, last)
	}

	if att.Timestamp > math.MaxInt64 {
		return Parsed{}, common.Wrap(common.ErrPostedVaaExpired, "timestamp %d out of range", att.Timestamp)
	}
	if v.expired(now, att.Timestamp) {
		return Parsed{}, common.Wrap(common.ErrPostedVaaExpired, "timestamp %d", att.Timestamp)
	}

	payload, err := ParseCollateralPayload(att.Payload)
	if err != nil {
		return Parsed{}, err
	}
	if payload.TargetChainID != v.localChainID {
		return Parsed{}, common.Wrap(common.ErrInvalidTargetChain, "payload targets chain %d", payload.TargetChainID)
	}
	if payload.CollateralAmount == 0 {
		return Parsed{}, common.Wrap(common.ErrInvalidCollateralAmount, "zero collateral")
	}
	if payload.CollateralDecimals > MaxCollateralDecimals {
		return Parsed{}, common.Wrap(common.ErrInvalidCollateralDecimal, "decimals %d", payload.CollateralDecimals)
	}

	if err := ledger.PutSequence(att.ChainID, att.Emitter, att.Sequence); err != nil {
		return Parsed{}, err
	}
	return Parsed{
		CollateralPayload: payload,
		SourceChain:       att.ChainID,
		Emitter:           att.Emitter,
		Sequence:          att.Sequence,
		Digest:            payloadDigest(att.Payload),
	}, nil
}

func (v *Verifier) expired(now time.Time, timestamp uint64) bool {
	if v.window <= 0 {
		return false
	}
	posted := time.Unix(int64(timestamp), 0)
	age := now.Sub(posted)
	if age < 0 {
		age = -age
	}
	return age > v.window
}
