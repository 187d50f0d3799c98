package attest

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"lukechampine.com/blake3"

	"crosslend/native/common"
)

// EmitterAddress is the 32-byte source address of a foreign-chain emitter.
type EmitterAddress [32]byte

func (e EmitterAddress) IsZero() bool { return e == EmitterAddress{} }

func (e EmitterAddress) String() string { return hex.EncodeToString(e[:]) }

func (e EmitterAddress) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

func (e *EmitterAddress) UnmarshalText(text []byte) error {
	parsed, err := ParseEmitter(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// ParseEmitter decodes a hex emitter address. Shorter inputs are left padded
// with zeros, matching how 20-byte EVM addresses are widened.
func ParseEmitter(value string) (EmitterAddress, error) {
	var out EmitterAddress
	trimmed := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(value), "0x"), "0X")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, fmt.Errorf("attest: invalid emitter hex: %w", err)
	}
	if len(raw) == 0 || len(raw) > len(out) {
		return out, fmt.Errorf("attest: emitter must be 1-32 bytes, got %d", len(raw))
	}
	copy(out[len(out)-len(raw):], raw)
	return out, nil
}

// Attestation is an already-authenticated cross-chain message together with
// its transport metadata.
type Attestation struct {
	ChainID   uint16
	Emitter   EmitterAddress
	Sequence  uint64
	Timestamp uint64
	Payload   []byte
}

// PayloadLength is the exact width of an encoded CollateralPayload.
const PayloadLength = 2 + 8 + 1 + 8

// MaxCollateralDecimals bounds the decimals a payload may declare.
const MaxCollateralDecimals = 18

// CollateralPayload is the foreign-chain deposit notice.
//
//	target_chain_id             u16 BE
//	collateral_amount           u64 BE
//	collateral_decimals         u8
//	remaining_collateral_amount u64 BE
type CollateralPayload struct {
	TargetChainID             uint16
	CollateralAmount          uint64
	CollateralDecimals        uint8
	RemainingCollateralAmount uint64
}

func (p CollateralPayload) MarshalBinary() ([]byte, error) {
	out := make([]byte, PayloadLength)
	binary.BigEndian.PutUint16(out[0:2], p.TargetChainID)
	binary.BigEndian.PutUint64(out[2:10], p.CollateralAmount)
	out[10] = p.CollateralDecimals
	binary.BigEndian.PutUint64(out[11:19], p.RemainingCollateralAmount)
	return out, nil
}

// ParseCollateralPayload decodes the fixed-width schema. A field cut short
// reports that field's error; bytes beyond the schema report InvalidMessage.
// Range checks against configuration happen in the Verifier.
func ParseCollateralPayload(b []byte) (CollateralPayload, error) {
	var p CollateralPayload
	switch {
	case len(b) < 2:
		return p, common.Wrap(common.ErrInvalidTargetChain, "target chain truncated")
	case len(b) < 10:
		return p, common.Wrap(common.ErrInvalidCollateralAmount, "collateral amount truncated")
	case len(b) < 11:
		return p, common.Wrap(common.ErrInvalidCollateralDecimal, "collateral decimals truncated")
	case len(b) < PayloadLength:
		return p, common.Wrap(common.ErrInvalidRemainingCollateral, "remaining amount truncated")
	case len(b) > PayloadLength:
		return p, common.Wrap(common.ErrInvalidMessage, "%d trailing bytes", len(b)-PayloadLength)
	}
	p.TargetChainID = binary.BigEndian.Uint16(b[0:2])
	p.CollateralAmount = binary.BigEndian.Uint64(b[2:10])
	p.CollateralDecimals = b[10]
	p.RemainingCollateralAmount = binary.BigEndian.Uint64(b[11:19])
	return p, nil
}

// Parsed is the verified payload plus the metadata of the message it came
// from. It lives only for the transition that consumes it.
type Parsed struct {
	CollateralPayload
	SourceChain uint16
	Emitter     EmitterAddress
	Sequence    uint64
	Digest      [32]byte
}

// DigestHex renders the payload digest for logs and events.
func (p Parsed) DigestHex() string { return hex.EncodeToString(p.Digest[:]) }

func payloadDigest(payload []byte) [32]byte {
	return blake3.Sum256(payload)
}
