// Package wire frames cross-chain payloads as a 2-byte big-endian length
// followed by the raw bytes. It performs no validation of payload contents.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"crosslend/native/common"
)

const (
	// MaxPayloadLength bounds every framed payload.
	MaxPayloadLength = 300
	prefixLength     = 2
)

// Encode prefixes payload with its length.
func Encode(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadLength {
		return nil, common.Wrap(common.ErrPayloadTooLarge, "got %d bytes", len(payload))
	}
	out := make([]byte, prefixLength+len(payload))
	binary.BigEndian.PutUint16(out, uint16(len(payload)))
	copy(out[prefixLength:], payload)
	return out, nil
}

// Decode returns a copy of the framed payload. The buffer must contain exactly
// one frame.
func Decode(buf []byte) ([]byte, error) {
	if len(buf) < prefixLength {
		return nil, common.ErrMalformedMessage
	}
	declared := int(binary.BigEndian.Uint16(buf))
	body := buf[prefixLength:]
	if declared > MaxPayloadLength || len(body) > MaxPayloadLength {
		return nil, common.Wrap(common.ErrPayloadTooLarge, "declared %d, body %d", declared, len(body))
	}
	if declared != len(body) {
		return nil, common.Wrap(common.ErrLengthMismatch, "declared %d, body %d", declared, len(body))
	}
	out := make([]byte, declared)
	copy(out, body)
	return out, nil
}

// ReadMessage reads a single frame from r.
func ReadMessage(r io.Reader) ([]byte, error) {
	var prefix [prefixLength]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, common.ErrMalformedMessage
		}
		return nil, fmt.Errorf("wire: read prefix: %w", err)
	}
	declared := int(binary.BigEndian.Uint16(prefix[:]))
	if declared > MaxPayloadLength {
		return nil, common.Wrap(common.ErrPayloadTooLarge, "declared %d", declared)
	}
	body := make([]byte, declared)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, common.Wrap(common.ErrLengthMismatch, "declared %d", declared)
		}
		return nil, fmt.Errorf("wire: read body: %w", err)
	}
	return body, nil
}

// WriteMessage frames payload onto w.
func WriteMessage(w io.Writer, payload []byte) error {
	framed, err := Encode(payload)
	if err != nil {
		return err
	}
	_, err = w.Write(framed)
	return err
}
