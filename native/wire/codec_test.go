package wire

import (
	"bytes"
	"errors"
	"testing"

	"crosslend/native/common"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, 19, 150, MaxPayloadLength} {
		payload := bytes.Repeat([]byte{0xAB}, size)
		framed, err := Encode(payload)
		if err != nil {
			t.Fatalf("encode %d: %v", size, err)
		}
		if len(framed) != size+2 {
			t.Fatalf("expected %d framed bytes, got %d", size+2, len(framed))
		}
		if framed[0] != byte(size>>8) || framed[1] != byte(size) {
			t.Fatalf("unexpected prefix %x for size %d", framed[:2], size)
		}
		decoded, err := Decode(framed)
		if err != nil {
			t.Fatalf("decode %d: %v", size, err)
		}
		if !bytes.Equal(decoded, payload) {
			t.Fatalf("round trip mismatch for size %d", size)
		}
	}
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	payload := make([]byte, MaxPayloadLength+1)
	if _, err := Encode(payload); !errors.Is(err, common.ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestDecodeRejectsOversizedFrames(t *testing.T) {
	declaredTooLarge := []byte{0x01, 0x2D} // 301
	declaredTooLarge = append(declaredTooLarge, make([]byte, 301)...)
	if _, err := Decode(declaredTooLarge); !errors.Is(err, common.ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge for declared 301, got %v", err)
	}

	bodyTooLarge := append([]byte{0x00, 0x01}, make([]byte, 301)...)
	if _, err := Decode(bodyTooLarge); !errors.Is(err, common.ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge for 301-byte body, got %v", err)
	}
}

func TestDecodeMalformedFrames(t *testing.T) {
	if _, err := Decode([]byte{0x00}); !errors.Is(err, common.ErrMalformedMessage) {
		t.Fatalf("expected ErrMalformedMessage, got %v", err)
	}
	if _, err := Decode([]byte{0x00, 0x05, 0x01}); !errors.Is(err, common.ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
	if got := common.CodeOf(common.Wrap(common.ErrLengthMismatch, "x")); got != "LengthMismatch" {
		t.Fatalf("unexpected code %q", got)
	}
}

func TestStreamingFrames(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, []byte("first")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteMessage(&buf, []byte("second")); err != nil {
		t.Fatalf("write: %v", err)
	}
	first, err := ReadMessage(&buf)
	if err != nil || string(first) != "first" {
		t.Fatalf("unexpected first frame %q (%v)", first, err)
	}
	second, err := ReadMessage(&buf)
	if err != nil || string(second) != "second" {
		t.Fatalf("unexpected second frame %q (%v)", second, err)
	}
	if _, err := ReadMessage(&buf); !errors.Is(err, common.ErrMalformedMessage) {
		t.Fatalf("expected ErrMalformedMessage at end of stream, got %v", err)
	}
	if err := WriteMessage(&buf, make([]byte, 301)); !errors.Is(err, common.ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}
