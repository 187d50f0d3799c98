package events

import (
	"math/big"
	"testing"

	"crosslend/crypto"
)

func TestBufferFlushesInOrder(t *testing.T) {
	var (
		buf Buffer
		rec Recorder
	)
	lender := crypto.Address{19: 1}
	buf.Add(OfferCreated{OfferID: "a", Lender: lender, Amount: big.NewInt(5)})
	buf.Add(OfferCancelRequested{OfferID: "a", Lender: lender})
	if len(rec.Events()) != 0 {
		t.Fatalf("events emitted before flush")
	}
	buf.Flush(&rec)
	got := rec.Events()
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Type != TypeOfferCreated || got[1].Type != TypeOfferCancelRequested {
		t.Fatalf("unexpected order: %s, %s", got[0].Type, got[1].Type)
	}
	if got[0].Attribute("amount") != "5" {
		t.Fatalf("amount attribute = %q", got[0].Attribute("amount"))
	}

	buf.Flush(&rec)
	if len(rec.Events()) != 2 {
		t.Fatalf("flush must clear the buffer")
	}
}

func TestBufferDiscard(t *testing.T) {
	var (
		buf Buffer
		rec Recorder
	)
	buf.Add(LoanExpired{LoanID: "l", Returned: big.NewInt(0)})
	buf.Discard()
	buf.Flush(&rec)
	if len(rec.Events()) != 0 {
		t.Fatalf("discarded events were emitted")
	}
}

func TestMultiEmitterFansOut(t *testing.T) {
	var a, b Recorder
	MultiEmitter{&a, nil, &b}.Emit(LendOfferClosed{OfferID: "x"})
	if len(a.Events()) != 1 || len(b.Events()) != 1 {
		t.Fatalf("fan out failed: %d, %d", len(a.Events()), len(b.Events()))
	}
}
