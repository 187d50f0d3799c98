package stream

import (
	"math/big"
	"testing"

	"crosslend/core/events"
)

func TestHubDeliversMatchingEvents(t *testing.T) {
	hub := NewHub()
	all, cancelAll := hub.Subscribe(Filter{})
	defer cancelAll()
	loan2, cancelLoan2 := hub.Subscribe(Filter{LoanID: "loan-2"})
	defer cancelLoan2()

	hub.Emit(events.LoanRepaid{LoanID: "loan-1", TotalRepay: big.NewInt(1), LenderShare: big.NewInt(1), ProtocolFee: big.NewInt(0)})
	hub.Emit(events.LoanRepaid{LoanID: "loan-2", TotalRepay: big.NewInt(2), LenderShare: big.NewInt(2), ProtocolFee: big.NewInt(0)})

	if got := len(all); got != 2 {
		t.Fatalf("unfiltered subscriber received %d events", got)
	}
	if got := len(loan2); got != 1 {
		t.Fatalf("filtered subscriber received %d events", got)
	}
	evt := <-loan2
	if evt.Type != events.TypeLoanRepaid || evt.Attribute("loanId") != "loan-2" {
		t.Fatalf("unexpected event %+v", evt)
	}
}

func TestHubDisconnectsSlowSubscribers(t *testing.T) {
	hub := NewHub()
	updates, cancel := hub.Subscribe(Filter{})
	defer cancel()
	for i := 0; i < subscriberBuffer+1; i++ {
		hub.Emit(events.LoanExpired{LoanID: "loan-1", Returned: big.NewInt(0)})
	}
	if hub.Subscribers() != 0 {
		t.Fatalf("slow subscriber still registered")
	}
	drained := 0
	for range updates {
		drained++
	}
	if drained != subscriberBuffer {
		t.Fatalf("drained %d events, want %d", drained, subscriberBuffer)
	}
	cancel()
}
