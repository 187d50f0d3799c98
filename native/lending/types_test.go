package lending

import (
	"errors"
	"testing"

	"crosslend/native/common"
)

func TestLendOfferTransitions(t *testing.T) {
	allStatuses := []LendOfferStatus{LendOfferCreated, LendOfferCanceling, LendOfferCanceled, LendOfferMatched, LendOfferSettled}
	allEvents := []LendOfferEvent{LendEventRequestCancel, LendEventExecuteCancel, LendEventMatch, LendEventSettle}
	allowed := map[LendOfferStatus]map[LendOfferEvent]LendOfferStatus{
		LendOfferCreated:   {LendEventRequestCancel: LendOfferCanceling, LendEventMatch: LendOfferMatched},
		LendOfferCanceling: {LendEventExecuteCancel: LendOfferCanceled},
		LendOfferMatched:   {LendEventSettle: LendOfferSettled},
	}
	for _, s := range allStatuses {
		if !s.Valid() {
			t.Fatalf("status %d should be valid", s)
		}
		for _, ev := range allEvents {
			next, err := s.Transition(ev)
			want, ok := allowed[s][ev]
			if ok {
				if err != nil || next != want {
					t.Fatalf("%s+%d: expected %s, got %s (%v)", s, ev, want, next, err)
				}
				continue
			}
			if !errors.Is(err, common.ErrInvalidOfferStatus) {
				t.Fatalf("%s+%d: expected ErrInvalidOfferStatus, got %v", s, ev, err)
			}
			if s.Terminal() && next != s {
				t.Fatalf("terminal status %s must not move", s)
			}
		}
	}
	if LendOfferStatus(0).Valid() {
		t.Fatalf("zero status must be invalid")
	}
}

func TestLoanOfferTransitions(t *testing.T) {
	terminal := []LoanOfferStatus{LoanRepaid, LoanLiquidated, LoanExpired}
	events := []LoanOfferEvent{LoanEventActivate, LoanEventRepay, LoanEventLiquidate, LoanEventExpire}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
		for _, ev := range events {
			if _, err := s.Transition(ev); !errors.Is(err, common.ErrInvalidOfferStatus) {
				t.Fatalf("%s+%d should fail, got %v", s, ev, err)
			}
		}
	}
	if next, err := LoanAwaitingCollateral.Transition(LoanEventExpire); err != nil || next != LoanExpired {
		t.Fatalf("expected expiry edge, got %s (%v)", next, err)
	}
	if _, err := LoanAwaitingCollateral.Transition(LoanEventRepay); !errors.Is(err, common.ErrInvalidOfferStatus) {
		t.Fatalf("repay before activation must fail, got %v", err)
	}
	if next, err := LoanActive.Transition(LoanEventLiquidate); err != nil || next != LoanLiquidated {
		t.Fatalf("expected liquidation edge, got %s (%v)", next, err)
	}
}
