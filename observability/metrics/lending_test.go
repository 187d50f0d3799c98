package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"crosslend/native/common"
)

func TestObserveTransitionLabelsByCode(t *testing.T) {
	m := Lending()
	m.ObserveTransition("repay", nil, time.Millisecond)
	m.ObserveTransition("repay", common.Wrap(common.ErrTimeUnmet, "late"), time.Millisecond)

	if got := testutil.ToFloat64(m.transitions.WithLabelValues("repay", "committed", "ok")); got != 1 {
		t.Fatalf("committed count = %v", got)
	}
	if got := testutil.ToFloat64(m.transitions.WithLabelValues("repay", "state", "TimeUnmetException")); got != 1 {
		t.Fatalf("rejected count = %v", got)
	}
}
