package observability

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAPIObserveLabelsByOperationAndCode(t *testing.T) {
	m := API()
	m.Observe("activate", http.StatusOK, "", time.Millisecond)
	m.Observe("activate", http.StatusUnprocessableEntity, "HealthRatioLimit", time.Millisecond)
	m.Observe("", http.StatusInternalServerError, "Internal", time.Millisecond)

	if got := testutil.ToFloat64(m.calls.WithLabelValues("activate", OutcomeOK, "none")); got != 1 {
		t.Fatalf("ok calls = %v", got)
	}
	if got := testutil.ToFloat64(m.calls.WithLabelValues("activate", OutcomeRejected, "HealthRatioLimit")); got != 1 {
		t.Fatalf("rejected calls = %v", got)
	}
	if got := testutil.ToFloat64(m.calls.WithLabelValues("unknown", OutcomeFailed, "Internal")); got != 1 {
		t.Fatalf("failed calls = %v", got)
	}
}

func TestAPIRecordThrottle(t *testing.T) {
	m := API()
	before := testutil.ToFloat64(m.throttles.WithLabelValues("authenticated"))
	m.RecordThrottle(true)
	if got := testutil.ToFloat64(m.throttles.WithLabelValues("authenticated")); got != before+1 {
		t.Fatalf("throttles = %v, want %v", got, before+1)
	}
}
