package passphrase

import (
	"strings"
	"testing"
)

func TestSourcePrefersEnvironment(t *testing.T) {
	t.Setenv("LEND_TEST_PASSPHRASE", "correct horse")
	src := NewSource("LEND_TEST_PASSPHRASE", "")
	got, err := src.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "correct horse" {
		t.Fatalf("passphrase = %q", got)
	}
	// cached even after the variable changes
	t.Setenv("LEND_TEST_PASSPHRASE", "other")
	if again, _ := src.Get(); again != "correct horse" {
		t.Fatalf("cached passphrase = %q", again)
	}
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	t.Setenv("LEND_TEST_PASSPHRASE", "   ")
	_, err := NewSource("LEND_TEST_PASSPHRASE", "operator").Get()
	if err == nil || !strings.Contains(err.Error(), "set but empty") {
		t.Fatalf("expected blank passphrase error, got %v", err)
	}
}
