package common

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapKeepsCodeAndCategory(t *testing.T) {
	err := Wrap(ErrInvalidSequence, "sequence %d", 4)
	if !errors.Is(err, ErrInvalidSequence) {
		t.Fatalf("wrapped error lost its sentinel")
	}
	if got := CodeOf(err); got != "InvalidSequence" {
		t.Fatalf("code = %q", got)
	}
	if got := CategoryOf(err); got != CategoryCrossChain {
		t.Fatalf("category = %q", got)
	}
	outer := fmt.Errorf("deposit: %w", err)
	if CodeOf(outer) != "InvalidSequence" {
		t.Fatalf("code lost through second wrap")
	}
}

func TestCodeOfForeignErrors(t *testing.T) {
	if CodeOf(nil) != "" {
		t.Fatalf("nil error must have no code")
	}
	if CodeOf(errors.New("disk full")) != "Internal" {
		t.Fatalf("foreign errors must report Internal")
	}
	if CategoryOf(errors.New("disk full")) != CategoryInternal {
		t.Fatalf("foreign errors must report the internal category")
	}
}

func TestGuard(t *testing.T) {
	if err := Guard(nil, "lending"); err != nil {
		t.Fatalf("nil view must not block: %v", err)
	}
	pauses := StaticPauses{"lending": true}
	if err := Guard(pauses, "lending"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if err := Guard(pauses, "tier"); err != nil {
		t.Fatalf("tier must not be paused: %v", err)
	}
}
