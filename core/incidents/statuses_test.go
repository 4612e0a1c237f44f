package incidents

import (
	"errors"
	"testing"
)

func TestCanTransitionForwardOnly(t *testing.T) {
	if err := CanTransition(StatusReported, StatusUnderInvestigation); err != nil {
		t.Fatalf("reported -> under_investigation: %v", err)
	}
	// Skipping intermediate states is allowed.
	if err := CanTransition(StatusReported, StatusPendingVerification); err != nil {
		t.Fatalf("reported -> pending_verification: %v", err)
	}
	if err := CanTransition(StatusUnderInvestigation, StatusReported); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("backward transition err = %v, want ErrInvalidTransition", err)
	}
	if err := CanTransition(StatusReported, StatusReported); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("self transition err = %v, want ErrInvalidTransition", err)
	}
}

func TestCanTransitionClosedHandling(t *testing.T) {
	if err := CanTransition(StatusClosed, StatusReported); !errors.Is(err, ErrTerminalStatus) {
		t.Fatalf("from closed err = %v, want ErrTerminalStatus", err)
	}
	// closed is only reachable through Close, never via a status change.
	if err := CanTransition(StatusPendingVerification, StatusClosed); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("to closed err = %v, want ErrInvalidTransition", err)
	}
	if err := CanTransition("bogus", StatusReported); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("unknown from err = %v, want ErrUnknownStatus", err)
	}
	if err := CanTransition(StatusReported, "bogus"); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("unknown to err = %v, want ErrUnknownStatus", err)
	}
}

func TestRecordable(t *testing.T) {
	cases := map[string]bool{
		SeverityNearMiss: false,
		SeverityMinor:    false,
		SeverityModerate: true,
		SeveritySerious:  true,
		SeverityCritical: true,
		SeverityFatal:    true,
	}
	for severity, want := range cases {
		if got := Recordable(severity); got != want {
			t.Errorf("Recordable(%q) = %t, want %t", severity, got, want)
		}
	}
}
