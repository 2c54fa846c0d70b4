package api

import "testing"

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusScheduled, StatusInProgress, true},
		{StatusScheduled, StatusSkipped, true},
		{StatusScheduled, StatusDeployed, false},
		{StatusScheduled, StatusFailed, false},
		{StatusInProgress, StatusDeployed, true},
		{StatusInProgress, StatusFailed, true},
		{StatusInProgress, StatusScheduled, false},
		{StatusInProgress, StatusSkipped, false},
		{StatusFailed, StatusRolledBack, true},
		{StatusFailed, StatusScheduled, false},
		{StatusDeployed, StatusRolledBack, false},
		{StatusDeployed, StatusScheduled, false},
		{StatusSkipped, StatusInProgress, false},
		{StatusRolledBack, StatusScheduled, false},
		{StatusScheduled, StatusScheduled, false},
	}

	for _, tt := range tests {
		err := ValidateTransition(tt.from, tt.to)
		if tt.allowed && err != nil {
			t.Errorf("%s -> %s: expected allowed, got %v", tt.from, tt.to, err)
		}
		if !tt.allowed {
			if err == nil {
				t.Errorf("%s -> %s: expected rejection", tt.from, tt.to)
			} else if err.Type != ErrorTypeInvalidTransition {
				t.Errorf("%s -> %s: expected invalid_transition, got %s", tt.from, tt.to, err.Type)
			}
		}
	}
}

func TestTerminal(t *testing.T) {
	terminal := map[Status]bool{
		StatusScheduled:  false,
		StatusInProgress: false,
		StatusDeployed:   true,
		StatusSkipped:    true,
		StatusFailed:     true,
		StatusRolledBack: true,
	}
	for status, want := range terminal {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}
