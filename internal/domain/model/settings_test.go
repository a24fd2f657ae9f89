//go:build !integration

package model

import (
	"testing"
	"time"
)

func TestBackoffDelay(t *testing.T) {
	s := DefaultBillingSettings()
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Minute},
		{2, 5 * time.Minute},
		{3, 15 * time.Minute},
		{4, 30 * time.Minute},
		{5, 60 * time.Minute},
		// The last table entry repeats past the table length.
		{6, 60 * time.Minute},
		{7, 60 * time.Minute},
		// Out-of-range input clamps to the first entry.
		{0, time.Minute},
		{-3, time.Minute},
	}
	for _, tc := range cases {
		if got := s.BackoffDelay(tc.attempt); got != tc.want {
			t.Errorf("BackoffDelay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestBackoffDelay_CustomTable(t *testing.T) {
	s := &BillingSettings{RetryBackoffMinutes: []int{2, 10}, MaxAttempts: 3, ExpiryHours: 48}
	if got := s.BackoffDelay(1); got != 2*time.Minute {
		t.Errorf("BackoffDelay(1) = %v", got)
	}
	if got := s.BackoffDelay(5); got != 10*time.Minute {
		t.Errorf("BackoffDelay(5) = %v, want the last entry repeated", got)
	}
}

func TestBackoffDelay_EmptyTableFallsBack(t *testing.T) {
	s := &BillingSettings{MaxAttempts: 5, ExpiryHours: 24}
	if got := s.BackoffDelay(2); got != 5*time.Minute {
		t.Errorf("BackoffDelay(2) = %v, want 5m from the default table", got)
	}
}

func TestExpiry(t *testing.T) {
	s := DefaultBillingSettings()
	from := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	if got := s.Expiry(from); !got.Equal(from.Add(24 * time.Hour)) {
		t.Errorf("Expiry = %v", got)
	}

	zero := &BillingSettings{}
	if got := zero.Expiry(from); !got.Equal(from.Add(24 * time.Hour)) {
		t.Errorf("Expiry with zero hours = %v, want 24h default", got)
	}
}
