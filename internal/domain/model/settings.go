package model

import "time"

// BillingSettings are the admin-configurable knobs of the retry pipeline.
// They are read through a TTL-cached provider, never from package globals.
type BillingSettings struct {
	// RetryBackoffMinutes is the ordered per-attempt delay table. The last
	// entry repeats for attempts beyond the table length.
	RetryBackoffMinutes []int
	MaxAttempts         int
	ExpiryHours         int
	UpdatedAt           time.Time
}

// DefaultBillingSettings mirrors the documented defaults: backoff
// 1/5/15/30/60 minutes, 5 attempts, 24h expiry.
func DefaultBillingSettings() *BillingSettings {
	return &BillingSettings{
		RetryBackoffMinutes: []int{1, 5, 15, 30, 60},
		MaxAttempts:         5,
		ExpiryHours:         24,
	}
}

// BackoffDelay returns the delay to apply after failed attempt n (1-based).
func (s *BillingSettings) BackoffDelay(attempt int) time.Duration {
	table := s.RetryBackoffMinutes
	if len(table) == 0 {
		table = DefaultBillingSettings().RetryBackoffMinutes
	}
	if attempt < 1 {
		attempt = 1
	}
	idx := attempt - 1
	if idx >= len(table) {
		idx = len(table) - 1
	}
	return time.Duration(table[idx]) * time.Minute
}

// Expiry returns the queue expiry deadline for an item enqueued at `from`.
func (s *BillingSettings) Expiry(from time.Time) time.Time {
	hours := s.ExpiryHours
	if hours <= 0 {
		hours = 24
	}
	return from.Add(time.Duration(hours) * time.Hour)
}
