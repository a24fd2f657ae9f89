//go:build !integration

package model

import (
	"testing"
	"time"

	"ai-agent-billing/internal/domain"
)

func newQueueItem(t *testing.T, maxAttempts int) *WebhookQueueItem {
	t.Helper()
	it, err := NewWebhookQueueItem(GatewayStripe, "checkout.session.completed", "evt_1",
		[]byte(`{}`), maxAttempts, time.Now().Add(24*time.Hour), nil)
	if err != nil {
		t.Fatalf("NewWebhookQueueItem: %v", err)
	}
	return it
}

func TestNewWebhookQueueItem(t *testing.T) {
	it := newQueueItem(t, 5)
	if it.Status != WebhookStatusPending || it.AttemptCount != 0 {
		t.Fatalf("fresh item = %+v", it)
	}
	if it.ID == "" {
		t.Fatal("missing id")
	}

	if _, err := NewWebhookQueueItem("", "t", "e", []byte(`{}`), 5, time.Now(), nil); err != domain.ErrInvalidArgument {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
	if _, err := NewWebhookQueueItem(GatewayStripe, "t", "e", nil, 5, time.Now(), nil); err != domain.ErrInvalidArgument {
		t.Fatalf("empty payload: err = %v, want ErrInvalidArgument", err)
	}
}

func TestQueueItemIDsAreChronological(t *testing.T) {
	a := newQueueItem(t, 5)
	time.Sleep(2 * time.Millisecond)
	b := newQueueItem(t, 5)
	if !(a.ID < b.ID) {
		t.Fatalf("ids not ordered: %s then %s", a.ID, b.ID)
	}
}

func TestRecordFailure_SchedulesRetry(t *testing.T) {
	it := newQueueItem(t, 5)
	it.AttemptCount = 1 // claimed once

	next := time.Now().Add(time.Minute)
	it.RecordFailure("db down", &next)

	if it.Status != WebhookStatusPending {
		t.Fatalf("status = %s, want pending", it.Status)
	}
	if it.NextRetryAt == nil || !it.NextRetryAt.Equal(next) {
		t.Fatalf("next retry = %v", it.NextRetryAt)
	}
	if it.LastError != "db down" || len(it.ErrorHistory) != 1 {
		t.Fatalf("error state = %q / %+v", it.LastError, it.ErrorHistory)
	}
	if it.ErrorHistory[0].Attempt != 1 {
		t.Fatalf("history attempt = %d", it.ErrorHistory[0].Attempt)
	}
}

func TestRecordFailure_ExhaustionIsTerminal(t *testing.T) {
	it := newQueueItem(t, 3)
	next := time.Now().Add(time.Minute)
	for attempt := 1; attempt <= 3; attempt++ {
		it.AttemptCount = attempt
		it.RecordFailure("still broken", &next)
	}

	if it.Status != WebhookStatusFailed {
		t.Fatalf("status = %s, want failed", it.Status)
	}
	if it.NextRetryAt != nil {
		t.Fatal("failed item must not be rescheduled")
	}
	if len(it.ErrorHistory) != 3 {
		t.Fatalf("history length = %d, want 3", len(it.ErrorHistory))
	}
	if !it.Status.IsTerminal() {
		t.Fatal("failed must be terminal")
	}
}

func TestMarkCompleted(t *testing.T) {
	it := newQueueItem(t, 5)
	it.AttemptCount = 2
	it.MarkCompleted()

	if it.Status != WebhookStatusCompleted || it.ProcessedAt == nil || it.NextRetryAt != nil {
		t.Fatalf("completed item = %+v", it)
	}
	if !it.Status.IsTerminal() {
		t.Fatal("completed must be terminal")
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []WebhookStatus{WebhookStatusCompleted, WebhookStatusFailed, WebhookStatusExpired}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []WebhookStatus{WebhookStatusPending, WebhookStatusProcessing} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
