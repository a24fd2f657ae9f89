package model

import (
	"time"

	"ai-agent-billing/internal/domain"

	"github.com/oklog/ulid/v2"
)

type WebhookStatus string

const (
	WebhookStatusPending    WebhookStatus = "pending"
	WebhookStatusProcessing WebhookStatus = "processing"
	WebhookStatusCompleted  WebhookStatus = "completed"
	WebhookStatusFailed     WebhookStatus = "failed"
	WebhookStatusExpired    WebhookStatus = "expired"
)

// IsTerminal reports whether no further retries will ever touch the item.
func (s WebhookStatus) IsTerminal() bool {
	return s == WebhookStatusCompleted || s == WebhookStatusFailed || s == WebhookStatusExpired
}

// ErrorRecord is one entry of a queue item's ordered error history.
type ErrorRecord struct {
	Attempt   int       `json:"attempt"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// WebhookQueueItem is a durably queued webhook awaiting retry. The dedup key
// for queueing is (gateway, eventID) among non-terminal items; it is distinct
// from the transaction-level idempotency key because one external event may
// fan out into several downstream operations.
type WebhookQueueItem struct {
	ID           string // ULID; ordering by ID is chronological
	Gateway      string
	EventType    string
	EventID      string
	Payload      []byte // raw gateway body, reparsed on retry
	Status       WebhookStatus
	AttemptCount int
	MaxAttempts  int
	LastError    string
	ErrorHistory []ErrorRecord
	NextRetryAt  *time.Time
	ExpiresAt    time.Time
	ProcessedAt  *time.Time
	UserID       *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewWebhookQueueItem builds a fresh item after a first inline failure:
// zero attempts, pending, no retry schedule yet.
func NewWebhookQueueItem(gateway, eventType, eventID string, payload []byte, maxAttempts int, expiresAt time.Time, userID *string) (*WebhookQueueItem, error) {
	if gateway == "" || eventType == "" || eventID == "" || len(payload) == 0 || maxAttempts <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &WebhookQueueItem{
		ID:           ulid.Make().String(),
		Gateway:      gateway,
		EventType:    eventType,
		EventID:      eventID,
		Payload:      payload,
		Status:       WebhookStatusPending,
		AttemptCount: 0,
		MaxAttempts:  maxAttempts,
		ErrorHistory: []ErrorRecord{},
		ExpiresAt:    expiresAt,
		UserID:       userID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// RecordFailure appends to the error history and either exhausts the item or
// schedules the next retry at `next`.
func (w *WebhookQueueItem) RecordFailure(errMsg string, next *time.Time) {
	now := time.Now()
	w.LastError = errMsg
	w.ErrorHistory = append(w.ErrorHistory, ErrorRecord{
		Attempt:   w.AttemptCount,
		Error:     errMsg,
		Timestamp: now,
	})
	if w.AttemptCount >= w.MaxAttempts {
		w.Status = WebhookStatusFailed
		w.NextRetryAt = nil
	} else {
		w.Status = WebhookStatusPending
		w.NextRetryAt = next
	}
	w.UpdatedAt = now
}

// MarkCompleted finalizes a successfully reprocessed item.
func (w *WebhookQueueItem) MarkCompleted() {
	now := time.Now()
	w.Status = WebhookStatusCompleted
	w.ProcessedAt = &now
	w.NextRetryAt = nil
	w.UpdatedAt = now
}
