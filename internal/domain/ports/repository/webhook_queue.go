package repository

import (
	"context"
	"time"

	"ai-agent-billing/internal/domain/model"
)

// WebhookQueueRepository is the port for the durable webhook retry queue.
type WebhookQueueRepository interface {
	// Enqueue inserts the item unless a non-terminal item with the same
	// (gateway, eventID) already exists. Returns whether a row was created.
	Enqueue(ctx context.Context, item *model.WebhookQueueItem) (bool, error)

	// FetchDueAndMarkProcessing atomically claims the oldest due pending item:
	// transitions it to processing and increments its attempt count. Returns
	// domain.ErrNotFound when nothing is due.
	FetchDueAndMarkProcessing(ctx context.Context, now time.Time) (*model.WebhookQueueItem, error)

	// Update persists the mutable fields after a retry attempt.
	Update(ctx context.Context, tx Tx, item *model.WebhookQueueItem) error

	// ExpireOverdue marks every non-terminal item past its expiry deadline as
	// expired, regardless of remaining attempts. Covers processing rows
	// orphaned by a crashed drainer. Returns the number swept.
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)

	FindByID(ctx context.Context, tx Tx, id string) (*model.WebhookQueueItem, error)
	ListByStatus(ctx context.Context, status model.WebhookStatus, limit int) ([]*model.WebhookQueueItem, error)

	// ResetForRetry returns a terminal failed item to pending with a fresh
	// attempt budget and expiry. Manual-intervention path for operators.
	ResetForRetry(ctx context.Context, id string, expiresAt time.Time) error
}
