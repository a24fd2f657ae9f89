package repository

import (
	"context"

	"ai-agent-billing/internal/domain/model"
)

// SubscriptionRepository is the port for user subscriptions. Upsert keys on
// user_id so the one-row-per-user invariant holds at the storage layer.
type SubscriptionRepository interface {
	Upsert(ctx context.Context, tx Tx, sub *model.UserSubscription) error
	FindByUser(ctx context.Context, tx Tx, userID string) (*model.UserSubscription, error)
}
