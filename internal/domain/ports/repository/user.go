package repository

import (
	"context"
	"time"

	"ai-agent-billing/internal/domain/model"
)

type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	// AdjustCreditBalance applies a signed delta atomically and returns the
	// resulting balance. The balance may go negative on refund reversal.
	AdjustCreditBalance(ctx context.Context, tx Tx, userID string, delta int64) (int64, error)
	SetPlan(ctx context.Context, tx Tx, userID, planType string, expiresAt *time.Time) error
	SetActive(ctx context.Context, tx Tx, userID string, active bool) error
}
