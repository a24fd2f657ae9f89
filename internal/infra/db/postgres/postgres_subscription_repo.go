package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-agent-billing/internal/domain"
	"ai-agent-billing/internal/domain/model"
	"ai-agent-billing/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionCols = `id, user_id, plan_id, status, billing_period, current_period_start, current_period_end, cancel_at_period_end, stripe_subscription_id, paypal_subscription_id, razorpay_subscription_id, paystack_subscription_id, mercadopago_preapproval_id, created_at, updated_at`

// Upsert keys on user_id: the storage layer enforces the single
// subscription-row-per-user invariant.
func (r *subscriptionRepo) Upsert(ctx context.Context, tx repository.Tx, s *model.UserSubscription) error {
	const q = `
INSERT INTO user_subscriptions (` + subscriptionCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (user_id) DO UPDATE SET
  plan_id=$3, status=$4, billing_period=$5, current_period_start=$6, current_period_end=$7,
  cancel_at_period_end=$8, stripe_subscription_id=$9, paypal_subscription_id=$10,
  razorpay_subscription_id=$11, paystack_subscription_id=$12, mercadopago_preapproval_id=$13,
  updated_at=$15;`

	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.UserID, s.PlanID, s.Status, s.BillingPeriod, s.CurrentPeriodStart, s.CurrentPeriodEnd,
		s.CancelAtPeriodEnd, s.StripeSubscriptionID, s.PayPalSubscriptionID, s.RazorpaySubscriptionID,
		s.PaystackSubscriptionID, s.MercadoPagoPreapprovalID, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *subscriptionRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) (*model.UserSubscription, error) {
	q := `SELECT ` + subscriptionCols + ` FROM user_subscriptions WHERE user_id=$1 LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", userID)
	if err != nil {
		return nil, err
	}
	s := &model.UserSubscription{}
	if err := row.Scan(&s.ID, &s.UserID, &s.PlanID, &s.Status, &s.BillingPeriod, &s.CurrentPeriodStart,
		&s.CurrentPeriodEnd, &s.CancelAtPeriodEnd, &s.StripeSubscriptionID, &s.PayPalSubscriptionID,
		&s.RazorpaySubscriptionID, &s.PaystackSubscriptionID, &s.MercadoPagoPreapprovalID,
		&s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return s, nil
}
