package usecase

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"ai-agent-billing/internal/domain"
	"ai-agent-billing/internal/domain/model"
	"ai-agent-billing/internal/domain/ports/repository"
	"ai-agent-billing/internal/infra/metrics"
)

// Compile-time check
var _ CreditLedgerUseCase = (*creditLedgerUC)(nil)

// CreditGrant describes one credit purchase to apply.
type CreditGrant struct {
	UserID          string
	Credits         int64
	Description     string
	Amount          int64 // minor units
	Currency        string
	CreditPackageID *string
	Key             model.IdempotencyKey
}

// SubscriptionCharge describes one subscription payment to record.
type SubscriptionCharge struct {
	UserID      string
	PlanID      *string
	Description string
	Amount      int64
	Currency    string
	Key         model.IdempotencyKey
}

type CreditLedgerUseCase interface {
	// AddCredits applies a credit grant exactly once per idempotency key. The
	// balance increment and the transaction row are one atomic write. A
	// duplicate delivery returns applied=0 with a nil error: already
	// processed is success, not failure.
	AddCredits(ctx context.Context, g CreditGrant) (applied int64, err error)

	// RecordSubscriptionCharge records a subscription payment row exactly
	// once per idempotency key. Returns whether a new row was written.
	RecordSubscriptionCharge(ctx context.Context, c SubscriptionCharge) (recorded bool, err error)
}

type creditLedgerUC struct {
	txns  repository.PaymentTransactionRepository
	users repository.UserRepository
	tm    repository.TransactionManager
	log   *zerolog.Logger
}

func NewCreditLedgerUseCase(txns repository.PaymentTransactionRepository, users repository.UserRepository, tm repository.TransactionManager, logger *zerolog.Logger) *creditLedgerUC {
	l := logger.With().Str("component", "CreditLedger").Logger()
	return &creditLedgerUC{txns: txns, users: users, tm: tm, log: &l}
}

func (u *creditLedgerUC) AddCredits(ctx context.Context, g CreditGrant) (int64, error) {
	if g.UserID == "" || g.Credits <= 0 || g.Key.IsZero() {
		return 0, domain.ErrInvalidArgument
	}

	t, err := model.NewPaymentTransaction(uuid.NewString(), g.UserID, model.TransactionTypeCredits, g.Key, g.Amount, g.Currency)
	if err != nil {
		return 0, err
	}
	credits := g.Credits
	t.CreditsAwarded = &credits
	t.CreditPackageID = g.CreditPackageID
	t.Description = g.Description

	var applied int64
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.txns.Insert(ctx, tx, t); err != nil {
			return err
		}
		balance, err := u.users.AdjustCreditBalance(ctx, tx, g.UserID, g.Credits)
		if err != nil {
			return err
		}
		applied = g.Credits
		u.log.Info().Str("user_id", g.UserID).Str("gateway", g.Key.Gateway).
			Str("gateway_transaction_id", g.Key.GatewayTransactionID).
			Int64("credits", g.Credits).Int64("balance", balance).Msg("credits applied")
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Duplicate delivery of the same monetary event.
			u.log.Debug().Str("gateway", g.Key.Gateway).
				Str("gateway_transaction_id", g.Key.GatewayTransactionID).Msg("credit grant already processed")
			return 0, nil
		}
		return 0, err
	}

	metrics.AddCreditsGranted(g.Key.Gateway, applied)
	metrics.IncTransaction(g.Key.Gateway, string(model.TransactionTypeCredits))
	return applied, nil
}

func (u *creditLedgerUC) RecordSubscriptionCharge(ctx context.Context, c SubscriptionCharge) (bool, error) {
	if c.UserID == "" || c.Key.IsZero() {
		return false, domain.ErrInvalidArgument
	}

	t, err := model.NewPaymentTransaction(uuid.NewString(), c.UserID, model.TransactionTypeSubscription, c.Key, c.Amount, c.Currency)
	if err != nil {
		return false, err
	}
	t.PlanID = c.PlanID
	t.Description = c.Description

	if err := u.txns.Insert(ctx, nil, t); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return false, nil
		}
		return false, err
	}
	metrics.IncTransaction(c.Key.Gateway, string(model.TransactionTypeSubscription))
	return true, nil
}
