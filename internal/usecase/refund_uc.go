package usecase

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"ai-agent-billing/internal/domain"
	"ai-agent-billing/internal/domain/model"
	"ai-agent-billing/internal/domain/ports/adapter"
	"ai-agent-billing/internal/domain/ports/repository"
	"ai-agent-billing/internal/infra/logging"
	"ai-agent-billing/internal/infra/metrics"
)

// Compile-time check
var _ RefundResolverUseCase = (*refundResolverUC)(nil)

type RefundInput struct {
	UserID           string
	TransactionID    string
	CreditsToReverse int64
	Amount           int64 // minor units
	Currency         string
	Gateway          string
	GatewayRefundID  string
	Reason           model.RefundReason
	Initiator        model.RefundInitiator
	// Suspend marks the account inactive inside the same transaction.
	// Set by the chargeback path; applied even when the refund itself
	// turns out to be a duplicate.
	Suspend bool
}

type RefundResult struct {
	Success          bool
	AlreadyProcessed bool
	CreditsReversed  int64
}

type RefundResolverUseCase interface {
	// ApplyRefund reverses credits and records the refund exactly once per
	// transaction. All writes share one transaction boundary: no partial
	// state survives a failure.
	ApplyRefund(ctx context.Context, in RefundInput) (RefundResult, error)

	// HandleGatewayRefund processes a provider-initiated refund event.
	HandleGatewayRefund(ctx context.Context, ev *model.CanonicalEvent) error

	// HandleChargeback processes a dispute: same reversal plus unconditional
	// account suspension and a best-effort user notification.
	HandleChargeback(ctx context.Context, ev *model.CanonicalEvent) error
}

type refundResolverUC struct {
	refunds  repository.RefundRepository
	txns     repository.PaymentTransactionRepository
	users    repository.UserRepository
	tm       repository.TransactionManager
	notifier adapter.Notifier
	log      *zerolog.Logger
}

func NewRefundResolverUseCase(
	refunds repository.RefundRepository,
	txns repository.PaymentTransactionRepository,
	users repository.UserRepository,
	tm repository.TransactionManager,
	notifier adapter.Notifier,
	logger *zerolog.Logger,
) *refundResolverUC {
	l := logger.With().Str("component", "RefundResolver").Logger()
	return &refundResolverUC{refunds: refunds, txns: txns, users: users, tm: tm, notifier: notifier, log: &l}
}

func (u *refundResolverUC) ApplyRefund(ctx context.Context, in RefundInput) (RefundResult, error) {
	if in.UserID == "" || in.TransactionID == "" || in.Gateway == "" || in.GatewayRefundID == "" {
		return RefundResult{}, domain.ErrInvalidArgument
	}
	defer logging.TraceDuration(u.log, "RefundResolver.ApplyRefund")()

	var res RefundResult
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		// Refunds are single-shot per transaction: detect before any mutation.
		existing, err := u.refunds.ListByTransaction(ctx, tx, in.TransactionID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			res.AlreadyProcessed = true
			if in.Suspend {
				return u.users.SetActive(ctx, tx, in.UserID, false)
			}
			return nil
		}

		// A replayed gateway refund id may arrive pointing at a different
		// transaction; it is still the same refund.
		if _, err := u.refunds.FindByGatewayRefundID(ctx, tx, in.Gateway, in.GatewayRefundID); err == nil {
			res.AlreadyProcessed = true
			if in.Suspend {
				return u.users.SetActive(ctx, tx, in.UserID, false)
			}
			return nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		if in.CreditsToReverse > 0 {
			// May drive the balance negative: reversing credits does not
			// re-add already-consumed services.
			if _, err := u.users.AdjustCreditBalance(ctx, tx, in.UserID, -in.CreditsToReverse); err != nil {
				return err
			}
		}

		rf, err := model.NewRefund(uuid.NewString(), in.TransactionID, in.UserID, in.Gateway, in.GatewayRefundID, in.Amount, in.Currency, in.Reason, in.Initiator)
		if err != nil {
			return err
		}
		if in.CreditsToReverse > 0 {
			reversed := in.CreditsToReverse
			rf.CreditsReversed = &reversed
		}
		rf.UserSuspended = in.Suspend
		if err := u.refunds.Insert(ctx, tx, rf); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				// Same dispute notification delivered twice; the transaction
				// rolls back the balance decrement above.
				res = RefundResult{AlreadyProcessed: true}
				return domain.ErrAlreadyProcessed
			}
			return err
		}

		if err := u.txns.MarkRefunded(ctx, tx, in.TransactionID); err != nil {
			return err
		}
		if in.Suspend {
			if err := u.users.SetActive(ctx, tx, in.UserID, false); err != nil {
				return err
			}
		}

		res.Success = true
		res.CreditsReversed = in.CreditsToReverse
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyProcessed) {
			// Duplicate gateway refund id: rolled back, but the suspension
			// still has to stick for chargebacks.
			if in.Suspend {
				if serr := u.users.SetActive(ctx, nil, in.UserID, false); serr != nil {
					return res, serr
				}
			}
			return RefundResult{AlreadyProcessed: true}, nil
		}
		return RefundResult{}, err
	}

	if res.Success {
		metrics.IncRefund(in.Gateway, string(in.Reason))
		u.log.Info().Str("user_id", in.UserID).Str("transaction_id", in.TransactionID).
			Str("gateway_refund_id", in.GatewayRefundID).Int64("credits_reversed", res.CreditsReversed).
			Bool("suspended", in.Suspend).Msg("refund applied")
	}
	return res, nil
}

// resolveTransaction maps a canonical refund/chargeback event to the original
// transaction row via the transaction-level idempotency key.
func (u *refundResolverUC) resolveTransaction(ctx context.Context, ev *model.CanonicalEvent) (*model.PaymentTransaction, error) {
	t, err := u.txns.FindByGatewayID(ctx, nil, ev.Gateway, ev.GatewayTransactionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrTransactionMissing
		}
		return nil, err
	}
	return t, nil
}

func (u *refundResolverUC) HandleGatewayRefund(ctx context.Context, ev *model.CanonicalEvent) error {
	t, err := u.resolveTransaction(ctx, ev)
	if err != nil {
		return err
	}
	var credits int64
	if t.CreditsAwarded != nil {
		credits = *t.CreditsAwarded
	}
	_, err = u.ApplyRefund(ctx, RefundInput{
		UserID:           t.UserID,
		TransactionID:    t.ID,
		CreditsToReverse: credits,
		Amount:           ev.Amount,
		Currency:         t.Currency,
		Gateway:          ev.Gateway,
		GatewayRefundID:  ev.GatewayRefundID,
		Reason:           model.RefundReasonGateway,
		Initiator:        model.RefundInitiatorGateway,
	})
	return err
}

func (u *refundResolverUC) HandleChargeback(ctx context.Context, ev *model.CanonicalEvent) error {
	t, err := u.resolveTransaction(ctx, ev)
	if err != nil {
		return err
	}
	var credits int64
	if t.CreditsAwarded != nil {
		credits = *t.CreditsAwarded
	}
	res, err := u.ApplyRefund(ctx, RefundInput{
		UserID:           t.UserID,
		TransactionID:    t.ID,
		CreditsToReverse: credits,
		Amount:           ev.Amount,
		Currency:         t.Currency,
		Gateway:          ev.Gateway,
		GatewayRefundID:  ev.GatewayRefundID,
		Reason:           model.RefundReasonChargeback,
		Initiator:        model.RefundInitiatorGateway,
		Suspend:          true,
	})
	if err != nil {
		return err
	}

	// Replays re-assert the suspension above but count and notify only once.
	if res.Success {
		metrics.IncSuspension()
		// Post-commit side effect: the suspension stands whatever happens to
		// the email.
		if user, uerr := u.users.FindByID(ctx, nil, t.UserID); uerr == nil {
			u.notifier.Notify(adapter.Notification{
				Kind:   adapter.NotificationAccountSuspended,
				UserID: user.ID,
				Email:  user.Email,
				Reason: "chargeback",
			})
		} else {
			u.log.Error().Err(uerr).Str("user_id", t.UserID).Msg("load user for suspension notice failed")
		}
	}
	return nil
}
