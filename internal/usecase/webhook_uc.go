package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"ai-agent-billing/internal/domain"
	"ai-agent-billing/internal/domain/model"
	"ai-agent-billing/internal/domain/ports/adapter"
	"ai-agent-billing/internal/domain/ports/repository"
	"ai-agent-billing/internal/infra/logging"
	"ai-agent-billing/internal/infra/metrics"
)

// Compile-time check
var _ WebhookProcessorUseCase = (*webhookProcessorUC)(nil)

type WebhookProcessorUseCase interface {
	// ProcessCanonical dispatches one canonical event to the owning component.
	// A nil error covers duplicates and ignored kinds as well: the HTTP layer
	// acknowledges all of those identically.
	ProcessCanonical(ctx context.Context, ev *model.CanonicalEvent) error

	// ReprocessStored reparses a stored raw payload and runs it through the
	// same dispatch. Signature verification happened at ingress; the stored
	// body is trusted.
	ReprocessStored(ctx context.Context, gateway string, payload []byte) error

	// EnqueueForRetry queues a failed delivery for the retry scheduler.
	// Returns false when a live item for the same (gateway, eventID) already
	// holds the slot.
	EnqueueForRetry(ctx context.Context, ev *model.CanonicalEvent, payload []byte, cause error) (bool, error)
}

type webhookProcessorUC struct {
	ledger     CreditLedgerUseCase
	refunds    RefundResolverUseCase
	reconciler SubscriptionReconcilerUseCase
	queue      repository.WebhookQueueRepository
	registry   adapter.GatewayRegistry
	settings   *SettingsProvider
	log        *zerolog.Logger
}

func NewWebhookProcessorUseCase(
	ledger CreditLedgerUseCase,
	refunds RefundResolverUseCase,
	reconciler SubscriptionReconcilerUseCase,
	queue repository.WebhookQueueRepository,
	registry adapter.GatewayRegistry,
	settings *SettingsProvider,
	logger *zerolog.Logger,
) *webhookProcessorUC {
	l := logger.With().Str("component", "WebhookProcessor").Logger()
	return &webhookProcessorUC{
		ledger: ledger, refunds: refunds, reconciler: reconciler,
		queue: queue, registry: registry, settings: settings, log: &l,
	}
}

func (u *webhookProcessorUC) ProcessCanonical(ctx context.Context, ev *model.CanonicalEvent) error {
	if ev == nil || ev.Gateway == "" || ev.EventID == "" {
		return domain.ErrInvalidArgument
	}
	if ev.UserID != "" {
		ctx = logging.WithUserID(ctx, ev.UserID)
	}
	log := logging.With(ctx, u.log)

	switch ev.Kind {
	case model.EventKindCreditPurchase:
		var pkg *string
		if ev.CreditPackageID != "" {
			id := ev.CreditPackageID
			pkg = &id
		}
		_, err := u.ledger.AddCredits(ctx, CreditGrant{
			UserID:          ev.UserID,
			Credits:         ev.Credits,
			Description:     ev.RawType,
			Amount:          ev.Amount,
			Currency:        ev.Currency,
			CreditPackageID: pkg,
			Key: model.IdempotencyKey{
				Gateway:              ev.Gateway,
				GatewayTransactionID: ev.GatewayTransactionID,
			},
		})
		return err

	case model.EventKindSubscriptionCharge:
		var plan *string
		if ev.PlanID != "" {
			id := ev.PlanID
			plan = &id
		}
		if _, err := u.ledger.RecordSubscriptionCharge(ctx, SubscriptionCharge{
			UserID:      ev.UserID,
			PlanID:      plan,
			Description: ev.RawType,
			Amount:      ev.Amount,
			Currency:    ev.Currency,
			Key: model.IdempotencyKey{
				Gateway:              ev.Gateway,
				GatewayTransactionID: ev.GatewayTransactionID,
			},
		}); err != nil {
			return err
		}
		// A successful charge also confirms the subscription is live.
		return u.reconciler.Reconcile(ctx, ReconcileInput{
			UserID:                ev.UserID,
			Gateway:               ev.Gateway,
			GatewaySubscriptionID: ev.GatewaySubscriptionID,
			PlanID:                ev.PlanID,
			Status:                model.CanonicalStatusActive,
			Period:                ev.BillingPeriod,
		})

	case model.EventKindRefund:
		return u.refunds.HandleGatewayRefund(ctx, ev)

	case model.EventKindChargeback:
		return u.refunds.HandleChargeback(ctx, ev)

	case model.EventKindSubscriptionStatus:
		return u.reconciler.Reconcile(ctx, ReconcileInput{
			UserID:                ev.UserID,
			Gateway:               ev.Gateway,
			GatewaySubscriptionID: ev.GatewaySubscriptionID,
			PlanID:                ev.PlanID,
			Status:                ev.Status,
			Period:                ev.BillingPeriod,
		})

	case model.EventKindIgnored:
		log.Debug().Str("raw_type", ev.RawType).Msg("event type ignored")
		return nil
	}

	return domain.ErrUnknownEventType
}

func (u *webhookProcessorUC) ReprocessStored(ctx context.Context, gateway string, payload []byte) error {
	ad, ok := u.registry.Get(gateway)
	if !ok {
		return domain.ErrUnknownGateway
	}
	ev, err := ad.ParseEvent(payload)
	if err != nil {
		return err
	}
	return u.ProcessCanonical(ctx, ev)
}

func (u *webhookProcessorUC) EnqueueForRetry(ctx context.Context, ev *model.CanonicalEvent, payload []byte, cause error) (bool, error) {
	s := u.settings.Get(ctx)

	var userID *string
	if ev.UserID != "" {
		id := ev.UserID
		userID = &id
	}
	item, err := model.NewWebhookQueueItem(ev.Gateway, ev.RawType, ev.EventID, payload, s.MaxAttempts, s.Expiry(time.Now()), userID)
	if err != nil {
		return false, err
	}
	if cause != nil {
		item.LastError = cause.Error()
	}

	created, err := u.queue.Enqueue(ctx, item)
	if err != nil {
		return false, err
	}
	if created {
		metrics.IncWebhookEnqueued(ev.Gateway)
		u.log.Warn().Str("gateway", ev.Gateway).Str("event_id", ev.EventID).
			Str("queue_id", item.ID).Err(cause).Msg("webhook enqueued for retry")
	} else {
		u.log.Debug().Str("gateway", ev.Gateway).Str("event_id", ev.EventID).
			Msg("live queue item already holds this event")
	}
	return created, nil
}

// RetryableError reports whether a processing failure should be queued rather
// than surfaced as a permanent rejection. Validation and duplicate outcomes
// never retry; everything else is presumed transient.
func RetryableError(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrAlreadyProcessed),
		errors.Is(err, domain.ErrUnknownEventType),
		errors.Is(err, domain.ErrUnknownGateway):
		return false
	}
	return true
}
