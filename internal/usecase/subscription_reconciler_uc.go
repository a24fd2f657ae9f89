package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"ai-agent-billing/internal/domain"
	"ai-agent-billing/internal/domain/model"
	"ai-agent-billing/internal/domain/ports/adapter"
	"ai-agent-billing/internal/domain/ports/repository"
	"ai-agent-billing/internal/infra/metrics"
)

// Compile-time check
var _ SubscriptionReconcilerUseCase = (*subscriptionReconcilerUC)(nil)

// ReconcileInput is a gateway-independent subscription state observation. The
// status has already been mapped into the canonical vocabulary by the adapter.
type ReconcileInput struct {
	UserID                string
	Gateway               string
	GatewaySubscriptionID string
	PlanID                string
	Status                model.CanonicalStatus
	Period                model.BillingPeriod
}

type SubscriptionReconcilerUseCase interface {
	// Reconcile converges the local subscription record, the user's plan and
	// the user's agents onto the gateway-reported state.
	Reconcile(ctx context.Context, in ReconcileInput) error
}

type subscriptionReconcilerUC struct {
	subs     repository.SubscriptionRepository
	users    repository.UserRepository
	plans    repository.PlanRepository
	agents   repository.AgentRepository
	models   repository.ModelCatalogRepository
	tm       repository.TransactionManager
	registry adapter.GatewayRegistry
	notifier adapter.Notifier
	log      *zerolog.Logger
}

func NewSubscriptionReconcilerUseCase(
	subs repository.SubscriptionRepository,
	users repository.UserRepository,
	plans repository.PlanRepository,
	agents repository.AgentRepository,
	models repository.ModelCatalogRepository,
	tm repository.TransactionManager,
	registry adapter.GatewayRegistry,
	notifier adapter.Notifier,
	logger *zerolog.Logger,
) *subscriptionReconcilerUC {
	l := logger.With().Str("component", "SubscriptionReconciler").Logger()
	return &subscriptionReconcilerUC{
		subs: subs, users: users, plans: plans, agents: agents, models: models,
		tm: tm, registry: registry, notifier: notifier, log: &l,
	}
}

func (u *subscriptionReconcilerUC) Reconcile(ctx context.Context, in ReconcileInput) error {
	if in.UserID == "" || in.Gateway == "" {
		return domain.ErrInvalidArgument
	}
	switch in.Status {
	case model.CanonicalStatusActive, model.CanonicalStatusPastDue,
		model.CanonicalStatusCancelled, model.CanonicalStatusExpired,
		model.CanonicalStatusPending:
	case model.CanonicalStatusUnknown:
		// Unmapped provider statuses are observed, not acted on.
		u.log.Warn().Str("user_id", in.UserID).Str("gateway", in.Gateway).
			Msg("unknown canonical status; skipping reconcile")
		return nil
	default:
		return domain.ErrInvalidArgument
	}

	var notify *adapter.Notification
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := u.subs.FindByUser(ctx, tx, in.UserID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			sub = nil
		}

		// A gateway switch cancels the old provider-side subscription before
		// the new one takes the identifier slot. Failure to cancel remotely is
		// logged and does not block convergence.
		if sub != nil && in.Status == model.CanonicalStatusActive && in.GatewaySubscriptionID != "" {
			if oldGw, oldID := sub.Gateway(); oldGw != "" && oldGw != in.Gateway {
				u.cancelOnGateway(ctx, oldGw, oldID)
			}
		}

		if sub == nil {
			period := in.Period
			if period == "" {
				period = model.BillingPeriodMonthly
			}
			planID := in.PlanID
			if planID == "" {
				return domain.ErrInvalidArgument
			}
			sub, err = model.NewUserSubscription(uuid.NewString(), in.UserID, planID, period)
			if err != nil {
				return err
			}
		}
		if in.PlanID != "" {
			sub.PlanID = in.PlanID
		}
		if in.Period != "" {
			sub.BillingPeriod = in.Period
		}

		now := time.Now()
		switch in.Status {
		case model.CanonicalStatusActive:
			sub.Status = model.SubscriptionStatusActive
			sub.CancelAtPeriodEnd = false
			start := now
			end := model.PeriodEndFrom(start, sub.BillingPeriod)
			sub.CurrentPeriodStart = &start
			sub.CurrentPeriodEnd = &end
			if in.GatewaySubscriptionID != "" {
				if err := sub.SetGatewayID(in.Gateway, in.GatewaySubscriptionID); err != nil {
					return err
				}
			}
			plan, err := u.plans.FindByID(ctx, tx, sub.PlanID)
			if err != nil {
				return err
			}
			if err := u.users.SetPlan(ctx, tx, in.UserID, plan.Tier, &end); err != nil {
				return err
			}

		case model.CanonicalStatusPastDue:
			// Grace period: keep access until the paid-through date passes.
			sub.Status = model.SubscriptionStatusPastDue
			if user, uerr := u.users.FindByID(ctx, tx, in.UserID); uerr == nil {
				notify = &adapter.Notification{
					Kind:   adapter.NotificationPaymentPastDue,
					UserID: user.ID,
					Email:  user.Email,
				}
			}

		case model.CanonicalStatusCancelled, model.CanonicalStatusExpired:
			if in.Status == model.CanonicalStatusCancelled {
				sub.Status = model.SubscriptionStatusCancelled
			} else {
				sub.Status = model.SubscriptionStatusExpired
			}
			if err := u.users.SetPlan(ctx, tx, in.UserID, model.PlanTypeFree, nil); err != nil {
				return err
			}
			if err := u.downgradeAgents(ctx, tx, in.UserID); err != nil {
				return err
			}

		case model.CanonicalStatusPending:
			sub.Status = model.SubscriptionStatusPending
		}

		sub.UpdatedAt = now
		return u.subs.Upsert(ctx, tx, sub)
	})
	if err != nil {
		return err
	}

	metrics.IncReconcile(string(in.Status))
	if notify != nil {
		u.notifier.Notify(*notify)
	}
	u.log.Info().Str("user_id", in.UserID).Str("gateway", in.Gateway).
		Str("status", string(in.Status)).Msg("subscription reconciled")
	return nil
}

// downgradeAgents moves every agent still on a premium model to the active
// free-tier model. Absence of a free-tier model is a fatal configuration error
// surfaced loudly, never silently skipped.
func (u *subscriptionReconcilerUC) downgradeAgents(ctx context.Context, tx repository.Tx, userID string) error {
	fallback, err := u.models.FindActiveFreeModel(ctx, tx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncConfigError("no_free_model")
			u.log.Error().Str("user_id", userID).Msg("downgrade blocked: no active free-tier model configured")
			return domain.ErrNoFallbackModel
		}
		return err
	}

	agents, err := u.agents.ListByUser(ctx, tx, userID)
	if err != nil {
		return err
	}
	for _, a := range agents {
		if a.ModelID == fallback.ID {
			continue
		}
		m, err := u.models.FindByID(ctx, tx, a.ModelID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Orphaned model reference: migrate it to the fallback too.
				m = &model.AIModel{ID: a.ModelID, Tier: model.ModelTierPremium}
			} else {
				return err
			}
		}
		if m.Tier != model.ModelTierPremium {
			continue
		}
		if err := u.agents.UpdateModel(ctx, tx, a.ID, fallback.ID); err != nil {
			return err
		}
		u.log.Info().Str("agent_id", a.ID).Str("from_model", a.ModelID).
			Str("to_model", fallback.ID).Msg("agent downgraded to free-tier model")
	}
	return nil
}

func (u *subscriptionReconcilerUC) cancelOnGateway(ctx context.Context, gateway, subscriptionID string) {
	ad, ok := u.registry.Get(gateway)
	if !ok {
		u.log.Error().Str("gateway", gateway).Msg("no adapter for previous gateway; cannot cancel remote subscription")
		return
	}
	if err := ad.CancelSubscription(ctx, subscriptionID); err != nil {
		u.log.Error().Err(err).Str("gateway", gateway).Str("subscription_id", subscriptionID).
			Msg("cancel previous gateway subscription failed")
	}
}
