package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/subscription"
	"github.com/stripe/stripe-go/v79/webhook"

	"ai-agent-billing/internal/domain"
	"ai-agent-billing/internal/domain/model"
	"ai-agent-billing/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.GatewayAdapter = (*StripeAdapter)(nil)

// StripeAdapter translates Stripe webhook deliveries into canonical events.
// user_id, credits and plan_id travel in Stripe object metadata, set when the
// checkout session or subscription is created.
type StripeAdapter struct {
	webhookSecret string
	log           *zerolog.Logger
}

func NewStripeAdapter(apiKey, webhookSecret string, logger *zerolog.Logger) *StripeAdapter {
	stripe.Key = apiKey
	l := logger.With().Str("component", "StripeAdapter").Logger()
	return &StripeAdapter{webhookSecret: webhookSecret, log: &l}
}

func (a *StripeAdapter) Name() string { return model.GatewayStripe }

func (a *StripeAdapter) VerifySignature(body []byte, header http.Header) error {
	sig := header.Get("Stripe-Signature")
	_, err := webhook.ConstructEventWithOptions(body, sig, a.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
	return nil
}

func (a *StripeAdapter) ParseEvent(body []byte) (*model.CanonicalEvent, error) {
	var event stripe.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("parse stripe event: %w", err)
	}

	ev := &model.CanonicalEvent{
		Gateway: model.GatewayStripe,
		EventID: event.ID,
		RawType: string(event.Type),
		Kind:    model.EventKindIgnored,
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("parse checkout session: %w", err)
		}
		// Subscription-mode checkouts are settled by the invoice event.
		if session.Mode != stripe.CheckoutSessionModePayment {
			return ev, nil
		}
		ev.Kind = model.EventKindCreditPurchase
		ev.UserID = session.Metadata["user_id"]
		ev.CreditPackageID = session.Metadata["credit_package_id"]
		ev.Credits = parseInt64(session.Metadata["credits"])
		ev.Amount = session.AmountTotal
		ev.Currency = string(session.Currency)
		if session.PaymentIntent != nil {
			ev.GatewayTransactionID = session.PaymentIntent.ID
		}

	case stripe.EventTypeInvoicePaid, stripe.EventTypeInvoicePaymentSucceeded:
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, fmt.Errorf("parse invoice: %w", err)
		}
		ev.Kind = model.EventKindSubscriptionCharge
		ev.GatewayTransactionID = invoice.ID
		ev.Amount = invoice.AmountPaid
		ev.Currency = string(invoice.Currency)
		if invoice.Subscription != nil {
			ev.GatewaySubscriptionID = invoice.Subscription.ID
		}
		if invoice.SubscriptionDetails != nil {
			ev.UserID = invoice.SubscriptionDetails.Metadata["user_id"]
			ev.PlanID = invoice.SubscriptionDetails.Metadata["plan_id"]
			ev.BillingPeriod = billingPeriodFromMeta(invoice.SubscriptionDetails.Metadata)
		}

	case stripe.EventTypeChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return nil, fmt.Errorf("parse charge: %w", err)
		}
		ev.Kind = model.EventKindRefund
		ev.Amount = charge.AmountRefunded
		ev.Currency = string(charge.Currency)
		if charge.PaymentIntent != nil {
			ev.GatewayTransactionID = charge.PaymentIntent.ID
		}
		if charge.Refunds != nil && len(charge.Refunds.Data) > 0 {
			ev.GatewayRefundID = charge.Refunds.Data[0].ID
		}

	case stripe.EventTypeChargeDisputeCreated:
		var dispute stripe.Dispute
		if err := json.Unmarshal(event.Data.Raw, &dispute); err != nil {
			return nil, fmt.Errorf("parse dispute: %w", err)
		}
		ev.Kind = model.EventKindChargeback
		ev.GatewayRefundID = dispute.ID
		ev.Amount = dispute.Amount
		ev.Currency = string(dispute.Currency)
		if dispute.PaymentIntent != nil {
			ev.GatewayTransactionID = dispute.PaymentIntent.ID
		}

	case stripe.EventTypeCustomerSubscriptionUpdated, stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("parse subscription: %w", err)
		}
		ev.Kind = model.EventKindSubscriptionStatus
		ev.GatewaySubscriptionID = sub.ID
		ev.UserID = sub.Metadata["user_id"]
		ev.PlanID = sub.Metadata["plan_id"]
		ev.Status = a.MapStatus(string(sub.Status))
		if sub.Items != nil && len(sub.Items.Data) > 0 &&
			sub.Items.Data[0].Price != nil && sub.Items.Data[0].Price.Recurring != nil &&
			sub.Items.Data[0].Price.Recurring.Interval == stripe.PriceRecurringIntervalYear {
			ev.BillingPeriod = model.BillingPeriodYearly
		} else {
			ev.BillingPeriod = model.BillingPeriodMonthly
		}
	}

	return ev, nil
}

func (a *StripeAdapter) MapStatus(gatewayStatus string) model.CanonicalStatus {
	switch stripe.SubscriptionStatus(gatewayStatus) {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return model.CanonicalStatusActive
	case stripe.SubscriptionStatusPastDue:
		return model.CanonicalStatusPastDue
	case stripe.SubscriptionStatusCanceled:
		return model.CanonicalStatusCancelled
	case stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusIncompleteExpired:
		return model.CanonicalStatusExpired
	case stripe.SubscriptionStatusIncomplete:
		return model.CanonicalStatusPending
	}
	return model.CanonicalStatusUnknown
}

func (a *StripeAdapter) CancelSubscription(ctx context.Context, gatewaySubscriptionID string) error {
	_, err := subscription.Cancel(gatewaySubscriptionID, &stripe.SubscriptionCancelParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return fmt.Errorf("stripe cancel %s: %w", gatewaySubscriptionID, err)
	}
	return nil
}

func billingPeriodFromMeta(meta map[string]string) model.BillingPeriod {
	if meta["billing_period"] == string(model.BillingPeriodYearly) {
		return model.BillingPeriodYearly
	}
	return model.BillingPeriodMonthly
}
