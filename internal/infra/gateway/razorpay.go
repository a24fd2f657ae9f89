package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"ai-agent-billing/internal/domain"
	"ai-agent-billing/internal/domain/model"
	"ai-agent-billing/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.GatewayAdapter = (*RazorpayAdapter)(nil)

// RazorpayAdapter handles Razorpay webhooks. The signature is
// HMAC-SHA256(body, webhook_secret) in the X-Razorpay-Signature header.
// user_id, credits and plan_id travel in entity notes.
type RazorpayAdapter struct {
	keyID         string
	keySecret     string
	webhookSecret string
	apiBase       string
	httpc         *http.Client
	log           *zerolog.Logger
}

func NewRazorpayAdapter(keyID, keySecret, webhookSecret string, logger *zerolog.Logger) *RazorpayAdapter {
	l := logger.With().Str("component", "RazorpayAdapter").Logger()
	return &RazorpayAdapter{
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		apiBase:       "https://api.razorpay.com/v1",
		httpc:         http.DefaultClient,
		log:           &l,
	}
}

func (a *RazorpayAdapter) Name() string { return model.GatewayRazorpay }

func (a *RazorpayAdapter) VerifySignature(body []byte, header http.Header) error {
	sig := header.Get("X-Razorpay-Signature")
	if sig == "" || !signaturesEqual(hmacSHA256Hex(a.webhookSecret, body), sig) {
		return domain.ErrInvalidSignature
	}
	return nil
}

type razorpayEntity struct {
	ID             string            `json:"id"`
	Amount         int64             `json:"amount"` // already minor units (paise)
	Currency       string            `json:"currency"`
	Status         string            `json:"status"`
	PaymentID      string            `json:"payment_id"`
	SubscriptionID string            `json:"subscription_id"`
	Notes          map[string]string `json:"notes"`
}

type razorpayWebhook struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity razorpayEntity `json:"entity"`
		} `json:"payment"`
		Refund struct {
			Entity razorpayEntity `json:"entity"`
		} `json:"refund"`
		Subscription struct {
			Entity razorpayEntity `json:"entity"`
		} `json:"subscription"`
	} `json:"payload"`
}

func (a *RazorpayAdapter) ParseEvent(body []byte) (*model.CanonicalEvent, error) {
	var wh razorpayWebhook
	if err := json.Unmarshal(body, &wh); err != nil {
		return nil, fmt.Errorf("parse razorpay webhook: %w", err)
	}

	ev := &model.CanonicalEvent{
		Gateway: model.GatewayRazorpay,
		RawType: wh.Event,
		Kind:    model.EventKindIgnored,
	}

	switch wh.Event {
	case "payment.captured":
		p := wh.Payload.Payment.Entity
		ev.EventID = p.ID
		ev.UserID = p.Notes["user_id"]
		ev.GatewayTransactionID = p.ID
		ev.Amount = p.Amount
		ev.Currency = p.Currency
		if p.SubscriptionID != "" {
			ev.Kind = model.EventKindSubscriptionCharge
			ev.GatewaySubscriptionID = p.SubscriptionID
			ev.PlanID = p.Notes["plan_id"]
			ev.BillingPeriod = billingPeriodFromMeta(p.Notes)
		} else {
			ev.Kind = model.EventKindCreditPurchase
			ev.CreditPackageID = p.Notes["credit_package_id"]
			ev.Credits = parseInt64(p.Notes["credits"])
		}

	case "refund.processed":
		r := wh.Payload.Refund.Entity
		ev.Kind = model.EventKindRefund
		ev.EventID = r.ID
		ev.GatewayRefundID = r.ID
		ev.GatewayTransactionID = r.PaymentID
		ev.Amount = r.Amount
		ev.Currency = r.Currency

	case "payment.dispute.created":
		p := wh.Payload.Payment.Entity
		ev.Kind = model.EventKindChargeback
		ev.EventID = "dispute_" + p.ID
		ev.GatewayRefundID = "dispute_" + p.ID
		ev.GatewayTransactionID = p.ID
		ev.Amount = p.Amount
		ev.Currency = p.Currency

	case "subscription.activated", "subscription.charged", "subscription.pending",
		"subscription.halted", "subscription.cancelled", "subscription.completed",
		"subscription.paused":
		s := wh.Payload.Subscription.Entity
		ev.Kind = model.EventKindSubscriptionStatus
		ev.EventID = wh.Event + "_" + s.ID
		ev.GatewaySubscriptionID = s.ID
		ev.UserID = s.Notes["user_id"]
		ev.PlanID = s.Notes["plan_id"]
		ev.BillingPeriod = billingPeriodFromMeta(s.Notes)
		ev.Status = a.MapStatus(s.Status)
	}

	if ev.EventID == "" {
		// Ignored events still need a stable id for queue dedup.
		ev.EventID = wh.Event
	}
	return ev, nil
}

func (a *RazorpayAdapter) MapStatus(gatewayStatus string) model.CanonicalStatus {
	switch gatewayStatus {
	case "active", "authenticated", "resumed":
		return model.CanonicalStatusActive
	case "paused":
		return model.CanonicalStatusPastDue
	case "cancelled":
		return model.CanonicalStatusCancelled
	case "halted", "completed", "expired":
		// Razorpay halts a subscription once its retry schedule is exhausted;
		// the money is not coming, so treat it like an ended subscription.
		return model.CanonicalStatusExpired
	case "created", "pending":
		return model.CanonicalStatusPending
	}
	return model.CanonicalStatusUnknown
}

func (a *RazorpayAdapter) CancelSubscription(ctx context.Context, gatewaySubscriptionID string) error {
	url := fmt.Sprintf("%s/subscriptions/%s/cancel", a.apiBase, gatewaySubscriptionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(a.keyID, a.keySecret)
	resp, err := a.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("razorpay cancel %s: %w", gatewaySubscriptionID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("razorpay cancel %s: status %d: %s", gatewaySubscriptionID, resp.StatusCode, b)
	}
	return nil
}
