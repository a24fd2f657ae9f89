package gateway

import (
	"bytes"
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
var _ adapter.GatewayAdapter = (*PaystackAdapter)(nil)

// PaystackAdapter handles Paystack webhooks. The signature is
// HMAC-SHA512(body, secret_key) in the x-paystack-signature header; the API
// secret key doubles as the signing key.
type PaystackAdapter struct {
	secretKey string
	apiBase   string
	httpc     *http.Client
	log       *zerolog.Logger
}

func NewPaystackAdapter(secretKey string, logger *zerolog.Logger) *PaystackAdapter {
	l := logger.With().Str("component", "PaystackAdapter").Logger()
	return &PaystackAdapter{
		secretKey: secretKey,
		apiBase:   "https://api.paystack.co",
		httpc:     http.DefaultClient,
		log:       &l,
	}
}

func (a *PaystackAdapter) Name() string { return model.GatewayPaystack }

func (a *PaystackAdapter) VerifySignature(body []byte, header http.Header) error {
	sig := header.Get("x-paystack-signature")
	if sig == "" || !signaturesEqual(hmacSHA512Hex(a.secretKey, body), sig) {
		return domain.ErrInvalidSignature
	}
	return nil
}

type paystackData struct {
	ID            json.Number       `json:"id"`
	Reference     string            `json:"reference"`
	Amount        int64             `json:"amount"` // minor units (kobo)
	Currency      string            `json:"currency"`
	Status        string            `json:"status"`
	Metadata      map[string]string `json:"metadata"`
	Transaction   json.Number       `json:"transaction"`
	Subscription  struct {
		SubscriptionCode string `json:"subscription_code"`
	} `json:"subscription"`
	SubscriptionCode string `json:"subscription_code"`
	Plan             struct {
		PlanCode string `json:"plan_code"`
		Interval string `json:"interval"`
	} `json:"plan"`
}

type paystackWebhook struct {
	Event string       `json:"event"`
	Data  paystackData `json:"data"`
}

func (a *PaystackAdapter) ParseEvent(body []byte) (*model.CanonicalEvent, error) {
	var wh paystackWebhook
	if err := json.Unmarshal(body, &wh); err != nil {
		return nil, fmt.Errorf("parse paystack webhook: %w", err)
	}
	d := wh.Data

	ev := &model.CanonicalEvent{
		Gateway: model.GatewayPaystack,
		RawType: wh.Event,
		Kind:    model.EventKindIgnored,
		EventID: wh.Event + "_" + d.Reference,
	}

	switch wh.Event {
	case "charge.success":
		ev.UserID = d.Metadata["user_id"]
		ev.GatewayTransactionID = d.Reference
		ev.Amount = d.Amount
		ev.Currency = d.Currency
		code := d.SubscriptionCode
		if code == "" {
			code = d.Subscription.SubscriptionCode
		}
		if code != "" || d.Plan.PlanCode != "" {
			ev.Kind = model.EventKindSubscriptionCharge
			ev.GatewaySubscriptionID = code
			ev.PlanID = d.Metadata["plan_id"]
			if d.Plan.Interval == "annually" || d.Metadata["billing_period"] == string(model.BillingPeriodYearly) {
				ev.BillingPeriod = model.BillingPeriodYearly
			} else {
				ev.BillingPeriod = model.BillingPeriodMonthly
			}
		} else {
			ev.Kind = model.EventKindCreditPurchase
			ev.CreditPackageID = d.Metadata["credit_package_id"]
			ev.Credits = parseInt64(d.Metadata["credits"])
		}

	case "refund.processed":
		ev.Kind = model.EventKindRefund
		ev.EventID = "refund_" + d.ID.String()
		ev.GatewayRefundID = d.ID.String()
		ev.GatewayTransactionID = d.Reference
		if ev.GatewayTransactionID == "" {
			ev.GatewayTransactionID = d.Transaction.String()
		}
		ev.Amount = d.Amount
		ev.Currency = d.Currency

	case "charge.dispute.create":
		ev.Kind = model.EventKindChargeback
		ev.EventID = "dispute_" + d.ID.String()
		ev.GatewayRefundID = "dispute_" + d.ID.String()
		ev.GatewayTransactionID = d.Reference
		ev.Amount = d.Amount
		ev.Currency = d.Currency

	case "subscription.create", "subscription.not_renew", "subscription.disable",
		"invoice.payment_failed":
		ev.Kind = model.EventKindSubscriptionStatus
		code := d.SubscriptionCode
		if code == "" {
			code = d.Subscription.SubscriptionCode
		}
		ev.EventID = wh.Event + "_" + code
		ev.GatewaySubscriptionID = code
		ev.UserID = d.Metadata["user_id"]
		ev.PlanID = d.Metadata["plan_id"]
		switch wh.Event {
		case "subscription.create":
			ev.Status = a.MapStatus(d.Status)
		case "invoice.payment_failed":
			ev.Status = model.CanonicalStatusPastDue
		default:
			ev.Status = model.CanonicalStatusCancelled
		}
	}

	return ev, nil
}

func (a *PaystackAdapter) MapStatus(gatewayStatus string) model.CanonicalStatus {
	switch gatewayStatus {
	case "active":
		return model.CanonicalStatusActive
	case "attention":
		return model.CanonicalStatusPastDue
	case "non-renewing", "cancelled":
		return model.CanonicalStatusCancelled
	case "completed":
		return model.CanonicalStatusExpired
	case "pending":
		return model.CanonicalStatusPending
	}
	return model.CanonicalStatusUnknown
}

func (a *PaystackAdapter) CancelSubscription(ctx context.Context, gatewaySubscriptionID string) error {
	// Paystack disables a subscription with its code plus the email token; the
	// token-less variant works for subscriptions created through the API.
	payload, _ := json.Marshal(map[string]string{"code": gatewaySubscriptionID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiBase+"/subscription/disable", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.secretKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("paystack disable %s: %w", gatewaySubscriptionID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("paystack disable %s: status %d: %s", gatewaySubscriptionID, resp.StatusCode, b)
	}
	return nil
}
