package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"ai-agent-billing/internal/domain"
	"ai-agent-billing/internal/domain/model"
	"ai-agent-billing/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.GatewayAdapter = (*PayPalAdapter)(nil)

// PayPalAdapter handles PayPal webhooks. Verification signs the transmission
// manifest (transmission id | transmission time | body) with a shared webhook
// secret; custom_id carries the user id set at order creation.
type PayPalAdapter struct {
	webhookSecret string
	apiBase       string
	httpc         *http.Client
	log           *zerolog.Logger
}

func NewPayPalAdapter(webhookSecret string, logger *zerolog.Logger) *PayPalAdapter {
	l := logger.With().Str("component", "PayPalAdapter").Logger()
	return &PayPalAdapter{
		webhookSecret: webhookSecret,
		apiBase:       "https://api-m.paypal.com",
		httpc:         http.DefaultClient,
		log:           &l,
	}
}

func (a *PayPalAdapter) Name() string { return model.GatewayPayPal }

func (a *PayPalAdapter) VerifySignature(body []byte, header http.Header) error {
	transmissionID := header.Get("Paypal-Transmission-Id")
	transmissionTime := header.Get("Paypal-Transmission-Time")
	sig := header.Get("Paypal-Transmission-Sig")
	if transmissionID == "" || transmissionTime == "" || sig == "" {
		return domain.ErrInvalidSignature
	}
	manifest := transmissionID + "|" + transmissionTime + "|" + string(body)
	if !signaturesEqual(hmacSHA256Hex(a.webhookSecret, []byte(manifest)), sig) {
		return domain.ErrInvalidSignature
	}
	return nil
}

type paypalMoney struct {
	Value        string `json:"value"`
	CurrencyCode string `json:"currency_code"`
}

type paypalResource struct {
	ID       string      `json:"id"`
	Status   string      `json:"status"`
	CustomID string      `json:"custom_id"`
	Amount   paypalMoney `json:"amount"`

	// Refund / dispute links back to the capture.
	Links []struct {
		Rel  string `json:"rel"`
		Href string `json:"href"`
	} `json:"links"`
	DisputedTransactions []struct {
		SellerTransactionID string `json:"seller_transaction_id"`
	} `json:"disputed_transactions"`
	DisputeAmount paypalMoney `json:"dispute_amount"`

	// Subscription resource fields.
	PlanID     string `json:"plan_id"`
	Subscriber struct {
		EmailAddress string `json:"email_address"`
	} `json:"subscriber"`

	// Sale resource (subscription charges) fields.
	BillingAgreementID string `json:"billing_agreement_id"`
}

type paypalWebhook struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	ResourceType string          `json:"resource_type"`
	Resource     paypalResource  `json:"resource"`
	Raw          json.RawMessage `json:"-"`
}

// custom_id carries "user_id" alone or a packed
// "user_id;credits;credit_package_id" / "user_id;;plan_id;period" form set at
// order or subscription creation.
func splitCustomID(customID string) (userID, credits, pkgOrPlan, period string) {
	parts := strings.Split(customID, ";")
	get := func(i int) string {
		if i < len(parts) {
			return parts[i]
		}
		return ""
	}
	return get(0), get(1), get(2), get(3)
}

func (a *PayPalAdapter) ParseEvent(body []byte) (*model.CanonicalEvent, error) {
	var wh paypalWebhook
	if err := json.Unmarshal(body, &wh); err != nil {
		return nil, fmt.Errorf("parse paypal webhook: %w", err)
	}
	r := wh.Resource

	ev := &model.CanonicalEvent{
		Gateway: model.GatewayPayPal,
		EventID: wh.ID,
		RawType: wh.EventType,
		Kind:    model.EventKindIgnored,
	}

	switch wh.EventType {
	case "PAYMENT.CAPTURE.COMPLETED":
		userID, credits, pkg, _ := splitCustomID(r.CustomID)
		amount, err := parseDecimalMinor(r.Amount.Value)
		if err != nil {
			return nil, err
		}
		ev.Kind = model.EventKindCreditPurchase
		ev.UserID = userID
		ev.Credits = parseInt64(credits)
		ev.CreditPackageID = pkg
		ev.GatewayTransactionID = r.ID
		ev.Amount = amount
		ev.Currency = r.Amount.CurrencyCode

	case "PAYMENT.SALE.COMPLETED":
		userID, _, plan, period := splitCustomID(r.CustomID)
		amount, err := parseDecimalMinor(r.Amount.Value)
		if err != nil {
			return nil, err
		}
		ev.Kind = model.EventKindSubscriptionCharge
		ev.UserID = userID
		ev.PlanID = plan
		ev.GatewayTransactionID = r.ID
		ev.GatewaySubscriptionID = r.BillingAgreementID
		ev.Amount = amount
		ev.Currency = r.Amount.CurrencyCode
		if period == string(model.BillingPeriodYearly) {
			ev.BillingPeriod = model.BillingPeriodYearly
		} else {
			ev.BillingPeriod = model.BillingPeriodMonthly
		}

	case "PAYMENT.CAPTURE.REFUNDED", "PAYMENT.SALE.REFUNDED":
		amount, err := parseDecimalMinor(r.Amount.Value)
		if err != nil {
			return nil, err
		}
		ev.Kind = model.EventKindRefund
		ev.GatewayRefundID = r.ID
		ev.GatewayTransactionID = captureIDFromLinks(r.Links)
		ev.Amount = amount
		ev.Currency = r.Amount.CurrencyCode

	case "CUSTOMER.DISPUTE.CREATED":
		amount, err := parseDecimalMinor(r.DisputeAmount.Value)
		if err != nil {
			return nil, err
		}
		ev.Kind = model.EventKindChargeback
		ev.GatewayRefundID = r.ID
		ev.Amount = amount
		ev.Currency = r.DisputeAmount.CurrencyCode
		if len(r.DisputedTransactions) > 0 {
			ev.GatewayTransactionID = r.DisputedTransactions[0].SellerTransactionID
		}

	case "BILLING.SUBSCRIPTION.ACTIVATED", "BILLING.SUBSCRIPTION.UPDATED",
		"BILLING.SUBSCRIPTION.SUSPENDED", "BILLING.SUBSCRIPTION.CANCELLED",
		"BILLING.SUBSCRIPTION.EXPIRED", "BILLING.SUBSCRIPTION.PAYMENT.FAILED":
		userID, _, plan, period := splitCustomID(r.CustomID)
		ev.Kind = model.EventKindSubscriptionStatus
		ev.UserID = userID
		ev.PlanID = plan
		ev.GatewaySubscriptionID = r.ID
		if wh.EventType == "BILLING.SUBSCRIPTION.PAYMENT.FAILED" {
			ev.Status = model.CanonicalStatusPastDue
		} else {
			ev.Status = a.MapStatus(r.Status)
		}
		if period == string(model.BillingPeriodYearly) {
			ev.BillingPeriod = model.BillingPeriodYearly
		} else {
			ev.BillingPeriod = model.BillingPeriodMonthly
		}
	}

	return ev, nil
}

// captureIDFromLinks pulls the capture id out of the refund's "up" link.
func captureIDFromLinks(links []struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}) string {
	for _, l := range links {
		if l.Rel != "up" {
			continue
		}
		if i := strings.LastIndexByte(l.Href, '/'); i >= 0 {
			return l.Href[i+1:]
		}
	}
	return ""
}

func (a *PayPalAdapter) MapStatus(gatewayStatus string) model.CanonicalStatus {
	switch strings.ToUpper(gatewayStatus) {
	case "ACTIVE":
		return model.CanonicalStatusActive
	case "SUSPENDED":
		return model.CanonicalStatusPastDue
	case "CANCELLED":
		return model.CanonicalStatusCancelled
	case "EXPIRED":
		return model.CanonicalStatusExpired
	case "APPROVAL_PENDING", "APPROVED":
		return model.CanonicalStatusPending
	}
	return model.CanonicalStatusUnknown
}

func (a *PayPalAdapter) CancelSubscription(ctx context.Context, gatewaySubscriptionID string) error {
	url := fmt.Sprintf("%s/v1/billing/subscriptions/%s/cancel", a.apiBase, gatewaySubscriptionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(`{"reason":"gateway switch"}`))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("paypal cancel %s: %w", gatewaySubscriptionID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("paypal cancel %s: status %d: %s", gatewaySubscriptionID, resp.StatusCode, b)
	}
	return nil
}
