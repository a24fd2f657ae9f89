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
var _ adapter.GatewayAdapter = (*MercadoPagoAdapter)(nil)

// MercadoPagoAdapter handles Mercado Pago webhooks. The x-signature header
// carries "ts=<unix>,v1=<hmac>"; the signed manifest is
// "id:<data.id>;request-id:<x-request-id>;ts:<ts>;" per the provider docs.
type MercadoPagoAdapter struct {
	accessToken   string
	webhookSecret string
	apiBase       string
	httpc         *http.Client
	log           *zerolog.Logger
}

func NewMercadoPagoAdapter(accessToken, webhookSecret string, logger *zerolog.Logger) *MercadoPagoAdapter {
	l := logger.With().Str("component", "MercadoPagoAdapter").Logger()
	return &MercadoPagoAdapter{
		accessToken:   accessToken,
		webhookSecret: webhookSecret,
		apiBase:       "https://api.mercadopago.com",
		httpc:         http.DefaultClient,
		log:           &l,
	}
}

func (a *MercadoPagoAdapter) Name() string { return model.GatewayMercadoPago }

func (a *MercadoPagoAdapter) VerifySignature(body []byte, header http.Header) error {
	sig := header.Get("x-signature")
	if sig == "" {
		return domain.ErrInvalidSignature
	}
	var ts, v1 string
	for _, part := range strings.Split(sig, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "ts":
			ts = v
		case "v1":
			v1 = v
		}
	}
	if ts == "" || v1 == "" {
		return domain.ErrInvalidSignature
	}

	var wh mercadoPagoWebhook
	if err := json.Unmarshal(body, &wh); err != nil {
		return domain.ErrInvalidSignature
	}
	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;",
		strings.ToLower(wh.Data.ID), header.Get("x-request-id"), ts)
	if !signaturesEqual(hmacSHA256Hex(a.webhookSecret, []byte(manifest)), v1) {
		return domain.ErrInvalidSignature
	}
	return nil
}

type mercadoPagoData struct {
	ID                string            `json:"id"`
	Status            string            `json:"status"`
	TransactionAmount json.Number       `json:"transaction_amount"`
	CurrencyID        string            `json:"currency_id"`
	Metadata          map[string]string `json:"metadata"`
	PaymentID         string            `json:"payment_id"`
	PreapprovalID     string            `json:"preapproval_id"`
}

type mercadoPagoWebhook struct {
	ID     json.Number     `json:"id"`
	Type   string          `json:"type"`
	Action string          `json:"action"`
	Data   mercadoPagoData `json:"data"`
}

func (a *MercadoPagoAdapter) ParseEvent(body []byte) (*model.CanonicalEvent, error) {
	var wh mercadoPagoWebhook
	if err := json.Unmarshal(body, &wh); err != nil {
		return nil, fmt.Errorf("parse mercadopago webhook: %w", err)
	}
	d := wh.Data

	ev := &model.CanonicalEvent{
		Gateway: model.GatewayMercadoPago,
		EventID: wh.Action + "_" + d.ID,
		RawType: wh.Type + "/" + wh.Action,
		Kind:    model.EventKindIgnored,
	}

	amount, err := parseDecimalMinor(d.TransactionAmount.String())
	if err != nil {
		return nil, err
	}

	switch {
	case wh.Type == "payment" && (wh.Action == "payment.created" || wh.Action == "payment.updated"):
		if d.Status != "approved" {
			return ev, nil
		}
		ev.UserID = d.Metadata["user_id"]
		ev.GatewayTransactionID = d.ID
		ev.Amount = amount
		ev.Currency = d.CurrencyID
		if d.PreapprovalID != "" {
			ev.Kind = model.EventKindSubscriptionCharge
			ev.GatewaySubscriptionID = d.PreapprovalID
			ev.PlanID = d.Metadata["plan_id"]
			ev.BillingPeriod = billingPeriodFromMeta(d.Metadata)
		} else {
			ev.Kind = model.EventKindCreditPurchase
			ev.CreditPackageID = d.Metadata["credit_package_id"]
			ev.Credits = parseInt64(d.Metadata["credits"])
		}

	case wh.Type == "payment" && wh.Action == "payment.refunded":
		ev.Kind = model.EventKindRefund
		ev.GatewayRefundID = "refund_" + d.ID
		ev.GatewayTransactionID = d.ID
		ev.Amount = amount
		ev.Currency = d.CurrencyID

	case wh.Type == "chargebacks":
		ev.Kind = model.EventKindChargeback
		ev.GatewayRefundID = "chargeback_" + d.ID
		ev.GatewayTransactionID = d.PaymentID
		ev.Amount = amount
		ev.Currency = d.CurrencyID

	case wh.Type == "subscription_preapproval":
		ev.Kind = model.EventKindSubscriptionStatus
		ev.GatewaySubscriptionID = d.ID
		ev.UserID = d.Metadata["user_id"]
		ev.PlanID = d.Metadata["plan_id"]
		ev.BillingPeriod = billingPeriodFromMeta(d.Metadata)
		ev.Status = a.MapStatus(d.Status)
	}

	return ev, nil
}

func (a *MercadoPagoAdapter) MapStatus(gatewayStatus string) model.CanonicalStatus {
	switch gatewayStatus {
	case "authorized", "approved":
		return model.CanonicalStatusActive
	case "paused":
		return model.CanonicalStatusPastDue
	case "cancelled":
		return model.CanonicalStatusCancelled
	case "expired", "finished":
		return model.CanonicalStatusExpired
	case "pending":
		return model.CanonicalStatusPending
	}
	return model.CanonicalStatusUnknown
}

func (a *MercadoPagoAdapter) CancelSubscription(ctx context.Context, gatewaySubscriptionID string) error {
	url := fmt.Sprintf("%s/preapproval/%s", a.apiBase, gatewaySubscriptionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, strings.NewReader(`{"status":"cancelled"}`))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.accessToken)
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("mercadopago cancel %s: %w", gatewaySubscriptionID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mercadopago cancel %s: status %d: %s", gatewaySubscriptionID, resp.StatusCode, b)
	}
	return nil
}
