//go:build !integration

package gateway

import (
	"testing"

	"github.com/rs/zerolog"

	"ai-agent-billing/internal/domain/model"
)

func newStripeForTest() *StripeAdapter {
	log := zerolog.Nop()
	return NewStripeAdapter("sk_test_x", "whsec_test", &log)
}

func TestStripeMapStatus(t *testing.T) {
	a := newStripeForTest()
	cases := []struct {
		in   string
		want model.CanonicalStatus
	}{
		{"active", model.CanonicalStatusActive},
		{"trialing", model.CanonicalStatusActive},
		{"past_due", model.CanonicalStatusPastDue},
		{"canceled", model.CanonicalStatusCancelled},
		{"unpaid", model.CanonicalStatusExpired},
		{"incomplete_expired", model.CanonicalStatusExpired},
		{"incomplete", model.CanonicalStatusPending},
		{"something_new", model.CanonicalStatusUnknown},
	}
	for _, tc := range cases {
		if got := a.MapStatus(tc.in); got != tc.want {
			t.Errorf("MapStatus(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestStripeParseEvent_CheckoutSession(t *testing.T) {
	a := newStripeForTest()
	body := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_1",
			"mode": "payment",
			"amount_total": 999,
			"currency": "usd",
			"payment_intent": {"id": "pi_1"},
			"metadata": {"user_id": "u1", "credits": "500", "credit_package_id": "pkg_small"}
		}}
	}`)

	ev, err := a.ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if ev.Kind != model.EventKindCreditPurchase {
		t.Fatalf("kind = %s, want credit_purchase", ev.Kind)
	}
	if ev.EventID != "evt_1" || ev.UserID != "u1" || ev.GatewayTransactionID != "pi_1" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Credits != 500 || ev.Amount != 999 || ev.CreditPackageID != "pkg_small" {
		t.Fatalf("unexpected amounts: %+v", ev)
	}
}

func TestStripeParseEvent_SubscriptionModeCheckoutIgnored(t *testing.T) {
	a := newStripeForTest()
	body := []byte(`{
		"id": "evt_2",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_2", "mode": "subscription"}}
	}`)

	ev, err := a.ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if ev.Kind != model.EventKindIgnored {
		t.Fatalf("kind = %s, want ignored: the invoice event settles it", ev.Kind)
	}
}

func TestStripeParseEvent_Dispute(t *testing.T) {
	a := newStripeForTest()
	body := []byte(`{
		"id": "evt_3",
		"type": "charge.dispute.created",
		"data": {"object": {
			"id": "dp_1",
			"amount": 999,
			"currency": "usd",
			"payment_intent": {"id": "pi_1"}
		}}
	}`)

	ev, err := a.ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if ev.Kind != model.EventKindChargeback {
		t.Fatalf("kind = %s, want chargeback", ev.Kind)
	}
	if ev.GatewayRefundID != "dp_1" || ev.GatewayTransactionID != "pi_1" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestStripeParseEvent_UnhandledTypeIgnored(t *testing.T) {
	a := newStripeForTest()
	ev, err := a.ParseEvent([]byte(`{"id": "evt_4", "type": "customer.updated", "data": {"object": {}}}`))
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if ev.Kind != model.EventKindIgnored {
		t.Fatalf("kind = %s, want ignored", ev.Kind)
	}
	if ev.RawType != "customer.updated" {
		t.Fatalf("raw type = %s", ev.RawType)
	}
}
