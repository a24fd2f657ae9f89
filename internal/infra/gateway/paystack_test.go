//go:build !integration

package gateway

import (
	"errors"
	"net/http"
	"testing"

	"github.com/rs/zerolog"

	"ai-agent-billing/internal/domain"
	"ai-agent-billing/internal/domain/model"
)

func newPaystackForTest() *PaystackAdapter {
	log := zerolog.Nop()
	return NewPaystackAdapter("sk_test_paystack", &log)
}

func TestPaystackVerifySignature(t *testing.T) {
	a := newPaystackForTest()
	body := []byte(`{"event":"charge.success"}`)

	h := http.Header{}
	h.Set("x-paystack-signature", hmacSHA512Hex("sk_test_paystack", body))
	if err := a.VerifySignature(body, h); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}

	h.Set("x-paystack-signature", hmacSHA512Hex("other_key", body))
	if err := a.VerifySignature(body, h); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
}

func TestPaystackParseEvent_ChargeSuccess(t *testing.T) {
	a := newPaystackForTest()
	body := []byte(`{
		"event": "charge.success",
		"data": {
			"reference": "ref_1",
			"amount": 50000,
			"currency": "NGN",
			"metadata": {"user_id": "u1", "credits": "500", "credit_package_id": "pkg_small"}
		}
	}`)

	ev, err := a.ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if ev.Kind != model.EventKindCreditPurchase {
		t.Fatalf("kind = %s, want credit_purchase", ev.Kind)
	}
	if ev.GatewayTransactionID != "ref_1" || ev.Credits != 500 || ev.Amount != 50000 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestPaystackParseEvent_SubscriptionCharge(t *testing.T) {
	a := newPaystackForTest()
	body := []byte(`{
		"event": "charge.success",
		"data": {
			"reference": "ref_2",
			"amount": 250000,
			"currency": "NGN",
			"subscription_code": "SUB_1",
			"plan": {"plan_code": "PLN_1", "interval": "annually"},
			"metadata": {"user_id": "u1", "plan_id": "plan-pro"}
		}
	}`)

	ev, err := a.ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if ev.Kind != model.EventKindSubscriptionCharge {
		t.Fatalf("kind = %s, want subscription_charge", ev.Kind)
	}
	if ev.GatewaySubscriptionID != "SUB_1" || ev.BillingPeriod != model.BillingPeriodYearly {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestPaystackParseEvent_InvoiceFailedIsPastDue(t *testing.T) {
	a := newPaystackForTest()
	body := []byte(`{
		"event": "invoice.payment_failed",
		"data": {
			"subscription": {"subscription_code": "SUB_1"},
			"metadata": {"user_id": "u1"}
		}
	}`)

	ev, err := a.ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if ev.Kind != model.EventKindSubscriptionStatus || ev.Status != model.CanonicalStatusPastDue {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestPaystackMapStatus(t *testing.T) {
	a := newPaystackForTest()
	cases := []struct {
		in   string
		want model.CanonicalStatus
	}{
		{"active", model.CanonicalStatusActive},
		{"attention", model.CanonicalStatusPastDue},
		{"non-renewing", model.CanonicalStatusCancelled},
		{"completed", model.CanonicalStatusExpired},
		{"pending", model.CanonicalStatusPending},
		{"misc", model.CanonicalStatusUnknown},
	}
	for _, tc := range cases {
		if got := a.MapStatus(tc.in); got != tc.want {
			t.Errorf("MapStatus(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
