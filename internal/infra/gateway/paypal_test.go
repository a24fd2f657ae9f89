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

func newPayPalForTest() *PayPalAdapter {
	log := zerolog.Nop()
	return NewPayPalAdapter("pp_secret", &log)
}

func TestPayPalVerifySignature(t *testing.T) {
	a := newPayPalForTest()
	body := []byte(`{"id":"WH-1"}`)

	h := http.Header{}
	h.Set("Paypal-Transmission-Id", "t-1")
	h.Set("Paypal-Transmission-Time", "2026-08-23T10:00:00Z")
	manifest := "t-1|2026-08-23T10:00:00Z|" + string(body)
	h.Set("Paypal-Transmission-Sig", hmacSHA256Hex("pp_secret", []byte(manifest)))
	if err := a.VerifySignature(body, h); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}

	h.Set("Paypal-Transmission-Id", "t-2")
	if err := a.VerifySignature(body, h); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("tampered transmission id: err = %v, want ErrInvalidSignature", err)
	}

	if err := a.VerifySignature(body, http.Header{}); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("missing headers: err = %v, want ErrInvalidSignature", err)
	}
}

func TestPayPalParseEvent_CaptureCompleted(t *testing.T) {
	a := newPayPalForTest()
	body := []byte(`{
		"id": "WH-1",
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"resource": {
			"id": "CAP-1",
			"custom_id": "u1;500;pkg_small",
			"amount": {"value": "9.99", "currency_code": "USD"}
		}
	}`)

	ev, err := a.ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if ev.Kind != model.EventKindCreditPurchase {
		t.Fatalf("kind = %s, want credit_purchase", ev.Kind)
	}
	if ev.UserID != "u1" || ev.Credits != 500 || ev.CreditPackageID != "pkg_small" {
		t.Fatalf("custom_id not unpacked: %+v", ev)
	}
	if ev.Amount != 999 {
		t.Fatalf("amount = %d, want 999 minor units", ev.Amount)
	}
}

func TestPayPalParseEvent_Refund(t *testing.T) {
	a := newPayPalForTest()
	body := []byte(`{
		"id": "WH-2",
		"event_type": "PAYMENT.CAPTURE.REFUNDED",
		"resource": {
			"id": "REF-1",
			"amount": {"value": "9.99", "currency_code": "USD"},
			"links": [
				{"rel": "self", "href": "https://api-m.paypal.com/v2/payments/refunds/REF-1"},
				{"rel": "up", "href": "https://api-m.paypal.com/v2/payments/captures/CAP-1"}
			]
		}
	}`)

	ev, err := a.ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if ev.Kind != model.EventKindRefund {
		t.Fatalf("kind = %s, want refund", ev.Kind)
	}
	if ev.GatewayRefundID != "REF-1" || ev.GatewayTransactionID != "CAP-1" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestPayPalParseEvent_Dispute(t *testing.T) {
	a := newPayPalForTest()
	body := []byte(`{
		"id": "WH-3",
		"event_type": "CUSTOMER.DISPUTE.CREATED",
		"resource": {
			"id": "DIS-1",
			"dispute_amount": {"value": "9.99", "currency_code": "USD"},
			"disputed_transactions": [{"seller_transaction_id": "CAP-1"}]
		}
	}`)

	ev, err := a.ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if ev.Kind != model.EventKindChargeback {
		t.Fatalf("kind = %s, want chargeback", ev.Kind)
	}
	if ev.GatewayTransactionID != "CAP-1" || ev.Amount != 999 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestPayPalMapStatus(t *testing.T) {
	a := newPayPalForTest()
	cases := []struct {
		in   string
		want model.CanonicalStatus
	}{
		{"ACTIVE", model.CanonicalStatusActive},
		{"SUSPENDED", model.CanonicalStatusPastDue},
		{"CANCELLED", model.CanonicalStatusCancelled},
		{"EXPIRED", model.CanonicalStatusExpired},
		{"APPROVAL_PENDING", model.CanonicalStatusPending},
		{"odd", model.CanonicalStatusUnknown},
	}
	for _, tc := range cases {
		if got := a.MapStatus(tc.in); got != tc.want {
			t.Errorf("MapStatus(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestParseDecimalMinor(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"9.99", 999, false},
		{"10", 1000, false},
		{"0.5", 50, false},
		{"-3.25", -325, false},
		{"", 0, false},
		{"1.999", 0, true},
		{"abc", 0, true},
	}
	for _, tc := range cases {
		got, err := parseDecimalMinor(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseDecimalMinor(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("parseDecimalMinor(%q) = (%d, %v), want %d", tc.in, got, err, tc.want)
		}
	}
}
