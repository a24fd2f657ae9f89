package adapter

import (
	"context"
	"net/http"

	"ai-agent-billing/internal/domain/model"
)

// GatewayAdapter is the hex port for payment providers on the webhook side.
// Five gateways implement it; the reconciliation core never sees a
// provider-native status string or payload shape.
type GatewayAdapter interface {
	Name() string

	// VerifySignature validates the raw webhook body against the provider's
	// signature scheme. Returns domain.ErrInvalidSignature on mismatch.
	VerifySignature(body []byte, header http.Header) error

	// ParseEvent converts a verified raw body into the canonical shape.
	// Provider event types with no reconciliation meaning come back with
	// Kind == model.EventKindIgnored.
	ParseEvent(body []byte) (*model.CanonicalEvent, error)

	// MapStatus translates a provider-native subscription/payment status into
	// the fixed canonical vocabulary.
	MapStatus(gatewayStatus string) model.CanonicalStatus

	// CancelSubscription cancels a subscription on the provider side. Used
	// when a user switches gateways; failure is logged, not fatal.
	CancelSubscription(ctx context.Context, gatewaySubscriptionID string) error
}

// GatewayRegistry resolves an adapter by gateway name.
type GatewayRegistry interface {
	Get(name string) (GatewayAdapter, bool)
}
