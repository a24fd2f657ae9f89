package model

import (
	"time"

	"ai-agent-billing/internal/domain"
)

type TransactionType string

const (
	TransactionTypeSubscription TransactionType = "subscription"
	TransactionTypeCredits      TransactionType = "credits"
)

type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusRefunded  TransactionStatus = "refunded"
)

// IdempotencyKey identifies one real-world monetary event across repeated
// webhook deliveries. (gateway, gatewayTransactionID) is unique in storage.
type IdempotencyKey struct {
	Gateway              string
	GatewayTransactionID string
}

func (k IdempotencyKey) IsZero() bool {
	return k.Gateway == "" || k.GatewayTransactionID == ""
}

// PaymentTransaction records one completed monetary event: a subscription
// charge or a credit purchase. Rows are never mutated after insertion except
// for the completed -> refunded status transition.
type PaymentTransaction struct {
	ID                   string // UUID
	UserID               string
	Type                 TransactionType
	Gateway              string
	GatewayTransactionID string
	Amount               int64 // minor units
	Currency             string
	PlanID               *string
	CreditPackageID      *string
	CreditsAwarded       *int64
	Description          string
	Status               TransactionStatus
	CompletedAt          time.Time
	CreatedAt            time.Time
}

// NewPaymentTransaction validates and constructs a transaction row.
func NewPaymentTransaction(id, userID string, typ TransactionType, key IdempotencyKey, amount int64, currency string) (*PaymentTransaction, error) {
	if id == "" || userID == "" || key.IsZero() || amount < 0 || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	if typ != TransactionTypeSubscription && typ != TransactionTypeCredits {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &PaymentTransaction{
		ID:                   id,
		UserID:               userID,
		Type:                 typ,
		Gateway:              key.Gateway,
		GatewayTransactionID: key.GatewayTransactionID,
		Amount:               amount,
		Currency:             currency,
		Status:               TransactionStatusCompleted,
		CompletedAt:          now,
		CreatedAt:            now,
	}, nil
}
