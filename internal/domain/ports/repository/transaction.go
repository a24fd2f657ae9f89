package repository

import (
	"context"

	"ai-agent-billing/internal/domain/model"
)

// PaymentTransactionRepository is the port for the payment transaction table.
// Insert reports domain.ErrAlreadyExists when (gateway, gatewayTransactionID)
// is already recorded; that is the transaction-level idempotency signal.
type PaymentTransactionRepository interface {
	Insert(ctx context.Context, tx Tx, t *model.PaymentTransaction) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentTransaction, error)
	FindByGatewayID(ctx context.Context, tx Tx, gateway, gatewayTransactionID string) (*model.PaymentTransaction, error)
	MarkRefunded(ctx context.Context, tx Tx, id string) error
}
