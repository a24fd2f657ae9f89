package repository

import (
	"context"

	"ai-agent-billing/internal/domain/model"
)

// RefundRepository is the port for refund/dispute rows. Insert reports
// domain.ErrAlreadyExists when (gateway, gatewayRefundID) is already present.
type RefundRepository interface {
	Insert(ctx context.Context, tx Tx, r *model.Refund) error
	ListByTransaction(ctx context.Context, tx Tx, transactionID string) ([]*model.Refund, error)
	FindByGatewayRefundID(ctx context.Context, tx Tx, gateway, gatewayRefundID string) (*model.Refund, error)
}
