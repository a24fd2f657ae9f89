package model

import (
	"time"

	"ai-agent-billing/internal/domain"
)

type RefundReason string

const (
	RefundReasonGateway    RefundReason = "gateway_refund"
	RefundReasonChargeback RefundReason = "chargeback"
)

type RefundInitiator string

const (
	RefundInitiatorGateway RefundInitiator = "gateway"
	RefundInitiatorAdmin   RefundInitiator = "admin"
)

// Refund records one refund or dispute. At most one Refund exists per
// PaymentTransaction; (gateway, gatewayRefundID) is unique in storage so the
// same dispute notification can arrive twice without double-applying.
type Refund struct {
	ID              string // UUID
	TransactionID   string
	UserID          string
	Amount          int64 // minor units
	Currency        string
	Gateway         string
	GatewayRefundID string
	Reason          RefundReason
	Initiator       RefundInitiator
	Status          string
	CreditsReversed *int64
	UserSuspended   bool
	CreatedAt       time.Time
}

func NewRefund(id, transactionID, userID, gateway, gatewayRefundID string, amount int64, currency string, reason RefundReason, initiator RefundInitiator) (*Refund, error) {
	if id == "" || transactionID == "" || userID == "" || gateway == "" || gatewayRefundID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if reason != RefundReasonGateway && reason != RefundReasonChargeback {
		return nil, domain.ErrInvalidArgument
	}
	return &Refund{
		ID:              id,
		TransactionID:   transactionID,
		UserID:          userID,
		Amount:          amount,
		Currency:        currency,
		Gateway:         gateway,
		GatewayRefundID: gatewayRefundID,
		Reason:          reason,
		Initiator:       initiator,
		Status:          "completed",
		CreatedAt:       time.Now(),
	}, nil
}
