package model

import (
	"time"

	"ai-agent-billing/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusPending   SubscriptionStatus = "pending"
)

type BillingPeriod string

const (
	BillingPeriodMonthly BillingPeriod = "monthly"
	BillingPeriodYearly  BillingPeriod = "yearly"
)

// UserSubscription is the single subscription record per user. Exactly one
// gateway identifier slot is populated at a time; switching gateways clears
// the previous slot after the old gateway subscription is cancelled.
type UserSubscription struct {
	ID                 string // UUID
	UserID             string
	PlanID             string
	Status             SubscriptionStatus
	BillingPeriod      BillingPeriod
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool

	StripeSubscriptionID     *string
	PayPalSubscriptionID     *string
	RazorpaySubscriptionID   *string
	PaystackSubscriptionID   *string
	MercadoPagoPreapprovalID *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewUserSubscription(id, userID, planID string, period BillingPeriod) (*UserSubscription, error) {
	if id == "" || userID == "" || planID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if period != BillingPeriodMonthly && period != BillingPeriodYearly {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &UserSubscription{
		ID:            id,
		UserID:        userID,
		PlanID:        planID,
		Status:        SubscriptionStatusPending,
		BillingPeriod: period,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Gateway returns the gateway name owning the populated identifier slot.
func (s *UserSubscription) Gateway() (name, subscriptionID string) {
	switch {
	case s.StripeSubscriptionID != nil:
		return GatewayStripe, *s.StripeSubscriptionID
	case s.PayPalSubscriptionID != nil:
		return GatewayPayPal, *s.PayPalSubscriptionID
	case s.RazorpaySubscriptionID != nil:
		return GatewayRazorpay, *s.RazorpaySubscriptionID
	case s.PaystackSubscriptionID != nil:
		return GatewayPaystack, *s.PaystackSubscriptionID
	case s.MercadoPagoPreapprovalID != nil:
		return GatewayMercadoPago, *s.MercadoPagoPreapprovalID
	}
	return "", ""
}

// SetGatewayID populates the slot for the given gateway and clears the rest.
func (s *UserSubscription) SetGatewayID(gateway, subscriptionID string) error {
	s.StripeSubscriptionID = nil
	s.PayPalSubscriptionID = nil
	s.RazorpaySubscriptionID = nil
	s.PaystackSubscriptionID = nil
	s.MercadoPagoPreapprovalID = nil
	switch gateway {
	case GatewayStripe:
		s.StripeSubscriptionID = &subscriptionID
	case GatewayPayPal:
		s.PayPalSubscriptionID = &subscriptionID
	case GatewayRazorpay:
		s.RazorpaySubscriptionID = &subscriptionID
	case GatewayPaystack:
		s.PaystackSubscriptionID = &subscriptionID
	case GatewayMercadoPago:
		s.MercadoPagoPreapprovalID = &subscriptionID
	default:
		return domain.ErrUnknownGateway
	}
	return nil
}

// PeriodEndFrom computes the current period end for an activation at `from`.
func PeriodEndFrom(from time.Time, period BillingPeriod) time.Time {
	if period == BillingPeriodYearly {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}
