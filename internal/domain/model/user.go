package model

import (
	"time"

	"ai-agent-billing/internal/domain"

	"github.com/google/uuid"
)

const PlanTypeFree = "free"

// User carries only the billing-relevant fields of an account. The plan type
// and expiry are a denormalized copy of the subscription state, kept in sync
// by the reconciler and read without mutation by membership checks.
type User struct {
	ID            string
	Email         string
	PlanType      string
	PlanExpiresAt *time.Time
	CreditBalance int64
	IsActive      bool
	CreatedAt     time.Time
}

func NewUser(id, email string) (*User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if email == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &User{
		ID:        id,
		Email:     email,
		PlanType:  PlanTypeFree,
		IsActive:  true,
		CreatedAt: time.Now(),
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }

// HasActiveMembership reports whether the user has an active paid plan at
// `now`, derived from either the subscription record or the denormalized
// plan fields. sub may be nil.
func (u *User) HasActiveMembership(sub *UserSubscription, now time.Time) bool {
	if sub != nil &&
		(sub.Status == SubscriptionStatusActive || sub.Status == SubscriptionStatusPastDue) &&
		sub.CurrentPeriodEnd != nil && sub.CurrentPeriodEnd.After(now) &&
		u.PlanType != PlanTypeFree {
		return true
	}
	if u.PlanType != PlanTypeFree && u.PlanExpiresAt != nil && u.PlanExpiresAt.After(now) {
		return true
	}
	return false
}
