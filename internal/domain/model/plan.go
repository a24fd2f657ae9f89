package model

import (
	"time"

	"ai-agent-billing/internal/domain"
)

// Plan is a purchasable subscription tier. Tier doubles as the user's plan
// type once the subscription is active.
type Plan struct {
	ID           string
	Name         string
	Tier         string // "free" | "starter" | "pro" | ...
	MonthlyPrice int64  // minor units
	YearlyPrice  int64
	Currency     string
	CreatedAt    time.Time
}

func NewPlan(id, name, tier string, monthlyPrice, yearlyPrice int64, currency string) (*Plan, error) {
	if id == "" || name == "" || tier == "" || monthlyPrice < 0 || yearlyPrice < 0 || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Plan{
		ID:           id,
		Name:         name,
		Tier:         tier,
		MonthlyPrice: monthlyPrice,
		YearlyPrice:  yearlyPrice,
		Currency:     currency,
		CreatedAt:    time.Now(),
	}, nil
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

// CreditPackage is a one-off purchasable bundle of credits.
type CreditPackage struct {
	ID        string
	Name      string
	Credits   int64
	Price     int64 // minor units
	Currency  string
	CreatedAt time.Time
}

func NewCreditPackage(id, name string, credits, price int64, currency string) (*CreditPackage, error) {
	if id == "" || name == "" || credits <= 0 || price < 0 || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &CreditPackage{
		ID:        id,
		Name:      name,
		Credits:   credits,
		Price:     price,
		Currency:  currency,
		CreatedAt: time.Now(),
	}, nil
}
