package repository

import (
	"context"

	"ai-agent-billing/internal/domain/model"
)

type PlanRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Plan, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.Plan, error)
	Save(ctx context.Context, tx Tx, p *model.Plan) error
}

type CreditPackageRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.CreditPackage, error)
	Save(ctx context.Context, tx Tx, p *model.CreditPackage) error
}
