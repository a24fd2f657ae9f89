package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-agent-billing/internal/domain"
	"ai-agent-billing/internal/domain/model"
	"ai-agent-billing/internal/domain/ports/repository"
)

var (
	_ repository.PlanRepository          = (*planRepo)(nil)
	_ repository.CreditPackageRepository = (*creditPackageRepo)(nil)
)

type planRepo struct{ pool *pgxpool.Pool }

func NewPlanRepo(pool *pgxpool.Pool) *planRepo {
	return &planRepo{pool: pool}
}

func (r *planRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	const q = `SELECT id, name, tier, monthly_price, yearly_price, currency, created_at FROM plans WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPlan(row)
}

func (r *planRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	const q = `SELECT id, name, tier, monthly_price, yearly_price, currency, created_at FROM plans ORDER BY monthly_price;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Plan
	for rows.Next() {
		p := new(model.Plan)
		if err := rows.Scan(&p.ID, &p.Name, &p.Tier, &p.MonthlyPrice, &p.YearlyPrice, &p.Currency, &p.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *planRepo) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	const q = `
INSERT INTO plans (id, name, tier, monthly_price, yearly_price, currency, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET name=$2, tier=$3, monthly_price=$4, yearly_price=$5, currency=$6;`
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.Name, p.Tier, p.MonthlyPrice, p.YearlyPrice, p.Currency, p.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func scanPlan(row pgx.Row) (*model.Plan, error) {
	p := &model.Plan{}
	if err := row.Scan(&p.ID, &p.Name, &p.Tier, &p.MonthlyPrice, &p.YearlyPrice, &p.Currency, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

type creditPackageRepo struct{ pool *pgxpool.Pool }

func NewCreditPackageRepo(pool *pgxpool.Pool) *creditPackageRepo {
	return &creditPackageRepo{pool: pool}
}

func (r *creditPackageRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.CreditPackage, error) {
	const q = `SELECT id, name, credits, price, currency, created_at FROM credit_packages WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	p := &model.CreditPackage{}
	if err := row.Scan(&p.ID, &p.Name, &p.Credits, &p.Price, &p.Currency, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *creditPackageRepo) Save(ctx context.Context, tx repository.Tx, p *model.CreditPackage) error {
	const q = `
INSERT INTO credit_packages (id, name, credits, price, currency, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET name=$2, credits=$3, price=$4, currency=$5;`
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.Name, p.Credits, p.Price, p.Currency, p.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}
