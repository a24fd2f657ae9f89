package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-agent-billing/internal/domain"
	"ai-agent-billing/internal/domain/model"
	"ai-agent-billing/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct{ pool *pgxpool.Pool }

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

func (r *userRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (id, email, plan_type, plan_expires_at, credit_balance, is_active, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
  email=$2, plan_type=$3, plan_expires_at=$4, credit_balance=$5, is_active=$6;`

	_, err := execSQL(ctx, r.pool, tx, q, u.ID, u.Email, u.PlanType, u.PlanExpiresAt, u.CreditBalance, u.IsActive, u.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	q := `SELECT id, email, plan_type, plan_expires_at, credit_balance, is_active, created_at FROM users WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}
	u := &model.User{}
	if err := row.Scan(&u.ID, &u.Email, &u.PlanType, &u.PlanExpiresAt, &u.CreditBalance, &u.IsActive, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return u, nil
}

// AdjustCreditBalance applies a signed delta in a single statement; no
// read-modify-write race, and no clamping at zero.
func (r *userRepo) AdjustCreditBalance(ctx context.Context, tx repository.Tx, userID string, delta int64) (int64, error) {
	const q = `UPDATE users SET credit_balance = credit_balance + $2 WHERE id=$1 RETURNING credit_balance;`
	row, err := pickRow(ctx, r.pool, tx, q, userID, delta)
	if err != nil {
		return 0, err
	}
	var balance int64
	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, domain.ErrReadDatabaseRow
	}
	return balance, nil
}

func (r *userRepo) SetPlan(ctx context.Context, tx repository.Tx, userID, planType string, expiresAt *time.Time) error {
	const q = `UPDATE users SET plan_type=$2, plan_expires_at=$3 WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, userID, planType, expiresAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *userRepo) SetActive(ctx context.Context, tx repository.Tx, userID string, active bool) error {
	const q = `UPDATE users SET is_active=$2 WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, userID, active)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
