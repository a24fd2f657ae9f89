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

var _ repository.PaymentTransactionRepository = (*transactionRepo)(nil)

type transactionRepo struct{ pool *pgxpool.Pool }

func NewTransactionRepo(pool *pgxpool.Pool) *transactionRepo {
	return &transactionRepo{pool: pool}
}

const transactionCols = `id, user_id, type, gateway, gateway_transaction_id, amount, currency, plan_id, credit_package_id, credits_awarded, description, status, completed_at, created_at`

func (r *transactionRepo) Insert(ctx context.Context, tx repository.Tx, t *model.PaymentTransaction) error {
	const q = `
INSERT INTO payment_transactions (` + transactionCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14);`

	_, err := execSQL(ctx, r.pool, tx, q,
		t.ID, t.UserID, t.Type, t.Gateway, t.GatewayTransactionID, t.Amount, t.Currency,
		t.PlanID, t.CreditPackageID, t.CreditsAwarded, t.Description, t.Status, t.CompletedAt, t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *transactionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentTransaction, error) {
	q := `SELECT ` + transactionCols + ` FROM payment_transactions WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}
	return scanTransaction(row)
}

func (r *transactionRepo) FindByGatewayID(ctx context.Context, tx repository.Tx, gateway, gatewayTransactionID string) (*model.PaymentTransaction, error) {
	q := `SELECT ` + transactionCols + ` FROM payment_transactions WHERE gateway=$1 AND gateway_transaction_id=$2`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", gateway, gatewayTransactionID)
	if err != nil {
		return nil, err
	}
	return scanTransaction(row)
}

func (r *transactionRepo) MarkRefunded(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE payment_transactions SET status='refunded' WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func scanTransaction(row pgx.Row) (*model.PaymentTransaction, error) {
	t := &model.PaymentTransaction{}
	err := row.Scan(&t.ID, &t.UserID, &t.Type, &t.Gateway, &t.GatewayTransactionID, &t.Amount, &t.Currency,
		&t.PlanID, &t.CreditPackageID, &t.CreditsAwarded, &t.Description, &t.Status, &t.CompletedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return t, nil
}
