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

var _ repository.RefundRepository = (*refundRepo)(nil)

type refundRepo struct{ pool *pgxpool.Pool }

func NewRefundRepo(pool *pgxpool.Pool) *refundRepo {
	return &refundRepo{pool: pool}
}

const refundCols = `id, transaction_id, user_id, amount, currency, gateway, gateway_refund_id, reason, initiator, status, credits_reversed, user_suspended, created_at`

func (r *refundRepo) Insert(ctx context.Context, tx repository.Tx, rf *model.Refund) error {
	const q = `
INSERT INTO refunds (` + refundCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13);`

	_, err := execSQL(ctx, r.pool, tx, q,
		rf.ID, rf.TransactionID, rf.UserID, rf.Amount, rf.Currency, rf.Gateway, rf.GatewayRefundID,
		rf.Reason, rf.Initiator, rf.Status, rf.CreditsReversed, rf.UserSuspended, rf.CreatedAt)
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

func (r *refundRepo) ListByTransaction(ctx context.Context, tx repository.Tx, transactionID string) ([]*model.Refund, error) {
	q := `SELECT ` + refundCols + ` FROM refunds WHERE transaction_id=$1 ORDER BY created_at`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	rows, err := queryRows(ctx, r.pool, tx, q+";", transactionID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Refund
	for rows.Next() {
		rf := new(model.Refund)
		if err := rows.Scan(&rf.ID, &rf.TransactionID, &rf.UserID, &rf.Amount, &rf.Currency, &rf.Gateway,
			&rf.GatewayRefundID, &rf.Reason, &rf.Initiator, &rf.Status, &rf.CreditsReversed, &rf.UserSuspended, &rf.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, rf)
	}
	return out, nil
}

func (r *refundRepo) FindByGatewayRefundID(ctx context.Context, tx repository.Tx, gateway, gatewayRefundID string) (*model.Refund, error) {
	const q = `SELECT ` + refundCols + ` FROM refunds WHERE gateway=$1 AND gateway_refund_id=$2 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, gateway, gatewayRefundID)
	if err != nil {
		return nil, err
	}
	rf := &model.Refund{}
	if err := row.Scan(&rf.ID, &rf.TransactionID, &rf.UserID, &rf.Amount, &rf.Currency, &rf.Gateway,
		&rf.GatewayRefundID, &rf.Reason, &rf.Initiator, &rf.Status, &rf.CreditsReversed, &rf.UserSuspended, &rf.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return rf, nil
}
