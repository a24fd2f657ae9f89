package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-agent-billing/internal/domain"
	"ai-agent-billing/internal/domain/model"
	"ai-agent-billing/internal/domain/ports/repository"
)

var _ repository.WebhookQueueRepository = (*webhookQueueRepo)(nil)

type webhookQueueRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewWebhookQueueRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *webhookQueueRepo {
	return &webhookQueueRepo{pool: pool, tm: tm}
}

const queueCols = `id, gateway, event_type, event_id, payload, status, attempt_count, max_attempts, last_error, error_history, next_retry_at, expires_at, processed_at, user_id, created_at, updated_at`

// Enqueue dedups on the partial unique index over (gateway, event_id) for
// non-terminal rows; a second delivery racing the first is a silent no-op.
func (r *webhookQueueRepo) Enqueue(ctx context.Context, item *model.WebhookQueueItem) (bool, error) {
	history, err := json.Marshal(item.ErrorHistory)
	if err != nil {
		return false, domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO webhook_queue (` + queueCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
ON CONFLICT (gateway, event_id) WHERE status IN ('pending','processing') DO NOTHING;`

	cmd, err := execSQL(ctx, r.pool, nil, q,
		item.ID, item.Gateway, item.EventType, item.EventID, item.Payload, item.Status,
		item.AttemptCount, item.MaxAttempts, item.LastError, history, item.NextRetryAt,
		item.ExpiresAt, item.ProcessedAt, item.UserID, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() == 1, nil
}

// FetchDueAndMarkProcessing claims the oldest due pending item inside one
// transaction, so a crashed pass never strands work and concurrent drainers
// never double-claim.
func (r *webhookQueueRepo) FetchDueAndMarkProcessing(ctx context.Context, now time.Time) (*model.WebhookQueueItem, error) {
	var item *model.WebhookQueueItem

	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const fetchQuery = `
SELECT ` + queueCols + `
FROM webhook_queue
WHERE status = 'pending'
  AND (next_retry_at IS NULL OR next_retry_at <= $1)
  AND expires_at > $1
ORDER BY id
LIMIT 1
FOR UPDATE SKIP LOCKED;`

		row, err := pickRow(ctx, r.pool, tx, fetchQuery, now)
		if err != nil {
			return err
		}
		fetched, err := scanQueueItem(row)
		if err != nil {
			return err
		}

		fetched.Status = model.WebhookStatusProcessing
		fetched.AttemptCount++
		fetched.UpdatedAt = time.Now()

		if err := r.Update(ctx, tx, fetched); err != nil {
			return err
		}
		item = fetched
		return nil
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	return item, err
}

func (r *webhookQueueRepo) Update(ctx context.Context, tx repository.Tx, item *model.WebhookQueueItem) error {
	history, err := json.Marshal(item.ErrorHistory)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	const q = `
UPDATE webhook_queue SET
  status=$2, attempt_count=$3, last_error=$4, error_history=$5,
  next_retry_at=$6, expires_at=$7, processed_at=$8, updated_at=$9
WHERE id=$1;`

	cmd, err := execSQL(ctx, r.pool, tx, q,
		item.ID, item.Status, item.AttemptCount, item.LastError, history,
		item.NextRetryAt, item.ExpiresAt, item.ProcessedAt, item.UpdatedAt)
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

// ExpireOverdue sweeps both pending and processing rows. A row stuck in
// processing past its deadline belongs to a drainer that died mid-attempt;
// expiring it keeps the (gateway, event_id) slot from being held forever.
func (r *webhookQueueRepo) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	const q = `
UPDATE webhook_queue SET status='expired', updated_at=$1
WHERE status IN ('pending','processing') AND expires_at <= $1;`
	cmd, err := execSQL(ctx, r.pool, nil, q, now)
	if err != nil {
		return 0, domain.ErrOperationFailed
	}
	return cmd.RowsAffected(), nil
}

func (r *webhookQueueRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.WebhookQueueItem, error) {
	const q = `SELECT ` + queueCols + ` FROM webhook_queue WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanQueueItem(row)
}

func (r *webhookQueueRepo) ListByStatus(ctx context.Context, status model.WebhookStatus, limit int) ([]*model.WebhookQueueItem, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + queueCols + ` FROM webhook_queue WHERE status=$1 ORDER BY id DESC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, nil, q, status, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.WebhookQueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// ResetForRetry is the operator path for terminal failed items: back to
// pending with a fresh attempt budget and expiry.
func (r *webhookQueueRepo) ResetForRetry(ctx context.Context, id string, expiresAt time.Time) error {
	const q = `
UPDATE webhook_queue SET
  status='pending', attempt_count=0, last_error='', next_retry_at=NULL,
  expires_at=$2, updated_at=$3
WHERE id=$1 AND status='failed';`
	cmd, err := execSQL(ctx, r.pool, nil, q, id, expiresAt, time.Now())
	if err != nil {
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrQueueItemTerminal
	}
	return nil
}

func scanQueueItem(row pgx.Row) (*model.WebhookQueueItem, error) {
	item := &model.WebhookQueueItem{}
	var history []byte
	err := row.Scan(&item.ID, &item.Gateway, &item.EventType, &item.EventID, &item.Payload, &item.Status,
		&item.AttemptCount, &item.MaxAttempts, &item.LastError, &history, &item.NextRetryAt,
		&item.ExpiresAt, &item.ProcessedAt, &item.UserID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &item.ErrorHistory); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return item, nil
}
