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

var _ repository.SettingsRepository = (*settingsRepo)(nil)

// settingsRepo persists the singleton billing settings row (id=1). The
// backoff table is stored as JSONB.
type settingsRepo struct{ pool *pgxpool.Pool }

func NewSettingsRepo(pool *pgxpool.Pool) *settingsRepo {
	return &settingsRepo{pool: pool}
}

func (r *settingsRepo) Load(ctx context.Context) (*model.BillingSettings, error) {
	const q = `SELECT retry_backoff_minutes, max_attempts, expiry_hours, updated_at FROM billing_settings WHERE id=1;`
	row, err := pickRow(ctx, r.pool, nil, q)
	if err != nil {
		return nil, err
	}
	var (
		backoff []byte
		s       model.BillingSettings
	)
	if err := row.Scan(&backoff, &s.MaxAttempts, &s.ExpiryHours, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Nothing saved yet: documented defaults apply.
			return model.DefaultBillingSettings(), nil
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if err := json.Unmarshal(backoff, &s.RetryBackoffMinutes); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return &s, nil
}

func (r *settingsRepo) Save(ctx context.Context, s *model.BillingSettings) error {
	backoff, err := json.Marshal(s.RetryBackoffMinutes)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	s.UpdatedAt = time.Now()
	const q = `
INSERT INTO billing_settings (id, retry_backoff_minutes, max_attempts, expiry_hours, updated_at)
VALUES (1, $1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET
  retry_backoff_minutes=$1, max_attempts=$2, expiry_hours=$3, updated_at=$4;`
	if _, err := execSQL(ctx, r.pool, nil, q, backoff, s.MaxAttempts, s.ExpiryHours, s.UpdatedAt); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}
