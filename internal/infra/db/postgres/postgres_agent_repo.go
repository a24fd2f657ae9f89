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

var (
	_ repository.AgentRepository        = (*agentRepo)(nil)
	_ repository.ModelCatalogRepository = (*modelCatalogRepo)(nil)
)

type agentRepo struct{ pool *pgxpool.Pool }

func NewAgentRepo(pool *pgxpool.Pool) *agentRepo {
	return &agentRepo{pool: pool}
}

func (r *agentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Agent, error) {
	q := `SELECT id, user_id, name, model_id, created_at, updated_at FROM agents WHERE user_id=$1 ORDER BY created_at`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	rows, err := queryRows(ctx, r.pool, tx, q+";", userID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Agent
	for rows.Next() {
		a := new(model.Agent)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.ModelID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *agentRepo) UpdateModel(ctx context.Context, tx repository.Tx, agentID, modelID string) error {
	const q = `UPDATE agents SET model_id=$2, updated_at=$3 WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, agentID, modelID, time.Now())
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

func (r *agentRepo) Save(ctx context.Context, tx repository.Tx, a *model.Agent) error {
	const q = `
INSERT INTO agents (id, user_id, name, model_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET name=$3, model_id=$4, updated_at=$6;`
	_, err := execSQL(ctx, r.pool, tx, q, a.ID, a.UserID, a.Name, a.ModelID, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

type modelCatalogRepo struct{ pool *pgxpool.Pool }

func NewModelCatalogRepo(pool *pgxpool.Pool) *modelCatalogRepo {
	return &modelCatalogRepo{pool: pool}
}

func (r *modelCatalogRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.AIModel, error) {
	const q = `SELECT id, name, tier, is_active, created_at FROM ai_models WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanAIModel(row)
}

func (r *modelCatalogRepo) FindActiveFreeModel(ctx context.Context, tx repository.Tx) (*model.AIModel, error) {
	const q = `SELECT id, name, tier, is_active, created_at FROM ai_models WHERE tier='free' AND is_active ORDER BY created_at LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	return scanAIModel(row)
}

func (r *modelCatalogRepo) Save(ctx context.Context, tx repository.Tx, m *model.AIModel) error {
	const q = `
INSERT INTO ai_models (id, name, tier, is_active, created_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET name=$2, tier=$3, is_active=$4;`
	_, err := execSQL(ctx, r.pool, tx, q, m.ID, m.Name, m.Tier, m.IsActive, m.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func scanAIModel(row pgx.Row) (*model.AIModel, error) {
	m := &model.AIModel{}
	if err := row.Scan(&m.ID, &m.Name, &m.Tier, &m.IsActive, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return m, nil
}
