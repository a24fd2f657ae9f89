package repository

import (
	"context"

	"ai-agent-billing/internal/domain/model"
)

type AgentRepository interface {
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Agent, error)
	UpdateModel(ctx context.Context, tx Tx, agentID, modelID string) error
	Save(ctx context.Context, tx Tx, a *model.Agent) error
}

// ModelCatalogRepository is the read side of the AI model catalog used by the
// downgrade path.
type ModelCatalogRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.AIModel, error)
	// FindActiveFreeModel returns the free-tier fallback, or domain.ErrNotFound
	// when no free-tier model is active (a fatal configuration error upstream).
	FindActiveFreeModel(ctx context.Context, tx Tx) (*model.AIModel, error)
	Save(ctx context.Context, tx Tx, m *model.AIModel) error
}
