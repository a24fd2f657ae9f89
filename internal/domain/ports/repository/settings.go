package repository

import (
	"context"

	"ai-agent-billing/internal/domain/model"
)

// SettingsRepository persists the singleton billing settings row. Load falls
// back to documented defaults when nothing has been saved yet.
type SettingsRepository interface {
	Load(ctx context.Context) (*model.BillingSettings, error)
	Save(ctx context.Context, s *model.BillingSettings) error
}
