package model

import "time"

type ModelTier string

const (
	ModelTierFree    ModelTier = "free"
	ModelTierPremium ModelTier = "premium"
)

// AIModel is a catalog entry for a model agents can be configured with.
type AIModel struct {
	ID        string
	Name      string
	Tier      ModelTier
	IsActive  bool
	CreatedAt time.Time
}

// Agent is a user-owned agent referencing a model from the catalog. When a
// subscription is cancelled, agents on premium models are migrated to the
// active free-tier model.
type Agent struct {
	ID        string
	UserID    string
	Name      string
	ModelID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
