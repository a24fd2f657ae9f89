package usecase

import (
	"context"
	"sync"
	"time"

	"ai-agent-billing/internal/domain/model"
	"ai-agent-billing/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// SettingsProvider hands out the current billing settings with a short
// in-process TTL on top of whatever caching the repository itself does. It is
// injected into the reconciliation components at construction time; nothing
// reads settings from package-level state.
type SettingsProvider struct {
	repo repository.SettingsRepository
	ttl  time.Duration
	log  *zerolog.Logger

	mu        sync.Mutex
	cached    *model.BillingSettings
	fetchedAt time.Time

	now func() time.Time // overridable in tests
}

func NewSettingsProvider(repo repository.SettingsRepository, ttl time.Duration, logger *zerolog.Logger) *SettingsProvider {
	if ttl <= 0 {
		ttl = time.Minute
	}
	l := logger.With().Str("component", "SettingsProvider").Logger()
	return &SettingsProvider{repo: repo, ttl: ttl, log: &l, now: time.Now}
}

// Get returns current settings, falling back to the documented defaults when
// the store is unreachable. The retry pipeline must keep moving.
func (p *SettingsProvider) Get(ctx context.Context) *model.BillingSettings {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.cached != nil && now.Sub(p.fetchedAt) < p.ttl {
		return p.cached
	}

	s, err := p.repo.Load(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("settings load failed; using last known or defaults")
		if p.cached != nil {
			return p.cached
		}
		return model.DefaultBillingSettings()
	}
	p.cached = s
	p.fetchedAt = now
	return s
}

// Update persists new settings and drops the local cache immediately.
func (p *SettingsProvider) Update(ctx context.Context, s *model.BillingSettings) error {
	if err := p.repo.Save(ctx, s); err != nil {
		return err
	}
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
	return nil
}
