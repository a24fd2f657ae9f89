package postgres

import (
	"context"
	"encoding/json"
	"time"

	"ai-agent-billing/internal/domain/model"
	"ai-agent-billing/internal/domain/ports/repository"
	"ai-agent-billing/internal/infra/metrics"
	red "ai-agent-billing/internal/infra/redis"
)

var _ repository.SettingsRepository = (*settingsRepoCacheDecorator)(nil)

const settingsCacheKey = "billing:settings"

// settingsRepoCacheDecorator keeps the admin-configurable settings in Redis
// with a short TTL so the scheduler and webhook paths do not hit Postgres on
// every pass, while admin updates take effect within one TTL window.
type settingsRepoCacheDecorator struct {
	inner repository.SettingsRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewSettingsRepoCacheDecorator(inner repository.SettingsRepository, cache red.RedisClient, ttl time.Duration) repository.SettingsRepository {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &settingsRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func (d *settingsRepoCacheDecorator) Load(ctx context.Context) (*model.BillingSettings, error) {
	val, err := d.cache.Get(ctx, settingsCacheKey)
	if err == nil {
		metrics.IncCacheRequest("settings", "hit")
		var s model.BillingSettings
		if json.Unmarshal([]byte(val), &s) == nil {
			return &s, nil
		}
	}

	metrics.IncCacheRequest("settings", "miss")
	s, err := d.inner.Load(ctx)
	if err != nil {
		return nil, err
	}
	if bytes, err := json.Marshal(s); err == nil {
		_ = d.cache.Set(ctx, settingsCacheKey, bytes, d.ttl)
	}
	return s, nil
}

// Save invalidates the cache so the next Load sees the new values.
func (d *settingsRepoCacheDecorator) Save(ctx context.Context, s *model.BillingSettings) error {
	_ = d.cache.Del(ctx, settingsCacheKey)
	return d.inner.Save(ctx, s)
}
