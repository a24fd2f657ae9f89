//go:build !integration

package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"ai-agent-billing/internal/domain"
	"ai-agent-billing/internal/domain/model"
	"ai-agent-billing/internal/domain/ports/adapter"
	"ai-agent-billing/internal/domain/ports/repository"
	"ai-agent-billing/internal/usecase"
)

// scriptedProcessor returns canned results per call.
type scriptedProcessor struct {
	mu         sync.Mutex
	processErr error
	processed  []*model.CanonicalEvent
	enqueued   []*model.CanonicalEvent
	enqueueErr error
}

func (p *scriptedProcessor) ProcessCanonical(ctx context.Context, ev *model.CanonicalEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed = append(p.processed, ev)
	return p.processErr
}

func (p *scriptedProcessor) ReprocessStored(ctx context.Context, gateway string, payload []byte) error {
	return nil
}

func (p *scriptedProcessor) EnqueueForRetry(ctx context.Context, ev *model.CanonicalEvent, payload []byte, cause error) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.enqueueErr != nil {
		return false, p.enqueueErr
	}
	p.enqueued = append(p.enqueued, ev)
	return true, nil
}

type stubAdapter struct {
	name      string
	verifyErr error
	parsed    *model.CanonicalEvent
	parseErr  error
}

func (a *stubAdapter) Name() string { return a.name }

func (a *stubAdapter) VerifySignature(body []byte, header http.Header) error { return a.verifyErr }

func (a *stubAdapter) ParseEvent(body []byte) (*model.CanonicalEvent, error) {
	if a.parseErr != nil {
		return nil, a.parseErr
	}
	cp := *a.parsed
	return &cp, nil
}

func (a *stubAdapter) MapStatus(s string) model.CanonicalStatus { return model.CanonicalStatusUnknown }

func (a *stubAdapter) CancelSubscription(ctx context.Context, id string) error { return nil }

type stubRegistry struct {
	adapters map[string]adapter.GatewayAdapter
}

func (r *stubRegistry) Get(name string) (adapter.GatewayAdapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

type memQueueRepo struct {
	mu    sync.Mutex
	items map[string]*model.WebhookQueueItem
}

func newMemQueueRepo() *memQueueRepo {
	return &memQueueRepo{items: make(map[string]*model.WebhookQueueItem)}
}

func (m *memQueueRepo) Enqueue(ctx context.Context, item *model.WebhookQueueItem) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *item
	m.items[item.ID] = &cp
	return true, nil
}

func (m *memQueueRepo) FetchDueAndMarkProcessing(ctx context.Context, now time.Time) (*model.WebhookQueueItem, error) {
	return nil, domain.ErrNotFound
}

func (m *memQueueRepo) Update(ctx context.Context, tx repository.Tx, item *model.WebhookQueueItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *memQueueRepo) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func (m *memQueueRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.WebhookQueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *memQueueRepo) ListByStatus(ctx context.Context, status model.WebhookStatus, limit int) ([]*model.WebhookQueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.WebhookQueueItem
	for _, it := range m.items {
		if it.Status == status {
			cp := *it
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memQueueRepo) ResetForRetry(ctx context.Context, id string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	if it.Status != model.WebhookStatusFailed {
		return domain.ErrQueueItemTerminal
	}
	it.Status = model.WebhookStatusPending
	it.AttemptCount = 0
	it.NextRetryAt = nil
	it.ExpiresAt = expiresAt
	return nil
}

type memSettingsRepo struct {
	mu     sync.Mutex
	stored *model.BillingSettings
}

func (m *memSettingsRepo) Load(ctx context.Context) (*model.BillingSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stored == nil {
		return model.DefaultBillingSettings(), nil
	}
	cp := *m.stored
	return &cp, nil
}

func (m *memSettingsRepo) Save(ctx context.Context, s *model.BillingSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.stored = &cp
	return nil
}

type stubLedger struct {
	mu      sync.Mutex
	applied map[model.IdempotencyKey]int64
	err     error
}

func newStubLedger() *stubLedger {
	return &stubLedger{applied: make(map[model.IdempotencyKey]int64)}
}

func (l *stubLedger) AddCredits(ctx context.Context, g usecase.CreditGrant) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return 0, l.err
	}
	if g.UserID == "" || g.Credits <= 0 || g.Key.IsZero() {
		return 0, domain.ErrInvalidArgument
	}
	if _, dup := l.applied[g.Key]; dup {
		return 0, nil
	}
	l.applied[g.Key] = g.Credits
	return g.Credits, nil
}

func (l *stubLedger) RecordSubscriptionCharge(ctx context.Context, c usecase.SubscriptionCharge) (bool, error) {
	return true, nil
}
