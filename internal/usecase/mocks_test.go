//go:build !integration

package usecase

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"ai-agent-billing/internal/domain"
	"ai-agent-billing/internal/domain/model"
	"ai-agent-billing/internal/domain/ports/adapter"
	"ai-agent-billing/internal/domain/ports/repository"
)

// fakeTxManager runs the callback with a nil tx. Repositories in these tests
// are in-memory, so there is nothing to roll back; failure tests assert on
// observable state instead.
type fakeTxManager struct{}

func (fakeTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

// memTxnRepo is an in-memory PaymentTransactionRepository keyed by the
// (gateway, gatewayTransactionID) unique index.
type memTxnRepo struct {
	mu    sync.RWMutex
	byID  map[string]*model.PaymentTransaction
	byKey map[model.IdempotencyKey]string // key -> id
}

func newMemTxnRepo() *memTxnRepo {
	return &memTxnRepo{byID: make(map[string]*model.PaymentTransaction), byKey: make(map[model.IdempotencyKey]string)}
}

func (m *memTxnRepo) Insert(ctx context.Context, tx repository.Tx, t *model.PaymentTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := model.IdempotencyKey{Gateway: t.Gateway, GatewayTransactionID: t.GatewayTransactionID}
	if _, dup := m.byKey[key]; dup {
		return domain.ErrAlreadyExists
	}
	cp := *t
	m.byID[t.ID] = &cp
	m.byKey[key] = t.ID
	return nil
}

func (m *memTxnRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTxnRepo) FindByGatewayID(ctx context.Context, tx repository.Tx, gateway, gatewayTransactionID string) (*model.PaymentTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byKey[model.IdempotencyKey{Gateway: gateway, GatewayTransactionID: gatewayTransactionID}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *memTxnRepo) MarkRefunded(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Status = model.TransactionStatusRefunded
	return nil
}

// memRefundRepo enforces both uniqueness rules the Postgres schema carries:
// one refund per transaction and one row per (gateway, gatewayRefundID).
type memRefundRepo struct {
	mu    sync.RWMutex
	rows  map[string]*model.Refund // by id
	byKey map[string]string        // gateway+"/"+gatewayRefundID -> id
}

func newMemRefundRepo() *memRefundRepo {
	return &memRefundRepo{rows: make(map[string]*model.Refund), byKey: make(map[string]string)}
}

func (m *memRefundRepo) Insert(ctx context.Context, tx repository.Tx, r *model.Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := r.Gateway + "/" + r.GatewayRefundID
	if _, dup := m.byKey[key]; dup {
		return domain.ErrAlreadyExists
	}
	cp := *r
	m.rows[r.ID] = &cp
	m.byKey[key] = r.ID
	return nil
}

func (m *memRefundRepo) ListByTransaction(ctx context.Context, tx repository.Tx, transactionID string) ([]*model.Refund, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Refund
	for _, r := range m.rows {
		if r.TransactionID == transactionID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRefundRepo) FindByGatewayRefundID(ctx context.Context, tx repository.Tx, gateway, gatewayRefundID string) (*model.Refund, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byKey[gateway+"/"+gatewayRefundID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *m.rows[id]
	return &cp, nil
}

type memUserRepo struct {
	mu    sync.RWMutex
	store map[string]*model.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{store: make(map[string]*model.User)}
}

func (m *memUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.store[u.ID] = &cp
	return nil
}

func (m *memUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) AdjustCreditBalance(ctx context.Context, tx repository.Tx, userID string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[userID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	u.CreditBalance += delta
	return u.CreditBalance, nil
}

func (m *memUserRepo) SetPlan(ctx context.Context, tx repository.Tx, userID, planType string, expiresAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.PlanType = planType
	u.PlanExpiresAt = expiresAt
	return nil
}

func (m *memUserRepo) SetActive(ctx context.Context, tx repository.Tx, userID string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.IsActive = active
	return nil
}

type memSubRepo struct {
	mu   sync.RWMutex
	subs map[string]*model.UserSubscription // by userID
}

func newMemSubRepo() *memSubRepo {
	return &memSubRepo{subs: make(map[string]*model.UserSubscription)}
}

func (m *memSubRepo) Upsert(ctx context.Context, tx repository.Tx, sub *model.UserSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	m.subs[sub.UserID] = &cp
	return nil
}

func (m *memSubRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) (*model.UserSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subs[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

type memPlanRepo struct {
	mu    sync.RWMutex
	plans map[string]*model.Plan
}

func newMemPlanRepo() *memPlanRepo {
	return &memPlanRepo{plans: make(map[string]*model.Plan)}
}

func (m *memPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPlanRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Plan
	for _, p := range m.plans {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.plans[p.ID] = &cp
	return nil
}

type memAgentRepo struct {
	mu     sync.RWMutex
	agents map[string]*model.Agent
}

func newMemAgentRepo() *memAgentRepo {
	return &memAgentRepo{agents: make(map[string]*model.Agent)}
}

func (m *memAgentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Agent
	for _, a := range m.agents {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memAgentRepo) UpdateModel(ctx context.Context, tx repository.Tx, agentID, modelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[agentID]
	if !ok {
		return domain.ErrNotFound
	}
	a.ModelID = modelID
	return nil
}

func (m *memAgentRepo) Save(ctx context.Context, tx repository.Tx, a *model.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.agents[a.ID] = &cp
	return nil
}

type memModelCatalog struct {
	mu     sync.RWMutex
	models map[string]*model.AIModel
}

func newMemModelCatalog() *memModelCatalog {
	return &memModelCatalog{models: make(map[string]*model.AIModel)}
}

func (m *memModelCatalog) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.AIModel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	md, ok := m.models[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *md
	return &cp, nil
}

func (m *memModelCatalog) FindActiveFreeModel(ctx context.Context, tx repository.Tx) (*model.AIModel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, md := range m.models {
		if md.Tier == model.ModelTierFree && md.IsActive {
			cp := *md
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memModelCatalog) Save(ctx context.Context, tx repository.Tx, md *model.AIModel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *md
	m.models[md.ID] = &cp
	return nil
}

// memQueueRepo mirrors the partial unique index: (gateway, eventID) is unique
// among non-terminal items only.
type memQueueRepo struct {
	mu    sync.RWMutex
	items map[string]*model.WebhookQueueItem
}

func newMemQueueRepo() *memQueueRepo {
	return &memQueueRepo{items: make(map[string]*model.WebhookQueueItem)}
}

func (m *memQueueRepo) Enqueue(ctx context.Context, item *model.WebhookQueueItem) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if it.Gateway == item.Gateway && it.EventID == item.EventID && !it.Status.IsTerminal() {
			return false, nil
		}
	}
	cp := *item
	m.items[item.ID] = &cp
	return true, nil
}

func (m *memQueueRepo) FetchDueAndMarkProcessing(ctx context.Context, now time.Time) (*model.WebhookQueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var oldest *model.WebhookQueueItem
	for _, it := range m.items {
		if it.Status != model.WebhookStatusPending {
			continue
		}
		if it.NextRetryAt != nil && it.NextRetryAt.After(now) {
			continue
		}
		if !it.ExpiresAt.After(now) {
			continue
		}
		if oldest == nil || it.ID < oldest.ID {
			oldest = it
		}
	}
	if oldest == nil {
		return nil, domain.ErrNotFound
	}
	oldest.Status = model.WebhookStatusProcessing
	oldest.AttemptCount++
	cp := *oldest
	return &cp, nil
}

func (m *memQueueRepo) Update(ctx context.Context, tx repository.Tx, item *model.WebhookQueueItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *memQueueRepo) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, it := range m.items {
		if it.Status == model.WebhookStatusPending && !it.ExpiresAt.After(now) {
			it.Status = model.WebhookStatusExpired
			n++
		}
	}
	return n, nil
}

func (m *memQueueRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.WebhookQueueItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *memQueueRepo) ListByStatus(ctx context.Context, status model.WebhookStatus, limit int) ([]*model.WebhookQueueItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.WebhookQueueItem
	for _, it := range m.items {
		if it.Status == status {
			cp := *it
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
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
	mu      sync.Mutex
	stored  *model.BillingSettings
	loadErr error
	loads   int
}

func (m *memSettingsRepo) Load(ctx context.Context) (*model.BillingSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.loadErr != nil {
		return nil, m.loadErr
	}
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

// recordingNotifier captures notifications synchronously for assertions.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []adapter.Notification
}

func (n *recordingNotifier) Notify(notif adapter.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notif)
}

func (n *recordingNotifier) all() []adapter.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]adapter.Notification(nil), n.sent...)
}

// stubAdapter is a scriptable GatewayAdapter.
type stubAdapter struct {
	name      string
	verifyErr error
	parsed    *model.CanonicalEvent
	parseErr  error

	mu        sync.Mutex
	cancelled []string
	cancelErr error
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

func (a *stubAdapter) CancelSubscription(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancelled = append(a.cancelled, id)
	return a.cancelErr
}

type stubRegistry struct {
	adapters map[string]adapter.GatewayAdapter
}

func (r *stubRegistry) Get(name string) (adapter.GatewayAdapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
