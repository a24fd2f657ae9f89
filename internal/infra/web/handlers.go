package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ai-agent-billing/internal/domain"
	"ai-agent-billing/internal/domain/model"
	"ai-agent-billing/internal/infra/logging"
	"ai-agent-billing/internal/infra/metrics"
	"ai-agent-billing/internal/usecase"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// handleWebhook is the single ingress for all five gateways. The response
// contract is fixed: 200 {"received":true} whenever the event is settled
// (processed, duplicate or ignored), 401 on a bad signature, 500 after the
// event has been queued for retry.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "gateway")
	ctx := logging.WithGateway(r.Context(), name)
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		ctx = logging.WithTraceID(ctx, reqID)
	}

	ad, ok := s.registry.Get(name)
	if !ok {
		http.Error(w, "unknown gateway", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	if err := ad.VerifySignature(body, r.Header); err != nil {
		metrics.IncWebhookSignatureFailure(name)
		metrics.IncWebhookReceived(name, "rejected")
		s.log.Warn().Str("gateway", name).Err(err).Msg("webhook signature rejected")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	ev, err := ad.ParseEvent(body)
	if err != nil {
		metrics.IncWebhookReceived(name, "rejected")
		s.log.Error().Str("gateway", name).Err(err).Msg("webhook payload unparseable")
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	ctx = logging.WithEventID(ctx, ev.EventID)

	err = s.processor.ProcessCanonical(ctx, ev)
	if err == nil {
		metrics.IncWebhookReceived(name, "processed")
		s.writeReceived(w)
		return
	}

	if !usecase.RetryableError(err) {
		metrics.IncWebhookReceived(name, "rejected")
		s.log.Error().Str("gateway", name).Str("event_id", ev.EventID).Err(err).
			Msg("webhook permanently rejected")
		http.Error(w, "invalid event", http.StatusBadRequest)
		return
	}

	// Transient failure: park the event and let the gateway's own retry stop.
	if _, qerr := s.processor.EnqueueForRetry(ctx, ev, body, err); qerr != nil {
		s.log.Error().Str("gateway", name).Str("event_id", ev.EventID).Err(qerr).
			Msg("enqueue for retry failed")
	}
	metrics.IncWebhookReceived(name, "enqueued")
	http.Error(w, "processing failed", http.StatusInternalServerError)
}

func (s *Server) writeReceived(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"received":true}`))
}

// ===== Admin API =====

type settingsDTO struct {
	RetryBackoffMinutes []int     `json:"retry_backoff_minutes"`
	MaxAttempts         int       `json:"max_attempts"`
	ExpiryHours         int       `json:"expiry_hours"`
	UpdatedAt           time.Time `json:"updated_at,omitempty"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	cur := s.settings.Get(r.Context())
	writeJSON(w, http.StatusOK, settingsDTO{
		RetryBackoffMinutes: cur.RetryBackoffMinutes,
		MaxAttempts:         cur.MaxAttempts,
		ExpiryHours:         cur.ExpiryHours,
		UpdatedAt:           cur.UpdatedAt,
	})
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.MaxAttempts <= 0 || req.ExpiryHours <= 0 || len(req.RetryBackoffMinutes) == 0 {
		http.Error(w, "max_attempts, expiry_hours and retry_backoff_minutes are required", http.StatusBadRequest)
		return
	}
	for _, m := range req.RetryBackoffMinutes {
		if m <= 0 {
			http.Error(w, "backoff minutes must be positive", http.StatusBadRequest)
			return
		}
	}

	next := &model.BillingSettings{
		RetryBackoffMinutes: req.RetryBackoffMinutes,
		MaxAttempts:         req.MaxAttempts,
		ExpiryHours:         req.ExpiryHours,
		UpdatedAt:           time.Now(),
	}
	if err := s.settings.Update(r.Context(), next); err != nil {
		http.Error(w, "Failed to save settings", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, settingsDTO{
		RetryBackoffMinutes: next.RetryBackoffMinutes,
		MaxAttempts:         next.MaxAttempts,
		ExpiryHours:         next.ExpiryHours,
		UpdatedAt:           next.UpdatedAt,
	})
}

type queueItemDTO struct {
	ID           string               `json:"id"`
	Gateway      string               `json:"gateway"`
	EventType    string               `json:"event_type"`
	EventID      string               `json:"event_id"`
	Status       string               `json:"status"`
	AttemptCount int                  `json:"attempt_count"`
	MaxAttempts  int                  `json:"max_attempts"`
	LastError    string               `json:"last_error,omitempty"`
	ErrorHistory []model.ErrorRecord  `json:"error_history,omitempty"`
	NextRetryAt  *time.Time           `json:"next_retry_at,omitempty"`
	ExpiresAt    time.Time            `json:"expires_at"`
	ProcessedAt  *time.Time           `json:"processed_at,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
}

func toQueueItemDTO(it *model.WebhookQueueItem) queueItemDTO {
	return queueItemDTO{
		ID:           it.ID,
		Gateway:      it.Gateway,
		EventType:    it.EventType,
		EventID:      it.EventID,
		Status:       string(it.Status),
		AttemptCount: it.AttemptCount,
		MaxAttempts:  it.MaxAttempts,
		LastError:    it.LastError,
		ErrorHistory: it.ErrorHistory,
		NextRetryAt:  it.NextRetryAt,
		ExpiresAt:    it.ExpiresAt,
		ProcessedAt:  it.ProcessedAt,
		CreatedAt:    it.CreatedAt,
	}
}

func (s *Server) handleListQueue(w http.ResponseWriter, r *http.Request) {
	status := model.WebhookStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = model.WebhookStatusFailed
	}
	switch status {
	case model.WebhookStatusPending, model.WebhookStatusProcessing,
		model.WebhookStatusCompleted, model.WebhookStatusFailed, model.WebhookStatusExpired:
	default:
		http.Error(w, "unknown status", http.StatusBadRequest)
		return
	}

	items, err := s.queue.ListByStatus(r.Context(), status, 100)
	if err != nil {
		http.Error(w, "Failed to list queue", http.StatusInternalServerError)
		return
	}
	out := make([]queueItemDTO, 0, len(items))
	for _, it := range items {
		out = append(out, toQueueItemDTO(it))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out, "count": len(out)})
}

func (s *Server) handleRetryQueueItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	expiry := s.settings.Get(r.Context()).Expiry(time.Now())

	err := s.queue.ResetForRetry(r.Context(), id, expiry)
	switch {
	case err == nil:
		item, gerr := s.queue.FindByID(r.Context(), nil, id)
		if gerr != nil {
			http.Error(w, "Failed to load item", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toQueueItemDTO(item))
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "queue item not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrQueueItemTerminal):
		http.Error(w, "only failed items can be retried", http.StatusConflict)
	default:
		http.Error(w, "Failed to reset item", http.StatusInternalServerError)
	}
}

type confirmPaymentRequest struct {
	Type                  string `json:"type,omitempty"` // "credits" (default) or "subscription"
	UserID                string `json:"user_id"`
	Credits               int64  `json:"credits"`
	Amount                int64  `json:"amount"`
	Currency              string `json:"currency"`
	Gateway               string `json:"gateway"`
	GatewayTransactionID  string `json:"gateway_transaction_id"`
	CreditPackageID       string `json:"credit_package_id,omitempty"`
	PlanID                string `json:"plan_id,omitempty"`
	GatewaySubscriptionID string `json:"gateway_subscription_id,omitempty"`
	BillingPeriod         string `json:"billing_period,omitempty"`
	Description           string `json:"description,omitempty"`
}

// handleConfirmPayment applies a payment by hand, for deliveries the gateway
// never managed to push through. Same idempotency key, so a webhook arriving
// later is a harmless duplicate. Subscription confirmations run through the
// same dispatch as the webhook path: charge recorded, subscription reconciled.
func (s *Server) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Type == "subscription" {
		s.confirmSubscriptionCharge(w, r, req)
		return
	}

	var pkg *string
	if req.CreditPackageID != "" {
		pkg = &req.CreditPackageID
	}
	desc := req.Description
	if desc == "" {
		desc = "manual confirmation"
	}
	applied, err := s.ledger.AddCredits(r.Context(), usecase.CreditGrant{
		UserID:          req.UserID,
		Credits:         req.Credits,
		Description:     desc,
		Amount:          req.Amount,
		Currency:        req.Currency,
		CreditPackageID: pkg,
		Key: model.IdempotencyKey{
			Gateway:              req.Gateway,
			GatewayTransactionID: req.GatewayTransactionID,
		},
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{
			"applied":           applied,
			"already_processed": applied == 0,
		})
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "user not found", http.StatusNotFound)
	default:
		http.Error(w, "Failed to confirm payment", http.StatusInternalServerError)
	}
}

func (s *Server) confirmSubscriptionCharge(w http.ResponseWriter, r *http.Request, req confirmPaymentRequest) {
	desc := req.Description
	if desc == "" {
		desc = "manual confirmation"
	}
	ev := &model.CanonicalEvent{
		Gateway:               req.Gateway,
		EventID:               "manual_" + req.GatewayTransactionID,
		RawType:               desc,
		Kind:                  model.EventKindSubscriptionCharge,
		UserID:                req.UserID,
		GatewayTransactionID:  req.GatewayTransactionID,
		GatewaySubscriptionID: req.GatewaySubscriptionID,
		PlanID:                req.PlanID,
		BillingPeriod:         model.BillingPeriod(req.BillingPeriod),
		Amount:                req.Amount,
		Currency:              req.Currency,
	}

	err := s.processor.ProcessCanonical(r.Context(), ev)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"confirmed": true})
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "user not found", http.StatusNotFound)
	case !usecase.RetryableError(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "Failed to confirm payment", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
