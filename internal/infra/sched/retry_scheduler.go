package sched

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"ai-agent-billing/internal/domain"
	"ai-agent-billing/internal/domain/model"
	"ai-agent-billing/internal/domain/ports/repository"
	"ai-agent-billing/internal/infra/metrics"
	"ai-agent-billing/internal/usecase"
)

// RetryScheduler drains the webhook retry queue on a fixed interval. A busy
// flag skips a tick while the previous pass is still running; items are
// processed sequentially, so one slow event never fans out into concurrent
// reprocessing of the same queue.
type RetryScheduler struct {
	interval  time.Duration
	queue     repository.WebhookQueueRepository
	processor usecase.WebhookProcessorUseCase
	settings  *usecase.SettingsProvider
	log       *zerolog.Logger

	busy atomic.Bool
	now  func() time.Time // overridable in tests
}

func NewRetryScheduler(
	interval time.Duration,
	queue repository.WebhookQueueRepository,
	processor usecase.WebhookProcessorUseCase,
	settings *usecase.SettingsProvider,
	logger *zerolog.Logger,
) *RetryScheduler {
	schedLog := logger.With().Str("component", "RetryScheduler").Logger()
	return &RetryScheduler{
		interval:  interval,
		queue:     queue,
		processor: processor,
		settings:  settings,
		log:       &schedLog,
		now:       time.Now,
	}
}

func (s *RetryScheduler) Run(ctx context.Context) error {
	s.log.Info().Dur("interval", s.interval).Msg("Starting webhook retry scheduler")
	// Run once on startup, then on every tick
	s.RunPass(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Stopping webhook retry scheduler")
			return ctx.Err()
		case <-ticker.C:
			s.RunPass(ctx)
		}
	}
}

// RunPass executes one drain pass. Returns the number of items attempted;
// zero with no error means the pass was skipped or the queue was empty.
func (s *RetryScheduler) RunPass(ctx context.Context) int {
	if !s.busy.CompareAndSwap(false, true) {
		s.log.Debug().Msg("previous pass still running; tick skipped")
		return 0
	}
	defer s.busy.Store(false)

	now := s.now()
	if n, err := s.queue.ExpireOverdue(ctx, now); err != nil {
		s.log.Error().Err(err).Msg("expiry sweep failed")
	} else if n > 0 {
		metrics.AddWebhookExpired(n)
		s.log.Info().Int64("count", n).Msg("queue items expired")
	}

	attempted := 0
	for {
		if ctx.Err() != nil {
			return attempted
		}
		item, err := s.queue.FetchDueAndMarkProcessing(ctx, s.now())
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				s.log.Error().Err(err).Msg("claim due item failed")
			}
			return attempted
		}
		attempted++
		s.process(ctx, item)
	}
}

func (s *RetryScheduler) process(ctx context.Context, item *model.WebhookQueueItem) {
	log := s.log.With().Str("queue_id", item.ID).Str("gateway", item.Gateway).
		Str("event_id", item.EventID).Int("attempt", item.AttemptCount).Logger()

	err := s.processor.ReprocessStored(ctx, item.Gateway, item.Payload)
	if err == nil {
		item.MarkCompleted()
		if uerr := s.queue.Update(ctx, nil, item); uerr != nil {
			log.Error().Err(uerr).Msg("persist completed item failed")
			return
		}
		metrics.IncWebhookRetry(item.Gateway, "completed")
		metrics.IncWebhookTerminal(string(model.WebhookStatusCompleted))
		log.Info().Msg("queued webhook reprocessed")
		return
	}

	// The attempt already counted when the item was claimed; the backoff
	// index is that attempt number.
	delay := s.settings.Get(ctx).BackoffDelay(item.AttemptCount)
	next := s.now().Add(delay)
	item.RecordFailure(err.Error(), &next)
	if uerr := s.queue.Update(ctx, nil, item); uerr != nil {
		log.Error().Err(uerr).Msg("persist failed item failed")
		return
	}

	if item.Status == model.WebhookStatusFailed {
		metrics.IncWebhookRetry(item.Gateway, "failed")
		metrics.IncWebhookTerminal(string(model.WebhookStatusFailed))
		log.Error().Err(err).Msg("webhook retries exhausted")
		return
	}
	metrics.IncWebhookRetry(item.Gateway, "rescheduled")
	log.Warn().Err(err).Time("next_retry_at", next).Msg("webhook retry rescheduled")
}
