package worker

import (
	"context"

	"github.com/rs/zerolog"

	"ai-agent-billing/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.Notifier = (*AsyncNotifier)(nil)

// AsyncNotifier bridges post-commit notifications onto the pool. Notify never
// blocks; a saturated pool drops the notification with an error log.
type AsyncNotifier struct {
	pool   *Pool
	mailer adapter.Mailer
	log    *zerolog.Logger
}

func NewAsyncNotifier(pool *Pool, mailer adapter.Mailer, logger *zerolog.Logger) *AsyncNotifier {
	nlog := logger.With().Str("component", "AsyncNotifier").Logger()
	return &AsyncNotifier{pool: pool, mailer: mailer, log: &nlog}
}

func (n *AsyncNotifier) Notify(notif adapter.Notification) {
	err := n.pool.Submit(func(ctx context.Context) error {
		switch notif.Kind {
		case adapter.NotificationAccountSuspended:
			return n.mailer.SendAccountSuspended(ctx, notif.Email, notif.Reason)
		case adapter.NotificationPaymentPastDue:
			return n.mailer.SendPaymentPastDue(ctx, notif.Email)
		}
		n.log.Warn().Str("kind", string(notif.Kind)).Msg("unhandled notification kind")
		return nil
	})
	if err != nil {
		n.log.Error().Err(err).Str("kind", string(notif.Kind)).
			Str("user_id", notif.UserID).Msg("notification dropped")
	}
}
