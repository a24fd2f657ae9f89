package adapter

import "context"

// Mailer is the narrow contract for user-facing email. Delivery is
// best-effort: failures are logged and never roll back financial state.
type Mailer interface {
	SendAccountSuspended(ctx context.Context, email, reason string) error
	SendPaymentPastDue(ctx context.Context, email string) error
}

type NotificationKind string

const (
	NotificationAccountSuspended NotificationKind = "account_suspended"
	NotificationPaymentPastDue   NotificationKind = "payment_past_due"
)

// Notification is a post-commit domain event driving a best-effort side
// effect. Emitted after the financial write commits, consumed asynchronously.
type Notification struct {
	Kind   NotificationKind
	UserID string
	Email  string
	Reason string
}

// Notifier accepts notifications for asynchronous delivery. Implementations
// must never block the caller on delivery.
type Notifier interface {
	Notify(n Notification)
}
