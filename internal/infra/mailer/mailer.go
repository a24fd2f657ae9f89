package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"

	"ai-agent-billing/internal/domain/ports/adapter"
)

// Compile-time checks
var (
	_ adapter.Mailer = (*SMTPMailer)(nil)
	_ adapter.Mailer = (*LogMailer)(nil)
)

// SMTPMailer delivers the two billing notices over plain SMTP.
type SMTPMailer struct {
	addr string // host:port
	from string
	auth smtp.Auth
	log  *zerolog.Logger
}

func NewSMTPMailer(addr, from, username, password string, logger *zerolog.Logger) *SMTPMailer {
	mlog := logger.With().Str("component", "SMTPMailer").Logger()
	var auth smtp.Auth
	if username != "" {
		host := addr
		if i := strings.IndexByte(addr, ':'); i >= 0 {
			host = addr[:i]
		}
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPMailer{addr: addr, from: from, auth: auth, log: &mlog}
}

func (m *SMTPMailer) SendAccountSuspended(ctx context.Context, email, reason string) error {
	body := fmt.Sprintf("Your account has been suspended (%s). Contact support to resolve the dispute.", reason)
	return m.send(email, "Account suspended", body)
}

func (m *SMTPMailer) SendPaymentPastDue(ctx context.Context, email string) error {
	body := "Your latest subscription payment failed. Please update your payment method to keep your plan."
	return m.send(email, "Payment past due", body)
}

func (m *SMTPMailer) send(to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + to,
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")
	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	m.log.Info().Str("to", to).Str("subject", subject).Msg("mail sent")
	return nil
}

// LogMailer writes the notices to the log instead of sending them. Used in
// dev mode and wherever no SMTP endpoint is configured.
type LogMailer struct {
	log *zerolog.Logger
}

func NewLogMailer(logger *zerolog.Logger) *LogMailer {
	mlog := logger.With().Str("component", "LogMailer").Logger()
	return &LogMailer{log: &mlog}
}

func (m *LogMailer) SendAccountSuspended(ctx context.Context, email, reason string) error {
	m.log.Info().Str("to", email).Str("reason", reason).Msg("account suspended notice (not sent)")
	return nil
}

func (m *LogMailer) SendPaymentPastDue(ctx context.Context, email string) error {
	m.log.Info().Str("to", email).Msg("payment past due notice (not sent)")
	return nil
}
