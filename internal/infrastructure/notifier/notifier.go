package notifier

import (
	"context"

	"go.uber.org/zap"
)

// Email is an outbound notification. Delivery is fire-and-forget from the
// caller's perspective; failed sends are retried by the job queue, not here.
type Email struct {
	To      string
	Subject string
	Body    string
}

// Notifier sends outbound notifications to users and staff
type Notifier interface {
	SendEmail(ctx context.Context, email Email) error
}

// LogNotifier writes notifications to the log instead of delivering them.
// Used in development and tests; a real SMTP or provider-backed
// implementation satisfies the same interface in production.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notifier")}
}

// SendEmail logs the email instead of sending it
func (n *LogNotifier) SendEmail(ctx context.Context, email Email) error {
	n.logger.Info("email notification",
		zap.String("to", email.To),
		zap.String("subject", email.Subject),
	)
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
