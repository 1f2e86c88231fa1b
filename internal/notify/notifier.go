package notify

import "context"

// Notifier delivers out-of-band alerts, used by the scheduler when a
// critical refresh exhausts its retries.
type Notifier interface {
	Alert(ctx context.Context, subject, message string) error
}

// Noop discards alerts; used when no webhook is configured.
type Noop struct{}

func (Noop) Alert(ctx context.Context, subject, message string) error { return nil }
