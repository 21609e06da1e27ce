// Package notifier
package notifier

// Notifier sends human-facing notifications (e.g. Telegram).
type Notifier interface {
	Send(msg string) error
	SendWithRetry(msg string) error
}

// Nop is a no-op notifier used when no channel is configured.
type Nop struct{}

func (Nop) Send(string) error          { return nil }
func (Nop) SendWithRetry(string) error { return nil }
