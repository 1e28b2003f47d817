package notifier

import "github.com/cgarena/cgarena/internal/arena"

// Notifier defines a high-level interface for announcing arena events.
// This decouples the rest of the application from the specific notification provider (e.g., Slack).
type Notifier interface {
	// For builds that ended in failure
	NotifyBuildFailed(bot *arena.Bot, stderr string) error
	// For matches that ended with a driver error
	NotifyMatchErrored(matchID int64, reason string) error
}

// Noop is a Notifier that drops every notification. It is used when no
// provider is configured.
type Noop struct{}

var _ Notifier = Noop{}

// NewNoop creates a notifier that does nothing.
func NewNoop() Noop {
	return Noop{}
}

func (Noop) NotifyBuildFailed(bot *arena.Bot, stderr string) error { return nil }

func (Noop) NotifyMatchErrored(matchID int64, reason string) error { return nil }
