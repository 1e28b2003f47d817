package notifier

import (
	"sync"

	"github.com/cgarena/cgarena/internal/arena"
)

// Mock is a mock implementation of the Notifier interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu sync.Mutex

	// Call records
	NotifyBuildFailedCalls []struct {
		Bot    *arena.Bot
		Stderr string
	}
	NotifyMatchErroredCalls []struct {
		MatchID int64
		Reason  string
	}
}

var _ Notifier = (*Mock)(nil)

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{}
}

// Reset clears all call records.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NotifyBuildFailedCalls = nil
	m.NotifyMatchErroredCalls = nil
}

func (m *Mock) NotifyBuildFailed(bot *arena.Bot, stderr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NotifyBuildFailedCalls = append(m.NotifyBuildFailedCalls, struct {
		Bot    *arena.Bot
		Stderr string
	}{bot, stderr})
	return nil
}

func (m *Mock) NotifyMatchErrored(matchID int64, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NotifyMatchErroredCalls = append(m.NotifyMatchErroredCalls, struct {
		MatchID int64
		Reason  string
	}{matchID, reason})
	return nil
}
