package arena

import (
	"sync"
	"time"
)

// MockStore is a mock implementation of the Store interface for testing.
// It is safe for concurrent use.
type MockStore struct {
	mu sync.Mutex

	// Spies for method calls
	CreateBotFunc           func(bot *Bot) (int64, error)
	DeleteBotFunc           func(id int64) error
	RenameBotFunc           func(id int64, name string) error
	GetBotFunc              func(id int64) (*Bot, error)
	GetAllBotsFunc          func() ([]Bot, error)
	GetEligibleBotsFunc     func() ([]Bot, error)
	UpsertBuildFunc         func(build *Build) error
	GetBuildsFunc           func(botID int64) ([]Build, error)
	MarkBuildRunningFunc    func(botID int64, workerName string, createdAt time.Time) error
	GetPendingBuildBotsFunc func() ([]Bot, error)
	FailRunningBuildsFunc   func(reason string) (int64, error)
	CreateMatchFunc         func(m *Match) (int64, error)
	GetMatchFunc            func(id int64) (*Match, error)
	GetMatchesForBotFunc    func(botID int64) ([]Match, error)
	GetPendingMatchesFunc   func() ([]Match, error)
	MarkMatchRunningFunc    func(id int64) error
	FailMatchFunc           func(id int64, reason string) error
	FailRunningMatchesFunc  func(reason string) (int64, error)
	ApplyMatchResultFunc    func(id int64, result MatchResult, rate RateFunc) error

	// Call records
	CreateBotCalls        []*Bot
	UpsertBuildCalls      []*Build
	MarkBuildRunningCalls []struct {
		BotID      int64
		WorkerName string
		CreatedAt  time.Time
	}
	CreateMatchCalls      []*Match
	MarkMatchRunningCalls []int64
	FailMatchCalls        []struct {
		ID     int64
		Reason string
	}
	ApplyMatchResultCalls []struct {
		ID     int64
		Result MatchResult
	}
}

var _ Store = (*MockStore)(nil)

// NewMock creates a new mock instance.
func NewMock() *MockStore {
	return &MockStore{}
}

func (m *MockStore) CreateBot(bot *Bot) (int64, error) {
	m.mu.Lock()
	m.CreateBotCalls = append(m.CreateBotCalls, bot)
	m.mu.Unlock()
	if m.CreateBotFunc != nil {
		return m.CreateBotFunc(bot)
	}
	return 0, nil
}

func (m *MockStore) DeleteBot(id int64) error {
	if m.DeleteBotFunc != nil {
		return m.DeleteBotFunc(id)
	}
	return nil
}

func (m *MockStore) RenameBot(id int64, name string) error {
	if m.RenameBotFunc != nil {
		return m.RenameBotFunc(id, name)
	}
	return nil
}

func (m *MockStore) GetBot(id int64) (*Bot, error) {
	if m.GetBotFunc != nil {
		return m.GetBotFunc(id)
	}
	return nil, ErrNotFound
}

func (m *MockStore) GetAllBots() ([]Bot, error) {
	if m.GetAllBotsFunc != nil {
		return m.GetAllBotsFunc()
	}
	return nil, nil
}

func (m *MockStore) GetEligibleBots() ([]Bot, error) {
	if m.GetEligibleBotsFunc != nil {
		return m.GetEligibleBotsFunc()
	}
	return nil, nil
}

func (m *MockStore) UpsertBuild(build *Build) error {
	m.mu.Lock()
	m.UpsertBuildCalls = append(m.UpsertBuildCalls, build)
	m.mu.Unlock()
	if m.UpsertBuildFunc != nil {
		return m.UpsertBuildFunc(build)
	}
	return nil
}

func (m *MockStore) GetBuilds(botID int64) ([]Build, error) {
	if m.GetBuildsFunc != nil {
		return m.GetBuildsFunc(botID)
	}
	return nil, nil
}

func (m *MockStore) MarkBuildRunning(botID int64, workerName string, createdAt time.Time) error {
	m.mu.Lock()
	m.MarkBuildRunningCalls = append(m.MarkBuildRunningCalls, struct {
		BotID      int64
		WorkerName string
		CreatedAt  time.Time
	}{botID, workerName, createdAt})
	m.mu.Unlock()
	if m.MarkBuildRunningFunc != nil {
		return m.MarkBuildRunningFunc(botID, workerName, createdAt)
	}
	return nil
}

func (m *MockStore) GetPendingBuildBots() ([]Bot, error) {
	if m.GetPendingBuildBotsFunc != nil {
		return m.GetPendingBuildBotsFunc()
	}
	return nil, nil
}

func (m *MockStore) FailRunningBuilds(reason string) (int64, error) {
	if m.FailRunningBuildsFunc != nil {
		return m.FailRunningBuildsFunc(reason)
	}
	return 0, nil
}

func (m *MockStore) CreateMatch(match *Match) (int64, error) {
	m.mu.Lock()
	m.CreateMatchCalls = append(m.CreateMatchCalls, match)
	m.mu.Unlock()
	if m.CreateMatchFunc != nil {
		return m.CreateMatchFunc(match)
	}
	return 0, nil
}

func (m *MockStore) GetMatch(id int64) (*Match, error) {
	if m.GetMatchFunc != nil {
		return m.GetMatchFunc(id)
	}
	return nil, ErrNotFound
}

func (m *MockStore) GetMatchesForBot(botID int64) ([]Match, error) {
	if m.GetMatchesForBotFunc != nil {
		return m.GetMatchesForBotFunc(botID)
	}
	return nil, nil
}

func (m *MockStore) GetPendingMatches() ([]Match, error) {
	if m.GetPendingMatchesFunc != nil {
		return m.GetPendingMatchesFunc()
	}
	return nil, nil
}

func (m *MockStore) MarkMatchRunning(id int64) error {
	m.mu.Lock()
	m.MarkMatchRunningCalls = append(m.MarkMatchRunningCalls, id)
	m.mu.Unlock()
	if m.MarkMatchRunningFunc != nil {
		return m.MarkMatchRunningFunc(id)
	}
	return nil
}

func (m *MockStore) FailMatch(id int64, reason string) error {
	m.mu.Lock()
	m.FailMatchCalls = append(m.FailMatchCalls, struct {
		ID     int64
		Reason string
	}{id, reason})
	m.mu.Unlock()
	if m.FailMatchFunc != nil {
		return m.FailMatchFunc(id, reason)
	}
	return nil
}

func (m *MockStore) FailRunningMatches(reason string) (int64, error) {
	if m.FailRunningMatchesFunc != nil {
		return m.FailRunningMatchesFunc(reason)
	}
	return 0, nil
}

func (m *MockStore) ApplyMatchResult(id int64, result MatchResult, rate RateFunc) error {
	m.mu.Lock()
	m.ApplyMatchResultCalls = append(m.ApplyMatchResultCalls, struct {
		ID     int64
		Result MatchResult
	}{id, result})
	m.mu.Unlock()
	if m.ApplyMatchResultFunc != nil {
		return m.ApplyMatchResultFunc(id, result, rate)
	}
	return nil
}
