package metrics

import "sync"

// Mock is a mock implementation of the Metrics interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu               sync.Mutex
	buildsCompleted  map[string]int
	matchesCompleted map[string]int
	matchesProposed  int
	jobDurations     map[string][]float64
	queueDepth       map[string]int
	slackNotifSent   int
	slackNotifFailed int
	startupTime      float64
}

var _ Metrics = (*Mock)(nil)

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{
		buildsCompleted:  make(map[string]int),
		matchesCompleted: make(map[string]int),
		jobDurations:     make(map[string][]float64),
		queueDepth:       make(map[string]int),
	}
}

func (m *Mock) IncBuildsCompleted(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buildsCompleted[status]++
}

func (m *Mock) IncMatchesCompleted(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matchesCompleted[status]++
}

func (m *Mock) IncMatchesProposed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matchesProposed++
}

func (m *Mock) ObserveJobDuration(kind string, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobDurations[kind] = append(m.jobDurations[kind], seconds)
}

func (m *Mock) SetQueueDepth(kind string, depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueDepth[kind] = depth
}

func (m *Mock) IncSlackNotifSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slackNotifSent++
}

func (m *Mock) IncSlackNotifFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slackNotifFailed++
}

func (m *Mock) SetStartupTime(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startupTime = seconds
}

// BuildsCompleted returns the number of terminal builds recorded for a status.
func (m *Mock) BuildsCompleted(status string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buildsCompleted[status]
}

// MatchesCompleted returns the number of terminal matches recorded for a status.
func (m *Mock) MatchesCompleted(status string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matchesCompleted[status]
}

// MatchesProposed returns the number of times IncMatchesProposed was called.
func (m *Mock) MatchesProposed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matchesProposed
}

// JobDurations returns the observed durations for a job kind.
func (m *Mock) JobDurations(kind string) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.jobDurations[kind]...)
}

// SlackNotifSent returns the number of times IncSlackNotifSent was called.
func (m *Mock) SlackNotifSent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slackNotifSent
}

// SlackNotifFailed returns the number of times IncSlackNotifFailed was called.
func (m *Mock) SlackNotifFailed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slackNotifFailed
}

// QueueDepth returns the last recorded queue depth for a job kind.
func (m *Mock) QueueDepth(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queueDepth[kind]
}
