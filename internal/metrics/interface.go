package metrics

// Metrics defines the interface for collecting application metrics.
// This decouples the application from the specific metrics implementation (e.g., Prometheus).
type Metrics interface {
	IncBuildsCompleted(status string)
	IncMatchesCompleted(status string)
	IncMatchesProposed()
	ObserveJobDuration(kind string, seconds float64)
	SetQueueDepth(kind string, depth int)
	IncSlackNotifSent()
	IncSlackNotifFailed()
	SetStartupTime(seconds float64)
}
