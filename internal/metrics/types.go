package metrics

import "github.com/prometheus/client_golang/prometheus"

// Service holds all the Prometheus metrics for the arena.
// By defining them all in one place, we ensure consistency in naming and labeling.
type Service struct {
	BuildsCompleted    *prometheus.CounterVec
	MatchesCompleted   *prometheus.CounterVec
	MatchesProposed    prometheus.Counter
	JobDuration        *prometheus.HistogramVec
	QueueDepth         *prometheus.GaugeVec
	SlackNotifSent     prometheus.Counter
	SlackNotifFailed   prometheus.Counter
	StartupTimeSeconds prometheus.Gauge
}
