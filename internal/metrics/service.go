package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ Metrics = (*Service)(nil)

// NewMetricsHandler returns an http.Handler for the given Gatherer.
// If no gatherer is provided, it uses the default one.
func NewMetricsHandler(gatherer ...prometheus.Gatherer) http.Handler {
	gath := prometheus.DefaultGatherer
	if len(gatherer) > 0 {
		gath = gatherer[0]
	}
	return promhttp.HandlerFor(gath, promhttp.HandlerOpts{})
}

// NewService creates and registers the Prometheus metrics.
// If no registerer is provided, it uses the default Prometheus registerer.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		BuildsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cgarena_builds_completed_total",
			Help: "The total number of bot builds reaching a terminal status.",
		}, []string{"status"}),
		MatchesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cgarena_matches_completed_total",
			Help: "The total number of matches reaching a terminal status.",
		}, []string{"status"}),
		MatchesProposed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cgarena_matches_proposed_total",
			Help: "The total number of matches created by the matchmaker.",
		}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cgarena_job_duration_seconds",
			Help:    "The wall-clock duration of build and match jobs.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"kind"}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cgarena_queue_depth",
			Help: "The number of jobs currently waiting in the worker queue.",
		}, []string{"kind"}),
		SlackNotifSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cgarena_slack_notifications_sent_total",
			Help: "The total number of Slack notifications successfully sent.",
		}),
		SlackNotifFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cgarena_slack_notifications_failed_total",
			Help: "The total number of Slack notifications that failed to send.",
		}),
		StartupTimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cgarena_startup_duration_seconds",
			Help: "The duration of the application startup in seconds.",
		}),
	}

	reg.MustRegister(
		s.BuildsCompleted,
		s.MatchesCompleted,
		s.MatchesProposed,
		s.JobDuration,
		s.QueueDepth,
		s.SlackNotifSent,
		s.SlackNotifFailed,
		s.StartupTimeSeconds,
	)

	return s
}

func (s *Service) IncBuildsCompleted(status string) {
	s.BuildsCompleted.WithLabelValues(status).Inc()
}

func (s *Service) IncMatchesCompleted(status string) {
	s.MatchesCompleted.WithLabelValues(status).Inc()
}

func (s *Service) IncMatchesProposed() {
	s.MatchesProposed.Inc()
}

func (s *Service) ObserveJobDuration(kind string, seconds float64) {
	s.JobDuration.WithLabelValues(kind).Observe(seconds)
}

func (s *Service) SetQueueDepth(kind string, depth int) {
	s.QueueDepth.WithLabelValues(kind).Set(float64(depth))
}

func (s *Service) IncSlackNotifSent() {
	s.SlackNotifSent.Inc()
}

func (s *Service) IncSlackNotifFailed() {
	s.SlackNotifFailed.Inc()
}

func (s *Service) SetStartupTime(seconds float64) {
	s.StartupTimeSeconds.Set(seconds)
}
