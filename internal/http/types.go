package http

import (
	"net/http"

	"github.com/cgarena/cgarena/internal/arena"
	"github.com/cgarena/cgarena/internal/config"
	"github.com/cgarena/cgarena/internal/metrics"
)

// BuildQueuer enqueues builds; satisfied by the orchestrator.
type BuildQueuer interface {
	EnqueueBuild(bot *arena.Bot) error
}

type Server struct {
	Store          arena.Store
	Builds         BuildQueuer
	Metrics        metrics.Metrics
	MetricsHandler http.Handler
	Cfg            config.Config
	Router         *http.ServeMux
}
