package http

import (
	"net/http"

	"github.com/cgarena/cgarena/internal/arena"
	"github.com/cgarena/cgarena/internal/config"
	"github.com/cgarena/cgarena/internal/metrics"
)

func NewServer(store arena.Store, builds BuildQueuer, metricsSvc metrics.Metrics, metricsHandler http.Handler, cfg config.Config) *Server {
	server := &Server{
		Store:          store,
		Builds:         builds,
		Metrics:        metricsSvc,
		MetricsHandler: metricsHandler,
		Cfg:            cfg,
		Router:         http.NewServeMux(),
	}

	server.routes()
	return server
}

func (s *Server) routes() {
	// All handlers are wrapped with middleware using the Chain helper.
	// This makes it easy to add more middlewares in the future, like an authentication middleware.
	// e.g. Chain(s.MyHandler(), paramsMiddleware, authMiddleware)
	s.Router.Handle("/metrics", s.MetricsHandler)
	s.Router.Handle("/health", Chain(s.HealthCheckHandler(), paramsMiddleware))
	s.Router.Handle("GET /api/bots", Chain(s.ListBotsHandler(), paramsMiddleware))
	s.Router.Handle("POST /api/bots", Chain(s.CreateBotHandler(), paramsMiddleware))
	s.Router.Handle("GET /api/bots/{id}", Chain(s.GetBotHandler(), paramsMiddleware))
	s.Router.Handle("PATCH /api/bots/{id}", Chain(s.RenameBotHandler(), paramsMiddleware))
	s.Router.Handle("DELETE /api/bots/{id}", Chain(s.DeleteBotHandler(), paramsMiddleware))
	s.Router.Handle("GET /api/bots/{id}/builds", Chain(s.ListBuildsHandler(), paramsMiddleware))
	s.Router.Handle("GET /api/bots/{id}/matches", Chain(s.ListBotMatchesHandler(), paramsMiddleware))
	s.Router.Handle("POST /api/bots/{id}/rebuild", Chain(s.RebuildBotHandler(), paramsMiddleware))
	s.Router.Handle("GET /api/matches/{id}", Chain(s.GetMatchHandler(), paramsMiddleware))
	s.Router.Handle("GET /api/leaderboard", Chain(s.LeaderboardHandler(), paramsMiddleware))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}
