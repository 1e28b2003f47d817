package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cgarena/cgarena/internal/arena"
)

const (
	maxNameLen   = 32
	maxSourceLen = 100000
)

type createBotRequest struct {
	Name       string `json:"name"`
	SourceCode string `json:"source_code"`
	Language   string `json:"language"`
}

type renameBotRequest struct {
	Name string `json:"name"`
}

type ratingResponse struct {
	Mu    float64 `json:"mu"`
	Sigma float64 `json:"sigma"`
	Score float64 `json:"score"`
}

type botResponse struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	Language      string         `json:"language"`
	CreatedAt     time.Time      `json:"created_at"`
	MatchesPlayed int            `json:"matches_played"`
	Rating        ratingResponse `json:"rating"`
}

type buildResponse struct {
	BotID      int64     `json:"bot_id"`
	WorkerName string    `json:"worker_name,omitempty"`
	Status     string    `json:"status"`
	Stdout     string    `json:"stdout"`
	Stderr     string    `json:"stderr"`
	CreatedAt  time.Time `json:"created_at"`
}

type matchResponse struct {
	ID          int64     `json:"id"`
	Seed        int64     `json:"seed"`
	Status      string    `json:"status"`
	BotIDs      []int64   `json:"bot_ids"`
	Ranks       []int     `json:"ranks,omitempty"`
	Faults      []bool    `json:"faults,omitempty"`
	StatusError string    `json:"status_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toBotResponse(b arena.Bot) botResponse {
	return botResponse{
		ID:            b.ID,
		Name:          b.Name,
		Language:      b.Language,
		CreatedAt:     b.CreatedAt,
		MatchesPlayed: b.MatchesPlayed,
		Rating: ratingResponse{
			Mu:    b.Rating.Mu,
			Sigma: b.Rating.Sigma,
			Score: b.Rating.Score(),
		},
	}
}

func toMatchResponse(m arena.Match) matchResponse {
	resp := matchResponse{
		ID:          m.ID,
		Seed:        m.Seed,
		Status:      m.Status.String(),
		BotIDs:      m.BotIDs,
		StatusError: m.StatusError,
		CreatedAt:   m.CreatedAt,
	}
	if m.Result != nil {
		resp.Ranks = m.Result.Ranks
		resp.Faults = m.Result.Faults
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps store sentinel errors onto API status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, arena.ErrNotFound):
		writeError(w, http.StatusNotFound, "bot not found")
	case errors.Is(err, arena.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "a bot with this name already exists")
	default:
		log.Error("Store operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

func validName(name string) bool {
	return len(name) >= 1 && len(name) <= maxNameLen
}

func (s *Server) validateCreateBot(req createBotRequest) error {
	if !validName(req.Name) {
		return fmt.Errorf("name must be between 1 and %d characters", maxNameLen)
	}
	if len(req.SourceCode) == 0 || len(req.SourceCode) > maxSourceLen {
		return fmt.Errorf("source_code must be between 1 and %d bytes", maxSourceLen)
	}
	if len(req.Language) < 1 || len(req.Language) > maxNameLen {
		return fmt.Errorf("language must be between 1 and %d characters", maxNameLen)
	}
	if s.Cfg.Worker != nil {
		if _, ok := s.Cfg.Worker.Language(req.Language); !ok {
			return fmt.Errorf("language %q is not configured", req.Language)
		}
	}
	return nil
}

func (s *Server) HealthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("Received health check request")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK!")
	}
}

func (s *Server) CreateBotHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createBotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.validateCreateBot(req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		bot := &arena.Bot{
			Name:       req.Name,
			SourceCode: req.SourceCode,
			Language:   req.Language,
			CreatedAt:  time.Now().UTC(),
			Rating:     arena.DefaultRating(),
		}
		id, err := s.Store.CreateBot(bot)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		bot.ID = id
		log.Info("Bot created", "botID", id, "name", bot.Name)

		if err := s.Builds.EnqueueBuild(bot); err != nil {
			// The bot exists; the build can still be triggered via rebuild.
			log.Error("Failed to enqueue initial build", "botID", id, "error", err)
		}

		writeJSON(w, http.StatusCreated, toBotResponse(*bot))
	}
}

func (s *Server) ListBotsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bots, err := s.Store.GetAllBots()
		if err != nil {
			writeStoreError(w, err)
			return
		}

		if name := r.URL.Query().Get("name"); name != "" {
			filtered := bots[:0]
			for _, b := range bots {
				if b.Name == name {
					filtered = append(filtered, b)
				}
			}
			bots = filtered
		}

		resp := make([]botResponse, 0, len(bots))
		for _, b := range bots {
			resp = append(resp, toBotResponse(b))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) GetBotHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		bot, err := s.Store.GetBot(id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toBotResponse(*bot))
	}
}

func (s *Server) RenameBotHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		var req renameBotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if !validName(req.Name) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("name must be between 1 and %d characters", maxNameLen))
			return
		}
		if err := s.Store.RenameBot(id, req.Name); err != nil {
			writeStoreError(w, err)
			return
		}
		log.Info("Bot renamed", "botID", id, "name", req.Name)
		bot, err := s.Store.GetBot(id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toBotResponse(*bot))
	}
}

func (s *Server) DeleteBotHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.Store.DeleteBot(id); err != nil {
			writeStoreError(w, err)
			return
		}
		log.Info("Bot deleted", "botID", id)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) ListBuildsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if _, err := s.Store.GetBot(id); err != nil {
			writeStoreError(w, err)
			return
		}
		builds, err := s.Store.GetBuilds(id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		resp := make([]buildResponse, 0, len(builds))
		for _, b := range builds {
			resp = append(resp, buildResponse{
				BotID:      b.BotID,
				WorkerName: b.WorkerName,
				Status:     b.Status.String(),
				Stdout:     b.Stdout,
				Stderr:     b.Stderr,
				CreatedAt:  b.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) ListBotMatchesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if _, err := s.Store.GetBot(id); err != nil {
			writeStoreError(w, err)
			return
		}
		matches, err := s.Store.GetMatchesForBot(id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		resp := make([]matchResponse, 0, len(matches))
		for _, m := range matches {
			resp = append(resp, toMatchResponse(m))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) RebuildBotHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		bot, err := s.Store.GetBot(id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if err := s.Builds.EnqueueBuild(bot); err != nil {
			log.Error("Failed to enqueue rebuild", "botID", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to enqueue build")
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func (s *Server) GetMatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		match, err := s.Store.GetMatch(id)
		if err != nil {
			if errors.Is(err, arena.ErrNotFound) {
				writeError(w, http.StatusNotFound, "match not found")
				return
			}
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toMatchResponse(*match))
	}
}

func (s *Server) LeaderboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bots, err := s.Store.GetAllBots()
		if err != nil {
			writeStoreError(w, err)
			return
		}
		sort.Slice(bots, func(i, j int) bool {
			return bots[i].Rating.Score() > bots[j].Rating.Score()
		})
		resp := make([]botResponse, 0, len(bots))
		for _, b := range bots {
			resp = append(resp, toBotResponse(b))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
