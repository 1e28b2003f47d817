package arena

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// ErrInvalidTransition is returned when a guarded status update finds the row
// in a state it must not move from (or finds no row at all).
var ErrInvalidTransition = errors.New("invalid status transition")

// store handles all database operations for the arena.
type store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a new Store backed by the given database.
func New(db *sql.DB) Store {
	return &store{db: db}
}

func (s *store) CreateBot(bot *Bot) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		INSERT INTO bots (name, source_code, language, created_at, matches_played, rating_mu, rating_sigma)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		bot.Name, bot.SourceCode, bot.Language, bot.CreatedAt.Unix(),
		bot.MatchesPlayed, bot.Rating.Mu, bot.Rating.Sigma,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrAlreadyExists
		}
		return 0, fmt.Errorf("failed to create bot: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read bot id: %w", err)
	}
	bot.ID = id
	return id, nil
}

func (s *store) DeleteBot(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM bots WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete bot %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *store) RenameBot(id int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("UPDATE bots SET name = ? WHERE id = ?", name, id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to rename bot %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *store) GetBot(id int64) (*Bot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(selectBots+" WHERE id = ?", id)
	bot, err := scanBot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return bot, nil
}

func (s *store) GetAllBots() ([]Bot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryBots(selectBots + " ORDER BY id")
}

func (s *store) GetEligibleBots() ([]Bot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryBots(`
		SELECT b.id, b.name, b.source_code, b.language, b.created_at, b.matches_played, b.rating_mu, b.rating_sigma
		FROM bots b
		INNER JOIN builds bl ON bl.bot_id = b.id
		WHERE bl.status = ?
		ORDER BY b.id`, int(BuildSuccess))
}

func (s *store) GetPendingBuildBots() ([]Bot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryBots(`
		SELECT b.id, b.name, b.source_code, b.language, b.created_at, b.matches_played, b.rating_mu, b.rating_sigma
		FROM bots b
		INNER JOIN builds bl ON bl.bot_id = b.id
		WHERE bl.status = ?
		ORDER BY bl.created_at`, int(BuildPending))
}

const selectBots = "SELECT id, name, source_code, language, created_at, matches_played, rating_mu, rating_sigma FROM bots"

func (s *store) queryBots(query string, args ...any) ([]Bot, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bots: %w", err)
	}
	defer rows.Close()

	bots := []Bot{}
	for rows.Next() {
		bot, err := scanBot(rows)
		if err != nil {
			return nil, err
		}
		bots = append(bots, *bot)
	}
	return bots, rows.Err()
}

func scanBot(scanner interface{ Scan(...any) error }) (*Bot, error) {
	var bot Bot
	var createdAt int64
	err := scanner.Scan(
		&bot.ID, &bot.Name, &bot.SourceCode, &bot.Language,
		&createdAt, &bot.MatchesPlayed, &bot.Rating.Mu, &bot.Rating.Sigma,
	)
	if err != nil {
		return nil, err
	}
	bot.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &bot, nil
}

func (s *store) UpsertBuild(build *Build) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The created_at guard keeps supersession ordered by creation: a stale
	// build finishing late can never overwrite the record of a newer one.
	_, err := s.db.Exec(`
		INSERT INTO builds (bot_id, worker_name, status, stdout, stderr, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(bot_id) DO UPDATE SET
			worker_name = excluded.worker_name,
			status = excluded.status,
			stdout = excluded.stdout,
			stderr = excluded.stderr,
			created_at = excluded.created_at
		WHERE excluded.created_at >= builds.created_at`,
		build.BotID, build.WorkerName, int(build.Status),
		build.Stdout, build.Stderr, build.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert build for bot %d: %w", build.BotID, err)
	}
	return nil
}

func (s *store) GetBuilds(botID int64) ([]Build, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT bot_id, worker_name, status, stdout, stderr, created_at
		FROM builds WHERE bot_id = ?`, botID)
	if err != nil {
		return nil, fmt.Errorf("failed to query builds for bot %d: %w", botID, err)
	}
	defer rows.Close()

	builds := []Build{}
	for rows.Next() {
		var b Build
		var status int
		var createdAt int64
		if err := rows.Scan(&b.BotID, &b.WorkerName, &status, &b.Stdout, &b.Stderr, &createdAt); err != nil {
			return nil, err
		}
		b.Status, err = ParseBuildStatus(status)
		if err != nil {
			log.Error("Invalid build row in database", "botID", botID, "error", err)
			return nil, err
		}
		b.CreatedAt = time.Unix(createdAt, 0).UTC()
		builds = append(builds, b)
	}
	return builds, rows.Err()
}

func (s *store) MarkBuildRunning(botID int64, workerName string, createdAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The created_at match pins the claim to one specific record: a queued
	// job whose record was superseded by a newer submission must not steal
	// the newer record's Pending state.
	res, err := s.db.Exec(
		"UPDATE builds SET status = ?, worker_name = ? WHERE bot_id = ? AND status = ? AND created_at = ?",
		int(BuildRunning), workerName, botID, int(BuildPending), createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark build running for bot %d: %w", botID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("build for bot %d is not pending: %w", botID, ErrInvalidTransition)
	}
	return nil
}

func (s *store) FailRunningBuilds(reason string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		"UPDATE builds SET status = ?, stderr = ? WHERE status = ?",
		int(BuildFailure), reason, int(BuildRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to fail running builds: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *store) CreateMatch(m *Match) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.Result != nil {
		if err := m.Result.Validate(len(m.BotIDs)); err != nil {
			return 0, err
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var statusError any
	if m.Status == MatchError {
		statusError = m.StatusError
	}
	res, err := tx.Exec(
		"INSERT INTO matches (seed, status, status_error, created_at) VALUES (?, ?, ?, ?)",
		m.Seed, int(m.Status), statusError, m.CreatedAt.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create match: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read match id: %w", err)
	}

	for idx, botID := range m.BotIDs {
		var rank, fault any
		if m.Result != nil {
			rank = m.Result.Ranks[idx]
			fault = boolToInt(m.Result.Faults[idx])
		}
		_, err := tx.Exec(
			"INSERT INTO participations (match_id, bot_id, idx, rank, fault) VALUES (?, ?, ?, ?, ?)",
			id, botID, idx, rank, fault,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to create participation %d for match %d: %w", idx, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit match creation: %w", err)
	}
	m.ID = id
	return id, nil
}

func (s *store) GetMatch(id int64) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches, err := s.queryMatches(selectMatches+" WHERE m.id = ? ORDER BY p.idx", id)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrNotFound
	}
	return &matches[0], nil
}

func (s *store) GetMatchesForBot(botID int64) ([]Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.queryMatches(selectMatches+`
		WHERE m.id IN (SELECT match_id FROM participations WHERE bot_id = ?)
		ORDER BY m.id, p.idx`, botID)
}

func (s *store) GetPendingMatches() ([]Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.queryMatches(selectMatches+" WHERE m.status = ? ORDER BY m.id, p.idx", int(MatchPending))
}

const selectMatches = `
	SELECT m.id, m.seed, m.status, m.status_error, m.created_at, p.bot_id, p.rank, p.fault
	FROM matches m
	INNER JOIN participations p ON p.match_id = m.id`

type participationRow struct {
	botID int64
	rank  sql.NullInt64
	fault sql.NullInt64
}

func (s *store) queryMatches(query string, args ...any) ([]Match, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	matches := []Match{}
	parts := [][]participationRow{}
	index := map[int64]int{}
	for rows.Next() {
		var m Match
		var status int64
		var statusError sql.NullString
		var createdAt int64
		var p participationRow
		err := rows.Scan(&m.ID, &m.Seed, &status, &statusError, &createdAt, &p.botID, &p.rank, &p.fault)
		if err != nil {
			return nil, err
		}

		i, ok := index[m.ID]
		if !ok {
			m.Status, err = ParseMatchStatus(int(status))
			if err != nil {
				log.Error("Invalid match row in database", "matchID", m.ID, "error", err)
				return nil, err
			}
			m.StatusError = statusError.String
			m.CreatedAt = time.Unix(createdAt, 0).UTC()
			index[m.ID] = len(matches)
			i = len(matches)
			matches = append(matches, m)
			parts = append(parts, nil)
		}
		parts[i] = append(parts[i], p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range matches {
		if err := assembleMatch(&matches[i], parts[i]); err != nil {
			log.Error("Invalid match in database", "matchID", matches[i].ID, "error", err)
			return nil, err
		}
	}
	return matches, nil
}

// assembleMatch attaches participations to a match and reconstructs the
// result for finished matches. A finished match missing rank data means an
// invariant was already broken; the operation stops instead of proceeding
// with partial state.
func assembleMatch(m *Match, parts []participationRow) error {
	if len(parts) == 0 {
		return fmt.Errorf("match %d has no participations", m.ID)
	}
	for _, p := range parts {
		m.BotIDs = append(m.BotIDs, p.botID)
	}
	if m.Status != MatchFinished {
		return nil
	}

	result := MatchResult{
		Ranks:  make([]int, 0, len(parts)),
		Faults: make([]bool, 0, len(parts)),
	}
	for _, p := range parts {
		if !p.rank.Valid || !p.fault.Valid {
			return fmt.Errorf("finished match %d is missing rank data", m.ID)
		}
		result.Ranks = append(result.Ranks, int(p.rank.Int64))
		result.Faults = append(result.Faults, p.fault.Int64 == 1)
	}
	m.Result = &result
	return nil
}

func (s *store) MarkMatchRunning(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		"UPDATE matches SET status = ? WHERE id = ? AND status = ?",
		int(MatchRunning), id, int(MatchPending),
	)
	if err != nil {
		return fmt.Errorf("failed to mark match %d running: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("match %d is not pending: %w", id, ErrInvalidTransition)
	}
	return nil
}

func (s *store) FailMatch(id int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		"UPDATE matches SET status = ?, status_error = ? WHERE id = ? AND status IN (?, ?)",
		int(MatchError), reason, id, int(MatchPending), int(MatchRunning),
	)
	if err != nil {
		return fmt.Errorf("failed to fail match %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("match %d is already terminal: %w", id, ErrInvalidTransition)
	}
	return nil
}

func (s *store) FailRunningMatches(reason string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		"UPDATE matches SET status = ?, status_error = ? WHERE status = ?",
		int(MatchError), reason, int(MatchRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to fail running matches: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *store) ApplyMatchResult(id int64, result MatchResult, rate RateFunc) error {
	// The store mutex doubles as the single-writer rating path: two matches
	// finishing concurrently for the same bot cannot both read a stale prior.
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		"SELECT bot_id FROM participations WHERE match_id = ? ORDER BY idx", id)
	if err != nil {
		return fmt.Errorf("failed to query participations for match %d: %w", id, err)
	}
	botIDs := []int64{}
	for rows.Next() {
		var botID int64
		if err := rows.Scan(&botID); err != nil {
			rows.Close()
			return err
		}
		botIDs = append(botIDs, botID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	if len(botIDs) == 0 {
		return ErrNotFound
	}
	if err := result.Validate(len(botIDs)); err != nil {
		return fmt.Errorf("match %d: %w", id, err)
	}

	// The Running guard makes the rating application exactly-once: a second
	// attempt (retry, duplicate completion) finds the match already Finished.
	res, err := tx.Exec(
		"UPDATE matches SET status = ?, status_error = NULL WHERE id = ? AND status = ?",
		int(MatchFinished), id, int(MatchRunning),
	)
	if err != nil {
		return fmt.Errorf("failed to finish match %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("match %d is not running: %w", id, ErrInvalidTransition)
	}

	for idx := range botIDs {
		_, err := tx.Exec(
			"UPDATE participations SET rank = ?, fault = ? WHERE match_id = ? AND idx = ?",
			result.Ranks[idx], boolToInt(result.Faults[idx]), id, idx,
		)
		if err != nil {
			return fmt.Errorf("failed to store result for match %d seat %d: %w", id, idx, err)
		}
	}

	priors := make([]Rating, len(botIDs))
	for i, botID := range botIDs {
		err := tx.QueryRow("SELECT rating_mu, rating_sigma FROM bots WHERE id = ?", botID).
			Scan(&priors[i].Mu, &priors[i].Sigma)
		if err != nil {
			return fmt.Errorf("failed to read rating of bot %d: %w", botID, err)
		}
	}

	updated := rate(priors)
	if len(updated) != len(botIDs) {
		return fmt.Errorf("rating engine returned %d ratings for %d participants", len(updated), len(botIDs))
	}

	for i, botID := range botIDs {
		_, err := tx.Exec(
			"UPDATE bots SET rating_mu = ?, rating_sigma = ?, matches_played = matches_played + 1 WHERE id = ?",
			updated[i].Mu, updated[i].Sigma, botID,
		)
		if err != nil {
			return fmt.Errorf("failed to update rating of bot %d: %w", botID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit result of match %d: %w", id, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
