package matchmaking

import (
	"math/rand"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cgarena/cgarena/internal/arena"
	"github.com/cgarena/cgarena/internal/config"
)

// Matchmaker proposes new matches between eligible bots. Over time every
// bot accumulates comparable numbers of matches; bots still below the
// configured minimum sample size are preferred so newcomers get rated
// quickly without starving veterans of rematches.
type Matchmaker struct {
	game config.Game
	cfg  config.Matchmaking

	mu  sync.Mutex
	rnd *rand.Rand
}

// New creates a matchmaker with a time-seeded random source.
func New(game config.Game, cfg config.Matchmaking) *Matchmaker {
	return NewWithSource(game, cfg, rand.NewSource(time.Now().UnixNano()))
}

// NewWithSource creates a matchmaker with an explicit random source, which
// makes selection deterministic in tests.
func NewWithSource(game config.Game, cfg config.Matchmaking, src rand.Source) *Matchmaker {
	return &Matchmaker{
		game: game,
		cfg:  cfg,
		rnd:  rand.New(src),
	}
}

// Propose selects participants and a seed for one new match, or reports that
// no match can be formed from the eligible pool. It never persists anything;
// the caller creates the match row and enqueues the job.
//
// Safe for concurrent use; duplicate concurrent proposals are fine because
// every call produces an independent match.
func (m *Matchmaker) Propose(eligible []arena.Bot) (*arena.Match, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.AllowSameBots {
		if len(eligible) == 0 {
			return nil, false
		}
	} else if len(eligible) < m.game.MinPlayers {
		return nil, false
	}

	k := m.drawPlayerCount(len(eligible))
	pool := m.choosePool(eligible, k)

	var botIDs []int64
	if m.cfg.AllowSameBots {
		botIDs = m.sampleWithReplacement(pool, k)
	} else {
		botIDs = m.sampleWithoutReplacement(pool, k)
	}

	match := &arena.Match{
		Seed:      m.rnd.Int63(),
		BotIDs:    botIDs,
		Status:    arena.MatchPending,
		CreatedAt: time.Now().UTC(),
	}
	log.Debug("Proposed match", "participants", len(botIDs), "seed", match.Seed)
	return match, true
}

// drawPlayerCount draws k uniformly from the configured bounds. Without
// repetition the upper bound is additionally capped by the pool size.
func (m *Matchmaker) drawPlayerCount(eligible int) int {
	maxPlayers := m.game.MaxPlayers
	if !m.cfg.AllowSameBots && eligible < maxPlayers {
		maxPlayers = eligible
	}
	return m.game.MinPlayers + m.rnd.Intn(maxPlayers-m.game.MinPlayers+1)
}

// choosePool applies the min-matches preference: with the configured
// probability, restrict selection to bots that still need more data. An
// empty or too-small restricted pool falls back to the full eligible pool.
func (m *Matchmaker) choosePool(eligible []arena.Bot, k int) []arena.Bot {
	if m.rnd.Float64() >= m.cfg.MinMatchesPreference {
		return eligible
	}

	needsData := make([]arena.Bot, 0, len(eligible))
	for _, bot := range eligible {
		if bot.MatchesPlayed < m.cfg.MinMatches {
			needsData = append(needsData, bot)
		}
	}
	if len(needsData) == 0 {
		return eligible
	}
	if !m.cfg.AllowSameBots && len(needsData) < k {
		return eligible
	}
	return needsData
}

func (m *Matchmaker) sampleWithoutReplacement(pool []arena.Bot, k int) []int64 {
	perm := m.rnd.Perm(len(pool))
	botIDs := make([]int64, 0, k)
	for _, i := range perm[:k] {
		botIDs = append(botIDs, pool[i].ID)
	}
	return botIDs
}

func (m *Matchmaker) sampleWithReplacement(pool []arena.Bot, k int) []int64 {
	botIDs := make([]int64, 0, k)
	for range k {
		botIDs = append(botIDs, pool[m.rnd.Intn(len(pool))].ID)
	}
	return botIDs
}
