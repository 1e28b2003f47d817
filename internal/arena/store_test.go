package arena_test

import (
	"database/sql"
	"testing"
	"time"

	"github.com/cgarena/cgarena/internal/arena"
	"github.com/cgarena/cgarena/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a temporary in-memory SQLite database for testing.
func setupTestDB(t *testing.T) (arena.Store, *sql.DB) {
	t.Helper()

	db, teardown, err := database.InitDB(":memory:", "", "")
	require.NoError(t, err)
	t.Cleanup(teardown)

	return arena.New(db), db
}

func newTestBot(name string) *arena.Bot {
	return &arena.Bot{
		Name:       name,
		SourceCode: "print(1)",
		Language:   "python",
		CreatedAt:  time.Now().UTC(),
		Rating:     arena.DefaultRating(),
	}
}

func TestCreateAndGetBot(t *testing.T) {
	store, _ := setupTestDB(t)

	id, err := store.CreateBot(newTestBot("Alpha"))
	require.NoError(t, err)

	bot, err := store.GetBot(id)
	require.NoError(t, err)
	assert.Equal(t, "Alpha", bot.Name)
	assert.Equal(t, "print(1)", bot.SourceCode)
	assert.Equal(t, "python", bot.Language)
	assert.Equal(t, 0, bot.MatchesPlayed)
	assert.InDelta(t, arena.DefaultMu, bot.Rating.Mu, 1e-9)
	assert.InDelta(t, arena.DefaultSigma, bot.Rating.Sigma, 1e-9)

	all, err := store.GetAllBots()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCreateBotNameConflict(t *testing.T) {
	store, _ := setupTestDB(t)

	_, err := store.CreateBot(newTestBot("Alpha"))
	require.NoError(t, err)

	_, err = store.CreateBot(newTestBot("Alpha"))
	assert.ErrorIs(t, err, arena.ErrAlreadyExists)
}

func TestDeleteBot(t *testing.T) {
	store, _ := setupTestDB(t)

	id, err := store.CreateBot(newTestBot("Alpha"))
	require.NoError(t, err)

	require.NoError(t, store.DeleteBot(id))
	_, err = store.GetBot(id)
	assert.ErrorIs(t, err, arena.ErrNotFound)

	assert.ErrorIs(t, store.DeleteBot(9999), arena.ErrNotFound)
}

func TestRenameBot(t *testing.T) {
	store, _ := setupTestDB(t)

	id, err := store.CreateBot(newTestBot("Alpha"))
	require.NoError(t, err)

	require.NoError(t, store.RenameBot(id, "Beta"))
	bot, err := store.GetBot(id)
	require.NoError(t, err)
	assert.Equal(t, "Beta", bot.Name)

	assert.ErrorIs(t, store.RenameBot(9999, "Gamma"), arena.ErrNotFound)
}

func TestUpsertBuildSupersedes(t *testing.T) {
	store, _ := setupTestDB(t)

	id, err := store.CreateBot(newTestBot("Alpha"))
	require.NoError(t, err)

	first := &arena.Build{
		BotID:      id,
		WorkerName: "w1",
		Status:     arena.BuildFailure,
		Stderr:     "boom",
		CreatedAt:  time.Unix(1000, 0),
	}
	require.NoError(t, store.UpsertBuild(first))

	second := &arena.Build{
		BotID:      id,
		WorkerName: "w2",
		Status:     arena.BuildSuccess,
		CreatedAt:  time.Unix(2000, 0),
	}
	require.NoError(t, store.UpsertBuild(second))

	builds, err := store.GetBuilds(id)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, arena.BuildSuccess, builds[0].Status)
	assert.Equal(t, "w2", builds[0].WorkerName)
}

func TestStaleBuildDoesNotClobberNewerOne(t *testing.T) {
	store, _ := setupTestDB(t)

	id, err := store.CreateBot(newTestBot("Alpha"))
	require.NoError(t, err)

	newer := &arena.Build{
		BotID:     id,
		Status:    arena.BuildSuccess,
		CreatedAt: time.Unix(2000, 0),
	}
	require.NoError(t, store.UpsertBuild(newer))

	// A stale build finishing late must not win over the newer record.
	stale := &arena.Build{
		BotID:     id,
		Status:    arena.BuildFailure,
		Stderr:    "stale failure",
		CreatedAt: time.Unix(1000, 0),
	}
	require.NoError(t, store.UpsertBuild(stale))

	builds, err := store.GetBuilds(id)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, arena.BuildSuccess, builds[0].Status)
}

func TestBuildStatusTransitions(t *testing.T) {
	store, _ := setupTestDB(t)

	id, err := store.CreateBot(newTestBot("Alpha"))
	require.NoError(t, err)

	pending := &arena.Build{BotID: id, Status: arena.BuildPending, CreatedAt: time.Unix(1000, 0)}
	require.NoError(t, store.UpsertBuild(pending))

	require.NoError(t, store.MarkBuildRunning(id, "w1", pending.CreatedAt))

	// Running is not a claimable state.
	assert.ErrorIs(t, store.MarkBuildRunning(id, "w2", pending.CreatedAt), arena.ErrInvalidTransition)

	done := &arena.Build{BotID: id, Status: arena.BuildSuccess, CreatedAt: time.Unix(1000, 0)}
	require.NoError(t, store.UpsertBuild(done))

	// Success never reverses into Running.
	assert.ErrorIs(t, store.MarkBuildRunning(id, "w3", done.CreatedAt), arena.ErrInvalidTransition)

	builds, err := store.GetBuilds(id)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, arena.BuildSuccess, builds[0].Status)
}

func TestMarkBuildRunningClaimIsRecordSpecific(t *testing.T) {
	store, _ := setupTestDB(t)

	id, err := store.CreateBot(newTestBot("Alpha"))
	require.NoError(t, err)

	old := time.Unix(1000, 0)
	newer := time.Unix(1002, 0)

	require.NoError(t, store.UpsertBuild(&arena.Build{BotID: id, Status: arena.BuildPending, CreatedAt: old}))
	require.NoError(t, store.UpsertBuild(&arena.Build{BotID: id, Status: arena.BuildPending, CreatedAt: newer}))

	// A claim carrying the superseded timestamp must not consume the
	// Pending state of the record that replaced it.
	assert.ErrorIs(t, store.MarkBuildRunning(id, "w-old", old), arena.ErrInvalidTransition)

	builds, err := store.GetBuilds(id)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, arena.BuildPending, builds[0].Status)

	require.NoError(t, store.MarkBuildRunning(id, "w-new", newer))

	builds, err = store.GetBuilds(id)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, arena.BuildRunning, builds[0].Status)
	assert.Equal(t, "w-new", builds[0].WorkerName)
}

func TestGetEligibleBots(t *testing.T) {
	store, _ := setupTestDB(t)

	built, err := store.CreateBot(newTestBot("Built"))
	require.NoError(t, err)
	broken, err := store.CreateBot(newTestBot("Broken"))
	require.NoError(t, err)
	_, err = store.CreateBot(newTestBot("Unbuilt"))
	require.NoError(t, err)

	require.NoError(t, store.UpsertBuild(&arena.Build{BotID: built, Status: arena.BuildSuccess, CreatedAt: time.Unix(1, 0)}))
	require.NoError(t, store.UpsertBuild(&arena.Build{BotID: broken, Status: arena.BuildFailure, CreatedAt: time.Unix(1, 0)}))

	eligible, err := store.GetEligibleBots()
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, "Built", eligible[0].Name)
}

func createMatchWithBots(t *testing.T, store arena.Store, names ...string) (*arena.Match, []int64) {
	t.Helper()

	botIDs := make([]int64, 0, len(names))
	for _, name := range names {
		id, err := store.CreateBot(newTestBot(name))
		require.NoError(t, err)
		botIDs = append(botIDs, id)
	}

	m := &arena.Match{
		Seed:      42,
		BotIDs:    botIDs,
		Status:    arena.MatchPending,
		CreatedAt: time.Now().UTC(),
	}
	_, err := store.CreateMatch(m)
	require.NoError(t, err)
	return m, botIDs
}

func TestCreateAndGetMatch(t *testing.T) {
	store, _ := setupTestDB(t)

	m, botIDs := createMatchWithBots(t, store, "A", "B", "C")

	got, err := store.GetMatch(m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.Seed)
	assert.Equal(t, arena.MatchPending, got.Status)
	assert.Equal(t, botIDs, got.BotIDs)
	assert.Nil(t, got.Result)

	forBot, err := store.GetMatchesForBot(botIDs[1])
	require.NoError(t, err)
	require.Len(t, forBot, 1)
	assert.Equal(t, m.ID, forBot[0].ID)

	pending, err := store.GetPendingMatches()
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestApplyMatchResultExactlyOnce(t *testing.T) {
	store, _ := setupTestDB(t)

	m, botIDs := createMatchWithBots(t, store, "A", "B")
	require.NoError(t, store.MarkMatchRunning(m.ID))

	result := arena.MatchResult{Ranks: []int{0, 1}, Faults: []bool{false, false}}
	rateCalls := 0
	rate := func(prior []arena.Rating) []arena.Rating {
		rateCalls++
		updated := make([]arena.Rating, len(prior))
		for i, r := range prior {
			updated[i] = arena.Rating{Mu: r.Mu + 1, Sigma: r.Sigma - 0.1}
		}
		return updated
	}

	require.NoError(t, store.ApplyMatchResult(m.ID, result, rate))
	assert.Equal(t, 1, rateCalls)

	got, err := store.GetMatch(m.ID)
	require.NoError(t, err)
	assert.Equal(t, arena.MatchFinished, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, []int{0, 1}, got.Result.Ranks)
	assert.Equal(t, []bool{false, false}, got.Result.Faults)
	assert.Len(t, got.Result.Ranks, len(got.BotIDs))

	for _, botID := range botIDs {
		bot, err := store.GetBot(botID)
		require.NoError(t, err)
		assert.Equal(t, 1, bot.MatchesPlayed)
		assert.InDelta(t, arena.DefaultMu+1, bot.Rating.Mu, 1e-9)
	}

	// A second application must be rejected and must not touch ratings.
	err = store.ApplyMatchResult(m.ID, result, rate)
	assert.ErrorIs(t, err, arena.ErrInvalidTransition)
	assert.Equal(t, 1, rateCalls)

	bot, err := store.GetBot(botIDs[0])
	require.NoError(t, err)
	assert.Equal(t, 1, bot.MatchesPlayed)
}

func TestApplyMatchResultRejectsShapeMismatch(t *testing.T) {
	store, _ := setupTestDB(t)

	m, _ := createMatchWithBots(t, store, "A", "B")
	require.NoError(t, store.MarkMatchRunning(m.ID))

	err := store.ApplyMatchResult(m.ID, arena.MatchResult{
		Ranks:  []int{0},
		Faults: []bool{false},
	}, func(prior []arena.Rating) []arena.Rating { return prior })
	assert.Error(t, err)

	// The match must stay running, not end up partially finished.
	got, err := store.GetMatch(m.ID)
	require.NoError(t, err)
	assert.Equal(t, arena.MatchRunning, got.Status)
}

func TestFailMatch(t *testing.T) {
	store, _ := setupTestDB(t)

	m, _ := createMatchWithBots(t, store, "A", "B")
	require.NoError(t, store.MarkMatchRunning(m.ID))
	require.NoError(t, store.FailMatch(m.ID, "driver timed out"))

	got, err := store.GetMatch(m.ID)
	require.NoError(t, err)
	assert.Equal(t, arena.MatchError, got.Status)
	assert.Equal(t, "driver timed out", got.StatusError)

	// Error is terminal.
	assert.ErrorIs(t, store.FailMatch(m.ID, "again"), arena.ErrInvalidTransition)
	assert.ErrorIs(t, store.MarkMatchRunning(m.ID), arena.ErrInvalidTransition)
}

func TestFinishedMatchMissingRankIsIntegrityError(t *testing.T) {
	store, db := setupTestDB(t)

	m, _ := createMatchWithBots(t, store, "A", "B")

	// Corrupt the row: finished without rank data.
	_, err := db.Exec("UPDATE matches SET status = 2 WHERE id = ?", m.ID)
	require.NoError(t, err)

	_, err = store.GetMatch(m.ID)
	assert.Error(t, err)
}

func TestRestartRecoveryFailsRunningJobs(t *testing.T) {
	store, _ := setupTestDB(t)

	botID, err := store.CreateBot(newTestBot("Alpha"))
	require.NoError(t, err)
	require.NoError(t, store.UpsertBuild(&arena.Build{BotID: botID, Status: arena.BuildPending, CreatedAt: time.Unix(1, 0)}))
	require.NoError(t, store.MarkBuildRunning(botID, "w1", time.Unix(1, 0)))

	m, _ := createMatchWithBots(t, store, "B", "C")
	require.NoError(t, store.MarkMatchRunning(m.ID))

	nBuilds, err := store.FailRunningBuilds("interrupted by restart")
	require.NoError(t, err)
	assert.Equal(t, int64(1), nBuilds)

	nMatches, err := store.FailRunningMatches("interrupted by restart")
	require.NoError(t, err)
	assert.Equal(t, int64(1), nMatches)

	builds, err := store.GetBuilds(botID)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, arena.BuildFailure, builds[0].Status)

	got, err := store.GetMatch(m.ID)
	require.NoError(t, err)
	assert.Equal(t, arena.MatchError, got.Status)
}
