package arena

import "time"

// RateFunc computes updated ratings from the priors of a match's
// participants, index-aligned with seat order. It must be pure.
type RateFunc func(prior []Rating) []Rating

// Store defines the persistence operations the engine relies on.
//
// Beyond plain CRUD it carries the two guarded paths the concurrency model
// needs: monotonic status transitions (an out-of-order transition is
// rejected, never applied) and ApplyMatchResult, the single-writer path that
// finishes a match, applies ratings and bumps matches_played in one
// transaction, exactly once.
type Store interface {
	CreateBot(bot *Bot) (int64, error)
	DeleteBot(id int64) error
	RenameBot(id int64, name string) error
	GetBot(id int64) (*Bot, error)
	GetAllBots() ([]Bot, error)
	// GetEligibleBots returns the bots whose current build is Success.
	GetEligibleBots() ([]Bot, error)

	// UpsertBuild replaces the bot's build record. A record with an older
	// CreatedAt never overwrites a newer one, so a slow stale build cannot
	// clobber the build that superseded it.
	UpsertBuild(build *Build) error
	GetBuilds(botID int64) ([]Build, error)
	// MarkBuildRunning transitions the bot's build Pending -> Running and
	// records the claiming worker. The claim is record-specific: createdAt
	// must match the stored row, so a stale queued job cannot claim a build
	// record that superseded it. Any other source state is rejected.
	MarkBuildRunning(botID int64, workerName string, createdAt time.Time) error
	// GetPendingBuildBots returns bots whose current build is Pending,
	// used to repopulate the queue at startup.
	GetPendingBuildBots() ([]Bot, error)
	// FailRunningBuilds force-fails builds left Running (restart recovery).
	FailRunningBuilds(reason string) (int64, error)

	// CreateMatch inserts the match and one participation row per
	// participant as a single transaction.
	CreateMatch(m *Match) (int64, error)
	GetMatch(id int64) (*Match, error)
	GetMatchesForBot(botID int64) ([]Match, error)
	GetPendingMatches() ([]Match, error)
	// MarkMatchRunning transitions Pending -> Running.
	MarkMatchRunning(id int64) error
	// FailMatch transitions a non-terminal match to Error with a message.
	FailMatch(id int64, reason string) error
	// FailRunningMatches force-fails matches left Running (restart recovery).
	FailRunningMatches(reason string) (int64, error)
	// ApplyMatchResult transitions Running -> Finished, stores ranks and
	// faults, and applies rate to the participants' ratings while
	// incrementing their matches_played, all in one transaction. The
	// Running guard makes the whole operation exactly-once.
	ApplyMatchResult(id int64, result MatchResult, rate RateFunc) error
}
