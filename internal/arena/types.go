package arena

import (
	"errors"
	"fmt"
	"time"
)

// ErrAlreadyExists is returned when a create hits a uniqueness conflict.
var ErrAlreadyExists = errors.New("already exists")

// ErrNotFound is returned when a mutation or lookup targets a missing row.
var ErrNotFound = errors.New("not found")

// Default Weng-Lin parameters for a freshly registered bot.
const (
	DefaultMu    = 25.0
	DefaultSigma = 25.0 / 3.0
)

// Rating is a Weng-Lin skill estimate.
type Rating struct {
	Mu    float64 `json:"mu"`
	Sigma float64 `json:"sigma"`
}

// DefaultRating returns the rating assigned to a new bot.
func DefaultRating() Rating {
	return Rating{Mu: DefaultMu, Sigma: DefaultSigma}
}

// Score is the conservative skill estimate exposed to clients.
func (r Rating) Score() float64 {
	return r.Mu - 3*r.Sigma
}

// Bot is a submitted competitor.
type Bot struct {
	ID            int64
	Name          string
	SourceCode    string
	Language      string
	CreatedAt     time.Time
	MatchesPlayed int
	Rating        Rating
}

// BuildStatus tracks a build job through its lifecycle. Transitions are
// monotonic: Pending -> Running -> {Success, Failure}.
type BuildStatus int

const (
	BuildPending BuildStatus = iota
	BuildRunning
	BuildSuccess
	BuildFailure
)

func (s BuildStatus) String() string {
	switch s {
	case BuildPending:
		return "pending"
	case BuildRunning:
		return "running"
	case BuildSuccess:
		return "success"
	case BuildFailure:
		return "failure"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// ParseBuildStatus decodes a stored status value. An unrecognized value is a
// data-integrity violation, not a recoverable condition.
func ParseBuildStatus(v int) (BuildStatus, error) {
	switch s := BuildStatus(v); s {
	case BuildPending, BuildRunning, BuildSuccess, BuildFailure:
		return s, nil
	}
	return 0, fmt.Errorf("unexpected build status %d", v)
}

// Build is the current build record of a bot. A new build supersedes the
// previous one, so only the latest record exists per bot.
type Build struct {
	BotID      int64
	WorkerName string
	Status     BuildStatus
	Stdout     string
	Stderr     string
	CreatedAt  time.Time
}

// MatchStatus tracks a match job through its lifecycle. Transitions are
// monotonic: Pending -> Running -> {Finished, Error}.
type MatchStatus int

const (
	MatchPending MatchStatus = iota
	MatchRunning
	MatchFinished
	MatchError
)

func (s MatchStatus) String() string {
	switch s {
	case MatchPending:
		return "pending"
	case MatchRunning:
		return "running"
	case MatchFinished:
		return "finished"
	case MatchError:
		return "error"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// ParseMatchStatus decodes a stored status value.
func ParseMatchStatus(v int) (MatchStatus, error) {
	switch s := MatchStatus(v); s {
	case MatchPending, MatchRunning, MatchFinished, MatchError:
		return s, nil
	}
	return 0, fmt.Errorf("unexpected match status %d", v)
}

// MatchResult holds the outcome of a finished match. Ranks and Faults are
// aligned with the match's seat order; lower rank is better, ties are
// allowed, and a fault marks a participant that errored out during the game.
type MatchResult struct {
	Ranks  []int
	Faults []bool
}

// Validate checks the result against the participant count. Finished is
// all-or-nothing: a partial result is never acceptable.
func (r MatchResult) Validate(participants int) error {
	if len(r.Ranks) != participants || len(r.Faults) != participants {
		return fmt.Errorf("result shape mismatch: %d ranks, %d faults for %d participants",
			len(r.Ranks), len(r.Faults), participants)
	}
	for _, rank := range r.Ranks {
		if rank < 0 {
			return fmt.Errorf("negative rank %d", rank)
		}
	}
	return nil
}

// Match is a set of bots pitted against each other under a fixed seed.
// BotIDs is in seat order, which aligns ranks and faults.
type Match struct {
	ID        int64
	Seed      int64
	BotIDs    []int64
	Status    MatchStatus
	// Result is set exactly when Status is MatchFinished.
	Result *MatchResult
	// StatusError is set exactly when Status is MatchError.
	StatusError string
	CreatedAt   time.Time
}
