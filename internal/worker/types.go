package worker

import (
	"fmt"

	"github.com/cgarena/cgarena/internal/arena"
)

// JobKind discriminates the two kinds of work a slot can claim.
type JobKind int

const (
	JobBuild JobKind = iota
	JobMatch
)

func (k JobKind) String() string {
	switch k {
	case JobBuild:
		return "build"
	case JobMatch:
		return "match"
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// Job is one unit of claimable work.
type Job struct {
	Kind JobKind

	// Build jobs carry the bot to compile and the pending build record it
	// belongs to (the record's CreatedAt orders supersession).
	Bot   *arena.Bot
	Build *arena.Build

	// Match jobs carry the pending match.
	Match *arena.Match
}

// BuildOutcome is the terminal result of a build job.
type BuildOutcome struct {
	Status arena.BuildStatus
	Stdout string
	Stderr string
}

// MatchOutcome is the terminal result of a match job: either a finished
// result or an error diagnostic, never both.
type MatchOutcome struct {
	Status arena.MatchStatus
	Result *arena.MatchResult
	Error  string
}
