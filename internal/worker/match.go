package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/cgarena/cgarena/internal/arena"
	"github.com/cgarena/cgarena/internal/config"
)

// MatchRunner executes match jobs through the configured driver process.
type MatchRunner struct {
	cfg config.Worker
}

// NewMatchRunner creates a match executor for the given worker configuration.
func NewMatchRunner(cfg config.Worker) *MatchRunner {
	return &MatchRunner{cfg: cfg}
}

// Run invokes the match driver with the match seed and the participants' run
// commands in seat order, then parses the driver's outcome line. Any crash,
// timeout or malformed output yields a terminal Error outcome; Finished is
// all-or-nothing.
func (r *MatchRunner) Run(ctx context.Context, match *arena.Match, bots []arena.Bot) MatchOutcome {
	if len(bots) != len(match.BotIDs) {
		return matchError(fmt.Sprintf("got %d bots for %d participants", len(bots), len(match.BotIDs)))
	}

	builder := Builder{cfg: r.cfg}
	args := []string{r.cfg.CmdPlayMatch, strconv.FormatInt(match.Seed, 10)}
	for _, bot := range bots {
		lang, ok := r.cfg.Language(bot.Language)
		if !ok {
			return matchError(fmt.Sprintf("unsupported language %q of bot %d", bot.Language, bot.ID))
		}
		dir := builder.BotDir(bot.ID)
		runCmd := expand(lang.CmdRun, dir, dir+"/source")
		args = append(args, shellQuote(runCmd))
	}
	command := strings.Join(args, " ")
	log.Debug("Running match driver", "matchID", match.ID, "command", command)

	stdout, stderr, err := runCommand(ctx, r.cfg.JobTimeout(), "", command)
	switch {
	case errors.Is(err, ErrTimeout):
		return matchError(fmt.Sprintf("match driver timed out after %s", r.cfg.JobTimeout()))
	case errors.Is(err, context.Canceled):
		return matchError("match interrupted by shutdown")
	case err != nil:
		msg := fmt.Sprintf("match driver failed: %v", err)
		if stderr != "" {
			msg += ": " + firstLine(stderr)
		}
		return matchError(msg)
	}

	result, err := parseDriverOutput(stdout, len(match.BotIDs))
	if err != nil {
		return matchError(fmt.Sprintf("malformed driver output: %v", err))
	}
	return MatchOutcome{Status: arena.MatchFinished, Result: result}
}

// driverOutcome is the JSON object the driver must print as its last stdout
// line: one rank and one fault flag per participant, in seat order.
type driverOutcome struct {
	Ranks  []int  `json:"ranks"`
	Errors []bool `json:"errors"`
}

func parseDriverOutput(stdout string, participants int) (*arena.MatchResult, error) {
	line := lastLine(stdout)
	if line == "" {
		return nil, errors.New("driver produced no output")
	}

	var outcome driverOutcome
	if err := json.Unmarshal([]byte(line), &outcome); err != nil {
		return nil, fmt.Errorf("failed to parse outcome line %q: %w", line, err)
	}

	result := arena.MatchResult{Ranks: outcome.Ranks, Faults: outcome.Errors}
	if err := result.Validate(participants); err != nil {
		return nil, err
	}
	return &result, nil
}

func matchError(msg string) MatchOutcome {
	return MatchOutcome{Status: arena.MatchError, Error: msg}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
