package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/cgarena/cgarena/internal/arena"
	"github.com/cgarena/cgarena/internal/config"
)

// Builder compiles bot source code into runnable artifacts.
type Builder struct {
	cfg config.Worker
}

// NewBuilder creates a build pipeline for the given worker configuration.
func NewBuilder(cfg config.Worker) *Builder {
	return &Builder{cfg: cfg}
}

// BotDir returns a bot's private working directory.
func (b *Builder) BotDir(botID int64) string {
	return filepath.Join(b.cfg.DirBots, strconv.FormatInt(botID, 10))
}

// Build materializes the bot's source into its working directory and runs
// the language's build command. Exit 0 means Success; everything else,
// including spawn failures and timeouts, is a terminal Failure with the
// diagnostics captured in stderr.
func (b *Builder) Build(ctx context.Context, bot *arena.Bot) BuildOutcome {
	lang, ok := b.cfg.Language(bot.Language)
	if !ok {
		return failure("", fmt.Sprintf("unsupported language %q", bot.Language))
	}

	dir := b.BotDir(bot.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return failure("", fmt.Sprintf("failed to create bot directory: %v", err))
	}
	source := filepath.Join(dir, "source")
	if err := os.WriteFile(source, []byte(bot.SourceCode), 0o644); err != nil {
		return failure("", fmt.Sprintf("failed to write bot source: %v", err))
	}

	command := expand(lang.CmdBuild, dir, source)
	log.Debug("Running build command", "botID", bot.ID, "command", command)

	stdout, stderr, err := runCommand(ctx, b.cfg.JobTimeout(), dir, command)
	switch {
	case err == nil:
		return BuildOutcome{Status: arena.BuildSuccess, Stdout: stdout, Stderr: stderr}
	case errors.Is(err, ErrTimeout):
		return failure(stdout, fmt.Sprintf("build timed out after %s", b.cfg.JobTimeout()))
	case errors.Is(err, context.Canceled):
		return failure(stdout, "build interrupted by shutdown")
	default:
		if stderr == "" {
			stderr = err.Error()
		}
		return BuildOutcome{Status: arena.BuildFailure, Stdout: stdout, Stderr: stderr}
	}
}

func failure(stdout, stderr string) BuildOutcome {
	return BuildOutcome{Status: arena.BuildFailure, Stdout: stdout, Stderr: stderr}
}
