package worker_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cgarena/cgarena/internal/arena"
	"github.com/cgarena/cgarena/internal/config"
	"github.com/cgarena/cgarena/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildConfig(t *testing.T, cmdBuild string) config.Worker {
	t.Helper()
	return config.Worker{
		Threads:           1,
		DirBots:           t.TempDir(),
		CmdPlayMatch:      "true",
		JobTimeoutSeconds: 5,
		Languages: []config.Language{
			{Name: "sh", CmdBuild: cmdBuild, CmdRun: "sh {source}"},
		},
	}
}

func TestBuildSuccess(t *testing.T) {
	cfg := buildConfig(t, "cat {source}")
	b := worker.NewBuilder(cfg)

	bot := &arena.Bot{ID: 1, Name: "alpha", SourceCode: "echo hi", Language: "sh"}
	outcome := b.Build(context.Background(), bot)

	assert.Equal(t, arena.BuildSuccess, outcome.Status)
	assert.Equal(t, "echo hi", outcome.Stdout)
	assert.Empty(t, outcome.Stderr)
}

func TestBuildMaterializesSource(t *testing.T) {
	cfg := buildConfig(t, "true")
	b := worker.NewBuilder(cfg)

	bot := &arena.Bot{ID: 7, Name: "alpha", SourceCode: "print(1)", Language: "sh"}
	outcome := b.Build(context.Background(), bot)
	require.Equal(t, arena.BuildSuccess, outcome.Status)

	data, err := os.ReadFile(filepath.Join(b.BotDir(7), "source"))
	require.NoError(t, err)
	assert.Equal(t, "print(1)", string(data))
}

func TestBuildFailureCapturesStderr(t *testing.T) {
	cfg := buildConfig(t, "echo boom >&2; exit 1")
	b := worker.NewBuilder(cfg)

	bot := &arena.Bot{ID: 1, Name: "alpha", SourceCode: "x", Language: "sh"}
	outcome := b.Build(context.Background(), bot)

	assert.Equal(t, arena.BuildFailure, outcome.Status)
	assert.Contains(t, outcome.Stderr, "boom")
}

func TestBuildUnsupportedLanguage(t *testing.T) {
	cfg := buildConfig(t, "true")
	b := worker.NewBuilder(cfg)

	bot := &arena.Bot{ID: 1, Name: "alpha", SourceCode: "x", Language: "cobol"}
	outcome := b.Build(context.Background(), bot)

	assert.Equal(t, arena.BuildFailure, outcome.Status)
	assert.Contains(t, outcome.Stderr, "unsupported language")
}

func TestBuildTimeout(t *testing.T) {
	cfg := buildConfig(t, "sleep 10")
	cfg.JobTimeoutSeconds = 1
	b := worker.NewBuilder(cfg)

	bot := &arena.Bot{ID: 1, Name: "alpha", SourceCode: "x", Language: "sh"}
	outcome := b.Build(context.Background(), bot)

	assert.Equal(t, arena.BuildFailure, outcome.Status)
	assert.Contains(t, outcome.Stderr, "timed out")
}

func TestBuildTimeoutKillsDescendants(t *testing.T) {
	// A backgrounded grandchild inherits the output pipes; the timeout must
	// tear it down too instead of waiting for it to exit on its own.
	cfg := buildConfig(t, "sleep 20 & sleep 10")
	cfg.JobTimeoutSeconds = 1
	b := worker.NewBuilder(cfg)

	bot := &arena.Bot{ID: 1, Name: "alpha", SourceCode: "x", Language: "sh"}
	start := time.Now()
	outcome := b.Build(context.Background(), bot)

	assert.Equal(t, arena.BuildFailure, outcome.Status)
	assert.Contains(t, outcome.Stderr, "timed out")
	assert.Less(t, time.Since(start), 6*time.Second)
}

func TestBuildCancelled(t *testing.T) {
	cfg := buildConfig(t, "sleep 10")
	b := worker.NewBuilder(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bot := &arena.Bot{ID: 1, Name: "alpha", SourceCode: "x", Language: "sh"}
	outcome := b.Build(ctx, bot)

	assert.Equal(t, arena.BuildFailure, outcome.Status)
	assert.Contains(t, outcome.Stderr, "interrupted by shutdown")
}

func TestBuildOutputTruncation(t *testing.T) {
	cfg := buildConfig(t, "head -c 200000 /dev/zero | tr '\\0' 'a'")
	b := worker.NewBuilder(cfg)

	bot := &arena.Bot{ID: 1, Name: "alpha", SourceCode: "x", Language: "sh"}
	outcome := b.Build(context.Background(), bot)

	require.Equal(t, arena.BuildSuccess, outcome.Status)
	assert.True(t, strings.HasSuffix(outcome.Stdout, "[output truncated]"))
	assert.Less(t, len(outcome.Stdout), 200000)
}
