package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cgarena/cgarena/internal/arena"
	"github.com/cgarena/cgarena/internal/config"
	"github.com/cgarena/cgarena/internal/matchmaking"
	"github.com/cgarena/cgarena/internal/metrics"
	"github.com/cgarena/cgarena/internal/notifier"
	"github.com/cgarena/cgarena/internal/rating"
	"github.com/cgarena/cgarena/internal/worker"
	"github.com/go-co-op/gocron/v2"
)

// Orchestrator owns the arena's background machinery: the job queue, the
// embedded worker pool, the matchmaking tick, and the persistence of every
// job outcome. It is the only component that moves builds and matches
// through their status transitions.
type Orchestrator struct {
	store      arena.Store
	engine     rating.Engine
	matchmaker *matchmaking.Matchmaker
	metrics    metrics.Metrics
	notifier   notifier.Notifier
	cfg        config.Config

	queue       *worker.Queue
	pool        *worker.Pool
	builder     *worker.Builder
	matchRunner *worker.MatchRunner

	scheduler   gocron.Scheduler
	stopClaims  context.CancelFunc
	stopRunning context.CancelFunc
}

// New wires the orchestrator. When cfg.Worker is nil no pool is created and
// queued jobs stay pending until a worker-enabled instance picks them up.
func New(store arena.Store, engine rating.Engine, mm *matchmaking.Matchmaker, m metrics.Metrics, n notifier.Notifier, cfg config.Config) *Orchestrator {
	o := &Orchestrator{
		store:      store,
		engine:     engine,
		matchmaker: mm,
		metrics:    m,
		notifier:   n,
		cfg:        cfg,
		queue:      worker.NewQueue(),
	}
	if cfg.Worker != nil {
		o.builder = worker.NewBuilder(*cfg.Worker)
		o.matchRunner = worker.NewMatchRunner(*cfg.Worker)
		o.pool = worker.NewPool(o.queue, o, cfg.Worker.Threads)
	}
	return o
}

var _ worker.Runner = (*Orchestrator)(nil)

// Start recovers jobs stranded by a previous shutdown, repopulates the
// queue, and launches the matchmaking tick and the worker pool.
func (o *Orchestrator) Start() error {
	if err := o.recover(); err != nil {
		return err
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	o.scheduler = scheduler
	if _, err := scheduler.NewJob(
		gocron.DurationJob(o.cfg.Matchmaking.Interval()),
		gocron.NewTask(o.tick),
	); err != nil {
		return fmt.Errorf("failed to schedule matchmaking tick: %w", err)
	}
	scheduler.Start()
	log.Info("Matchmaker started", "interval", o.cfg.Matchmaking.Interval())

	if o.pool != nil {
		claimCtx, stopClaims := context.WithCancel(context.Background())
		runCtx, stopRunning := context.WithCancel(context.Background())
		o.stopClaims = stopClaims
		o.stopRunning = stopRunning
		o.pool.Start(claimCtx, runCtx)
	} else {
		log.Info("No embedded worker configured, jobs will stay pending")
	}
	return nil
}

// recover force-fails jobs left Running by a crash or restart and re-queues
// everything still Pending.
func (o *Orchestrator) recover() error {
	const reason = "interrupted by restart"

	builds, err := o.store.FailRunningBuilds(reason)
	if err != nil {
		return fmt.Errorf("failed to recover running builds: %w", err)
	}
	matches, err := o.store.FailRunningMatches(reason)
	if err != nil {
		return fmt.Errorf("failed to recover running matches: %w", err)
	}
	if builds > 0 || matches > 0 {
		log.Warn("Failed jobs stranded by previous shutdown", "builds", builds, "matches", matches)
	}

	pendingBots, err := o.store.GetPendingBuildBots()
	if err != nil {
		return fmt.Errorf("failed to list pending builds: %w", err)
	}
	for i := range pendingBots {
		bot := pendingBots[i]
		records, err := o.store.GetBuilds(bot.ID)
		if err != nil || len(records) == 0 {
			log.Error("Failed to load pending build record", "botID", bot.ID, "error", err)
			continue
		}
		o.queue.PushBuild(&bot, &records[0])
	}

	pendingMatches, err := o.store.GetPendingMatches()
	if err != nil {
		return fmt.Errorf("failed to list pending matches: %w", err)
	}
	for i := range pendingMatches {
		o.queue.PushMatch(&pendingMatches[i])
	}

	if len(pendingBots) > 0 || len(pendingMatches) > 0 {
		log.Info("Re-queued pending jobs", "builds", len(pendingBots), "matches", len(pendingMatches))
	}
	o.syncQueueDepth()
	return nil
}

// EnqueueBuild records a fresh Pending build for the bot and queues it.
// Any previous build record is superseded.
func (o *Orchestrator) EnqueueBuild(bot *arena.Bot) error {
	build := &arena.Build{
		BotID:     bot.ID,
		Status:    arena.BuildPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.store.UpsertBuild(build); err != nil {
		return fmt.Errorf("failed to persist pending build: %w", err)
	}
	o.queue.PushBuild(bot, build)
	o.syncQueueDepth()
	log.Info("Queued build", "botID", bot.ID, "name", bot.Name)
	return nil
}

// tick runs one matchmaking round: propose a match over the currently
// eligible bots, persist it, and queue it for execution.
func (o *Orchestrator) tick() {
	eligible, err := o.store.GetEligibleBots()
	if err != nil {
		log.Error("Failed to load eligible bots", "error", err)
		return
	}

	match, ok := o.matchmaker.Propose(eligible)
	if !ok {
		log.Debug("Not enough eligible bots for a match", "eligible", len(eligible))
		return
	}

	id, err := o.store.CreateMatch(match)
	if err != nil {
		log.Error("Failed to persist match", "error", err)
		return
	}
	match.ID = id
	o.queue.PushMatch(match)
	o.metrics.IncMatchesProposed()
	o.syncQueueDepth()
	log.Info("Queued match", "matchID", id, "bots", match.BotIDs, "seed", match.Seed)
}

// RunJob drives one claimed job to a terminal, persisted state. It
// implements worker.Runner for the embedded pool.
func (o *Orchestrator) RunJob(ctx context.Context, workerName string, job worker.Job) {
	start := time.Now()
	switch job.Kind {
	case worker.JobBuild:
		o.runBuild(ctx, workerName, job)
	case worker.JobMatch:
		o.runMatch(ctx, job)
	}
	o.metrics.ObserveJobDuration(job.Kind.String(), time.Since(start).Seconds())
	o.syncQueueDepth()
}

func (o *Orchestrator) runBuild(ctx context.Context, workerName string, job worker.Job) {
	if err := o.store.MarkBuildRunning(job.Bot.ID, workerName, job.Build.CreatedAt); err != nil {
		// Superseded by a newer submission or the bot was deleted; the
		// queued job is stale and there is nothing to run.
		log.Info("Skipping stale build job", "botID", job.Bot.ID, "reason", err)
		return
	}

	outcome := o.builder.Build(ctx, job.Bot)

	build := &arena.Build{
		BotID:      job.Bot.ID,
		WorkerName: workerName,
		Status:     outcome.Status,
		Stdout:     outcome.Stdout,
		Stderr:     outcome.Stderr,
		CreatedAt:  job.Build.CreatedAt,
	}
	if err := o.store.UpsertBuild(build); err != nil {
		log.Error("Failed to persist build outcome", "botID", job.Bot.ID, "error", err)
		return
	}
	o.metrics.IncBuildsCompleted(outcome.Status.String())
	log.Info("Build finished", "botID", job.Bot.ID, "status", outcome.Status.String())

	if outcome.Status == arena.BuildFailure {
		if err := o.notifier.NotifyBuildFailed(job.Bot, outcome.Stderr); err != nil {
			log.Error("Failed to notify about failed build", "botID", job.Bot.ID, "error", err)
		}
	}
}

func (o *Orchestrator) runMatch(ctx context.Context, job worker.Job) {
	match := job.Match
	if err := o.store.MarkMatchRunning(match.ID); err != nil {
		log.Info("Skipping stale match job", "matchID", match.ID, "reason", err)
		return
	}

	bots := make([]arena.Bot, 0, len(match.BotIDs))
	for _, botID := range match.BotIDs {
		bot, err := o.store.GetBot(botID)
		if err != nil {
			reason := fmt.Sprintf("bot %d no longer exists", botID)
			if !errors.Is(err, arena.ErrNotFound) {
				reason = fmt.Sprintf("failed to load bot %d: %v", botID, err)
			}
			o.failMatch(match.ID, reason)
			return
		}
		bots = append(bots, *bot)
	}

	outcome := o.matchRunner.Run(ctx, match, bots)
	if outcome.Status != arena.MatchFinished {
		o.failMatch(match.ID, outcome.Error)
		return
	}

	result := *outcome.Result
	err := o.store.ApplyMatchResult(match.ID, result, func(prior []arena.Rating) []arena.Rating {
		return o.engine.Rate(prior, result)
	})
	if err != nil {
		log.Error("Failed to apply match result", "matchID", match.ID, "error", err)
		return
	}
	o.metrics.IncMatchesCompleted(arena.MatchFinished.String())
	log.Info("Match finished", "matchID", match.ID, "ranks", result.Ranks)
}

func (o *Orchestrator) failMatch(id int64, reason string) {
	if err := o.store.FailMatch(id, reason); err != nil {
		log.Error("Failed to mark match as errored", "matchID", id, "error", err)
		return
	}
	o.metrics.IncMatchesCompleted(arena.MatchError.String())
	log.Warn("Match errored", "matchID", id, "reason", reason)

	if err := o.notifier.NotifyMatchErrored(id, reason); err != nil {
		log.Error("Failed to notify about errored match", "matchID", id, "error", err)
	}
}

func (o *Orchestrator) syncQueueDepth() {
	builds, matches := o.queue.Len()
	o.metrics.SetQueueDepth("build", builds)
	o.metrics.SetQueueDepth("match", matches)
}

// Shutdown stops matchmaking and drains the pool: claiming stops
// immediately, in-flight jobs get the drain window to finish, and whatever
// outlives it is cancelled and failed with a shutdown reason.
func (o *Orchestrator) Shutdown(drain time.Duration) {
	if o.scheduler != nil {
		if err := o.scheduler.Shutdown(); err != nil {
			log.Error("Failed to stop scheduler", "error", err)
		}
	}
	if o.pool == nil {
		return
	}

	o.stopClaims()
	done := make(chan struct{})
	go func() {
		o.pool.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("Worker pool drained")
	case <-time.After(drain):
		log.Warn("Drain window elapsed, cancelling in-flight jobs", "drain", drain)
		o.stopRunning()
		<-done
	}
	o.stopRunning()
}
