package worker

import (
	"context"
	"sync"

	"github.com/cgarena/cgarena/internal/arena"
)

// Queue holds pending build and match jobs for the worker pool. It is owned
// by the orchestrator and passed to producers and consumers by handle; all
// access goes through atomic push/claim operations.
//
// Builds are claimed before matches: a match cannot run until its
// participants are built, so draining builds first keeps the pool useful.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	builds  []Job
	matches []Job
}

// NewQueue creates an empty job queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// PushBuild enqueues a build job for a bot and its pending build record.
func (q *Queue) PushBuild(bot *arena.Bot, build *arena.Build) {
	q.mu.Lock()
	q.builds = append(q.builds, Job{Kind: JobBuild, Bot: bot, Build: build})
	q.mu.Unlock()
	q.cond.Signal()
}

// PushMatch enqueues a match job.
func (q *Queue) PushMatch(m *arena.Match) {
	q.mu.Lock()
	q.matches = append(q.matches, Job{Kind: JobMatch, Match: m})
	q.mu.Unlock()
	q.cond.Signal()
}

// Claim atomically removes and returns the next job, blocking until one is
// available or the context is done. The claim is exclusive: no two callers
// ever receive the same job.
func (q *Queue) Claim(ctx context.Context) (Job, error) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if err := ctx.Err(); err != nil {
			return Job{}, err
		}
		if job, ok := q.popLocked(); ok {
			return job, nil
		}
		q.cond.Wait()
	}
}

func (q *Queue) popLocked() (Job, bool) {
	if len(q.builds) > 0 {
		job := q.builds[0]
		q.builds = q.builds[1:]
		return job, true
	}
	if len(q.matches) > 0 {
		job := q.matches[0]
		q.matches = q.matches[1:]
		return job, true
	}
	return Job{}, false
}

// Len reports the number of queued build and match jobs.
func (q *Queue) Len() (builds, matches int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.builds), len(q.matches)
}
