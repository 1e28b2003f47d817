package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Runner drives one claimed job to its terminal state, including the status
// transitions and persisted outcome. It must not panic on cancellation: a
// cancelled context means the job should end up failed with a shutdown
// reason, never left Running.
type Runner interface {
	RunJob(ctx context.Context, workerName string, job Job)
}

// Pool is a fixed set of execution slots pulling jobs from a shared queue.
type Pool struct {
	queue   *Queue
	runner  Runner
	threads int
	name    string
	wg      sync.WaitGroup
}

// NewPool creates a pool with the given number of slots.
func NewPool(queue *Queue, runner Runner, threads int) *Pool {
	return &Pool{
		queue:   queue,
		runner:  runner,
		threads: threads,
		name:    "worker-" + uuid.NewString()[:8],
	}
}

// Start launches the slots. claimCtx gates claiming: once it is cancelled no
// new jobs are picked up. runCtx gates execution and outlives claimCtx by
// the orchestrator's drain window, so in-flight jobs can finish or be
// cleanly failed before the process exits.
func (p *Pool) Start(claimCtx, runCtx context.Context) {
	log.Info("Starting worker pool", "name", p.name, "threads", p.threads)
	for i := range p.threads {
		slot := fmt.Sprintf("%s-%d", p.name, i)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.runSlot(claimCtx, runCtx, slot)
		}()
	}
}

func (p *Pool) runSlot(claimCtx, runCtx context.Context, slot string) {
	for {
		job, err := p.queue.Claim(claimCtx)
		if err != nil {
			log.Debug("Worker slot stopping", "slot", slot, "reason", err)
			return
		}
		log.Info("Claimed job", "slot", slot, "kind", job.Kind.String())
		p.runner.RunJob(runCtx, slot, job)
	}
}

// Wait blocks until every slot has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}
