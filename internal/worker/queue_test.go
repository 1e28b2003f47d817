package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/cgarena/cgarena/internal/arena"
	"github.com/cgarena/cgarena/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimPrefersBuildsOverMatches(t *testing.T) {
	q := worker.NewQueue()
	q.PushMatch(&arena.Match{ID: 1})
	q.PushMatch(&arena.Match{ID: 2})
	q.PushBuild(&arena.Bot{ID: 7}, &arena.Build{BotID: 7})

	job, err := q.Claim(context.Background())
	require.NoError(t, err)
	assert.Equal(t, worker.JobBuild, job.Kind)
	assert.Equal(t, int64(7), job.Bot.ID)

	job, err = q.Claim(context.Background())
	require.NoError(t, err)
	assert.Equal(t, worker.JobMatch, job.Kind)
	assert.Equal(t, int64(1), job.Match.ID)
}

func TestClaimBlocksUntilWorkArrives(t *testing.T) {
	q := worker.NewQueue()

	claimed := make(chan worker.Job, 1)
	go func() {
		job, err := q.Claim(context.Background())
		if err == nil {
			claimed <- job
		}
	}()

	select {
	case <-claimed:
		t.Fatal("claim returned before any job was pushed")
	case <-time.After(50 * time.Millisecond):
	}

	q.PushMatch(&arena.Match{ID: 42})

	select {
	case job := <-claimed:
		assert.Equal(t, int64(42), job.Match.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("claim did not wake up after push")
	}
}

func TestClaimHonorsContextCancellation(t *testing.T) {
	q := worker.NewQueue()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := q.Claim(ctx)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("claim did not observe cancellation")
	}
}

func TestClaimIsExclusive(t *testing.T) {
	q := worker.NewQueue()
	for i := range 20 {
		q.PushMatch(&arena.Match{ID: int64(i)})
	}

	claimed := make(chan int64, 20)
	ctx := context.Background()
	for range 4 {
		go func() {
			for {
				job, err := q.Claim(ctx)
				if err != nil {
					return
				}
				claimed <- job.Match.ID
				builds, matches := q.Len()
				if builds+matches == 0 {
					return
				}
			}
		}()
	}

	seen := make(map[int64]bool)
	for range 20 {
		select {
		case id := <-claimed:
			assert.False(t, seen[id], "match %d claimed twice", id)
			seen[id] = true
		case <-time.After(2 * time.Second):
			t.Fatal("jobs were not all claimed")
		}
	}
}

func TestLen(t *testing.T) {
	q := worker.NewQueue()
	q.PushBuild(&arena.Bot{ID: 1}, &arena.Build{BotID: 1})
	q.PushMatch(&arena.Match{ID: 1})
	q.PushMatch(&arena.Match{ID: 2})

	builds, matches := q.Len()
	assert.Equal(t, 1, builds)
	assert.Equal(t, 2, matches)
}
