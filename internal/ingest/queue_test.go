package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProcessor struct {
	mu    sync.Mutex
	paths []string
	delay time.Duration
	fail  bool
	n     atomic.Int32
}

func (p *countingProcessor) Process(ctx context.Context, job Job) error {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.n.Add(1)
	p.mu.Lock()
	p.paths = append(p.paths, job.Path)
	p.mu.Unlock()
	if p.fail {
		return errors.New("boom")
	}
	return nil
}

func TestScanQueue_ProcessesAndDrains(t *testing.T) {
	proc := &countingProcessor{delay: 5 * time.Millisecond}
	q := NewScanQueue(proc, nil, WithWorkers(3), WithQueueSize(2))
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(ctx, Job{Path: "f" + string(rune('a'+i))}))
	}
	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	q.Shutdown(sctx)

	assert.Equal(t, int32(10), proc.n.Load())
	assert.Equal(t, Stats{Processed: 10}, q.Stats())
	assert.ErrorIs(t, q.Enqueue(ctx, Job{Path: "late"}), ErrQueueClosed)
	q.Shutdown(sctx)
}

func TestScanQueue_FailuresDoNotStopWorkers(t *testing.T) {
	proc := &countingProcessor{fail: true}
	obs := &outcomes{}
	q := NewScanQueue(proc, nil, WithWorkers(1), WithObserver(obs))
	for _, p := range []string{"x", "y", "z"} {
		require.NoError(t, q.Enqueue(context.Background(), Job{Path: p}))
	}
	q.Shutdown(context.Background())
	assert.Equal(t, int32(3), proc.n.Load())
	assert.Equal(t, int64(3), q.Stats().Failed)
	assert.Equal(t, []string{JobFailed, JobFailed, JobFailed}, obs.list())
}

func TestScanQueue_SkipsPendingDuplicates(t *testing.T) {
	started := make(chan struct{}, 1)
	block := make(chan struct{})
	var n atomic.Int32
	proc := processorFunc(func(ctx context.Context, job Job) error {
		n.Add(1)
		started <- struct{}{}
		<-block
		return nil
	})
	obs := &outcomes{}
	q := NewScanQueue(proc, nil, WithWorkers(1), WithObserver(obs))
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, Job{Path: "/inbox/a.jpg"}))
	<-started
	// running and then queued: both duplicates are dropped
	require.NoError(t, q.Enqueue(ctx, Job{Path: "/inbox/a.jpg"}))
	require.NoError(t, q.Enqueue(ctx, Job{Path: "/inbox/b.jpg"}))
	require.NoError(t, q.Enqueue(ctx, Job{Path: "/inbox/b.jpg"}))
	assert.Equal(t, 2, q.Stats().Pending)

	close(block)
	q.Shutdown(ctx)
	assert.Equal(t, int32(2), n.Load())
	assert.Equal(t, Stats{Processed: 2, Skipped: 2}, q.Stats())
	assert.ElementsMatch(t, []string{JobDuplicate, JobDuplicate, JobOK, JobOK}, obs.list())
}

func TestScanQueue_EnqueueRespectsContextWhenFull(t *testing.T) {
	started := make(chan struct{}, 1)
	block := make(chan struct{})
	proc := processorFunc(func(ctx context.Context, job Job) error {
		started <- struct{}{}
		<-block
		return nil
	})
	q := NewScanQueue(proc, nil, WithWorkers(1), WithQueueSize(1))
	defer func() {
		close(block)
		q.Shutdown(context.Background())
	}()

	// one job occupies the worker, one fills the buffer
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "a"}))
	<-started
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "b"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Enqueue(ctx, Job{Path: "c"}), context.DeadlineExceeded)
	assert.Equal(t, 2, q.Stats().Pending, "a timed-out enqueue releases its path")
}

type outcomes struct {
	mu  sync.Mutex
	got []string
}

func (o *outcomes) InboxJobDone(outcome string) {
	o.mu.Lock()
	o.got = append(o.got, outcome)
	o.mu.Unlock()
}

func (o *outcomes) list() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.got...)
}

type processorFunc func(ctx context.Context, job Job) error

func (f processorFunc) Process(ctx context.Context, job Job) error { return f(ctx, job) }
