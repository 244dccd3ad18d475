package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one inbox file awaiting a scan.
type Job struct {
	Path        string
	SubmittedAt time.Time
}

// Processor handles one job. Errors are logged by the queue, never retried.
type Processor interface {
	Process(ctx context.Context, job Job) error
}

// JobObserver is told how every dequeued or dropped job ended.
type JobObserver interface {
	InboxJobDone(outcome string)
}

const (
	JobOK        = "ok"
	JobFailed    = "failed"
	JobDuplicate = "duplicate"
)

// Stats is a point-in-time view of the queue counters.
type Stats struct {
	Pending   int
	Processed int64
	Failed    int64
	Skipped   int64
}

// ScanQueue scans inbox files on a fixed worker pool over a bounded buffer.
// A path that is already waiting or being scanned is not queued again, so a
// burst of write events for one file costs one scan.
type ScanQueue struct {
	proc     Processor
	logger   *slog.Logger
	observer JobObserver
	workers  int
	timeout  time.Duration

	ch chan Job
	wg sync.WaitGroup

	// closeMu guards closed and the send on ch against close(ch).
	closeMu sync.RWMutex
	closed  bool

	setMu   sync.Mutex
	pending map[string]struct{}

	processed, failed, skipped atomic.Int64
}

type Option func(*ScanQueue)

func WithWorkers(n int) Option {
	return func(q *ScanQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ScanQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

// WithProcessTimeout bounds one scan, including every fallback stage.
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ScanQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func WithObserver(o JobObserver) Option {
	return func(q *ScanQueue) { q.observer = o }
}

// NewScanQueue starts the workers immediately.
func NewScanQueue(proc Processor, logger *slog.Logger, opts ...Option) *ScanQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ScanQueue{
		proc:    proc,
		logger:  logger,
		workers: 2,
		timeout: 2 * time.Minute,
		ch:      make(chan Job, 32),
		pending: make(map[string]struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	for id := 1; id <= q.workers; id++ {
		q.wg.Add(1)
		go q.work(id)
	}
	return q
}

func (q *ScanQueue) work(id int) {
	defer q.wg.Done()
	for job := range q.ch {
		q.run(id, job)
	}
	q.logger.Debug("ingest.worker.stopped", "worker_id", id)
}

func (q *ScanQueue) run(id int, job Job) {
	defer q.release(job.Path)

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	start := time.Now()
	if err := q.proc.Process(ctx, job); err != nil {
		q.failed.Add(1)
		q.observe(JobFailed)
		q.logger.Error("ingest.job.failed", "worker_id", id, "path", job.Path, "error", err)
		return
	}
	q.processed.Add(1)
	q.observe(JobOK)
	q.logger.Info("ingest.job.ok", "worker_id", id, "path", job.Path,
		"wait_ms", start.Sub(job.SubmittedAt).Milliseconds(),
		"elapsed_ms", time.Since(start).Milliseconds())
}

// Enqueue blocks while the buffer is full unless ctx ends first. A path
// already pending is accepted without queuing it twice.
func (q *ScanQueue) Enqueue(ctx context.Context, job Job) error {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	if !q.claim(job.Path) {
		q.skipped.Add(1)
		q.observe(JobDuplicate)
		q.logger.Debug("ingest.queue.duplicate", "path", job.Path)
		return nil
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}

	select {
	case q.ch <- job:
		return nil
	default:
		q.logger.Warn("ingest.queue.full", "path", job.Path, "capacity", cap(q.ch))
	}
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		q.release(job.Path)
		return ctx.Err()
	}
}

func (q *ScanQueue) claim(path string) bool {
	q.setMu.Lock()
	defer q.setMu.Unlock()
	if _, ok := q.pending[path]; ok {
		return false
	}
	q.pending[path] = struct{}{}
	return true
}

func (q *ScanQueue) release(path string) {
	q.setMu.Lock()
	delete(q.pending, path)
	q.setMu.Unlock()
}

func (q *ScanQueue) observe(outcome string) {
	if q.observer != nil {
		q.observer.InboxJobDone(outcome)
	}
}

func (q *ScanQueue) Stats() Stats {
	q.setMu.Lock()
	pending := len(q.pending)
	q.setMu.Unlock()
	return Stats{
		Pending:   pending,
		Processed: q.processed.Load(),
		Failed:    q.failed.Load(),
		Skipped:   q.skipped.Load(),
	}
}

// Shutdown stops intake and waits for queued and in-flight scans until ctx
// ends.
func (q *ScanQueue) Shutdown(ctx context.Context) {
	q.closeMu.Lock()
	if q.closed {
		q.closeMu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.closeMu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("ingest.queue.shutdown_interrupted", "pending", q.Stats().Pending)
	case <-done:
		s := q.Stats()
		q.logger.Info("ingest.queue.drained", "processed", s.Processed, "failed", s.Failed, "skipped", s.Skipped)
	}
}
