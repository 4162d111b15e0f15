package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/papercomputeco/formu/pkg/logger"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 16
)

// PoolConfig is the configuration options for the job pool.
type PoolConfig struct {
	// Runner executes each job. Required.
	Runner *Runner

	// NumWorkers is the number of jobs run concurrently (defaults to 3).
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 16).
	QueueSize uint

	// OnOutcome receives every finished job. It is called from worker
	// goroutines and must be safe for concurrent use.
	OnOutcome func(Outcome)

	// Logger is the provided slog logger
	Logger *slog.Logger
}

// Pool runs jobs on a fixed set of workers.
type Pool struct {
	config *PoolConfig
	ctx    context.Context
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a Pool and starts its worker goroutines. Cancelling ctx
// cancels every queued and running job.
func NewPool(ctx context.Context, c *PoolConfig) (*Pool, error) {
	if c.Runner == nil {
		return nil, fmt.Errorf("jobs: Runner is required")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	p := &Pool{
		config: c,
		ctx:    ctx,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	p.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go p.worker(i)
	}

	return p, nil
}

// Enqueue submits a job for processing by the pool.
// Returns true if enqueued, false if the queue is full or the pool is closed,
// resulting in the job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Error("job not queued, pool closed, job dropped", "job_id", job.ID, "source", job.Source)
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued", "job_id", job.ID, "kind", job.Kind, "source", job.Source)
		p.report(job, Update{Phase: PhaseQueued})
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped", "job_id", job.ID, "source", job.Source)
		return false
	}
}

// Close stops accepting jobs and waits for queued and in-flight jobs to
// drain. It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		out := p.config.Runner.Run(p.ctx, job)

		p.logger.Info("job finished",
			"job_id", job.ID,
			"kind", job.Kind,
			"phase", out.Phase,
			"attempts", out.Attempts,
		)

		if p.config.OnOutcome != nil {
			p.config.OnOutcome(out)
		}
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

func (p *Pool) report(job Job, u Update) {
	p.config.Runner.notify(job, u)
}
