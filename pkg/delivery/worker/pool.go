// Package worker runs session exports off the caller's goroutine. Shutdown
// hooks enqueue a job and return immediately; a fixed set of workers performs
// the export and delivery.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/voxtap/pkg/logger"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
	defaultJobTimeout        = 2 * time.Minute
)

// Job exports one session.
type Job struct {
	SessionID string

	// Run performs the export. A returned error is logged.
	Run func(ctx context.Context) error
}

// Config is the configuration options for the worker pool.
type Config struct {
	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// JobTimeout bounds a single job (defaults to 2m).
	JobTimeout time.Duration

	Logger *slog.Logger
}

// Pool processes export jobs asynchronously.
type Pool struct {
	config *Config
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Job
	wg     sync.WaitGroup
}

// NewPool creates a Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c == nil {
		c = &Config{}
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaultJobTimeout
	}
	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: logger.OrNop(c.Logger),
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job. It returns false, dropping the job, when the queue is
// full or the pool is closed.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Error("job not queued, pool closed", "session_id", job.SessionID)
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued", "session_id", job.SessionID)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped", "session_id", job.SessionID)
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

func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.process(job)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

func (p *Pool) process(job Job) {
	if job.Run == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("export job panicked", "session_id", job.SessionID, "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), p.config.JobTimeout)
	defer cancel()

	if err := job.Run(ctx); err != nil {
		p.logger.Error("export job failed", "session_id", job.SessionID, "error", err)
		return
	}
	p.logger.Debug("export job done", "session_id", job.SessionID)
}
