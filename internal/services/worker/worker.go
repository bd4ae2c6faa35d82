// Package worker runs outbound backend calls on a bounded pool of goroutines.
//
// Go Pattern: Goroutines and channels are Go's concurrency primitives.
// A buffered channel is the job queue, N worker goroutines read from it,
// and HTTP handlers submit jobs and wait for the result. The pool keeps
// a burst of uploads from opening hundreds of simultaneous connections to
// the analysis backend or the LLM.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Shimizu-Technology/docsight-api/internal/metrics"
)

var (
	// ErrQueueFull is returned when the job queue has no free slot.
	ErrQueueFull = errors.New("job queue is full; try again later")
	// ErrStopped is returned when a job is submitted after Stop.
	ErrStopped = errors.New("worker pool stopped")
)

// JobType identifies what kind of work a job represents.
type JobType string

const (
	JobOutline         JobType = "outline"
	JobRecommendations JobType = "recommendations"
	JobSnippets        JobType = "snippets"
	JobSummarize       JobType = "summarize"
	JobAsk             JobType = "ask"
	JobFacts           JobType = "facts"
	JobPodcast         JobType = "podcast"
)

// Job represents a unit of work to be processed by a worker.
type Job struct {
	ID        string
	Type      JobType
	Run       func(ctx context.Context) error
	CreatedAt time.Time

	ctx  context.Context
	done chan error
}

// Pool manages a pool of worker goroutines.
type Pool struct {
	jobs    chan *Job
	workers int
	log     *zap.Logger

	// mu guards stopped and the close of jobs.
	mu      sync.RWMutex
	stopped bool

	wg sync.WaitGroup
}

// NewPool creates a new worker pool.
func NewPool(workers, queueSize int, log *zap.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{
		jobs:    make(chan *Job, queueSize),
		workers: workers,
		log:     log.Named("worker"),
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	p.log.Info("starting background workers", zap.Int("workers", p.workers))
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop closes the queue and waits for queued jobs to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	metrics.WorkerQueueDepth.Set(0)
	p.log.Info("all workers stopped")
}

// Submit adds a job to the queue without blocking.
func (p *Pool) Submit(job *Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.ctx == nil {
		job.ctx = context.Background()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}

	// Go Pattern: `select` with `default` makes channel operations non-blocking.
	select {
	case p.jobs <- job:
		metrics.WorkerQueueDepth.Set(float64(len(p.jobs)))
		p.log.Debug("job queued", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		return nil
	default:
		return ErrQueueFull
	}
}

// Do runs fn on a worker and waits for it. If ctx ends first, Do returns
// ctx.Err() and fn sees a cancelled context.
func (p *Pool) Do(ctx context.Context, typ JobType, fn func(ctx context.Context) error) error {
	job := &Job{
		Type: typ,
		Run:  fn,
		ctx:  ctx,
		done: make(chan error, 1),
	}
	if err := p.Submit(job); err != nil {
		return fmt.Errorf("%s: %w", typ, err)
	}
	select {
	case err := <-job.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueSize returns the current number of jobs in the queue.
func (p *Pool) QueueSize() int {
	return len(p.jobs)
}

// WorkerCount returns the number of workers.
func (p *Pool) WorkerCount() int {
	return p.workers
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobs {
		metrics.WorkerQueueDepth.Set(float64(len(p.jobs)))
		err := p.run(id, job)
		if job.done != nil {
			job.done <- err
		}
	}
}

func (p *Pool) run(id int, job *Job) (err error) {
	// A job whose caller already gave up is skipped.
	if ctxErr := job.ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.ID, r)
			p.log.Error("job panicked", zap.Int("worker", id), zap.String("job_id", job.ID), zap.Any("panic", r))
		}
	}()

	start := time.Now()
	err = job.Run(job.ctx)
	fields := []zap.Field{
		zap.Int("worker", id),
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.Duration("took", time.Since(start)),
	}
	if err != nil {
		p.log.Debug("job failed", append(fields, zap.Error(err))...)
	} else {
		p.log.Debug("job completed", fields...)
	}
	return err
}
