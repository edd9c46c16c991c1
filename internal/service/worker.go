package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/bnema/imgbatch/internal/domain"
	"github.com/bnema/imgbatch/internal/infrastructure/logger"
)

type JobRunner interface {
	Run(ctx context.Context, job *domain.Job) error
}

// JobFailure reports a job run that returned an error or panicked.
type JobFailure struct {
	RequestID string
	Err       error
}

// WorkerPool runs submitted jobs in the background, detached from the
// request that submitted them.
type WorkerPool struct {
	runner   JobRunner
	workers  int
	jobs     chan *domain.Job
	failures chan JobFailure

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewWorkerPool(runner JobRunner, workers, queueSize int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &WorkerPool{
		runner:   runner,
		workers:  workers,
		jobs:     make(chan *domain.Job, queueSize),
		failures: make(chan JobFailure, queueSize),
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	for i := range wp.workers {
		wp.wg.Add(1)
		go wp.runWorker(ctx, i)
	}
	logger.Info.Printf("started %d workers", wp.workers)
}

// Enqueue hands job to the pool without blocking.
func (wp *WorkerPool) Enqueue(job *domain.Job) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.closed {
		return domain.ErrQueueClosed
	}
	select {
	case wp.jobs <- job:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Failures delivers supervised job failures. It is closed once Shutdown has
// drained every worker.
func (wp *WorkerPool) Failures() <-chan JobFailure {
	return wp.failures
}

// Shutdown stops accepting jobs and waits for queued and running jobs to
// finish, or for ctx to expire.
func (wp *WorkerPool) Shutdown(ctx context.Context) error {
	wp.mu.Lock()
	if !wp.closed {
		wp.closed = true
		close(wp.jobs)
	}
	wp.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		close(wp.failures)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
}

func (wp *WorkerPool) runWorker(ctx context.Context, id int) {
	defer wp.wg.Done()

	for job := range wp.jobs {
		logger.Info.Printf("worker %d: processing request %s", id, job.RequestID)
		if err := wp.run(ctx, job); err != nil {
			logger.Error.Printf("worker %d: request %s failed: %v", id, job.RequestID, err)
			wp.reportFailure(JobFailure{RequestID: job.RequestID, Err: err})
		}
	}
	logger.Info.Printf("worker %d shutting down", id)
}

func (wp *WorkerPool) run(ctx context.Context, job *domain.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return wp.runner.Run(ctx, job)
}

func (wp *WorkerPool) reportFailure(f JobFailure) {
	select {
	case wp.failures <- f:
	default:
		// Failures are already logged; drop when nobody is reading
	}
}
