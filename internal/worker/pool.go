package worker

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrQueueFull is returned when every worker is busy and the queue has no room
	ErrQueueFull = errors.New("worker pool queue is full")
	// ErrPoolClosed is returned for jobs submitted after Shutdown
	ErrPoolClosed = errors.New("worker pool is closed")
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

type task struct {
	job  Job
	done chan Result
}

// Pool is a long-lived set of workers fed by a bounded queue.
// Jobs run on the pool's context, not the submitter's, so a caller that
// stops waiting does not cancel the work.
type Pool struct {
	workers    int
	jobQueue   chan task
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	mu         sync.RWMutex
	closed     bool
	closeOnce  sync.Once
}

// NewPool creates a pool with the given number of workers and queue slots
func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan task, queueSize),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the worker pool
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for t := range p.jobQueue {
		t.done <- t.job.Execute(p.ctx)
	}
}

// TrySubmit enqueues job without blocking. The returned channel receives
// the job's result exactly once.
func (p *Pool) TrySubmit(job Job) (<-chan Result, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	t := task{job: job, done: make(chan Result, 1)}
	select {
	case p.jobQueue <- t:
		return t.done, nil
	default:
		return nil, ErrQueueFull
	}
}

// Do enqueues job and waits for its result or for ctx to end.
// When ctx ends first the job keeps running and its result is discarded.
func (p *Pool) Do(ctx context.Context, job Job) (Result, error) {
	done, err := p.TrySubmit(job)
	if err != nil {
		return nil, err
	}

	select {
	case result := <-done:
		return result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Pending returns the number of queued jobs not yet picked up by a worker
func (p *Pool) Pending() int {
	return len(p.jobQueue)
}

// Shutdown stops accepting jobs and waits for queued and running jobs to
// finish. If ctx ends first, running jobs are cancelled and ctx's error is
// returned once the workers exit.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobQueue)
		p.mu.Unlock()
	})

	drained := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		p.cancelFunc()
		return nil
	case <-ctx.Done():
		p.cancelFunc()
		<-drained
		return ctx.Err()
	}
}
