package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// PanicResult is produced in place of a result when a job panics
type PanicResult struct {
	Job   Job
	Err   error
	Stack []byte
}

// GetError returns the recovered panic as an error
func (r *PanicResult) GetError() error {
	return r.Err
}

// Pool manages a pool of workers that execute jobs concurrently
type Pool struct {
	workers    int
	jobQueue   chan Job
	results    chan Result
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool(workers int) *Pool {
	return NewPoolWithContext(context.Background(), workers)
}

// NewPoolWithContext creates a pool whose jobs see ctx
func NewPoolWithContext(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan Job, workers*2),
		results:    make(chan Result, workers*2),
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

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			result := p.execute(job)
			select {
			case p.results <- result:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// execute runs one job, turning a panic into a PanicResult
func (p *Pool) execute(job Job) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = &PanicResult{Job: job, Err: fmt.Errorf("job panicked: %v", r), Stack: debug.Stack()}
		}
	}()
	return job.Execute(p.ctx)
}

// Submit submits a job to the pool for execution. It blocks while the
// queue is full, so callers that also drain results must submit from a
// separate goroutine, as Run does.
func (p *Pool) Submit(job Job) {
	select {
	case <-p.ctx.Done():
		return
	case p.jobQueue <- job:
	}
}

// Run starts the pool, feeds it jobs and collects every result. Jobs are
// submitted from their own goroutine so a full result buffer never stalls
// submission. A pool runs once.
func (p *Pool) Run(jobs []Job) []Result {
	defer p.cancelFunc()
	p.Start()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, job := range jobs {
			p.Submit(job)
		}
	}()

	results := make([]Result, 0, len(jobs))
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for result := range p.results {
			results = append(results, result)
		}
	}()

	<-done
	close(p.jobQueue)
	p.wg.Wait()
	p.closeResults()
	<-collected

	return results
}

// Shutdown shuts down the worker pool immediately
func (p *Pool) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
