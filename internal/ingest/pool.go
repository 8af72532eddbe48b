package ingest

import (
	"context"
	"fmt"
	"sync"

	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

// Task is one unit of background work. The context is cancelled when the
// pool is stopped without time to drain.
type Task func(ctx context.Context) error

// Pool is a fixed set of workers consuming a bounded queue.
type Pool struct {
	name  string
	tasks chan Task

	workers sync.WaitGroup
	pending sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// NewPool starts workers goroutines reading from a queue of queueSize.
func NewPool(name string, workers, queueSize int) *Pool {
	workers = max(workers, 1)
	queueSize = max(queueSize, 0)

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		name:   name,
		tasks:  make(chan Task, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}

	metrics.PoolWorkers.WithLabelValues(name).Set(float64(workers))
	for i := 0; i < workers; i++ {
		p.workers.Add(1)
		go p.worker(i)
	}
	logging.Debug("Pool %s started with %d workers, queue %d", name, workers, queueSize)
	return p
}

func (p *Pool) worker(id int) {
	defer p.workers.Done()
	for task := range p.tasks {
		metrics.QueueDepth.WithLabelValues(p.name).Set(float64(len(p.tasks)))
		p.run(id, task)
	}
}

func (p *Pool) run(id int, task Task) {
	defer p.pending.Done()
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Pool %s worker %d: task panicked: %v", p.name, id, r)
			metrics.TasksTotal.WithLabelValues(p.name, "panic").Inc()
		}
	}()

	if err := task(p.ctx); err != nil {
		logging.Debug("Pool %s worker %d: task failed: %v", p.name, id, err)
		metrics.TasksTotal.WithLabelValues(p.name, "error").Inc()
		return
	}
	metrics.TasksTotal.WithLabelValues(p.name, "success").Inc()
}

// Submit queues task, blocking while the queue is full.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	p.pending.Add(1)
	select {
	case p.tasks <- task:
		metrics.QueueDepth.WithLabelValues(p.name).Set(float64(len(p.tasks)))
		return nil
	case <-ctx.Done():
		p.pending.Done()
		return ctx.Err()
	}
}

// TrySubmit queues task without blocking. It returns false when the queue
// is full or the pool is stopped.
func (p *Pool) TrySubmit(task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}

	p.pending.Add(1)
	select {
	case p.tasks <- task:
		metrics.QueueDepth.WithLabelValues(p.name).Set(float64(len(p.tasks)))
		return true
	default:
		p.pending.Done()
		return false
	}
}

// Wait blocks until every task submitted so far has finished.
func (p *Pool) Wait() {
	p.pending.Wait()
}

// Stop refuses new tasks and lets the workers drain the queue. If ctx ends
// first, running tasks are cancelled and ctx's error is returned.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return fmt.Errorf("pool %s: %w", p.name, ctx.Err())
	}
}
