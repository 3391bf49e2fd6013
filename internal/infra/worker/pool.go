// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

// A small bounded pool for fire-and-forget work such as notification delivery.

var (
	ErrQueueFull = errors.New("worker queue full")
	ErrStopped   = errors.New("worker pool stopped")
)

type Task func(ctx context.Context) error

type Pool struct {
	wg      sync.WaitGroup
	jobs    chan Task
	quit    chan struct{}
	n       int
	log     zerolog.Logger
	mu      sync.RWMutex
	stopped bool
}

func NewPool(workers, queueSize int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = workers * 4
	}
	return &Pool{
		jobs: make(chan Task, queueSize),
		quit: make(chan struct{}),
		n:    workers,
		log:  logger.With().Str("component", "worker_pool").Logger(),
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					p.drain(ctx, id)
					return
				case task := <-p.jobs:
					p.run(ctx, id, task)
				}
			}
		}(i)
	}
}

// drain runs whatever is still queued when Stop is called.
func (p *Pool) drain(ctx context.Context, id int) {
	for {
		select {
		case task := <-p.jobs:
			p.run(ctx, id, task)
		default:
			return
		}
	}
}

func (p *Pool) run(ctx context.Context, id int, task Task) {
	if task == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Int("worker", id).Interface("panic", r).Msg("task panicked")
		}
	}()
	if err := task(ctx); err != nil {
		p.log.Warn().Err(err).Int("worker", id).Msg("task error")
	}
}

// Stop refuses new tasks, lets workers finish the queue and waits for them.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.quit)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		// drop when saturated rather than block the caller
		return ErrQueueFull
	}
}
