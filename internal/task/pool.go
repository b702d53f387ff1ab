// Package task implements the in-process task queue and its worker pool.
package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/order-service/internal/domain"
)

var (
	ErrBacklogFull = errors.New("task backlog full")
	ErrClosed      = errors.New("task intake closed")
	ErrUnknownTask = errors.New("unknown task")
)

// Handler executes one unit of work. Handlers must tolerate duplicate
// arguments: the broker delivers at least once.
type Handler func(ctx context.Context, arg string) error

type item struct {
	name string
	arg  string
}

// Pool is a bounded multi-producer task queue drained by a fixed set of
// workers. Dispatch never blocks the caller.
type Pool struct {
	tasks    chan item
	handlers map[string]Handler
	workers  int

	enqueued  atomic.Uint64
	processed atomic.Uint64
	closed    atomic.Bool
	wg        sync.WaitGroup
}

func NewPool(workers, backlog int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if backlog <= 0 {
		backlog = 64
	}
	return &Pool{
		tasks:    make(chan item, backlog),
		handlers: make(map[string]Handler),
		workers:  workers,
	}
}

var _ domain.TaskDispatcher = (*Pool)(nil)

// Register binds a task name to its handler. Call before Start.
func (p *Pool) Register(name string, h Handler) {
	p.handlers[name] = h
}

// Dispatch enqueues a task without blocking.
func (p *Pool) Dispatch(_ context.Context, name, arg string) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if _, ok := p.handlers[name]; !ok {
		return ErrUnknownTask
	}
	select {
	case p.tasks <- item{name: name, arg: arg}:
		p.enqueued.Add(1)
		return nil
	default:
		return ErrBacklogFull
	}
}

// Start launches the workers. They stop when ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case it := <-p.tasks:
			p.run(ctx, it)
		}
	}
}

func (p *Pool) run(ctx context.Context, it item) {
	defer p.processed.Add(1)
	h := p.handlers[it.name]
	if err := h(ctx, it.arg); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"task": it.name, "arg": it.arg}).Error("task failed")
	}
}

// CloseIntake rejects future dispatches so the pool can drain.
func (p *Pool) CloseIntake() { p.closed.Store(true) }

// Drain blocks until every enqueued task has been processed or ctx is done.
func (p *Pool) Drain(ctx context.Context) bool {
	for {
		if p.processed.Load() == p.enqueued.Load() && len(p.tasks) == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(20 * time.Millisecond):
		}
	}
}

// Wait blocks until all workers have exited.
func (p *Pool) Wait() { p.wg.Wait() }

// Metrics returns enqueue/process counters and the current backlog.
func (p *Pool) Metrics() (enqueued, processed uint64, backlog int) {
	return p.enqueued.Load(), p.processed.Load(), len(p.tasks)
}
