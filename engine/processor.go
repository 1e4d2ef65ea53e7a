package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrProcessorShuttingDown is returned by Schedule when a non-critical
// task is submitted after InitiateShutdown has been called.
var ErrProcessorShuttingDown = errors.New("engine: task processor is shutting down")

type processorKey struct{}

// processorFromContext reports which TaskProcessor, if any, the calling
// goroutine is currently executing a task for. A nil result means the
// caller is the plain host goroutine (outside any task processor).
func processorFromContext(ctx context.Context) *TaskProcessor {
	p, _ := ctx.Value(processorKey{}).(*TaskProcessor)
	return p
}

func withProcessor(ctx context.Context, p *TaskProcessor) context.Context {
	return context.WithValue(ctx, processorKey{}, p)
}

// TaskProcessor is one named cooperative scheduler: a host for tasks
// backed by the shared Pool's goroutine accounting. workers is advisory,
// like engine.Pool's own sizing fields: a task that suspends (e.g. inside
// FindComponent) does so cooperatively, without tying up a worker slot
// that some other task needs to make progress, so there is nothing to
// gate concurrency on short of the underlying runtime's own goroutine
// scheduler. Critical tasks (boot tasks, and anything dispatched through
// RunInCoro) ignore InitiateShutdown and are always accepted and waited
// for.
type TaskProcessor struct {
	name    string
	pool    *Pool
	workers int

	shuttingDown atomic.Bool
	wg           sync.WaitGroup // every task, critical or not
	criticalWG   sync.WaitGroup // critical tasks only
}

// NewTaskProcessor creates a task processor with the given name and
// advisory worker capacity, retaining a reference on pool.
func NewTaskProcessor(name string, workers int, pool *Pool) *TaskProcessor {
	pool.Retain()
	return &TaskProcessor{
		name:    name,
		pool:    pool,
		workers: workers,
	}
}

// Name returns the task processor's configured name.
func (tp *TaskProcessor) Name() string { return tp.name }

// Workers returns the configured worker capacity.
func (tp *TaskProcessor) Workers() int { return tp.workers }

// Pool returns the shared pool handle this processor draws capacity from.
func (tp *TaskProcessor) Pool() *Pool { return tp.pool }

// Schedule runs fn on a goroutine hosted by this processor. Non-critical
// tasks submitted after InitiateShutdown are rejected with
// ErrProcessorShuttingDown instead of being started. Critical tasks are
// always accepted; InitiateShutdown only stops new, non-critical work
// from being admitted, per the drain protocol in storage.ProcessorsStorage.Reset.
func (tp *TaskProcessor) Schedule(ctx context.Context, critical bool, fn func(context.Context)) error {
	if !critical && tp.shuttingDown.Load() {
		return fmt.Errorf("%s: %w", tp.name, ErrProcessorShuttingDown)
	}

	tp.pool.incLive()
	tp.wg.Add(1)
	if critical {
		tp.criticalWG.Add(1)
	}

	go func() {
		defer tp.wg.Done()
		defer tp.pool.decLive()
		if critical {
			defer tp.criticalWG.Done()
		}

		fn(withProcessor(ctx, tp))
	}()

	return nil
}

// InitiateShutdown signals that this processor no longer accepts new
// non-critical tasks. It does not block and does not cancel tasks
// already running.
func (tp *TaskProcessor) InitiateShutdown() { tp.shuttingDown.Store(true) }

// Close waits for every task scheduled on this processor to finish and
// releases its reference on the shared pool. Callers are expected to
// have already drained the pool's live-coroutine count to zero (see
// storage.ProcessorsStorage.Reset); Close's own Wait is a cheap
// belt-and-suspenders check, not the primary drain mechanism.
func (tp *TaskProcessor) Close() {
	tp.wg.Wait()
	tp.pool.Release()
}
