// Package engine hosts the coroutine-runtime primitives the Manager
// consumes: the shared pool handle, named task processors, and the
// cross-domain dispatch bridge. Scheduler internals (stack allocation,
// work stealing, I/O reactors) are out of scope; task processors here are
// realized directly on top of goroutines, which already give Go the
// cooperative scheduling the original runtime provides.
package engine

import (
	"fmt"
	"sync/atomic"
)

// PoolConfig sizes the shared handle. InitialCoroPoolSize and
// EventThreadsCount are accepted for parity with the configuration shape
// of the underlying runtime but are advisory: Go's runtime scheduler already
// multiplexes goroutines onto OS threads, so neither bounds anything
// directly here. They are surfaced through Pool for components that want
// to size their own internal worker counts off of them.
type PoolConfig struct {
	InitialCoroPoolSize int
	EventThreadsCount   int
}

// Pool is the shared, reference-counted handle every TaskProcessor draws
// worker capacity from. It tracks the number of goroutines currently
// live across every task processor sharing it, which is the only signal
// storage.ProcessorsStorage.Reset can poll during shutdown drain.
type Pool struct {
	cfg            PoolConfig
	liveCoroutines atomic.Int64
	refCount       atomic.Int32
}

// NewPool creates a pool handle held exactly once, by its creator.
func NewPool(cfg PoolConfig) *Pool {
	p := &Pool{cfg: cfg}
	p.refCount.Store(1)
	return p
}

// Retain records an additional owner of the handle (called by every
// TaskProcessor built on top of it).
func (p *Pool) Retain() { p.refCount.Add(1) }

// Release drops one owner of the handle.
func (p *Pool) Release() { p.refCount.Add(-1) }

// RefCount reports the current number of owners. Used by
// storage.ProcessorsStorage.Reset to assert sole ownership before the
// handle is discarded.
func (p *Pool) RefCount() int32 { return p.refCount.Load() }

// LiveCoroutines reports the number of goroutines currently scheduled or
// running across every task processor sharing this pool.
func (p *Pool) LiveCoroutines() int64 { return p.liveCoroutines.Load() }

func (p *Pool) incLive() { p.liveCoroutines.Add(1) }
func (p *Pool) decLive() { p.liveCoroutines.Add(-1) }

// Config returns the sizing parameters the pool was created with.
func (p *Pool) Config() PoolConfig { return p.cfg }

func (p *Pool) String() string {
	return fmt.Sprintf("Pool{live=%d refs=%d}", p.LiveCoroutines(), p.RefCount())
}
