// Package storage owns the shared engine.Pool and the named
// engine.TaskProcessors built on top of it, implementing the
// drain-then-stop shutdown protocol the Manager relies on.
package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/component-manager/fusionctl/engine"
)

const drainPollInterval = 10 * time.Millisecond

// ProcessorsStorage holds one shared pool handle (exclusively owned until
// Reset) and an insertion-ordered mapping from task-processor name to an
// exclusively-owned task-processor instance.
type ProcessorsStorage struct {
	mu    sync.RWMutex
	pool  *engine.Pool
	order []string
	procs map[string]*engine.TaskProcessor
}

// New creates an empty storage around the given pool handle.
func New(pool *engine.Pool) *ProcessorsStorage {
	return &ProcessorsStorage{
		pool:  pool,
		procs: make(map[string]*engine.TaskProcessor),
	}
}

// Add registers a task processor under name. Must be called before any
// task has been spawned; duplicates are caller-prevented (the Manager
// validates descriptor name uniqueness before calling Add).
func (s *ProcessorsStorage) Add(name string, tp *engine.TaskProcessor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.procs[name]; exists {
		return fmt.Errorf("storage: task processor %q already registered", name)
	}
	s.procs[name] = tp
	s.order = append(s.order, name)
	return nil
}

// GetMap returns a read-only snapshot of the name -> processor mapping.
// Safe to call concurrently: the underlying map is stable after
// construction and this method only ever returns a copy.
func (s *ProcessorsStorage) GetMap() map[string]*engine.TaskProcessor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*engine.TaskProcessor, len(s.procs))
	for k, v := range s.procs {
		out[k] = v
	}
	return out
}

// GetPool returns the shared pool handle, or nil after Reset.
func (s *ProcessorsStorage) GetPool() *engine.Pool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool
}

// Reset executes the drain-then-stop shutdown protocol:
//  1. Broadcast InitiateShutdown to every owned processor.
//  2. Poll the pool's live-coroutine counter until it reaches zero, with
//     no deadline — an escape here would leak a goroutine past the point
//     its processor has been torn down.
//  3. Destroy every processor in insertion order, joining its goroutines.
//  4. Assert the pool handle is uniquely held, then release it.
//
// Reset is idempotent: a second call, whether explicit or from a
// deferred cleanup path, is a no-op.
func (s *ProcessorsStorage) Reset() {
	s.mu.Lock()
	if s.pool == nil {
		s.mu.Unlock()
		return
	}
	pool := s.pool
	order := s.order
	procs := s.procs
	s.mu.Unlock()

	for _, name := range order {
		procs[name].InitiateShutdown()
	}

	for pool.LiveCoroutines() > 0 {
		time.Sleep(drainPollInterval)
	}

	for _, name := range order {
		procs[name].Close()
	}

	if rc := pool.RefCount(); rc != 1 {
		panic(fmt.Sprintf("storage: task processor pool handle held %d times after drain, expected 1", rc))
	}
	pool.Release()

	s.mu.Lock()
	s.pool = nil
	s.procs = nil
	s.order = nil
	s.mu.Unlock()
}
