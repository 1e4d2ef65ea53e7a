package component

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type slotState int

const (
	stateBuilding slotState = iota
	stateReady
	stateFailed
)

type slot struct {
	name  string
	state slotState
	comp  Component
	err   error
}

type currentComponentKey struct{}

// Context resolves dependencies between components by name, detects
// cycles, and implements the load-cancelled broadcast. The Manager
// treats it as an opaque collaborator: components reach each other only
// through FindComponent, never through direct references to Manager
// internals.
type Context struct {
	mu    sync.Mutex
	cond  *sync.Cond
	slots map[string]*slot
	// order is completion order: the sequence in which AddComponent
	// calls finished successfully, which is what OnAllComponentsLoaded
	// and ClearComponents iterate (forward and reverse, respectively).
	order []string
	// waitingFor is the wait-for graph used for cycle detection:
	// waitingFor[caller] = the component name caller is currently
	// suspended inside FindComponent for.
	waitingFor map[string]string
	cancelled  bool

	logger *zap.Logger
}

// NewContext creates an empty component context. logger is used for
// per-component child loggers (see Logger) and for logging teardown
// failures; it may be a bootstrap logger created before any component,
// including the logging component itself, has booted.
func NewContext(logger *zap.Logger) *Context {
	cc := &Context{
		slots:      make(map[string]*slot),
		waitingFor: make(map[string]string),
		logger:     logger,
	}
	cc.cond = sync.NewCond(&cc.mu)
	return cc
}

// Logger returns a child logger tagged with the given component name,
// giving every component its own log tag without requiring it to build
// one itself.
func (cc *Context) Logger(name string) *zap.Logger {
	return cc.logger.With(zap.String("component", name))
}

// AddComponent registers that name is being constructed by the current
// task, invokes factory with a context stamped with name so that nested
// FindComponent calls can identify their caller, and records the
// outcome. Returns a non-owning pointer to the stored component.
func (cc *Context) AddComponent(ctx context.Context, name string, factory Factory) (Component, error) {
	cc.mu.Lock()
	if _, exists := cc.slots[name]; exists {
		cc.mu.Unlock()
		return nil, fmt.Errorf("component %q already registered", name)
	}
	cc.slots[name] = &slot{name: name, state: stateBuilding}
	cc.mu.Unlock()

	compCtx := context.WithValue(ctx, currentComponentKey{}, name)
	comp, err := factory(compCtx, cc)

	cc.mu.Lock()
	defer cc.mu.Unlock()
	s := cc.slots[name]
	if err != nil {
		s.state = stateFailed
		s.err = err
		cc.cancelled = true
		cc.cond.Broadcast()
		return nil, err
	}
	s.state = stateReady
	s.comp = comp
	cc.order = append(cc.order, name)
	cc.cond.Broadcast()
	return comp, nil
}

// FindComponent suspends the calling task until other's AddComponent has
// returned successfully, returning ErrLoadCancelled if CancelComponentsLoad
// is broadcast while waiting. A failing AddComponent triggers that
// broadcast itself, so a component waiting on one that fails to build
// resumes with ErrLoadCancelled rather than seeing the failure directly;
// the failure itself only ever reaches the caller of the failing
// AddComponent. FindComponent returns a non-cancellation error only when
// name was never registered or resolving it would close a dependency
// cycle back to the caller.
func (cc *Context) FindComponent(ctx context.Context, name string) (Component, error) {
	caller, _ := ctx.Value(currentComponentKey{}).(string)

	cc.mu.Lock()
	if caller != "" {
		if cc.wouldCycleLocked(caller, name) {
			cc.mu.Unlock()
			return nil, fmt.Errorf("component: circular dependency detected: %s -> %s", caller, name)
		}
		cc.waitingFor[caller] = name
	}

	for {
		if cc.cancelled {
			cc.forgetWaitLocked(caller)
			cc.mu.Unlock()
			return nil, ErrLoadCancelled
		}

		s, ok := cc.slots[name]
		if !ok {
			cc.forgetWaitLocked(caller)
			cc.mu.Unlock()
			return nil, fmt.Errorf("component %q not found", name)
		}

		switch s.state {
		case stateReady:
			comp := s.comp
			cc.forgetWaitLocked(caller)
			cc.mu.Unlock()
			return comp, nil
		case stateFailed:
			// AddComponent always sets cancelled alongside stateFailed
			// under the same lock, so the cancelled check above already
			// catches every real failure; this branch is a fallback for
			// any future caller of the unexported failure path that
			// doesn't.
			err := s.err
			cc.forgetWaitLocked(caller)
			cc.mu.Unlock()
			return nil, fmt.Errorf("dependency %q failed to build: %w", name, err)
		default: // stateBuilding
			cc.cond.Wait()
		}
	}
}

func (cc *Context) forgetWaitLocked(caller string) {
	if caller != "" {
		delete(cc.waitingFor, caller)
	}
}

// wouldCycleLocked reports whether caller waiting on name would close a
// cycle, by walking the wait-for graph forward from name looking for
// caller. Must be called with cc.mu held.
func (cc *Context) wouldCycleLocked(caller, name string) bool {
	if name == caller {
		return true
	}
	seen := make(map[string]bool)
	cur := name
	for {
		if cur == caller {
			return true
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
		next, ok := cc.waitingFor[cur]
		if !ok {
			return false
		}
		cur = next
	}
}

// CancelComponentsLoad broadcasts the load-cancelled signal: every task
// currently suspended inside FindComponent resumes with ErrLoadCancelled,
// and every subsequent FindComponent call fails immediately with it.
func (cc *Context) CancelComponentsLoad() {
	cc.mu.Lock()
	cc.cancelled = true
	cc.mu.Unlock()
	cc.cond.Broadcast()
}

// OnAllComponentsLoaded calls each component's ReadyHook, in construction
// order, aborting on the first failure.
func (cc *Context) OnAllComponentsLoaded(ctx context.Context) error {
	cc.mu.Lock()
	order := append([]string(nil), cc.order...)
	cc.mu.Unlock()

	for _, name := range order {
		cc.mu.Lock()
		comp := cc.slots[name].comp
		cc.mu.Unlock()

		hook, ok := comp.(ReadyHook)
		if !ok {
			continue
		}
		if err := hook.OnReady(ctx); err != nil {
			return fmt.Errorf("component %q ready hook failed: %w", name, err)
		}
	}
	return nil
}

// ClearComponents tears down every component in reverse construction
// order, logging (and never propagating) per-component teardown
// failures, so that every component gets a chance to release its
// resources even if an earlier one failed.
func (cc *Context) ClearComponents(ctx context.Context) {
	cc.mu.Lock()
	order := append([]string(nil), cc.order...)
	slots := cc.slots
	cc.mu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		comp := slots[name].comp

		hook, ok := comp.(TeardownHook)
		if !ok {
			continue
		}
		if err := hook.Teardown(ctx); err != nil {
			cc.logger.Error("component teardown failed", zap.String("component", name), zap.Error(err))
		}
	}
}
