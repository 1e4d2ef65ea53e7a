// Package component implements the ComponentContext collaborator the
// Manager relies on: dependency resolution between components by name,
// cycle detection, the load-cancelled broadcast, and ordered teardown.
package component

import "context"

// Component is a long-lived object identified by a unique name, created
// once by a Factory. Components that need a post-boot readiness hook, a
// teardown hook, or a log-rotation hook implement the optional
// interfaces below; Component itself only requires a name, because
// nothing in the boot/teardown protocol needs more than that to track a
// component generically.
type Component interface {
	Name() string
}

// ReadyHook is implemented by components that need to run logic after
// every component in the list has finished booting (Manager's
// OnAllComponentsLoaded step). Hooks run in construction-completion
// order; the first failure aborts the remaining hooks.
type ReadyHook interface {
	OnReady(ctx context.Context) error
}

// TeardownHook is implemented by components that hold resources needing
// an explicit release. Hooks run in reverse construction-completion
// order; a failure is logged and does not stop the remaining teardowns.
type TeardownHook interface {
	Teardown(ctx context.Context) error
}

// LogRotateHook is implemented by the (at most one) component acting as
// the logging sink; Manager.OnLogRotate calls it after confirming
// teardown hasn't already started.
type LogRotateHook interface {
	Rotate() error
}

// HealthHook is implemented by components that can assess their own
// liveness (an open connection pool, a dialed client, a listening
// server). Making it an optional interface, rather than a method every
// component must define, lets callers like httpserver's /healthz route
// or a gRPC health service aggregate over only the components that opt
// in, via FindComponent plus a type assertion.
type HealthHook interface {
	HealthCheck(ctx context.Context) error
}

// Factory constructs a Component, given the context it should use to
// resolve its own dependencies via Context.FindComponent.
type Factory func(ctx context.Context, cc *Context) (Component, error)
