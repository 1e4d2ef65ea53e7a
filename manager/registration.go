package manager

import (
	"context"
	"encoding/json"

	"github.com/component-manager/fusionctl/component"
)

// Registration is one entry of a ComponentList: it names a component and
// knows how to build it once its configuration view is available.
// Dependencies between registrations are never declared up front; each
// factory resolves what it needs dynamically by calling
// component.Context.FindComponent, which blocks until that dependency is
// ready or reports a cycle.
type Registration struct {
	// Name is this component's unique name, matched against
	// Config.Components entries.
	Name string
	// Required marks a component whose absence from Config.Components
	// fails boot with a "missing config" error. A non-required
	// component with no config section is skipped.
	Required bool
	// New builds the component from its raw configuration view. raw may
	// be empty if the component declares no config fields beyond
	// load_enabled.
	New func(ctx context.Context, cc *component.Context, raw json.RawMessage) (component.Component, error)
}

// ComponentName returns the registration's component name.
func (r Registration) ComponentName() string { return r.Name }

// ComponentList is the ordered sequence of component registrations
// passed to New. Construction begins in list order; completion order is
// determined by dependency resolution through FindComponent.
type ComponentList []Registration
