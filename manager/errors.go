package manager

import (
	"errors"

	"github.com/component-manager/fusionctl/component"
)

// ErrLoadCancelled re-exports component.ErrLoadCancelled so callers
// driving the boot sequence don't need to import the component package
// just to classify an outcome.
var ErrLoadCancelled = component.ErrLoadCancelled

var (
	// ErrDuplicateComponentName is returned when a ComponentList
	// contains two registrations with the same name.
	ErrDuplicateComponentName = errors.New("manager: duplicate component name")
	// ErrUnknownComponentInConfig is returned when Config.Components
	// names a component absent from the ComponentList.
	ErrUnknownComponentInConfig = errors.New("manager: unknown component in config")
	// ErrMissingDefaultProcessor is returned when Config.TaskProcessors
	// does not contain exactly one descriptor named by
	// Config.DefaultTaskProcessor.
	ErrMissingDefaultProcessor = errors.New("manager: missing or ambiguous default task processor")
	// ErrLoadCancelledWithoutCause is returned when every boot task
	// ended in success or LoadCancelled but at least one ended in
	// LoadCancelled — an invariant violation, since cancellation must
	// always be caused by a real failure.
	ErrLoadCancelledWithoutCause = errors.New("manager: load cancelled but only LoadCancelled observed")
)
