package manager

import (
	"encoding/json"

	"github.com/component-manager/fusionctl/engine"
)

// TaskProcessorConfig describes one named cooperative scheduler. Name
// must be non-empty and unique within Config.TaskProcessors;
// WorkerThreads must be at least 1; ShouldGuessCPULimit may only be true
// for the descriptor named by Config.DefaultTaskProcessor — set on any
// other descriptor, it is logged and ignored.
type TaskProcessorConfig struct {
	Name                string `yaml:"name" json:"name"`
	WorkerThreads       int    `yaml:"worker_threads" json:"worker_threads"`
	ShouldGuessCPULimit bool   `yaml:"should_guess_cpu_limit" json:"should_guess_cpu_limit"`
}

// ComponentConfig is a per-component configuration view: a name and its
// raw configuration payload, decoded by the component's own Registration
// at boot time. Raw carries at least an optional load_enabled field that
// the boot orchestrator inspects before invoking the factory.
type ComponentConfig struct {
	Name string          `yaml:"name" json:"name"`
	Raw  json.RawMessage `yaml:"-" json:"-"`
}

// Config is the Manager's immutable configuration.
type Config struct {
	EnginePool           engine.PoolConfig
	TaskProcessors       []TaskProcessorConfig
	DefaultTaskProcessor string
	Components           []ComponentConfig
}

type loadEnabledProbe struct {
	LoadEnabled *bool `yaml:"load_enabled" json:"load_enabled"`
}

// isLoadEnabled reports whether the component is enabled: false only
// when raw's load_enabled field is explicitly false. Absence of the
// field, or absence of raw entirely, means enabled.
func isLoadEnabled(raw json.RawMessage) (bool, error) {
	if len(raw) == 0 {
		return true, nil
	}
	var probe loadEnabledProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false, err
	}
	if probe.LoadEnabled == nil {
		return true, nil
	}
	return *probe.LoadEnabled, nil
}
