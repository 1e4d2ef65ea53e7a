package config

import "github.com/component-manager/fusionctl/manager"

// Manager wires a Loader and a Validator together: load a file,
// validate it, and hand back the manager.Config the rest of the
// application boots from. It exists so main only has to construct one
// object instead of a loader and a validator it has to remember to
// call in the right order.
type Manager struct {
	loader    *Loader
	validator *Validator
	loaded    bool
}

// NewManager creates a configuration manager for configPath under env.
func NewManager(env string, configPath string) *Manager {
	return &Manager{
		loader:    NewLoader(env, configPath),
		validator: NewValidator(),
	}
}

// Load validates the configured path, reads and decodes it, validates
// the decoded result, and returns the manager.Config. It does not cache
// the result; callers that need to reload call Load again.
func (m *Manager) Load() (manager.Config, error) {
	if err := m.validator.validateConfigFilePath(m.loader.Env(), m.loader.Path()); err != nil {
		return manager.Config{}, err
	}

	cfg, err := m.loader.Load()
	if err != nil {
		return manager.Config{}, err
	}

	if err := m.validator.ValidateConfig(cfg); err != nil {
		return manager.Config{}, err
	}

	m.loaded = true
	return cfg, nil
}

// Loaded reports whether Load has returned successfully at least once.
func (m *Manager) Loaded() bool { return m.loaded }
