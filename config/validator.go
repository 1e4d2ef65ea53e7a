// config/validator.go
package config

import (
	"fmt"

	"github.com/component-manager/fusionctl/consts"
	"github.com/component-manager/fusionctl/manager"
)

// Validator checks a configuration file and its decoded contents
// before the Manager ever sees them.
type Validator struct{}

// NewValidator creates a configuration validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateConfig performs structural checks manager.New's own
// validation doesn't cover because it happens before a manager.Config
// exists at all: that a default task processor was named and that at
// least one task processor is configured. manager.New re-validates
// task-processor and component-list consistency itself once it has a
// concrete ComponentList to check names against.
func (v *Validator) ValidateConfig(cfg manager.Config) error {
	if cfg.DefaultTaskProcessor == "" {
		return fmt.Errorf("config: default_task_processor must be set")
	}
	if len(cfg.TaskProcessors) == 0 {
		return fmt.Errorf("config: task_processors must not be empty")
	}
	return nil
}

func (v *Validator) validateConfigFilePath(env string, path string) error {
	if path == "" {
		return fmt.Errorf("config file path cannot be empty")
	}
	if len(path) > 255 {
		return fmt.Errorf("config file path is too long")
	}
	if !fileExists(path) {
		return fmt.Errorf("config file does not exist: %s", path)
	}
	if v.validateEnv(env) != nil {
		return fmt.Errorf("running environment is not valid: %s", env)
	}
	return nil
}

func (v *Validator) validateEnv(env string) error {
	switch env {
	case "", consts.ENV_PRODUCTION, consts.ENV_DEVELOPMENT, consts.ENV_TEST:
		return nil
	default:
		return fmt.Errorf("unknown environment: %s", env)
	}
}
