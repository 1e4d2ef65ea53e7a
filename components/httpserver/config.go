package httpserver

import "time"

// Config configures the chi-based HTTP server: listen address,
// timeouts, and which built-in endpoints to expose.
type Config struct {
	Address         string        `yaml:"address" json:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	GracefulTimeout time.Duration `yaml:"graceful_timeout" json:"graceful_timeout"`
	EnableHealth    bool          `yaml:"enable_health" json:"enable_health"`
	ServiceName     string        `yaml:"service_name" json:"service_name"`
	// HealthCheckComponents names other components to probe via their
	// component.HealthHook when set; /healthz reports a failure if any
	// of them errors. Components not implementing HealthHook, or not
	// present at all, are treated as an error rather than skipped,
	// since naming one here is a declaration that it must exist.
	HealthCheckComponents []string `yaml:"health_check_components,omitempty" json:"health_check_components,omitempty"`
}

func (c *Config) applyDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 15 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.GracefulTimeout == 0 {
		c.GracefulTimeout = 10 * time.Second
	}
	if c.ServiceName == "" {
		c.ServiceName = c.Address
	}
}
