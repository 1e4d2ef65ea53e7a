package prometheus

// Config configures the Prometheus metrics exporter: where it listens
// and which built-in collectors are registered alongside
// application-defined ones.
type Config struct {
	Address   string `yaml:"address" json:"address"`
	Path      string `yaml:"path" json:"path"`
	Namespace string `yaml:"namespace" json:"namespace"`
	Subsystem string `yaml:"subsystem" json:"subsystem"`

	// DisableGoMetrics/DisableProcessMetrics opt out of the default Go
	// runtime and process collectors. Named as "disable" rather than
	// "collect" so the zero value (both false) matches the intended
	// default of collecting both — a plain boolean "collect" flag
	// would default to false and silently omit the collectors on any
	// config that doesn't explicitly set it to true.
	DisableGoMetrics      bool `yaml:"disable_go_metrics" json:"disable_go_metrics"`
	DisableProcessMetrics bool `yaml:"disable_process_metrics" json:"disable_process_metrics"`
}

func (c *Config) applyDefaults() {
	if c.Address == "" {
		c.Address = ":9090"
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
}
