package grpcclient

import "time"

// ClientConfig configures a single named gRPC client connection.
type ClientConfig struct {
	Host                    string            `yaml:"host" json:"host"`
	Port                    int               `yaml:"port" json:"port"`
	Secure                  bool              `yaml:"secure" json:"secure"`
	CredentialsPath         string            `yaml:"credentials_path,omitempty" json:"credentials_path,omitempty"`
	MaxReceiveMessageLength int               `yaml:"max_receive_message_length" json:"max_receive_message_length"`
	MaxSendMessageLength    int               `yaml:"max_send_message_length" json:"max_send_message_length"`
	Timeout                 time.Duration     `yaml:"timeout" json:"timeout"`
	KeepaliveOptions        *KeepaliveOptions `yaml:"keepalive_options,omitempty" json:"keepalive_options,omitempty"`
	// ConnectOnStart dials eagerly during New when true (the default).
	// When false the connection is established lazily on first Client
	// call.
	ConnectOnStart *bool `yaml:"connect_on_start,omitempty" json:"connect_on_start,omitempty"`
}

func (c *ClientConfig) connectOnStart() bool {
	return c.ConnectOnStart == nil || *c.ConnectOnStart
}

// Config configures the set of named gRPC client connections this
// component manages.
type Config struct {
	Clients             map[string]*ClientConfig `yaml:"clients" json:"clients"`
	DefaultTimeout      time.Duration            `yaml:"default_timeout" json:"default_timeout"`
	EnableHealthCheck   bool                     `yaml:"enable_health_check" json:"enable_health_check"`
	HealthCheckInterval time.Duration            `yaml:"health_check_interval" json:"health_check_interval"`
}

// KeepaliveOptions configures gRPC client keepalive pings.
type KeepaliveOptions struct {
	Time                time.Duration `yaml:"time" json:"time"`
	Timeout             time.Duration `yaml:"timeout" json:"timeout"`
	PermitWithoutStream bool          `yaml:"permit_without_stream" json:"permit_without_stream"`
}

func (cfg *Config) applyDefaults() {
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = 30 * time.Second
	}
	if cfg.HealthCheckInterval == 0 {
		cfg.HealthCheckInterval = 60 * time.Second
	}
	for _, cc := range cfg.Clients {
		if cc.MaxReceiveMessageLength == 0 {
			cc.MaxReceiveMessageLength = 4 * 1024 * 1024
		}
		if cc.MaxSendMessageLength == 0 {
			cc.MaxSendMessageLength = 4 * 1024 * 1024
		}
		if cc.Timeout == 0 {
			cc.Timeout = cfg.DefaultTimeout
		}
	}
}
