package grpcserver

import "time"

// Config configures the gRPC listener, message-size limits, and which
// built-in services (health, reflection) are registered.
type Config struct {
	Address          string        `yaml:"address" json:"address"`
	MaxRecvMsgSize   int           `yaml:"max_recv_msg_size" json:"max_recv_msg_size"`
	MaxSendMsgSize   int           `yaml:"max_send_msg_size" json:"max_send_msg_size"`
	GracefulTimeout  time.Duration `yaml:"graceful_timeout" json:"graceful_timeout"`
	EnableReflection bool          `yaml:"enable_reflection" json:"enable_reflection"`
	EnableHealth     bool          `yaml:"enable_health" json:"enable_health"`
}

func (c *Config) applyDefaults() {
	if c.Address == "" {
		c.Address = ":50051"
	}
	if c.MaxRecvMsgSize == 0 {
		c.MaxRecvMsgSize = 4 * 1024 * 1024
	}
	if c.MaxSendMsgSize == 0 {
		c.MaxSendMsgSize = 4 * 1024 * 1024
	}
	if c.GracefulTimeout == 0 {
		c.GracefulTimeout = 10 * time.Second
	}
}
