package logging

import "time"

// Config describes how the logging component builds its zap logger:
// level, encoding, destination, and (if writing to a file) rotation
// policy.
type Config struct {
	Level  string      `yaml:"level" json:"level"`
	Format string      `yaml:"format" json:"format"`
	Output string      `yaml:"output" json:"output"`
	File   *FileConfig `yaml:"file,omitempty" json:"file,omitempty"`
	Rotate *RotateConfig `yaml:"rotate,omitempty" json:"rotate,omitempty"`
}

// FileConfig names the directory and filename prefix used when Output
// is "file". Any other Output value besides stdout/stderr is opened as
// a file path itself, and FileConfig is not consulted.
type FileConfig struct {
	Dir      string `yaml:"dir" json:"dir"`
	Filename string `yaml:"filename" json:"filename"`
}

// RotateConfig selects one of two rotation strategies: interval-based
// (RotateInterval > 0, handled by intervalRotatingWriter) or
// size/age-based (handled by lumberjack) when RotateInterval is zero.
type RotateConfig struct {
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	RotateInterval time.Duration `yaml:"rotate_interval" json:"rotate_interval"`
	MaxAge         time.Duration `yaml:"max_age" json:"max_age"`
	CleanupEnabled bool          `yaml:"cleanup_enabled" json:"cleanup_enabled"`
}
