// Package logging hosts the component that every other component's
// child logger ultimately writes through: it builds the process-wide
// zap encoder/writer/level stack from configuration and exposes itself
// as the component.LogRotateHook the Manager dispatches OnLogRotate to.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/component-manager/fusionctl/component"
)

const callerSkip = 1

// Name is this component's registration name.
const Name = "logging"

// Component owns the process zap logger built from Config. It
// implements component.TeardownHook (flush and close the writer on
// Teardown) and component.LogRotateHook (flush buffered entries on
// SIGHUP-style rotation signals; the log file is not reopened).
type Component struct {
	cfg    Config
	logger *zap.Logger
	closer func() error
}

// New is a manager.Registration.New-shaped factory: it decodes raw
// into a Config, applies defaults, validates, and builds the
// underlying zap logger.
func New(_ context.Context, _ *component.Context, raw json.RawMessage) (component.Component, error) {
	var cfg Config
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("logging: invalid config: %w", err)
		}
	}
	setDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}

	encoder := buildEncoder(cfg)
	writeSyncer, closer, err := buildWriteSyncer(cfg)
	if err != nil {
		return nil, fmt.Errorf("logging: build write syncer: %w", err)
	}

	logger := zap.New(
		zapcore.NewCore(encoder, writeSyncer, parseLevel(cfg.Level)),
		zap.AddCaller(),
		zap.AddCallerSkip(callerSkip),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	logger.Info("logging component started",
		zap.String("level", cfg.Level),
		zap.String("format", cfg.Format),
		zap.String("output", cfg.Output),
	)

	lc := &Component{cfg: cfg, logger: logger, closer: closer}
	SetGlobalLogger(logger)
	return lc, nil
}

// Name implements component.Component.
func (lc *Component) Name() string { return Name }

// Logger returns the underlying zap logger, for components that want
// to derive their own child logger from it rather than going through
// component.Context.Logger.
func (lc *Component) Logger() *zap.Logger { return lc.logger }

// Teardown implements component.TeardownHook: flush buffered log
// entries and close the underlying writer, if any.
func (lc *Component) Teardown(_ context.Context) error {
	err := lc.logger.Sync()
	if lc.closer != nil {
		if cerr := lc.closer(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Rotate implements component.LogRotateHook. Both rotation strategies
// this component can build (lumberjack, intervalRotatingWriter) detect
// their own rotation boundary on the next Write; Rotate only needs to
// flush what's buffered so an external log-shipper sees a clean cut.
func (lc *Component) Rotate() error {
	return lc.logger.Sync()
}

func setDefaults(cfg *Config) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
	if cfg.Output != "stdout" && cfg.Output != "stderr" && cfg.File == nil {
		cfg.File = &FileConfig{Dir: "./logs", Filename: "app"}
	}
}

func validate(cfg *Config) error {
	if cfg.Rotate != nil && cfg.Rotate.Enabled {
		if cfg.Rotate.MaxAge < 0 {
			return fmt.Errorf("logging: rotate.max_age must be >= 0")
		}
	}
	return nil
}

func buildEncoder(cfg Config) zapcore.Encoder {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if cfg.Format == "json" {
		return zapcore.NewJSONEncoder(encCfg)
	}
	return zapcore.NewConsoleEncoder(encCfg)
}

// buildWriteSyncer returns the syncer and, if it owns a closeable
// resource (a file or rotating writer), a closer to release it on
// Teardown.
func buildWriteSyncer(cfg Config) (zapcore.WriteSyncer, func() error, error) {
	switch strings.ToLower(cfg.Output) {
	case "stdout", "":
		return zapcore.AddSync(os.Stdout), nil, nil
	case "stderr":
		return zapcore.AddSync(os.Stderr), nil, nil
	case "file":
		return buildFileWriteSyncer(cfg)
	default:
		return buildCustomFileWriteSyncer(cfg.Output)
	}
}

func buildFileWriteSyncer(cfg Config) (zapcore.WriteSyncer, func() error, error) {
	if cfg.File == nil {
		return nil, nil, fmt.Errorf("file config is required when output is %q", "file")
	}
	if err := os.MkdirAll(cfg.File.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	logFile := filepath.Join(cfg.File.Dir, cfg.File.Filename+".log")

	if rc := cfg.Rotate; rc != nil && rc.Enabled && rc.RotateInterval > 0 {
		w, err := newIntervalRotatingWriter(cfg.File.Dir, cfg.File.Filename, rc)
		if err != nil {
			return nil, nil, err
		}
		return zapcore.AddSync(w), w.Close, nil
	}

	if rc := cfg.Rotate; rc != nil && rc.Enabled {
		lumber := &lumberjack.Logger{
			Filename:  logFile,
			MaxSize:   100,
			MaxAge:    int(rc.MaxAge.Hours() / 24),
			Compress:  true,
			LocalTime: true,
		}
		return zapcore.AddSync(lumber), lumber.Close, nil
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return zapcore.AddSync(file), file.Close, nil
}

func buildCustomFileWriteSyncer(path string) (zapcore.WriteSyncer, func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return zapcore.AddSync(file), file.Close, nil
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "INFO":
		return zapcore.InfoLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	case "FATAL":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
