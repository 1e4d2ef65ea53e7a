// Package prometheus exposes a Prometheus registry over HTTP via
// github.com/prometheus/client_golang, with the standard Go-runtime and
// process collectors registered by default.
package prometheus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/component-manager/fusionctl/component"
)

// Name is this component's registration name.
const Name = "prometheus"

// Component owns a prometheus.Registry and the HTTP server exposing it.
type Component struct {
	logger    *zap.Logger
	cfg       Config
	server    *http.Server
	registry  *prometheus.Registry
	namespace string
	subsystem string
	serving   bool
}

// New builds a registry, registers the default collectors, and starts
// serving it on a background goroutine.
func New(ctx context.Context, cc *component.Context, raw json.RawMessage) (component.Component, error) {
	var cfg Config
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("prometheus: invalid config: %w", err)
		}
	}
	cfg.applyDefaults()

	c := &Component{
		logger:    cc.Logger(Name),
		cfg:       cfg,
		registry:  prometheus.NewRegistry(),
		namespace: cfg.Namespace,
		subsystem: cfg.Subsystem,
	}
	if !cfg.DisableGoMetrics {
		_ = c.registry.Register(prometheus.NewGoCollector())
	}
	if !cfg.DisableProcessMetrics {
		_ = c.registry.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	c.server = &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		c.logger.Info("prometheus listening", zap.String("address", cfg.Address), zap.String("path", cfg.Path))
		if err := c.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error("prometheus server error", zap.Error(err))
		}
	}()

	c.serving = true
	_ = ctx
	return c, nil
}

// Name implements component.Component.
func (c *Component) Name() string { return Name }

// HealthCheck implements component.HealthHook.
func (c *Component) HealthCheck(ctx context.Context) error {
	_ = ctx
	if !c.serving {
		return fmt.Errorf("prometheus: not serving")
	}
	return nil
}

// Teardown implements component.TeardownHook.
func (c *Component) Teardown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("prometheus: shutdown: %w", err)
	}
	c.logger.Info("prometheus component stopped")
	return nil
}

// Registry returns the component's registry, for other components that
// want to register their own collectors against it.
func (c *Component) Registry() *prometheus.Registry { return c.registry }

// fqName applies the configured namespace/subsystem prefix.
func (c *Component) fqName(name string) string {
	switch {
	case c.namespace != "" && c.subsystem != "":
		return c.namespace + "_" + c.subsystem + "_" + name
	case c.namespace != "":
		return c.namespace + "_" + name
	case c.subsystem != "":
		return c.subsystem + "_" + name
	default:
		return name
	}
}

// NewCounter creates and registers a namespaced CounterVec.
func (c *Component) NewCounter(name, help string, labels []string) *prometheus.CounterVec {
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{Name: c.fqName(name), Help: help}, labels)
	_ = c.registry.Register(cv)
	return cv
}

// NewHistogram creates and registers a namespaced HistogramVec.
func (c *Component) NewHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: c.fqName(name), Help: help, Buckets: buckets}, labels)
	_ = c.registry.Register(hv)
	return hv
}
