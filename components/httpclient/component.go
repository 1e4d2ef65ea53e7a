// Package httpclient hosts a set of named, OpenTelemetry-instrumented
// outgoing HTTP clients, each with its own connection pool and retry
// policy.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/component-manager/fusionctl/component"
)

// Name is this component's registration name.
const Name = "http_clients"

// Component owns every configured named client and the transport each
// one wraps, for shutdown via Teardown.
type Component struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	clients map[string]*Client
	defName string
}

// New takes its child logger from component.Context.Logger (it does
// not look up the logging component) and builds one Client per entry
// in cfg.Clients.
func New(ctx context.Context, cc *component.Context, raw json.RawMessage) (component.Component, error) {
	var cfg Config
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("http_clients: invalid config: %w", err)
		}
	}
	cfg.applyDefaults()

	logger := cc.Logger(Name)

	hc := &Component{
		logger:  logger,
		clients: make(map[string]*Client, len(cfg.Clients)),
		defName: cfg.Default,
	}

	for name, ccfg := range cfg.Clients {
		underlying := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        ccfg.MaxIdleConns,
			MaxIdleConnsPerHost: ccfg.MaxIdleConnsPerHost,
			IdleConnTimeout:     ccfg.IdleConnTimeout,
			TLSHandshakeTimeout: 5 * time.Second,
		}

		hc.clients[name] = &Client{
			name:           name,
			baseURL:        ccfg.BaseURL,
			defaultHeaders: ccfg.DefaultHeaders,
			retry:          ccfg.Retry,
			underlying:     underlying,
			http: &http.Client{
				Timeout:   ccfg.Timeout,
				Transport: otelhttp.NewTransport(underlying),
			},
			logger: logger,
		}
	}

	logger.Info("http clients started", zap.Int("count", len(hc.clients)), zap.String("default", hc.defName))
	_ = ctx
	return hc, nil
}

// Name implements component.Component.
func (hc *Component) Name() string { return Name }

// Teardown implements component.TeardownHook: close idle connections
// on every pooled transport.
func (hc *Component) Teardown(_ context.Context) error {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	for _, c := range hc.clients {
		c.underlying.CloseIdleConnections()
	}
	hc.logger.Info("http clients stopped")
	return nil
}

// Client returns the named client, or the default client if name is
// empty.
func (hc *Component) Client(name string) (*Client, error) {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	if name == "" {
		name = hc.defName
	}
	c, ok := hc.clients[name]
	if !ok {
		return nil, fmt.Errorf("http_clients: client %q not found", name)
	}
	return c, nil
}

// Default returns the configured default client.
func (hc *Component) Default() (*Client, error) {
	return hc.Client(hc.defName)
}
