// Package grpcclient manages a set of named google.golang.org/grpc
// client connections, dialed eagerly or lazily per client, with a trace
// propagation interceptor and a periodic connectivity-state sweep.
package grpcclient

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"

	"github.com/component-manager/fusionctl/component"
)

// Name is this component's registration name.
const Name = "grpc_clients"

// Component owns a set of named *grpc.ClientConn, some dialed eagerly
// at New, others lazily on first Client call.
type Component struct {
	logger  *zap.Logger
	cfg     Config
	mutex   sync.RWMutex
	clients map[string]*grpc.ClientConn
	configs map[string]*ClientConfig

	healthTicker *time.Ticker
	healthStop   chan struct{}
}

// New dials every client whose ConnectOnStart is true (the default);
// the rest are dialed lazily on first Client call.
func New(ctx context.Context, cc *component.Context, raw json.RawMessage) (component.Component, error) {
	var cfg Config
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("grpc_clients: invalid config: %w", err)
		}
	}
	cfg.applyDefaults()

	gc := &Component{
		logger:     cc.Logger(Name),
		cfg:        cfg,
		clients:    make(map[string]*grpc.ClientConn),
		configs:    make(map[string]*ClientConfig, len(cfg.Clients)),
		healthStop: make(chan struct{}),
	}

	for name, clientCfg := range cfg.Clients {
		gc.configs[name] = clientCfg
		if !clientCfg.connectOnStart() {
			gc.logger.Info("grpc client deferred", zap.String("client", name))
			continue
		}
		if err := gc.dial(name, clientCfg); err != nil {
			gc.closeAll()
			return nil, fmt.Errorf("grpc_clients: dial %s: %w", name, err)
		}
	}

	if cfg.EnableHealthCheck {
		gc.startHealthSweep()
	}

	_ = ctx
	gc.logger.Info("grpc_clients component started", zap.Int("connected", len(gc.clients)))
	return gc, nil
}

// Name implements component.Component.
func (gc *Component) Name() string { return Name }

// Teardown implements component.TeardownHook.
func (gc *Component) Teardown(ctx context.Context) error {
	_ = ctx
	if gc.healthTicker != nil {
		gc.healthTicker.Stop()
		close(gc.healthStop)
	}
	gc.closeAll()
	gc.logger.Info("grpc_clients component stopped")
	return nil
}

// HealthCheck implements component.HealthHook: every connected client
// must be Ready or Idle.
func (gc *Component) HealthCheck(ctx context.Context) error {
	_ = ctx
	gc.mutex.RLock()
	defer gc.mutex.RUnlock()
	for name, conn := range gc.clients {
		state := conn.GetState()
		if state != connectivity.Ready && state != connectivity.Idle {
			return fmt.Errorf("grpc_clients: client %s not healthy: %v", name, state)
		}
	}
	return nil
}

// Client returns the named connection, dialing it on demand if it was
// configured with connect_on_start: false.
func (gc *Component) Client(name string) (*grpc.ClientConn, error) {
	gc.mutex.RLock()
	conn, ok := gc.clients[name]
	cfg, cfgOK := gc.configs[name]
	gc.mutex.RUnlock()

	if ok && conn != nil {
		state := conn.GetState()
		if state == connectivity.Shutdown || state == connectivity.TransientFailure {
			return nil, fmt.Errorf("grpc_clients: client %s unavailable: %v", name, state)
		}
		return conn, nil
	}
	if !cfgOK {
		return nil, fmt.Errorf("grpc_clients: client %s not configured", name)
	}

	gc.mutex.Lock()
	defer gc.mutex.Unlock()
	if c2, ok := gc.clients[name]; ok && c2 != nil {
		return c2, nil
	}
	if err := gc.dial(name, cfg); err != nil {
		return nil, err
	}
	return gc.clients[name], nil
}

// dial connects name and stores the connection in gc.clients. It does
// not lock gc.mutex: Client calls it with the write lock held, and New
// calls it before gc is visible to any other goroutine.
func (gc *Component) dial(name string, cfg *ClientConfig) error {
	target := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	opts := []grpc.DialOption{
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(cfg.MaxReceiveMessageLength),
			grpc.MaxCallSendMsgSize(cfg.MaxSendMessageLength),
		),
		grpc.WithChainUnaryInterceptor(gc.traceUnaryInterceptor()),
	}
	if cfg.KeepaliveOptions != nil {
		opts = append(opts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveOptions.Time,
			Timeout:             cfg.KeepaliveOptions.Timeout,
			PermitWithoutStream: cfg.KeepaliveOptions.PermitWithoutStream,
		}))
	}
	if cfg.Secure {
		creds, err := buildCredentials(cfg)
		if err != nil {
			return fmt.Errorf("build credentials: %w", err)
		}
		opts = append(opts, grpc.WithTransportCredentials(creds))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return fmt.Errorf("dial %s: %w", target, err)
	}

	gc.clients[name] = conn
	gc.logger.Info("grpc client connected", zap.String("client", name), zap.String("target", target))
	return nil
}

func buildCredentials(cfg *ClientConfig) (credentials.TransportCredentials, error) {
	if cfg.CredentialsPath != "" {
		return credentials.NewClientTLSFromFile(cfg.CredentialsPath, "")
	}
	return credentials.NewTLS(&tls.Config{ServerName: cfg.Host}), nil
}

func (gc *Component) startHealthSweep() {
	gc.healthTicker = time.NewTicker(gc.cfg.HealthCheckInterval)
	go func() {
		for {
			select {
			case <-gc.healthTicker.C:
				gc.sweep()
			case <-gc.healthStop:
				return
			}
		}
	}()
}

func (gc *Component) sweep() {
	gc.mutex.RLock()
	snapshot := make(map[string]*grpc.ClientConn, len(gc.clients))
	for k, v := range gc.clients {
		snapshot[k] = v
	}
	gc.mutex.RUnlock()

	for name, conn := range snapshot {
		if state := conn.GetState(); state == connectivity.TransientFailure || state == connectivity.Shutdown {
			gc.logger.Warn("grpc client unhealthy", zap.String("client", name), zap.String("state", state.String()))
		}
	}
}

func (gc *Component) closeAll() {
	gc.mutex.Lock()
	defer gc.mutex.Unlock()
	for name, conn := range gc.clients {
		_ = conn.Close()
		gc.logger.Info("grpc client closed", zap.String("client", name))
	}
	gc.clients = make(map[string]*grpc.ClientConn)
}

// traceUnaryInterceptor forwards the active span's trace id as outgoing
// metadata, so a server that isn't itself OTel-instrumented can still
// correlate the request by its "trace-id" metadata key.
func (gc *Component) traceUnaryInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, conn *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			md, ok := metadata.FromOutgoingContext(ctx)
			if ok {
				md = md.Copy()
			} else {
				md = metadata.New(nil)
			}
			md.Set("trace-id", sc.TraceID().String())
			ctx = metadata.NewOutgoingContext(ctx, md)
		}
		return invoker(ctx, method, req, reply, conn, opts...)
	}
}
