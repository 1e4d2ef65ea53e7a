// Package grpcserver hosts a google.golang.org/grpc server instrumented
// with otelgrpc's stats handler for real span propagation, a fixed
// recovery -> trace-header -> logging unary interceptor chain, and
// optional health/reflection services.
package grpcserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpcCodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/component-manager/fusionctl/component"
)

// Name is this component's registration name.
const Name = "grpc_server"

// Component owns the grpc.Server and its health service.
type Component struct {
	cfg       Config
	cc        *component.Context
	logger    *zap.Logger
	server    *grpc.Server
	healthSrv *health.Server
	started   bool
}

// New builds the server, registers every ServiceRegistrar, and starts
// serving on cfg.Address on a background goroutine.
func New(ctx context.Context, cc *component.Context, raw json.RawMessage) (component.Component, error) {
	var cfg Config
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("grpc_server: invalid config: %w", err)
		}
	}
	cfg.applyDefaults()

	gc := &Component{cfg: cfg, cc: cc, logger: cc.Logger(Name)}

	unaryInts := []grpc.UnaryServerInterceptor{
		gc.recoveryInterceptor(),
		gc.traceHeaderInjectorInterceptor(),
		gc.loggingInterceptor(),
	}
	gc.server = grpc.NewServer(
		grpc.MaxRecvMsgSize(cfg.MaxRecvMsgSize),
		grpc.MaxSendMsgSize(cfg.MaxSendMsgSize),
		grpc.ChainUnaryInterceptor(unaryInts...),
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)

	if cfg.EnableHealth {
		gc.healthSrv = health.NewServer()
		healthpb.RegisterHealthServer(gc.server, gc.healthSrv)
		gc.healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	}
	if cfg.EnableReflection {
		reflection.Register(gc.server)
	}

	for _, r := range snapshotRegistrars() {
		if err := r(gc.server, cc); err != nil {
			return nil, fmt.Errorf("grpc_server: service registration failed: %w", err)
		}
	}

	lis, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("grpc_server: listen: %w", err)
	}

	go func() {
		gc.logger.Info("grpc server listening", zap.String("address", cfg.Address))
		if err := gc.server.Serve(lis); err != nil {
			gc.logger.Error("grpc server error", zap.Error(err))
		}
	}()

	gc.started = true
	_ = ctx
	return gc, nil
}

// Name implements component.Component.
func (gc *Component) Name() string { return Name }

// Teardown implements component.TeardownHook: attempts a graceful stop
// within cfg.GracefulTimeout, forcing a hard stop past the deadline or
// if ctx is canceled first.
func (gc *Component) Teardown(ctx context.Context) error {
	if !gc.started || gc.server == nil {
		return nil
	}
	if gc.healthSrv != nil {
		gc.healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	}

	deadline := time.Now().Add(gc.cfg.GracefulTimeout)
	done := make(chan struct{})
	go func() {
		gc.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		gc.logger.Info("grpc server stopped gracefully")
	case <-ctx.Done():
		gc.logger.Warn("grpc server stop context canceled, forcing")
		gc.server.Stop()
	case <-time.After(time.Until(deadline)):
		gc.logger.Warn("grpc server graceful timeout exceeded, forcing")
		gc.server.Stop()
	}
	gc.started = false
	return nil
}

// HealthCheck implements component.HealthHook.
func (gc *Component) HealthCheck(ctx context.Context) error {
	_ = ctx
	if !gc.started {
		return fmt.Errorf("grpc_server: not started")
	}
	return nil
}

func (gc *Component) loggingInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		start := time.Now()
		resp, err = handler(ctx, req)
		dur := time.Since(start)
		st := status.Code(err)
		if err != nil {
			gc.logger.Error("grpc access",
				zap.String("method", info.FullMethod),
				zap.Duration("dur", dur),
				zap.String("grpc_status", st.String()),
				zap.Error(err),
			)
		} else {
			gc.logger.Info("grpc access",
				zap.String("method", info.FullMethod),
				zap.Duration("dur", dur),
				zap.String("grpc_status", st.String()),
			)
		}
		return resp, err
	}
}

func (gc *Component) recoveryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				gc.logger.Error("panic recovered", zap.Any("panic", r), zap.String("method", info.FullMethod))
				err = status.Errorf(grpcCodes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

// traceHeaderInjectorInterceptor sets a convenience trace_id response
// header (non-standard, for clients that don't parse OTel spans) when a
// valid span is present on the request context.
func (gc *Component) traceHeaderInjectorInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			_ = grpc.SetHeader(ctx, metadata.Pairs("trace_id", sc.TraceID().String()))
		}
		return resp, err
	}
}
