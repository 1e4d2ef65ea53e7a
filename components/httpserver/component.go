// Package httpserver hosts a chi-based HTTP server wired with
// OpenTelemetry span extraction (otelchi) and structured access
// logging through the component-scoped child logger.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/component-manager/fusionctl/component"
)

// Name is this component's registration name.
const Name = "http_server"

// Component owns the chi router and the *http.Server listening for it.
type Component struct {
	cfg    Config
	cc     *component.Context
	logger *zap.Logger

	mu      sync.Mutex
	router  chi.Router
	server  *http.Server
	extras  []RouteRegisterFunc
	started bool
}

// AddRouteRegistrar registers fn directly against this instance,
// ahead of the globally-registered registrars from RegisterRoutes.
// Registrars added here are mounted only while New sets up routes, and
// New marks the server started before it returns, so a call made on
// the returned component (from a ReadyHook included) returns an error.
func (hc *Component) AddRouteRegistrar(fn RouteRegisterFunc) error {
	if fn == nil {
		return nil
	}
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if hc.started {
		return fmt.Errorf("http_server: cannot register route, server already started")
	}
	hc.extras = append(hc.extras, fn)
	return nil
}

// Router returns the underlying chi router.
func (hc *Component) Router() chi.Router { return hc.router }

// Name implements component.Component.
func (hc *Component) Name() string { return Name }

// New builds and starts the HTTP server. Listening happens on a
// background goroutine; New itself returns once the handler chain and
// routes are set up.
func New(ctx context.Context, cc *component.Context, raw json.RawMessage) (component.Component, error) {
	var cfg Config
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("http_server: invalid config: %w", err)
		}
	}
	cfg.applyDefaults()

	hc := &Component{cfg: cfg, cc: cc, logger: cc.Logger(Name)}
	hc.router = chi.NewRouter()
	hc.setupMiddlewares()

	if cfg.EnableHealth {
		hc.router.Get("/healthz", hc.healthHandler)
	}
	if err := hc.registerAllRoutes(); err != nil {
		return nil, err
	}

	hc.server = &http.Server{
		Addr:         cfg.Address,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		Handler:      hc.router,
	}

	go func() {
		hc.logger.Info("http server listening", zap.String("address", cfg.Address))
		if err := hc.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			hc.logger.Error("http server error", zap.Error(err))
		}
	}()

	hc.mu.Lock()
	hc.started = true
	hc.mu.Unlock()

	_ = ctx
	return hc, nil
}

// Teardown implements component.TeardownHook: gracefully shuts down
// the HTTP server within cfg.GracefulTimeout.
func (hc *Component) Teardown(ctx context.Context) error {
	hc.mu.Lock()
	started := hc.started
	hc.mu.Unlock()
	if !started {
		return nil
	}

	stopCtx, cancel := context.WithTimeout(ctx, hc.cfg.GracefulTimeout)
	defer cancel()
	if err := hc.server.Shutdown(stopCtx); err != nil {
		return fmt.Errorf("http_server: graceful shutdown failed: %w", err)
	}
	hc.logger.Info("http server stopped")
	return nil
}

func (hc *Component) healthHandler(w http.ResponseWriter, r *http.Request) {
	for _, name := range hc.cfg.HealthCheckComponents {
		comp, err := hc.cc.FindComponent(r.Context(), name)
		if err != nil {
			hc.logger.Error("healthz: dependency unavailable", zap.String("component", name), zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("unavailable: " + name))
			return
		}
		checker, ok := comp.(component.HealthHook)
		if !ok {
			hc.logger.Error("healthz: dependency has no health check", zap.String("component", name))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("no health check: " + name))
			return
		}
		if err := checker.HealthCheck(r.Context()); err != nil {
			hc.logger.Error("healthz: dependency unhealthy", zap.String("component", name), zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("unhealthy: " + name))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (hc *Component) setupMiddlewares() {
	hc.router.Use(middleware.RealIP)
	hc.router.Use(middleware.Recoverer)
	hc.router.Use(middleware.Timeout(60 * time.Second))
	hc.router.Use(otelchi.Middleware(hc.cfg.ServiceName))

	hc.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
				w.Header().Set("traceparent", fmt.Sprintf("00-%s-%s-01", sc.TraceID().String(), sc.SpanID().String()))
			}

			next.ServeHTTP(sw, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote", r.RemoteAddr),
				zap.Int("status", sw.status),
				zap.Duration("dur", time.Since(start)),
			}
			if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
				fields = append(fields, zap.String("trace_id", sc.TraceID().String()), zap.String("span_id", sc.SpanID().String()))
			}
			hc.logger.Info("http access", fields...)
		})
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (hc *Component) registerAllRoutes() error {
	hc.mu.Lock()
	registrars := append(snapshotRegistrars(), hc.extras...)
	hc.mu.Unlock()

	for _, fn := range registrars {
		if err := fn(hc.router, hc.cc); err != nil {
			return fmt.Errorf("http_server: route registration failed: %w", err)
		}
	}
	return nil
}
