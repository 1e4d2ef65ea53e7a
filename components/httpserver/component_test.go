package httpserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/component-manager/fusionctl/component"
)

func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestHealthEndpointRespondsOK(t *testing.T) {
	addr := freePort(t)
	cfg := Config{Address: addr, EnableHealth: true, ServiceName: "test"}
	raw, err := json.Marshal(cfg)
	require.NoError(t, err)

	cc := component.NewContext(zap.NewNop())
	comp, err := New(context.Background(), cc, raw)
	require.NoError(t, err)
	hc := comp.(*Component)
	defer hc.Teardown(context.Background())

	time.Sleep(50 * time.Millisecond)
	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

type fakeHealthyComponent struct{ healthy bool }

func (f *fakeHealthyComponent) Name() string { return "fake_dep" }
func (f *fakeHealthyComponent) HealthCheck(ctx context.Context) error {
	if f.healthy {
		return nil
	}
	return context.DeadlineExceeded
}

func TestHealthEndpointAggregatesDependencyHealth(t *testing.T) {
	addr := freePort(t)
	cc := component.NewContext(zap.NewNop())
	_, err := cc.AddComponent(context.Background(), "fake_dep", func(ctx context.Context, cc *component.Context) (component.Component, error) {
		return &fakeHealthyComponent{healthy: true}, nil
	})
	require.NoError(t, err)

	cfg := Config{Address: addr, EnableHealth: true, ServiceName: "test", HealthCheckComponents: []string{"fake_dep"}}
	raw, err := json.Marshal(cfg)
	require.NoError(t, err)

	comp, err := New(context.Background(), cc, raw)
	require.NoError(t, err)
	hc := comp.(*Component)
	defer hc.Teardown(context.Background())

	time.Sleep(50 * time.Millisecond)
	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthEndpointFailsWhenDependencyMissing(t *testing.T) {
	addr := freePort(t)
	cc := component.NewContext(zap.NewNop())

	cfg := Config{Address: addr, EnableHealth: true, ServiceName: "test", HealthCheckComponents: []string{"nonexistent"}}
	raw, err := json.Marshal(cfg)
	require.NoError(t, err)

	comp, err := New(context.Background(), cc, raw)
	require.NoError(t, err)
	hc := comp.(*Component)
	defer hc.Teardown(context.Background())

	time.Sleep(50 * time.Millisecond)
	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestAddRouteRegistrarAfterStartFails(t *testing.T) {
	addr := freePort(t)
	cfg := Config{Address: addr}
	raw, err := json.Marshal(cfg)
	require.NoError(t, err)

	cc := component.NewContext(zap.NewNop())
	comp, err := New(context.Background(), cc, raw)
	require.NoError(t, err)
	hc := comp.(*Component)
	defer hc.Teardown(context.Background())

	err = hc.AddRouteRegistrar(func(r chi.Router, cc *component.Context) error { return nil })
	require.Error(t, err)
}
