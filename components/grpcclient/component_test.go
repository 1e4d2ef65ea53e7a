package grpcclient

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/component-manager/fusionctl/component"
)

func freeHostPort(t *testing.T) (string, int) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().(*net.TCPAddr)
	require.NoError(t, l.Close())
	return "127.0.0.1", addr.Port
}

func startTestServer(t *testing.T, host string, port int) *grpc.Server {
	t.Helper()
	lis, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	require.NoError(t, err)
	srv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)
	return srv
}

func TestNewConnectsEagerlyByDefault(t *testing.T) {
	host, port := freeHostPort(t)
	startTestServer(t, host, port)

	cfg := Config{Clients: map[string]*ClientConfig{
		"svc": {Host: host, Port: port},
	}}
	raw, err := json.Marshal(cfg)
	require.NoError(t, err)

	cc := component.NewContext(zap.NewNop())
	comp, err := New(context.Background(), cc, raw)
	require.NoError(t, err)
	gcc := comp.(*Component)
	defer gcc.Teardown(context.Background())

	conn, err := gcc.Client("svc")
	require.NoError(t, err)
	require.NotNil(t, conn)
}

func TestClientDialsLazilyWhenConnectOnStartFalse(t *testing.T) {
	host, port := freeHostPort(t)
	startTestServer(t, host, port)

	disabled := false
	cfg := Config{Clients: map[string]*ClientConfig{
		"svc": {Host: host, Port: port, ConnectOnStart: &disabled},
	}}
	raw, err := json.Marshal(cfg)
	require.NoError(t, err)

	cc := component.NewContext(zap.NewNop())
	comp, err := New(context.Background(), cc, raw)
	require.NoError(t, err)
	gcc := comp.(*Component)
	defer gcc.Teardown(context.Background())

	require.Empty(t, gcc.clients)

	conn, err := gcc.Client("svc")
	require.NoError(t, err)
	require.NotNil(t, conn)
}

func TestClientUnknownNameErrors(t *testing.T) {
	cc := component.NewContext(zap.NewNop())
	comp, err := New(context.Background(), cc, nil)
	require.NoError(t, err)
	gcc := comp.(*Component)
	defer gcc.Teardown(context.Background())

	_, err = gcc.Client("missing")
	require.Error(t, err)
}

func TestHealthCheckPassesForReadyClients(t *testing.T) {
	host, port := freeHostPort(t)
	startTestServer(t, host, port)

	cfg := Config{Clients: map[string]*ClientConfig{
		"svc": {Host: host, Port: port},
	}}
	raw, err := json.Marshal(cfg)
	require.NoError(t, err)

	cc := component.NewContext(zap.NewNop())
	comp, err := New(context.Background(), cc, raw)
	require.NoError(t, err)
	gcc := comp.(*Component)
	defer gcc.Teardown(context.Background())

	_, err = gcc.Client("svc")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return gcc.HealthCheck(context.Background()) == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestApplyDefaultsSetsTimeoutsAndMessageSizes(t *testing.T) {
	cfg := Config{Clients: map[string]*ClientConfig{
		"svc": {Host: "localhost", Port: 1},
	}}
	cfg.applyDefaults()
	require.Equal(t, 30*time.Second, cfg.DefaultTimeout)
	require.Equal(t, 60*time.Second, cfg.HealthCheckInterval)
	require.Equal(t, 4*1024*1024, cfg.Clients["svc"].MaxReceiveMessageLength)
	require.Equal(t, 4*1024*1024, cfg.Clients["svc"].MaxSendMessageLength)
	require.Equal(t, 30*time.Second, cfg.Clients["svc"].Timeout)
}

func TestConnectOnStartDefaultsTrue(t *testing.T) {
	cfg := &ClientConfig{}
	require.True(t, cfg.connectOnStart())

	f := false
	cfg.ConnectOnStart = &f
	require.False(t, cfg.connectOnStart())
}
