package grpcserver

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

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

func TestNewServesHealthCheck(t *testing.T) {
	addr := freePort(t)
	cfg := Config{Address: addr, EnableHealth: true}
	raw, err := json.Marshal(cfg)
	require.NoError(t, err)

	cc := component.NewContext(zap.NewNop())
	comp, err := New(context.Background(), cc, raw)
	require.NoError(t, err)
	gc := comp.(*Component)
	defer gc.Teardown(context.Background())

	time.Sleep(50 * time.Millisecond)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestHealthCheckFailsBeforeStart(t *testing.T) {
	gc := &Component{}
	require.Error(t, gc.HealthCheck(context.Background()))
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()
	require.Equal(t, ":50051", cfg.Address)
	require.Equal(t, 4*1024*1024, cfg.MaxRecvMsgSize)
	require.Equal(t, 10*time.Second, cfg.GracefulTimeout)
}
