package prometheus

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

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

func TestNewServesMetricsEndpoint(t *testing.T) {
	addr := freePort(t)
	cfg := Config{Address: addr}
	raw, err := json.Marshal(cfg)
	require.NoError(t, err)

	cc := component.NewContext(zap.NewNop())
	comp, err := New(context.Background(), cc, raw)
	require.NoError(t, err)
	pc := comp.(*Component)
	defer pc.Teardown(context.Background())

	time.Sleep(50 * time.Millisecond)
	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFqNameNamespaceAndSubsystem(t *testing.T) {
	c := &Component{namespace: "app", subsystem: "api"}
	require.Equal(t, "app_api_requests", c.fqName("requests"))
}

func TestFqNameNoPrefix(t *testing.T) {
	c := &Component{}
	require.Equal(t, "requests", c.fqName("requests"))
}
