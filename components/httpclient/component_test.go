package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/component-manager/fusionctl/component"
)

func newTestContext(t *testing.T) *component.Context {
	t.Helper()
	return component.NewContext(zap.NewNop())
}

func TestDefaultClientFallsBackToNameDefault(t *testing.T) {
	cc := newTestContext(t)
	comp, err := New(context.Background(), cc, nil)
	require.NoError(t, err)

	hc := comp.(*Component)
	cli, err := hc.Default()
	require.NoError(t, err)
	require.NotNil(t, cli)
	require.NoError(t, hc.Teardown(context.Background()))
}

func TestClientGetDecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	cfg := Config{Clients: map[string]*ClientConfig{"default": {BaseURL: srv.URL}}}
	raw, err := json.Marshal(cfg)
	require.NoError(t, err)

	cc := newTestContext(t)
	comp, err := New(context.Background(), cc, raw)
	require.NoError(t, err)
	hc := comp.(*Component)

	cli, err := hc.Default()
	require.NoError(t, err)

	var out struct{ OK bool `json:"ok"` }
	_, err = cli.Get(context.Background(), "/anything", nil, nil, &out)
	require.NoError(t, err)
	require.True(t, out.OK)
}

func TestUnknownClientNameErrors(t *testing.T) {
	cc := newTestContext(t)
	comp, err := New(context.Background(), cc, nil)
	require.NoError(t, err)
	hc := comp.(*Component)

	_, err = hc.Client("nope")
	require.Error(t, err)
}
