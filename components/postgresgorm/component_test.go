package postgresgorm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/component-manager/fusionctl/component"
)

func TestNewRejectsEmptyDataSources(t *testing.T) {
	cc := component.NewContext(zap.NewNop())
	_, err := New(context.Background(), cc, json.RawMessage(`{}`))
	require.Error(t, err)
}

func TestBuildDSNFromPieces(t *testing.T) {
	ds := &DataSourceConfig{Host: "db.internal", User: "svc", Password: "pw", Database: "app"}
	dsn, err := buildDSN(ds)
	require.NoError(t, err)
	require.Equal(t, "host=db.internal user=svc password=pw dbname=app port=5432", dsn)
}

func TestBuildDSNAppendsSortedExtraParams(t *testing.T) {
	ds := &DataSourceConfig{Host: "h", User: "u", Database: "d", Params: map[string]string{"sslmode": "disable", "timezone": "UTC"}}
	dsn, err := buildDSN(ds)
	require.NoError(t, err)
	require.Contains(t, dsn, "sslmode=disable timezone=UTC")
}

func TestBuildDSNRequiresHostUserDatabase(t *testing.T) {
	_, err := buildDSN(&DataSourceConfig{Host: "h"})
	require.Error(t, err)
}

func TestGormLoggerRespectsLevel(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sugar := zap.New(core).Sugar()
	l := newGormLogger(sugar, &Config{LogLevel: "error"})

	l.Warn(context.Background(), "should be suppressed")
	require.Equal(t, 0, logs.Len())

	l.Error(context.Background(), "boom: %v", "disk full")
	require.Equal(t, 1, logs.Len())
}

func TestDBUnknownDataSourceErrors(t *testing.T) {
	c := &Component{logger: zap.NewNop()}
	_, err := c.DB("missing")
	require.Error(t, err)
}
