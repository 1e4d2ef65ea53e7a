package mysqlgorm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm/logger"

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
	require.Contains(t, dsn, "svc:pw@tcp(db.internal:3306)/app")
}

func TestGormLoggerRespectsLevel(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sugar := zap.New(core).Sugar()
	l := newGormLogger(sugar, &Config{LogLevel: "warn"})

	l.Info(context.Background(), "should be suppressed")
	require.Equal(t, 0, logs.Len())

	l.Warn(context.Background(), "heads up: %s", "slow query")
	require.Equal(t, 1, logs.Len())
}

func TestGormLoggerLogModeReturnsCopy(t *testing.T) {
	sugar := zap.NewNop().Sugar()
	base := newGormLogger(sugar, &Config{LogLevel: "error"})
	derived := base.LogMode(logger.Info)
	require.NotSame(t, base, derived)
}

func TestDBUnknownDataSourceErrors(t *testing.T) {
	c := &Component{logger: zap.NewNop()}
	_, err := c.DB("missing")
	require.Error(t, err)
}
