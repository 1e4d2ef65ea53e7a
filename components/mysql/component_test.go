package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/component-manager/fusionctl/component"
)

func TestNewRejectsEmptyDataSources(t *testing.T) {
	cc := component.NewContext(zap.NewNop())
	_, err := New(context.Background(), cc, json.RawMessage(`{}`))
	require.Error(t, err)
}

func TestBuildDSNFromPieces(t *testing.T) {
	ds := &DataSourceConfig{Host: "db.internal", User: "svc", Password: "pw", Database: "app", Port: 3307}
	dsn, err := buildDSN(ds)
	require.NoError(t, err)
	require.Contains(t, dsn, "svc:pw@tcp(db.internal:3307)/app")
	require.Contains(t, dsn, "parseTime=true")
}

func TestBuildDSNPrefersExplicitDSN(t *testing.T) {
	ds := &DataSourceConfig{DSN: "svc:pw@tcp(127.0.0.1:3306)/app"}
	dsn, err := buildDSN(ds)
	require.NoError(t, err)
	require.Equal(t, ds.DSN, dsn)
}

func TestBuildDSNRequiresHostUserDatabase(t *testing.T) {
	_, err := buildDSN(&DataSourceConfig{Host: "db.internal"})
	require.Error(t, err)
}

func TestDBUnknownDataSourceErrors(t *testing.T) {
	c := &Component{logger: zap.NewNop(), databases: map[string]*sql.DB{}}
	_, err := c.DB("missing")
	require.Error(t, err)
}
