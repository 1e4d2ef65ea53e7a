// Package mysql hosts one or more database/sql connection pools behind
// the github.com/go-sql-driver/mysql driver, keyed by data source name.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/component-manager/fusionctl/component"
)

// Name is this component's registration name.
const Name = "mysql"

// Component owns a set of named *sql.DB pools.
type Component struct {
	logger    *zap.Logger
	databases map[string]*sql.DB
	mutex     sync.RWMutex
}

// New opens one *sql.DB per configured data source. A data source
// missing ping_on_start is opened lazily by database/sql itself; one
// with it set is verified reachable before New returns.
func New(ctx context.Context, cc *component.Context, raw json.RawMessage) (component.Component, error) {
	var cfg Config
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("mysql: invalid config: %w", err)
		}
	}
	if len(cfg.DataSources) == 0 {
		return nil, fmt.Errorf("mysql: no data_sources configured")
	}

	c := &Component{
		logger:    cc.Logger(Name),
		databases: make(map[string]*sql.DB, len(cfg.DataSources)),
	}

	for name, ds := range cfg.DataSources {
		if ds == nil {
			c.closeAll()
			return nil, fmt.Errorf("mysql: datasource %s config is nil", name)
		}
		dsn, err := buildDSN(ds)
		if err != nil {
			c.closeAll()
			return nil, fmt.Errorf("mysql: build dsn for %s: %w", name, err)
		}

		db, err := sql.Open("mysql", dsn)
		if err != nil {
			c.closeAll()
			return nil, fmt.Errorf("mysql: open %s: %w", name, err)
		}

		if ds.MaxOpenConns > 0 {
			db.SetMaxOpenConns(ds.MaxOpenConns)
		} else {
			db.SetMaxOpenConns(50)
		}
		if ds.MaxIdleConns > 0 {
			db.SetMaxIdleConns(ds.MaxIdleConns)
		} else {
			db.SetMaxIdleConns(10)
		}
		if ds.ConnMaxLife > 0 {
			db.SetConnMaxLifetime(ds.ConnMaxLife)
		} else {
			db.SetConnMaxLifetime(60 * time.Minute)
		}
		if ds.ConnMaxIdle > 0 {
			db.SetConnMaxIdleTime(ds.ConnMaxIdle)
		}

		if ds.PingOnStart {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := db.PingContext(pingCtx)
			cancel()
			if err != nil {
				_ = db.Close()
				c.closeAll()
				return nil, fmt.Errorf("mysql: ping %s: %w", name, err)
			}
		}

		c.databases[name] = db
		c.logger.Info("mysql datasource ready", zap.String("datasource", name))
	}

	c.logger.Info("mysql component started", zap.Strings("data_sources", c.listNames()))
	return c, nil
}

// Name implements component.Component.
func (c *Component) Name() string { return Name }

// Teardown implements component.TeardownHook.
func (c *Component) Teardown(ctx context.Context) error {
	_ = ctx
	c.closeAll()
	c.logger.Info("mysql component stopped")
	return nil
}

// HealthCheck implements component.HealthHook: every data source must
// answer a ping.
func (c *Component) HealthCheck(ctx context.Context) error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	for name, db := range c.databases {
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("mysql: datasource %s ping failed: %w", name, err)
		}
	}
	return nil
}

// DB returns the named pool.
func (c *Component) DB(name string) (*sql.DB, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	db, ok := c.databases[name]
	if !ok {
		return nil, fmt.Errorf("mysql: datasource %s not found", name)
	}
	return db, nil
}

func (c *Component) closeAll() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for name, db := range c.databases {
		if db != nil {
			_ = db.Close()
		}
		delete(c.databases, name)
	}
}

func (c *Component) listNames() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	names := make([]string, 0, len(c.databases))
	for k := range c.databases {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func buildDSN(ds *DataSourceConfig) (string, error) {
	if strings.TrimSpace(ds.DSN) != "" {
		return ds.DSN, nil
	}
	if ds.Host == "" || ds.User == "" || ds.Database == "" {
		return "", fmt.Errorf("host, user, database required when dsn not provided")
	}
	port := ds.Port
	if port == 0 {
		port = 3306
	}

	params := url.Values{}
	params.Set("parseTime", "true")
	params.Set("charset", "utf8mb4")
	params.Set("loc", "Local")
	for k, v := range ds.Params {
		params.Set(k, v)
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		ds.User, ds.Password, ds.Host, port, ds.Database, params.Encode()), nil
}
