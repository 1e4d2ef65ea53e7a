// Package mysqlgorm hosts one or more gorm.io/gorm MySQL connections,
// each wrapping a database/sql pool the same way components/mysql does,
// plus a gorm/logger.Interface adapter onto the component's zap logger.
package mysqlgorm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	mysqlDriver "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"go.uber.org/zap"

	"github.com/component-manager/fusionctl/component"
)

// Name is this component's registration name.
const Name = "mysql_gorm"

// Component owns one *gorm.DB per configured data source.
type Component struct {
	logger *zap.Logger
	dbs    map[string]*gorm.DB
	mutex  sync.RWMutex
}

// New opens a gorm.DB per data source using the MySQL driver, applying
// the same connection-pool defaults as components/mysql.
func New(ctx context.Context, cc *component.Context, raw json.RawMessage) (component.Component, error) {
	var cfg Config
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("mysql_gorm: invalid config: %w", err)
		}
	}
	if len(cfg.DataSources) == 0 {
		return nil, fmt.Errorf("mysql_gorm: no data_sources configured")
	}

	c := &Component{
		logger: cc.Logger(Name),
		dbs:    make(map[string]*gorm.DB, len(cfg.DataSources)),
	}
	gormLog := newGormLogger(c.logger.Sugar(), &cfg)

	for name, ds := range cfg.DataSources {
		if ds == nil {
			c.closeAll()
			return nil, fmt.Errorf("mysql_gorm: datasource %s config is nil", name)
		}
		dsn, err := buildDSN(ds)
		if err != nil {
			c.closeAll()
			return nil, fmt.Errorf("mysql_gorm: build dsn for %s: %w", name, err)
		}

		gormDB, err := gorm.Open(mysqlDriver.New(mysqlDriver.Config{DSN: dsn}), &gorm.Config{
			Logger:                                   gormLog,
			SkipDefaultTransaction:                   ds.SkipDefaultTransaction,
			PrepareStmt:                               ds.PrepareStmt,
			DisableForeignKeyConstraintWhenMigrating: true,
		})
		if err != nil {
			c.closeAll()
			return nil, fmt.Errorf("mysql_gorm: open %s: %w", name, err)
		}

		sqlDB, err := gormDB.DB()
		if err != nil {
			c.closeAll()
			return nil, fmt.Errorf("mysql_gorm: underlying sql.DB for %s: %w", name, err)
		}

		if ds.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(ds.MaxOpenConns)
		} else {
			sqlDB.SetMaxOpenConns(50)
		}
		if ds.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(ds.MaxIdleConns)
		} else {
			sqlDB.SetMaxIdleConns(10)
		}
		if ds.ConnMaxLife > 0 {
			sqlDB.SetConnMaxLifetime(ds.ConnMaxLife)
		} else {
			sqlDB.SetConnMaxLifetime(60 * time.Minute)
		}
		if ds.ConnMaxIdle > 0 {
			sqlDB.SetConnMaxIdleTime(ds.ConnMaxIdle)
		}

		if ds.PingOnStart {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := sqlDB.PingContext(pingCtx)
			cancel()
			if err != nil {
				_ = sqlDB.Close()
				c.closeAll()
				return nil, fmt.Errorf("mysql_gorm: ping %s: %w", name, err)
			}
		}

		c.dbs[name] = gormDB
		c.logger.Info("gorm datasource ready", zap.String("datasource", name))
	}

	c.logger.Info("mysql_gorm component started", zap.Strings("data_sources", c.listNames()))
	return c, nil
}

// Name implements component.Component.
func (c *Component) Name() string { return Name }

// Teardown implements component.TeardownHook.
func (c *Component) Teardown(ctx context.Context) error {
	_ = ctx
	c.closeAll()
	c.logger.Info("mysql_gorm component stopped")
	return nil
}

// HealthCheck implements component.HealthHook.
func (c *Component) HealthCheck(ctx context.Context) error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	for name, gdb := range c.dbs {
		sqlDB, err := gdb.DB()
		if err != nil {
			return fmt.Errorf("mysql_gorm: datasource %s sql.DB: %w", name, err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("mysql_gorm: datasource %s ping failed: %w", name, err)
		}
	}
	return nil
}

// DB returns the named gorm.DB handle.
func (c *Component) DB(name string) (*gorm.DB, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	db, ok := c.dbs[name]
	if !ok {
		return nil, fmt.Errorf("mysql_gorm: datasource %s not found", name)
	}
	return db, nil
}

func (c *Component) closeAll() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for name, gdb := range c.dbs {
		if gdb != nil {
			if sqlDB, err := gdb.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		delete(c.dbs, name)
	}
}

func (c *Component) listNames() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	names := make([]string, 0, len(c.dbs))
	for k := range c.dbs {
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
		return "", errors.New("host, user, database required when dsn not provided")
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
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s", ds.User, ds.Password, ds.Host, port, ds.Database, params.Encode()), nil
}

// gormLogger adapts gorm.io/gorm/logger.Interface onto a *zap.SugaredLogger,
// whose Infof/Warnf/Errorf fit the Printf-style (msg, ...data) calls gorm
// makes far more directly than zap's field-based *zap.Logger would.
type gormLogger struct {
	sugar         *zap.SugaredLogger
	logLevel      logger.LogLevel
	slowThreshold time.Duration
}

func newGormLogger(sugar *zap.SugaredLogger, cfg *Config) logger.Interface {
	lvl := logger.Info
	slow := 200 * time.Millisecond
	if cfg != nil {
		switch strings.ToLower(cfg.LogLevel) {
		case "silent":
			lvl = logger.Silent
		case "error":
			lvl = logger.Error
		case "warn", "warning":
			lvl = logger.Warn
		case "info", "debug":
			lvl = logger.Info
		}
		if cfg.SlowThreshold > 0 {
			slow = cfg.SlowThreshold
		}
	}
	return &gormLogger{sugar: sugar, logLevel: lvl, slowThreshold: slow}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	nl := *l
	nl.logLevel = level
	return &nl
}

func (l *gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Info {
		l.sugar.Infof("[gorm] "+msg, data...)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Warn {
		l.sugar.Warnf("[gorm] "+msg, data...)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Error {
		l.sugar.Errorf("[gorm] "+msg, data...)
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logLevel <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sqlStr, rows := fc()
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.logLevel >= logger.Error {
		l.sugar.Errorf("[gorm] error elapsed=%s rows=%d sql=%s err=%v", elapsed, rows, sqlStr, err)
		return
	}
	if l.slowThreshold > 0 && elapsed > l.slowThreshold && l.logLevel >= logger.Warn {
		l.sugar.Warnf("[gorm] slow elapsed=%s threshold=%s rows=%d sql=%s", elapsed, l.slowThreshold, rows, sqlStr)
		return
	}
	if l.logLevel >= logger.Info {
		l.sugar.Debugf("[gorm] elapsed=%s rows=%d sql=%s", elapsed, rows, sqlStr)
	}
}
