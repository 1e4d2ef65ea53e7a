// Package postgresgorm hosts one or more gorm.io/gorm PostgreSQL
// connections, with optional .sql migration execution and TimescaleDB
// hypertable provisioning per data source.
package postgresgorm

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"go.uber.org/zap"

	"github.com/component-manager/fusionctl/component"
)

// Name is this component's registration name.
const Name = "postgres_gorm"

// Component owns one *gorm.DB per configured data source.
type Component struct {
	logger *zap.Logger
	dbs    map[string]*gorm.DB
	mutex  sync.RWMutex
}

// New opens a gorm.DB per data source using the PostgreSQL driver, runs
// any configured .sql migrations, and provisions TimescaleDB extensions
// where requested, before returning.
func New(ctx context.Context, cc *component.Context, raw json.RawMessage) (component.Component, error) {
	var cfg Config
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("postgres_gorm: invalid config: %w", err)
		}
	}
	if len(cfg.DataSources) == 0 {
		return nil, fmt.Errorf("postgres_gorm: no data_sources configured")
	}

	c := &Component{
		logger: cc.Logger(Name),
		dbs:    make(map[string]*gorm.DB, len(cfg.DataSources)),
	}
	gormLog := newGormLogger(c.logger.Sugar(), &cfg)

	for name, ds := range cfg.DataSources {
		if ds == nil {
			c.closeAll()
			return nil, fmt.Errorf("postgres_gorm: datasource %s config is nil", name)
		}
		dsn, err := buildDSN(ds)
		if err != nil {
			c.closeAll()
			return nil, fmt.Errorf("postgres_gorm: build dsn for %s: %w", name, err)
		}

		gormDB, err := gorm.Open(gormpg.Open(dsn), &gorm.Config{
			Logger:                 gormLog,
			SkipDefaultTransaction: ds.SkipDefaultTransaction,
			PrepareStmt:            ds.PrepareStmt,
		})
		if err != nil {
			c.closeAll()
			return nil, fmt.Errorf("postgres_gorm: open %s: %w", name, err)
		}

		sqlDB, err := gormDB.DB()
		if err != nil {
			c.closeAll()
			return nil, fmt.Errorf("postgres_gorm: underlying sql.DB for %s: %w", name, err)
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
				return nil, fmt.Errorf("postgres_gorm: ping %s: %w", name, err)
			}
		}

		if ds.MigrateEnabled {
			if strings.TrimSpace(ds.MigrateDir) == "" {
				_ = sqlDB.Close()
				c.closeAll()
				return nil, fmt.Errorf("postgres_gorm: datasource %s migrate_enabled but migrate_dir empty", name)
			}
			migStart := time.Now()
			c.logger.Info("running migrations", zap.String("datasource", name), zap.String("dir", ds.MigrateDir))
			if err := runMigrations(ctx, sqlDB, ds.MigrateDir); err != nil {
				_ = sqlDB.Close()
				c.closeAll()
				return nil, fmt.Errorf("postgres_gorm: datasource %s migrations failed: %w", name, err)
			}
			c.logger.Info("migrations complete", zap.String("datasource", name), zap.Duration("took", time.Since(migStart)))
		}

		if ds.EnableTimescale {
			if err := ensureTimescaleExtension(ctx, sqlDB, ds.TimescaleSchema); err != nil {
				_ = sqlDB.Close()
				c.closeAll()
				return nil, fmt.Errorf("postgres_gorm: enable timescale for %s: %w", name, err)
			}
			c.logger.Info("timescaledb extension ensured", zap.String("datasource", name))
		}

		c.dbs[name] = gormDB
		c.logger.Info("gorm datasource ready", zap.String("datasource", name))
	}

	c.logger.Info("postgres_gorm component started", zap.Strings("data_sources", c.listNames()))
	return c, nil
}

// Name implements component.Component.
func (c *Component) Name() string { return Name }

// Teardown implements component.TeardownHook.
func (c *Component) Teardown(ctx context.Context) error {
	_ = ctx
	c.closeAll()
	c.logger.Info("postgres_gorm component stopped")
	return nil
}

// HealthCheck implements component.HealthHook.
func (c *Component) HealthCheck(ctx context.Context) error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	for name, gdb := range c.dbs {
		sqlDB, err := gdb.DB()
		if err != nil {
			return fmt.Errorf("postgres_gorm: datasource %s sql.DB: %w", name, err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres_gorm: datasource %s ping failed: %w", name, err)
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
		return nil, fmt.Errorf("postgres_gorm: datasource %s not found", name)
	}
	return db, nil
}

// SQLDB returns the named data source's underlying *sql.DB, for callers
// that need raw SQL (e.g. EnsureHypertable's caller) rather than gorm.
func (c *Component) SQLDB(name string) (*sql.DB, error) {
	g, err := c.DB(name)
	if err != nil {
		return nil, err
	}
	sqlDB, err := g.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres_gorm: sql.DB for %s: %w", name, err)
	}
	return sqlDB, nil
}

// EnsureHypertable converts table into a TimescaleDB hypertable keyed on
// timeColumn. chunkInterval (e.g. "1 day") may be empty to let Timescale
// pick its own default.
func (c *Component) EnsureHypertable(ctx context.Context, dsName, table, timeColumn, chunkInterval string) error {
	db, err := c.SQLDB(dsName)
	if err != nil {
		return err
	}
	if table == "" || timeColumn == "" {
		return fmt.Errorf("postgres_gorm: table and timeColumn required")
	}
	var stmt string
	if strings.TrimSpace(chunkInterval) != "" {
		stmt = fmt.Sprintf("SELECT create_hypertable('%s','%s', if_not_exists => TRUE, chunk_time_interval => INTERVAL '%s');", table, timeColumn, chunkInterval)
	} else {
		stmt = fmt.Sprintf("SELECT create_hypertable('%s','%s', if_not_exists => TRUE);", table, timeColumn)
	}
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("postgres_gorm: create_hypertable table=%s: %w", table, err)
	}
	c.logger.Info("hypertable ensured", zap.String("table", table), zap.String("time_column", timeColumn))
	return nil
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
		port = 5432
	}

	base := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d", ds.Host, ds.User, ds.Password, ds.Database, port)
	if len(ds.Params) == 0 {
		return base, nil
	}
	extras := make([]string, 0, len(ds.Params))
	for k, v := range ds.Params {
		extras = append(extras, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(extras)
	return base + " " + strings.Join(extras, " "), nil
}

// runMigrations executes every .sql file in dir, in lexical order,
// splitting each file's statements on ";". Non-recursive.
func runMigrations(ctx context.Context, db *sql.DB, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}
		for _, stmt := range strings.Split(string(b), ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("exec %s: %w", f, err)
			}
		}
	}
	return nil
}

func ensureTimescaleExtension(ctx context.Context, db *sql.DB, schema string) error {
	q := "CREATE EXTENSION IF NOT EXISTS timescaledb"
	if strings.TrimSpace(schema) != "" {
		q += " SCHEMA " + schema
	}
	if _, err := db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create timescaledb extension: %w", err)
	}
	return nil
}

// gormLogger adapts gorm.io/gorm/logger.Interface onto a
// *zap.SugaredLogger; see components/mysqlgorm for the identical
// rationale (gorm's Printf-style call sites fit Sugar, not *zap.Logger).
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
