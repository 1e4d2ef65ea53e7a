// Package redis wraps github.com/redis/go-redis/v9's UniversalClient,
// which dispatches to single-node, cluster, or sentinel mode behind one
// interface depending on Config.Mode.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/component-manager/fusionctl/component"
)

// Name is this component's registration name.
const Name = "redis"

// Component owns a redis.UniversalClient.
type Component struct {
	logger *zap.Logger
	cfg    Config
	client redis.UniversalClient
}

// New dials redis eagerly and pings it before returning, so that a
// misconfigured endpoint fails boot rather than surfacing on first use.
func New(ctx context.Context, cc *component.Context, raw json.RawMessage) (component.Component, error) {
	var cfg Config
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("redis: invalid config: %w", err)
		}
	}
	cfg.applyDefaults()

	switch strings.ToLower(cfg.Mode) {
	case "single", "cluster", "sentinel":
	default:
		return nil, fmt.Errorf("redis: unknown mode %q", cfg.Mode)
	}
	if cfg.Mode == "sentinel" && cfg.SentinelMaster == "" {
		return nil, fmt.Errorf("redis: sentinel mode requires sentinel_master")
	}

	c := &Component{logger: cc.Logger(Name), cfg: cfg}
	c.client = redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        cfg.Addresses,
		DB:           cfg.DB,
		Username:     cfg.Username,
		Password:     cfg.Password,
		MasterName:   cfg.SentinelMaster,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,

		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.client.Ping(pingCtx).Err(); err != nil {
		_ = c.client.Close()
		return nil, fmt.Errorf("redis: ping failed: %w", err)
	}

	c.logger.Info("redis component started", zap.String("mode", cfg.Mode), zap.Strings("addrs", cfg.Addresses))
	return c, nil
}

// Name implements component.Component.
func (c *Component) Name() string { return Name }

// Teardown implements component.TeardownHook.
func (c *Component) Teardown(ctx context.Context) error {
	_ = ctx
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.logger.Info("redis component stopped")
	return err
}

// HealthCheck implements component.HealthHook.
func (c *Component) HealthCheck(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("redis: client not initialized")
	}
	return c.client.Ping(ctx).Err()
}

// Client returns the underlying redis.UniversalClient.
func (c *Component) Client() redis.UniversalClient { return c.client }
