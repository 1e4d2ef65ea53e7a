package redis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyDefaultsSingleMode(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()
	require.Equal(t, "single", cfg.Mode)
	require.Equal(t, []string{"127.0.0.1:6379"}, cfg.Addresses)
	require.Equal(t, 20, cfg.PoolSize)
}

func TestApplyDefaultsSentinelAddresses(t *testing.T) {
	cfg := Config{Mode: "sentinel"}
	cfg.applyDefaults()
	require.Equal(t, []string{"127.0.0.1:26379"}, cfg.Addresses)
}

func TestApplyDefaultsClampsMinIdleToHalfPoolSize(t *testing.T) {
	cfg := Config{PoolSize: 10, MinIdleConns: 50}
	cfg.applyDefaults()
	require.Equal(t, 5, cfg.MinIdleConns)
}

func TestApplyDefaultsRejectsNegativeDB(t *testing.T) {
	cfg := Config{DB: -3}
	cfg.applyDefaults()
	require.Equal(t, 0, cfg.DB)
}
