package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPoolStartsWithOneRefAndZeroLiveCoroutines(t *testing.T) {
	p := NewPool(PoolConfig{InitialCoroPoolSize: 4, EventThreadsCount: 2})
	require.Equal(t, int32(1), p.RefCount())
	require.Equal(t, int64(0), p.LiveCoroutines())
	require.Equal(t, 4, p.Config().InitialCoroPoolSize)
	require.Equal(t, 2, p.Config().EventThreadsCount)
}

func TestPoolRetainAndRelease(t *testing.T) {
	p := NewPool(PoolConfig{})
	p.Retain()
	p.Retain()
	require.Equal(t, int32(3), p.RefCount())

	p.Release()
	require.Equal(t, int32(2), p.RefCount())
	p.Release()
	require.Equal(t, int32(1), p.RefCount())
}

func TestPoolStringDoesNotPanic(t *testing.T) {
	p := NewPool(PoolConfig{InitialCoroPoolSize: 1})
	require.NotEmpty(t, p.String())
}

func TestNewTaskProcessorRetainsPool(t *testing.T) {
	p := NewPool(PoolConfig{})
	tp := NewTaskProcessor("fs-task-processor", 2, p)
	require.Equal(t, int32(2), p.RefCount())
	tp.Close()
	require.Equal(t, int32(1), p.RefCount())
}
