package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/component-manager/fusionctl/engine"
)

func TestAddRejectsDuplicateName(t *testing.T) {
	pool := engine.NewPool(engine.PoolConfig{})
	s := New(pool)

	tp := engine.NewTaskProcessor("fs-task-processor", 2, pool)
	require.NoError(t, s.Add("fs-task-processor", tp))

	other := engine.NewTaskProcessor("fs-task-processor", 2, pool)
	err := s.Add("fs-task-processor", other)
	require.Error(t, err)
}

func TestGetMapReturnsIndependentCopy(t *testing.T) {
	pool := engine.NewPool(engine.PoolConfig{})
	s := New(pool)
	tp := engine.NewTaskProcessor("main", 2, pool)
	require.NoError(t, s.Add("main", tp))

	snapshot := s.GetMap()
	require.Len(t, snapshot, 1)
	require.Same(t, tp, snapshot["main"])

	delete(snapshot, "main")
	require.Len(t, s.GetMap(), 1, "mutating the snapshot must not affect the storage")
}

func TestGetPoolReturnsHandleUntilReset(t *testing.T) {
	pool := engine.NewPool(engine.PoolConfig{})
	s := New(pool)
	require.Same(t, pool, s.GetPool())

	s.Reset()
	require.Nil(t, s.GetPool())
}

func TestResetDrainsAndReleasesPool(t *testing.T) {
	pool := engine.NewPool(engine.PoolConfig{})
	s := New(pool)

	tp := engine.NewTaskProcessor("main", 2, pool)
	require.NoError(t, s.Add("main", tp))

	release := make(chan struct{})
	err := tp.Schedule(context.Background(), false, func(ctx context.Context) {
		<-release
	})
	require.NoError(t, err)

	resetDone := make(chan struct{})
	go func() {
		s.Reset()
		close(resetDone)
	}()

	select {
	case <-resetDone:
		t.Fatal("Reset returned before the live task drained")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)

	select {
	case <-resetDone:
	case <-time.After(time.Second):
		t.Fatal("Reset never returned after the live task finished")
	}

	require.Nil(t, s.GetPool())
	require.Empty(t, s.GetMap())
}

func TestResetIsIdempotent(t *testing.T) {
	pool := engine.NewPool(engine.PoolConfig{})
	s := New(pool)
	tp := engine.NewTaskProcessor("main", 1, pool)
	require.NoError(t, s.Add("main", tp))

	s.Reset()
	require.NotPanics(t, func() { s.Reset() })
}
