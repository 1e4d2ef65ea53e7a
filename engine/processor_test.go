package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScheduleRunsTask(t *testing.T) {
	p := NewPool(PoolConfig{})
	tp := NewTaskProcessor("tp", 2, p)
	defer tp.Close()

	var ran atomic.Bool
	done := make(chan struct{})
	err := tp.Schedule(context.Background(), false, func(ctx context.Context) {
		ran.Store(true)
		close(done)
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
	require.True(t, ran.Load())
}

func TestScheduleRejectsNonCriticalAfterShutdown(t *testing.T) {
	p := NewPool(PoolConfig{})
	tp := NewTaskProcessor("tp", 2, p)
	defer tp.Close()

	tp.InitiateShutdown()

	err := tp.Schedule(context.Background(), false, func(ctx context.Context) {})
	require.ErrorIs(t, err, ErrProcessorShuttingDown)
}

func TestScheduleAcceptsCriticalAfterShutdown(t *testing.T) {
	p := NewPool(PoolConfig{})
	tp := NewTaskProcessor("tp", 2, p)
	defer tp.Close()

	tp.InitiateShutdown()

	done := make(chan struct{})
	err := tp.Schedule(context.Background(), true, func(ctx context.Context) {
		close(done)
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("critical task never ran despite shutdown")
	}
}

// TestScheduleDoesNotSerializeOnWorkerCount exercises why workers is
// advisory: a single-worker processor must still run a task that suspends
// (e.g. inside component.Context.FindComponent) concurrently with other
// tasks, rather than holding a slot across the suspension. With 5 tasks
// scheduled on a 1-worker processor and each holding a release gate until
// every one of them has started, a bounded slot of 1 would deadlock; here
// they all observe concurrency above 1.
func TestScheduleDoesNotSerializeOnWorkerCount(t *testing.T) {
	p := NewPool(PoolConfig{})
	tp := NewTaskProcessor("tp", 1, p)
	defer tp.Close()

	const n = 5
	var started sync.WaitGroup
	started.Add(n)
	release := make(chan struct{})
	var concurrent atomic.Int32
	var maxSeen atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		err := tp.Schedule(context.Background(), false, func(ctx context.Context) {
			defer wg.Done()
			cur := concurrent.Add(1)
			if cur > maxSeen.Load() {
				maxSeen.Store(cur)
			}
			started.Done()
			<-release
			concurrent.Add(-1)
		})
		require.NoError(t, err)
	}

	done := make(chan struct{})
	go func() {
		started.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not every task started; workers=1 is still bounding concurrency")
	}
	close(release)
	wg.Wait()

	require.Equal(t, int32(n), maxSeen.Load())
}

func TestScheduleTracksLiveCoroutinesOnPool(t *testing.T) {
	p := NewPool(PoolConfig{})
	tp := NewTaskProcessor("tp", 2, p)
	defer tp.Close()

	release := make(chan struct{})
	err := tp.Schedule(context.Background(), false, func(ctx context.Context) {
		<-release
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return p.LiveCoroutines() == 1
	}, time.Second, 5*time.Millisecond)

	close(release)

	require.Eventually(t, func() bool {
		return p.LiveCoroutines() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestCloseWaitsForOutstandingTasks(t *testing.T) {
	p := NewPool(PoolConfig{})
	tp := NewTaskProcessor("tp", 2, p)

	var ran atomic.Bool
	release := make(chan struct{})
	err := tp.Schedule(context.Background(), false, func(ctx context.Context) {
		<-release
		ran.Store(true)
	})
	require.NoError(t, err)

	closeDone := make(chan struct{})
	go func() {
		tp.Close()
		close(closeDone)
	}()

	select {
	case <-closeDone:
		t.Fatal("Close returned before the scheduled task finished")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)

	select {
	case <-closeDone:
	case <-time.After(time.Second):
		t.Fatal("Close never returned after task finished")
	}
	require.True(t, ran.Load())
}
