package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunPeriodicRunsImmediatelyAndRepeats(t *testing.T) {
	s := New(nil)
	defer s.Close()

	var runs atomic.Int32
	_, err := s.RunPeriodic("tick", 10*time.Millisecond, func(context.Context) {
		runs.Add(1)
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestCancelStopsFurtherRuns(t *testing.T) {
	s := New(nil)
	defer s.Close()

	var runs atomic.Int32
	task, err := s.RunPeriodic("tick", 5*time.Millisecond, func(context.Context) {
		runs.Add(1)
	})
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, time.Second, time.Millisecond)

	task.Cancel()
	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load())

	// Second cancel is a no-op.
	task.Cancel()
	assert.Empty(t, s.Tasks())
}

func TestCancelWaitsForInFlightRun(t *testing.T) {
	s := New(nil)
	defer s.Close()

	started := make(chan struct{})
	var finished atomic.Bool
	task, err := s.RunOnce("slow", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
	})
	require.NoError(t, err)

	<-started
	task.Cancel()
	assert.True(t, finished.Load(), "Cancel returned before the task finished")
}

func TestAbortFromInsideTask(t *testing.T) {
	s := New(nil)
	defer s.Close()

	var self atomic.Pointer[Task]
	ready := make(chan struct{})
	aborted := make(chan struct{})
	task, err := s.RunPeriodic("tick", 5*time.Millisecond, func(ctx context.Context) {
		<-ready
		if ctx.Err() == nil {
			self.Load().Abort()
			close(aborted)
		}
	})
	require.NoError(t, err)
	self.Store(task)
	close(ready)

	select {
	case <-aborted:
	case <-time.After(time.Second):
		t.Fatal("Abort blocked inside the task")
	}
	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("task did not stop after Abort")
	}

	// The name was freed by Abort.
	_, err = s.RunOnce("tick", func(context.Context) {})
	assert.NoError(t, err)
}

func TestShutdownDoesNotWait(t *testing.T) {
	s := New(nil)

	release := make(chan struct{})
	_, err := s.RunOnce("slow", func(ctx context.Context) {
		<-ctx.Done()
		<-release
	})
	require.NoError(t, err)

	s.Shutdown()
	_, err = s.RunOnce("late", func(context.Context) {})
	assert.ErrorIs(t, err, ErrClosed)

	close(release)
	s.Wait()
}

func TestRunOnceRemovesItself(t *testing.T) {
	s := New(nil)
	defer s.Close()

	task, err := s.RunOnce("once", func(context.Context) {})
	require.NoError(t, err)

	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("task did not finish")
	}
	assert.Eventually(t, func() bool { return len(s.Tasks()) == 0 }, time.Second, time.Millisecond)

	// The name is free again.
	_, err = s.RunOnce("once", func(context.Context) {})
	assert.NoError(t, err)
}

func TestDuplicateNameRejected(t *testing.T) {
	s := New(nil)
	defer s.Close()

	_, err := s.RunOnce("loop", func(ctx context.Context) { <-ctx.Done() })
	require.NoError(t, err)

	_, err = s.RunOnce("loop", func(context.Context) {})
	assert.ErrorIs(t, err, ErrTaskExists)
	assert.Equal(t, []string{"loop"}, s.Tasks())
}

func TestCancelByName(t *testing.T) {
	s := New(nil)
	defer s.Close()

	_, err := s.RunOnce("loop", func(ctx context.Context) { <-ctx.Done() })
	require.NoError(t, err)

	assert.True(t, s.Cancel("loop"))
	assert.False(t, s.Cancel("loop"))
	assert.False(t, s.Cancel("unknown"))
}

func TestCloseCancelsAll(t *testing.T) {
	s := New(nil)

	var stopped atomic.Int32
	for _, name := range []string{"a", "b", "c"} {
		_, err := s.RunOnce(name, func(ctx context.Context) {
			<-ctx.Done()
			stopped.Add(1)
		})
		require.NoError(t, err)
	}

	s.Close()
	assert.Equal(t, int32(3), stopped.Load())

	_, err := s.RunOnce("late", func(context.Context) {})
	assert.ErrorIs(t, err, ErrClosed)

	// Idempotent.
	s.Close()
}

func TestInvalidInterval(t *testing.T) {
	s := New(nil)
	defer s.Close()

	_, err := s.RunPeriodic("bad", 0, func(context.Context) {})
	assert.ErrorIs(t, err, ErrInvalidInterval)
}
