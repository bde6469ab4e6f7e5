package tracker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/web3guy0/agentarena/internal/tracker"
)

func TestForceCycleRunsOutsideSchedule(t *testing.T) {
	var cycles int64
	tr := tracker.New("test", time.Hour, time.Second, func(ctx context.Context) error {
		atomic.AddInt64(&cycles, 1)
		return nil
	})

	require.False(t, tr.Running())
	require.NoError(t, tr.ForceCycle(context.Background()))
	require.NoError(t, tr.ForceCycle(context.Background()))
	require.EqualValues(t, 2, atomic.LoadInt64(&cycles))
}

func TestForceCyclePropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	tr := tracker.New("test", time.Hour, time.Second, func(ctx context.Context) error {
		return boom
	})
	require.ErrorIs(t, tr.ForceCycle(context.Background()), boom)
}

func TestStartStopLifecycle(t *testing.T) {
	var cycles int64
	tr := tracker.New("test", 5*time.Millisecond, time.Second, func(ctx context.Context) error {
		atomic.AddInt64(&cycles, 1)
		return nil
	})

	tr.Start(context.Background())
	require.True(t, tr.Running())

	// Double start must not spawn a second loop.
	tr.Start(context.Background())

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&cycles) >= 2
	}, time.Second, time.Millisecond)

	tr.Stop()
	require.False(t, tr.Running())

	// Stop after stop is a no-op.
	tr.Stop()

	settled := atomic.LoadInt64(&cycles)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, settled, atomic.LoadInt64(&cycles))
}

func TestStopCancelsInFlightCycle(t *testing.T) {
	entered := make(chan struct{})
	tr := tracker.New("test", time.Millisecond, time.Minute, func(ctx context.Context) error {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ctx.Err()
	})

	tr.Start(context.Background())
	<-entered

	done := make(chan struct{})
	go func() {
		tr.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not cancel the in-flight cycle")
	}
}

func TestCycleGetsTimeout(t *testing.T) {
	tr := tracker.New("test", time.Hour, 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	err := tr.ForceCycle(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithClock(t *testing.T) {
	fixed := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	tr := tracker.New("test", time.Hour, time.Second, func(ctx context.Context) error {
		return nil
	}).WithClock(func() time.Time { return fixed })

	require.Equal(t, fixed, tr.Now())
}
