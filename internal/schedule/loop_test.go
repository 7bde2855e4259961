package schedule

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestLoop(clock clockwork.Clock) *Loop {
	return NewLoop(clock, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for task")
	}
}

func TestLoop_EveryRunsOnEachTick(t *testing.T) {
	fc := clockwork.NewFakeClock()
	loop := newTestLoop(fc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	ran := make(chan struct{}, 1)
	var count int
	loop.Every("rotate", 10*time.Second, func() {
		count++
		ran <- struct{}{}
	})

	for i := 0; i < 3; i++ {
		fc.Advance(10 * time.Second)
		waitFor(t, ran)
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	loop.Close()
	assert.Equal(t, 3, count)
}

func TestLoop_CancelStopsTimer(t *testing.T) {
	fc := clockwork.NewFakeClock()
	loop := newTestLoop(fc)
	defer loop.Close()

	var count atomic.Int64
	cancel := loop.Every("remeasure", time.Second, func() { count.Add(1) })

	ctx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()
	require.NoError(t, fc.BlockUntilContext(ctx, 1))

	cancel()
	cancel() // idempotent
	require.NoError(t, fc.BlockUntilContext(ctx, 0))

	fc.Advance(5 * time.Second)
	assert.Empty(t, loop.Tasks())
	assert.Equal(t, int64(0), count.Load())
}

func TestLoop_TasksNeverOverlap(t *testing.T) {
	loop := newTestLoop(clockwork.NewRealClock())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = loop.Run(ctx)
		close(done)
	}()

	var running, overlaps, total atomic.Int64
	task := func() {
		if running.Add(1) > 1 {
			overlaps.Add(1)
		}
		time.Sleep(time.Millisecond)
		total.Add(1)
		running.Add(-1)
	}

	loop.Every("a", 2*time.Millisecond, task)
	loop.Every("b", 3*time.Millisecond, task)
	for i := 0; i < 20; i++ {
		loop.Post(task)
	}

	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done
	loop.Close()

	assert.Equal(t, int64(0), overlaps.Load())
	assert.Greater(t, total.Load(), int64(20))
}

func TestLoop_PanicIsRecovered(t *testing.T) {
	loop := newTestLoop(clockwork.NewFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = loop.Run(ctx)
		close(done)
	}()

	ran := make(chan struct{})
	loop.Post(func() { panic("boom") })
	loop.Post(func() { close(ran) })
	waitFor(t, ran)

	cancel()
	<-done
	loop.Close()
}

func TestLoop_PostAfterClose(t *testing.T) {
	loop := newTestLoop(clockwork.NewFakeClock())
	loop.Close()
	loop.Close()

	assert.False(t, loop.Post(func() {}))
	assert.Empty(t, loop.Tasks())

	assert.NoError(t, loop.Run(context.Background()))
}

func TestLoop_TryPostFullQueue(t *testing.T) {
	loop := newTestLoop(clockwork.NewFakeClock())
	defer loop.Close()

	for i := 0; i < queueSize; i++ {
		require.True(t, loop.TryPost(func() {}))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.False(t, loop.TryPost(func() {}))
	}()
	waitFor(t, done)

	// One slot frees up once a task is taken.
	task := <-loop.Tasks()
	loop.Exec(task)
	assert.True(t, loop.TryPost(func() {}))
}

func TestLoop_TryPostAfterClose(t *testing.T) {
	loop := newTestLoop(clockwork.NewFakeClock())
	loop.Close()

	assert.False(t, loop.TryPost(func() {}))
}
