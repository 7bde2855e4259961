package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWorkerPool_DrainsOnStop(t *testing.T) {
	var processed atomic.Int64
	pool := NewWorkerPool("test", 2, 10, func(ctx context.Context, id string) error {
		processed.Add(1)
		return nil
	})

	pool.Start(context.Background())
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		if err := pool.Submit(context.Background(), id); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	pool.Stop()

	if processed.Load() != 5 {
		t.Errorf("expected 5 jobs processed, got %d", processed.Load())
	}
}

func TestWorkerPool_ConcurrentSubmit(t *testing.T) {
	var processed atomic.Int64
	pool := NewWorkerPool("test", 4, 100, func(ctx context.Context, n int) error {
		processed.Add(1)
		return nil
	})

	pool.Start(context.Background())

	done := make(chan struct{})
	for i := 0; i < 100; i++ {
		go func(n int) {
			_ = pool.Submit(context.Background(), n)
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < 100; i++ {
		<-done
	}
	pool.Stop()

	if processed.Load() != 100 {
		t.Errorf("expected 100 jobs processed, got %d", processed.Load())
	}
}

func TestWorkerPool_ErrorHook(t *testing.T) {
	var failures atomic.Int64
	pool := NewWorkerPool("test", 1, 5, func(ctx context.Context, n int) error {
		if n%2 == 0 {
			return errors.New("even")
		}
		return nil
	})
	pool.OnError(func(error) { failures.Add(1) })

	pool.Start(context.Background())
	for i := 0; i < 4; i++ {
		_ = pool.Submit(context.Background(), i)
	}
	pool.Stop()

	if failures.Load() != 2 {
		t.Errorf("expected 2 failures, got %d", failures.Load())
	}
}

func TestWorkerPool_SubmitRespectsContext(t *testing.T) {
	// No workers started and no buffer, so Submit can only return via ctx.
	pool := NewWorkerPool("test", 1, 0, func(ctx context.Context, n int) error { return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := pool.Submit(ctx, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	pool.Stop()
}

func TestWorkerPool_GracefulShutdown(t *testing.T) {
	var processed atomic.Int64
	pool := NewWorkerPool("test", 2, 50, func(ctx context.Context, n int) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
			processed.Add(1)
			return nil
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	for i := 0; i < 20; i++ {
		_ = pool.Submit(ctx, i)
	}
	cancel()

	done := make(chan struct{})
	go func() {
		pool.Stop()
		pool.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool.Stop() timed out")
	}

	t.Logf("processed %d jobs before shutdown", processed.Load())
}

func TestWorkerPool_CancelledJobsStillSeen(t *testing.T) {
	var seen atomic.Int64
	pool := NewWorkerPool("test", 1, 10, func(ctx context.Context, n int) error {
		seen.Add(1)
		return ctx.Err()
	})

	for i := 0; i < 5; i++ {
		_ = pool.Submit(context.Background(), i)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pool.Start(ctx)
	pool.Stop()

	if seen.Load() != 5 {
		t.Errorf("expected all 5 queued jobs to be seen, got %d", seen.Load())
	}
}
