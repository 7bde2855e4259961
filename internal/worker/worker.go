// Package worker runs ingestion jobs on a fixed pool of goroutines.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ProcessFunc handles one job. A returned error is logged and counted; it
// does not stop the worker.
type ProcessFunc[T any] func(ctx context.Context, job T) error

type WorkerPool[T any] struct {
	name       string
	numWorkers int
	jobs       chan T
	processor  ProcessFunc[T]
	onError    func(error)
	wg         sync.WaitGroup
	stopOnce   sync.Once
}

func NewWorkerPool[T any](name string, numWorkers, bufferSize int, processor ProcessFunc[T]) *WorkerPool[T] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &WorkerPool[T]{
		name:       name,
		numWorkers: numWorkers,
		jobs:       make(chan T, bufferSize),
		processor:  processor,
	}
}

// OnError registers a hook called for every failed job. Set it before Start.
func (wp *WorkerPool[T]) OnError(fn func(error)) {
	wp.onError = fn
}

func (wp *WorkerPool[T]) Start(ctx context.Context) {
	for i := 1; i <= wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
	slog.Debug("worker pool started", "pool", wp.name, "workers", wp.numWorkers)
}

// worker runs until the queue is closed. Jobs still queued after ctx is
// cancelled are handed to the processor with the cancelled ctx, so every
// submitted job is seen exactly once.
func (wp *WorkerPool[T]) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	for job := range wp.jobs {
		err := wp.processor(ctx, job)
		if err == nil || errors.Is(err, context.Canceled) {
			continue
		}
		slog.Error("job failed", "pool", wp.name, "worker", id, "error", err)
		if wp.onError != nil {
			wp.onError(err)
		}
	}
}

// Submit blocks until the job is queued or ctx is done.
func (wp *WorkerPool[T]) Submit(ctx context.Context, job T) error {
	select {
	case wp.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending is the number of queued jobs not yet picked up.
func (wp *WorkerPool[T]) Pending() int {
	return len(wp.jobs)
}

// Stop closes the queue and waits for the workers to drain it.
func (wp *WorkerPool[T]) Stop() {
	wp.stopOnce.Do(func() {
		close(wp.jobs)
	})
	wp.wg.Wait()
}
