// Package schedule runs repeating and one-off tasks serially on a single
// goroutine, the way a browser event loop runs timer callbacks.
package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const queueSize = 64

// Loop queues tasks from timers and background work and executes them one at
// a time. Tasks never overlap.
type Loop struct {
	clock  clockwork.Clock
	logger *slog.Logger
	tasks  chan func()
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

func NewLoop(clock clockwork.Clock, logger *slog.Logger) *Loop {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		clock:  clock,
		logger: logger.With("component", "schedule"),
		tasks:  make(chan func(), queueSize),
		done:   make(chan struct{}),
	}
}

// Clock is the time source timers are created from.
func (l *Loop) Clock() clockwork.Clock {
	return l.clock
}

// Every queues task once per interval until the returned cancel func is
// called or the loop is closed. Ticks that arrive while the queue is full
// are coalesced.
func (l *Loop) Every(name string, interval time.Duration, task func()) (cancel func()) {
	ticker := l.clock.NewTicker(interval)
	stop := make(chan struct{})
	var stopOnce sync.Once

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer ticker.Stop()
		l.logger.Debug("timer registered", "name", name, "interval", interval)

		for {
			select {
			case <-l.done:
				return
			case <-stop:
				l.logger.Debug("timer cancelled", "name", name)
				return
			case <-ticker.Chan():
				if !l.post(task, stop) {
					return
				}
			}
		}
	}()

	return func() {
		stopOnce.Do(func() { close(stop) })
	}
}

// Post queues a one-off task. It reports false if the loop closed first.
func (l *Loop) Post(task func()) bool {
	return l.post(task, nil)
}

// TryPost queues a one-off task without blocking. It reports false if the
// queue is full or the loop is closed. Tasks already running on the loop use
// it, since they are the queue's only consumer.
func (l *Loop) TryPost(task func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.tasks <- task:
		return true
	default:
		return false
	}
}

func (l *Loop) post(task func(), stop <-chan struct{}) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.tasks <- task:
		return true
	case <-stop:
		return false
	case <-l.done:
		return false
	}
}

// Tasks exposes the queue for hosts that run their own event loop, such as
// a Bubble Tea program. Such hosts call Exec for each received task.
func (l *Loop) Tasks() <-chan func() {
	return l.tasks
}

// Done is closed once the loop is closed.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Exec runs one task, recovering and logging a panic.
func (l *Loop) Exec(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("task panicked", "panic", r)
		}
	}()
	task()
}

// Run executes queued tasks until ctx is done or the loop is closed.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case task := <-l.tasks:
			l.Exec(task)
		}
	}
}

// Close stops every timer and waits for their goroutines. Safe to call more
// than once.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.done) })
	l.wg.Wait()
}
