// Package broadcast fans active-alert snapshots out to stream subscribers.
package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/mr1hm/go-weather-ticker/internal/models"
)

// Broadcaster delivers each published snapshot to every subscriber. A slow
// subscriber only ever sees the newest snapshot; older pending ones are
// replaced.
type Broadcaster struct {
	subscribers map[uint64]chan []models.Alert
	nextID      atomic.Uint64
	mu          sync.RWMutex
	closed      bool
}

func New() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uint64]chan []models.Alert),
	}
}

// Subscribe registers a subscriber. The channel is closed on Unsubscribe or
// Close. Subscribing to a closed broadcaster returns a closed channel.
func (b *Broadcaster) Subscribe() (uint64, <-chan []models.Alert) {
	id := b.nextID.Add(1)
	ch := make(chan []models.Alert, 1)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return id, ch
	}
	b.subscribers[id] = ch
	return id, ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
}

// Publish hands snapshot to every subscriber without blocking.
func (b *Broadcaster) Publish(snapshot []models.Alert) {
	// Sends and the drain below happen under the write lock so two publishers
	// cannot interleave on one channel.
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels so streams can exit.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
