// Package eventbus implements the broadcast publish/subscribe layer
// that fans escalation, debate, and orchestration events out to
// subscribers, with optional persistence to pkg/statestore.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/forgeswarm/coordinator/pkg/statestore"
)

// DefaultCapacity is the per-subscriber buffered channel size.
const DefaultCapacity = 256

// ErrPersistFailed wraps a persistence error returned by Publish;
// Publish does not broadcast when this happens since publishing is a
// write first.
var ErrPersistFailed = errors.New("eventbus: persist failed")

// Bus is a bounded broadcast channel with optional persistence.
// Publish always persists (when enabled) before broadcasting, so a
// persistence failure never silently drops an event subscribers saw.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int64]*Subscription
	nextID      int64

	store         *statestore.Store
	persistEvents bool
	capacity      int
}

// New creates a Bus without persistence.
func New() *Bus {
	return &Bus{subscribers: make(map[int64]*Subscription), capacity: DefaultCapacity}
}

// WithPersistence creates a Bus that writes every published event to
// store before broadcasting it.
func WithPersistence(store *statestore.Store) *Bus {
	return &Bus{
		subscribers:   make(map[int64]*Subscription),
		store:         store,
		persistEvents: true,
		capacity:      DefaultCapacity,
	}
}

// SetPersistEvents toggles persistence on an existing store-backed Bus.
// A no-op if the Bus was built without a store.
func (b *Bus) SetPersistEvents(enabled bool) {
	if b.store == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.persistEvents = enabled
}

// Subscription is a single subscriber's channel handle.
type Subscription struct {
	id      int64
	ch      chan statestore.Event
	bus     *Bus
	dropped atomic.Int64
}

// C returns the channel to receive events on.
func (s *Subscription) C() <-chan statestore.Event { return s.ch }

// Dropped returns the count of events dropped because this
// subscriber's buffer was full — the broadcast-fanout analogue of a
// lagging tokio::broadcast receiver.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Close unsubscribes and releases the channel.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s.id)
}

// Subscribe registers a new receiver for all future events. Events
// published before Subscribe returns are never delivered to it.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &Subscription{id: b.nextID, ch: make(chan statestore.Event, b.capacity), bus: b}
	b.subscribers[sub.id] = sub
	return sub
}

// SubscribeFiltered wraps Subscribe with a FilteredReceiver that only
// yields events matching filter.
func (b *Bus) SubscribeFiltered(filter EventFilter) *FilteredReceiver {
	return &FilteredReceiver{sub: b.Subscribe(), filter: filter}
}

func (b *Bus) unsubscribe(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subscribers[id]; ok {
		close(sub.ch)
		delete(b.subscribers, id)
	}
}

// SubscriberCount reports the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// HasSubscribers reports whether any subscriber is currently attached.
func (b *Bus) HasSubscribers() bool { return b.SubscriberCount() > 0 }

// Publish persists ev (if enabled) and then broadcasts it to every
// subscriber. A receiver-less bus is not an error. A persist failure
// aborts the publish before any broadcast.
func (b *Bus) Publish(ctx context.Context, ev statestore.Event) error {
	b.mu.RLock()
	persist := b.persistEvents
	store := b.store
	b.mu.RUnlock()

	if persist && store != nil {
		if _, err := store.AppendEvent(ev); err != nil {
			slog.Warn("eventbus: failed to persist event", "type", ev.Type, "error", err)
			return fmt.Errorf("%w: %v", ErrPersistFailed, err)
		}
		slog.Debug("eventbus: event persisted", "type", ev.Type)
	}

	// Snapshot subscriber channels under the lock, then send outside it,
	// so a slow subscriber can't stall Subscribe/unsubscribe.
	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.ch <- ev:
		default:
			sub.dropped.Add(1)
			slog.Warn("eventbus: subscriber buffer full, dropping event", "type", ev.Type)
		}
	}

	slog.Debug("eventbus: event published", "type", ev.Type, "receivers", len(subs))
	return nil
}
