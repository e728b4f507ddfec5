package archive

import (
	"context"
	"log/slog"

	"github.com/forgeswarm/coordinator/pkg/eventbus"
	"github.com/forgeswarm/coordinator/pkg/statestore"
)

// Subscriber mirrors every event published on an eventbus.Bus into a
// Store, running until its context is cancelled. A mirroring failure
// is logged and skipped rather than fatal — the archive is a
// best-effort analytics mirror, not a component the core orchestration
// loop depends on for correctness.
type Subscriber struct {
	store *Store
	sub   *eventbus.Subscription
}

// Subscribe attaches a Subscriber to bus, backed by store.
func Subscribe(bus *eventbus.Bus, store *Store) *Subscriber {
	return &Subscriber{store: store, sub: bus.Subscribe()}
}

// Run drains the subscription until ctx is cancelled or the bus closes
// it. Intended to be launched in its own goroutine by the caller.
func (s *Subscriber) Run(ctx context.Context) {
	defer s.sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.sub.C():
			if !ok {
				return
			}
			s.mirror(ctx, ev)
		}
	}
}

func (s *Subscriber) mirror(ctx context.Context, ev statestore.Event) {
	err := s.store.Insert(ctx, Event{
		ID:         ev.ID,
		SessionID:  ev.SessionID,
		TaskID:     ev.TaskID,
		EventType:  ev.Type,
		Payload:    ev.Payload,
		OccurredAt: ev.At,
	})
	if err != nil {
		slog.Warn("archive: failed to mirror event", "event_id", ev.ID, "type", ev.Type, "error", err)
	}
}
