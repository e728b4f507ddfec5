package eventbus

import (
	"fmt"

	"github.com/forgeswarm/coordinator/pkg/statestore"
)

// EventHistory offers range queries over a statestore-backed event
// log, independent of any live subscription.
type EventHistory struct {
	store *statestore.Store
}

// NewEventHistory wraps store for range queries.
func NewEventHistory(store *statestore.Store) *EventHistory {
	return &EventHistory{store: store}
}

// Range returns every persisted event whose timestamp falls in the
// half-open range [fromNanos, toNanos). toNanos == 0 means unbounded.
func (h *EventHistory) Range(fromNanos, toNanos int64) ([]statestore.Event, error) {
	return h.store.ScanEvents(fromNanos, toNanos)
}

// ReplayBuilder replays persisted events back through a caller-
// supplied sink, in key order (i.e. chronological order, since event
// keys are timestamp-prefixed).
type ReplayBuilder struct {
	history *EventHistory
	from    int64
	to      int64
	filter  EventFilter
}

// NewReplayBuilder starts a replay over history with no bounds and no
// filter; chain With* calls to narrow it before calling Replay.
func NewReplayBuilder(history *EventHistory) *ReplayBuilder {
	return &ReplayBuilder{history: history}
}

// From sets the inclusive lower timestamp bound, in nanoseconds.
func (b *ReplayBuilder) From(nanos int64) *ReplayBuilder {
	b.from = nanos
	return b
}

// To sets the exclusive upper timestamp bound, in nanoseconds. Zero
// means unbounded.
func (b *ReplayBuilder) To(nanos int64) *ReplayBuilder {
	b.to = nanos
	return b
}

// Filter applies an EventFilter to the replayed events.
func (b *ReplayBuilder) Filter(filter EventFilter) *ReplayBuilder {
	b.filter = filter
	return b
}

// Replay feeds every matching event to sink in chronological order,
// stopping at the first error sink returns.
func (b *ReplayBuilder) Replay(sink func(statestore.Event) error) error {
	events, err := b.history.Range(b.from, b.to)
	if err != nil {
		return fmt.Errorf("eventbus: replay range scan: %w", err)
	}
	for _, ev := range events {
		if !b.filter.Matches(ev) {
			continue
		}
		if err := sink(ev); err != nil {
			return err
		}
	}
	return nil
}
