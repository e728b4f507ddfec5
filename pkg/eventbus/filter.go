package eventbus

import (
	"context"

	"github.com/forgeswarm/coordinator/pkg/statestore"
)

// EventFilter matches on session id, task id, and an event-type
// allow-list. A nil field in a filter dimension matches anything.
type EventFilter struct {
	SessionID  *string
	TaskID     *string
	EventTypes []string
}

// NewEventFilter returns an empty filter that matches every event.
func NewEventFilter() EventFilter { return EventFilter{} }

// WithSession narrows the filter to a single session id.
func (f EventFilter) WithSession(sessionID string) EventFilter {
	f.SessionID = &sessionID
	return f
}

// WithTask narrows the filter to a single task id.
func (f EventFilter) WithTask(taskID string) EventFilter {
	f.TaskID = &taskID
	return f
}

// WithTypes narrows the filter to an event-type allow-list.
func (f EventFilter) WithTypes(types ...string) EventFilter {
	f.EventTypes = types
	return f
}

// Matches reports whether ev satisfies every dimension of f.
func (f EventFilter) Matches(ev statestore.Event) bool {
	if f.SessionID != nil && ev.SessionID != "" && ev.SessionID != *f.SessionID {
		return false
	}
	if f.TaskID != nil && ev.TaskID != "" && ev.TaskID != *f.TaskID {
		return false
	}
	if len(f.EventTypes) > 0 {
		allowed := false
		for _, t := range f.EventTypes {
			if t == ev.Type {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}
	return true
}

// FilteredReceiver wraps a Subscription so that Recv only ever
// surfaces events matching its filter; non-matching events are
// consumed silently.
type FilteredReceiver struct {
	sub    *Subscription
	filter EventFilter
}

// Recv blocks until the next matching event arrives, the channel
// closes (returns false), or ctx is cancelled (also returns false;
// callers check ctx.Err() to tell the two apart).
func (r *FilteredReceiver) Recv(ctx context.Context) (statestore.Event, bool) {
	for {
		select {
		case ev, ok := <-r.sub.C():
			if !ok {
				return statestore.Event{}, false
			}
			if r.filter.Matches(ev) {
				return ev, true
			}
		case <-ctx.Done():
			return statestore.Event{}, false
		}
	}
}

// Close unsubscribes the underlying subscription.
func (r *FilteredReceiver) Close() { r.sub.Close() }
