package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/forgeswarm/coordinator/pkg/eventbus"
	"github.com/forgeswarm/coordinator/pkg/statestore"
)

// Event type tags published to the event bus over the lifetime of one
// ProcessIssue call: session/task lifecycle plus the
// orchestration-specific ones this engine needs (iteration decisions,
// escalations, debate outcomes).
const (
	EventSessionCreated    = "session_created"
	EventTaskCreated       = "task_created"
	EventIterationDecided  = "iteration_decided"
	EventEscalated         = "escalated"
	EventDebateReached     = "debate_reached"
	EventDebateStalled     = "debate_stalled"
	EventFlaggedForHuman   = "flagged_for_human"
	EventIssueClosed       = "issue_closed"
	EventSessionClosed     = "session_closed"
	EventFrictionDetected  = "friction_detected"
	EventDelightDetected   = "delight_detected"
	EventMemoryCompacted   = "memory_compacted"
)

// publish marshals payload to JSON and publishes it on bus tagged with
// sessionID/taskID. Persistence failures propagate as eventbus.Publish
// reports them; the caller decides whether one should abort the
// iteration.
func publish(ctx context.Context, bus *eventbus.Bus, sessionID, taskID, eventType string, payload any) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return bus.Publish(ctx, statestore.Event{
		SessionID: sessionID,
		TaskID:    taskID,
		Type:      eventType,
		Payload:   buf,
		At:        time.Now(),
	})
}
