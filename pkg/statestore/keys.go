// Package statestore provides an embedded key-value store, backed by
// goleveldb, with six logically separate column families implemented
// as key prefixes: sessions, tasks, results, voting, context, and
// events. Event keys are time-ordered so a lexicographic range scan is
// a time-range scan.
package statestore

import "fmt"

const (
	prefixSession = "sess:"
	prefixTask    = "task:"
	prefixResult  = "result:"
	prefixVote    = "vote:"
	prefixContext = "ctx:"
	prefixEvent   = "evt:"
)

// SessionKey builds the column-family key for a session record.
func SessionKey(sessionID string) string { return prefixSession + sessionID }

// TaskKey builds the column-family key for a task record.
func TaskKey(taskID string) string { return prefixTask + taskID }

// ResultKey builds the column-family key for one model's result on a
// task.
func ResultKey(taskID, modelID string) string {
	return fmt.Sprintf("%s%s:%s", prefixResult, taskID, modelID)
}

// VoteKey builds the column-family key for a task's voting record.
func VoteKey(taskID string) string { return prefixVote + taskID }

// ContextKey builds the column-family key for a session's shared
// context.
func ContextKey(sessionID string) string { return prefixContext + sessionID }

// EventKey builds a time-ordered event key: a 20-digit zero-padded
// nanosecond timestamp followed by the event's id, so lexicographic
// key order is timestamp order regardless of id.
func EventKey(timestampNanos int64, eventID string) string {
	return fmt.Sprintf("%s%020d:%s", prefixEvent, timestampNanos, eventID)
}

// EventPrefix is the shared prefix for every event key, used to scope
// range scans to the events column family.
const EventPrefix = prefixEvent
