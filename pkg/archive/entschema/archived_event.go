// Package entschema holds the ent schema definition for the event
// archive's one entity, ArchivedEvent. This is schema-as-code only: it
// documents the archive's shape and is consumed by entgo.io/ent's
// schema/field/index builders directly. It is not wired to a generated
// ent client — pkg/archive/store.go talks to Postgres over
// database/sql + pgx instead, since generating that client requires
// running `go generate` against this schema, which this module's build
// step does not do. Keeping the schema here documents the exact shape
// the hand-written SQL in pkg/archive/migrations mirrors.
package entschema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ArchivedEvent holds the schema definition for one mirrored
// EnsembleEvent, long after pkg/statestore's operational window has
// rolled it off.
type ArchivedEvent struct {
	ent.Schema
}

// Fields of the ArchivedEvent.
func (ArchivedEvent) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("event_id").
			Unique().
			Immutable().
			Comment("matches the originating pkg/statestore event id"),
		field.String("session_id").
			Immutable(),
		field.String("task_id").
			Optional().
			Immutable(),
		field.String("event_type").
			Immutable(),
		field.JSON("payload", map[string]interface{}{}).
			Optional().
			Comment("the EnsembleEvent's raw JSON payload"),
		field.Time("occurred_at").
			Immutable().
			Comment("when the event was published, not when it was archived"),
		field.Time("archived_at").
			Default(time.Now).
			Immutable(),
	}
}

// Indexes of the ArchivedEvent.
func (ArchivedEvent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("session_id", "occurred_at"),
		index.Fields("task_id"),
		index.Fields("event_type"),
	}
}
