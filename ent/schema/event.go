package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Event holds the schema definition for the Event entity: a persisted copy
// of a broadcast incident event, kept so reconnecting stream clients can
// catch up on anything NOTIFY delivered while they were away.
type Event struct {
	ent.Schema
}

// Fields of the Event.
func (Event) Fields() []ent.Field {
	return []ent.Field{
		field.String("channel").
			MaxLen(100).
			Immutable(),
		field.Int("incident_id").
			Optional().
			Nillable().
			Immutable(),
		field.String("payload").
			SchemaType(map[string]string{dialect.Postgres: "jsonb"}).
			Immutable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Indexes of the Event.
func (Event) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("channel", "id"),
		index.Fields("created_at"),
	}
}
