package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// IncidentAction holds the schema definition for the IncidentAction entity:
// an append-only audit record. Actions are never updated and only removed
// when their incident is deleted (cascade).
type IncidentAction struct {
	ent.Schema
}

// Fields of the IncidentAction.
func (IncidentAction) Fields() []ent.Field {
	return []ent.Field{
		field.Int("incident_id").
			Immutable(),
		field.Enum("action_type").
			Values("status_change", "comment", "alert_added", "alert_removed", "assignment", "escalation").
			Immutable(),
		field.Text("description").
			Immutable(),
		field.String("user").
			MaxLen(200).
			Immutable(),
		field.JSON("extra_metadata", map[string]any{}).
			Optional().
			Immutable(),
		field.Time("timestamp").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the IncidentAction.
func (IncidentAction) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("incident", Incident.Type).
			Ref("actions").
			Unique().
			Required().
			Immutable().
			Field("incident_id"),
	}
}

// Indexes of the IncidentAction.
func (IncidentAction) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("incident_id", "timestamp"),
	}
}
