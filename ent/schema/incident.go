package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/pgvector/pgvector-go"

	"github.com/opsrelay/opsrelay/pkg/models"
)

// Incident holds the schema definition for the Incident entity: a grouping
// of related alerts with a lifecycle status, audit trail and cached summary.
type Incident struct {
	ent.Schema
}

// Fields of the Incident.
func (Incident) Fields() []ent.Field {
	return []ent.Field{
		field.String("title").
			MaxLen(500),
		field.Enum("severity").
			Values("info", "warning", "error", "critical"),
		field.Enum("status").
			Values("open", "investigating", "resolved", "closed").
			Default("open"),
		field.String("assigned_team").
			MaxLen(100).
			Optional().
			Nillable(),
		field.String("assigned_user").
			MaxLen(200).
			Optional().
			Nillable(),

		field.Text("summary").
			Optional().
			Nillable().
			Comment("Cached summarizer output"),
		field.JSON("summary_citations", []models.Citation{}).
			Optional(),
		field.JSON("next_steps", []string{}).
			Optional(),
		field.JSON("affected_services", []string{}).
			Optional().
			Comment("Set semantics; persisted as an ordered list"),
		field.Text("root_cause").
			Optional().
			Nillable(),
		field.Text("resolution_notes").
			Optional().
			Nillable(),

		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
		field.Time("resolved_at").
			Optional().
			Nillable(),
		field.Time("closed_at").
			Optional().
			Nillable(),

		field.Int("time_to_acknowledge").
			Optional().
			Nillable().
			Min(0).
			Comment("Seconds from creation to acknowledgement"),
		field.Int("time_to_resolve").
			Optional().
			Nillable().
			Min(0).
			Comment("Seconds from creation to resolution"),

		field.Other("incident_embedding", &pgvector.Vector{}).
			SchemaType(map[string]string{dialect.Postgres: "vector(384)"}).
			Optional().
			Nillable(),
	}
}

// Edges of the Incident.
func (Incident) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("alerts", Alert.Type).
			Annotations(entsql.OnDelete(entsql.SetNull)),
		edge.To("actions", IncidentAction.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the Incident.
func (Incident) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status", "created_at"),
		index.Fields("status", "severity"),
		index.Fields("assigned_team", "status"),
		index.Fields("severity", "created_at"),
	}
}
