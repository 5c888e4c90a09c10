package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Alert holds the schema definition for the Alert entity: a single
// observation ingested from an external monitoring source. Alerts are
// immutable after ingest except for the enrichment fields, which the
// processing pipeline populates exactly once.
type Alert struct {
	ent.Schema
}

// Fields of the Alert.
func (Alert) Fields() []ent.Field {
	return []ent.Field{
		field.String("external_id").
			MaxLen(255).
			Immutable().
			Comment("Source-assigned identifier; unique together with source"),
		field.String("source").
			MaxLen(50).
			Immutable().
			Comment("Integration that delivered the alert (datadog, sentry, pagerduty)"),
		field.String("title").
			MaxLen(500),
		field.Text("message").
			Optional(),
		field.JSON("raw_payload", map[string]any{}).
			Comment("Webhook payload retained verbatim"),
		field.Time("alert_timestamp").
			Comment("Event time reported by the source"),
		field.Time("created_at").
			Default(time.Now).
			Immutable().
			Comment("Ingest time"),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),

		// Enrichment fields, null until the processor runs.
		field.Enum("severity").
			Values("info", "warning", "error", "critical").
			Optional().
			Nillable(),
		field.String("predicted_team").
			MaxLen(100).
			Optional().
			Nillable(),
		field.Float("confidence_score").
			Min(0).
			Max(1).
			Optional().
			Nillable(),
		field.String("classification_source").
			MaxLen(50).
			Optional().
			Nillable().
			Comment("rule, fallback_rule, ml"),

		// Extracted entities with per-field provenance.
		field.String("service_name").
			MaxLen(200).
			Optional().
			Nillable(),
		field.String("environment").
			MaxLen(50).
			Optional().
			Nillable(),
		field.String("region").
			MaxLen(50).
			Optional().
			Nillable(),
		field.String("error_code").
			MaxLen(100).
			Optional().
			Nillable(),
		field.String("entity_source").
			MaxLen(50).
			Optional().
			Nillable().
			Comment("ml, tags, title, mixed, unknown"),
		field.JSON("entity_sources", map[string]string{}).
			Optional().
			Comment("Field name to provenance value"),

		field.Int("incident_id").
			Optional().
			Nillable().
			Comment("Weak back-link; nulled when the incident is deleted"),

		// Worker-plane bookkeeping (mirrors the session claim model).
		field.Enum("processing_status").
			Values("pending", "in_progress", "completed", "failed").
			Default("pending"),
		field.Int("processing_attempts").
			Default(0),
		field.Time("next_attempt_at").
			Optional().
			Nillable().
			Comment("Backoff gate; null means eligible immediately"),
		field.Time("processed_at").
			Optional().
			Nillable(),
		field.String("pod_id").
			Optional().
			Nillable().
			Comment("For multi-replica coordination"),
		field.String("last_error").
			Optional().
			Nillable(),
	}
}

// Edges of the Alert.
func (Alert) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("incident", Incident.Type).
			Ref("alerts").
			Unique().
			Field("incident_id"),
	}
}

// Indexes of the Alert.
func (Alert) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("source", "external_id").
			Unique(),
		index.Fields("source", "created_at"),
		index.Fields("severity", "created_at"),
		index.Fields("service_name", "created_at"),
		index.Fields("incident_id", "created_at"),
		index.Fields("processing_status", "created_at"),
	}
}
