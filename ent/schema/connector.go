package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
)

// Connector holds the schema definition for the Connector entity: the
// connection state of an alert-source integration.
type Connector struct {
	ent.Schema
}

// Fields of the Connector.
func (Connector) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			MaxLen(50).
			Unique().
			Immutable().
			Comment("Integration identifier (datadog, sentry, pagerduty)"),
		field.String("name").
			MaxLen(100),
		field.Enum("status").
			Values("not_connected", "connected").
			Default("not_connected"),
		field.String("detail").
			MaxLen(500).
			Optional().
			Nillable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}
