package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/pgvector/pgvector-go"
)

// RunbookChunk holds the schema definition for the RunbookChunk entity: a
// retrievable passage of operational documentation. Chunks are unowned;
// the knowledge base is independent of incidents and alerts.
type RunbookChunk struct {
	ent.Schema
}

// Fields of the RunbookChunk.
func (RunbookChunk) Fields() []ent.Field {
	return []ent.Field{
		field.String("source").
			MaxLen(50).
			Default("runbooks").
			Comment("Knowledge base the chunk belongs to (runbooks, notion, ...)"),
		field.String("source_document").
			MaxLen(255).
			Comment("Logical file identifier"),
		field.Int("chunk_index").
			Min(0).
			Comment("Ordinal within the document"),
		field.String("title").
			MaxLen(500).
			Optional().
			Nillable(),
		field.Text("content"),
		field.Other("embedding", &pgvector.Vector{}).
			SchemaType(map[string]string{dialect.Postgres: "vector(384)"}).
			Optional().
			Nillable(),
		field.JSON("doc_metadata", map[string]any{}).
			Optional().
			Comment("tags, category, version_hash"),
		field.String("source_uri").
			MaxLen(1024).
			Optional().
			Nillable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Indexes of the RunbookChunk.
func (RunbookChunk) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("source_document", "chunk_index").
			Unique(),
		index.Fields("source"),
	}
}
