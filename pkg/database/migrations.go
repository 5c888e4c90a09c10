package database

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect/sql"
)

// CreateSearchIndexes creates the retrieval indexes that Ent's schema DSL
// cannot express: full-text GIN indexes for the keyword path and ivfflat
// indexes for approximate nearest neighbor on the embedding columns.
//
// All statements are idempotent so this is safe to run on every startup and
// from test setup.
func CreateSearchIndexes(ctx context.Context, driver *sql.Driver) error {
	db := driver.DB()

	// Keyword retrieval: ts_rank over title + content.
	_, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_runbook_chunks_content_gin
		ON runbook_chunks USING gin(to_tsvector('english', COALESCE(title, '') || ' ' || content))`)
	if err != nil {
		return fmt.Errorf("failed to create runbook content GIN index: %w", err)
	}

	// Vector retrieval: approximate nearest neighbor by L2 distance.
	_, err = db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_runbook_chunks_embedding_ivfflat
		ON runbook_chunks USING ivfflat (embedding vector_l2_ops) WITH (lists = 100)`)
	if err != nil {
		return fmt.Errorf("failed to create runbook embedding index: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_incidents_embedding_ivfflat
		ON incidents USING ivfflat (incident_embedding vector_l2_ops) WITH (lists = 100)`)
	if err != nil {
		return fmt.Errorf("failed to create incident embedding index: %w", err)
	}

	// Raw payload queries from the alert explorer.
	_, err = db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_alerts_raw_payload_gin
		ON alerts USING gin(raw_payload)`)
	if err != nil {
		return fmt.Errorf("failed to create alert payload GIN index: %w", err)
	}

	return nil
}
