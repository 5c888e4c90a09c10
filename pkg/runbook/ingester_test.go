package runbook

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsrelay/opsrelay/ent/runbookchunk"
	testdb "github.com/opsrelay/opsrelay/test/database"
)

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestIngesterIngestFolder(t *testing.T) {
	client := testdb.NewTestClient(t)
	ingester := NewIngester(client.Client, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	dir := t.TempDir()
	writeDoc(t, dir, "payments.md", "# Payments\n\nRestart the gateway.")
	writeDoc(t, dir, "auth.md", "# Auth\n\nRotate credentials.")
	writeDoc(t, dir, "README.md", "# Not a runbook")
	writeDoc(t, dir, "notes.txt", "ignored")

	inserted, err := ingester.IngestFolder(ctx, dir, "runbooks", []string{"ops"})
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	chunks, err := client.RunbookChunk.Query().
		Order(runbookchunk.BySourceDocument()).
		All(ctx)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "auth.md", chunks[0].SourceDocument)
	require.NotNil(t, chunks[0].Title)
	assert.Equal(t, "Auth", *chunks[0].Title)
	assert.NotNil(t, chunks[0].Embedding)
	assert.Equal(t, "runbooks", chunks[0].Source)
	assert.NotEmpty(t, chunks[0].DocMetadata["version_hash"])

	t.Run("unchanged documents are skipped", func(t *testing.T) {
		inserted, err := ingester.IngestFolder(ctx, dir, "runbooks", []string{"ops"})
		require.NoError(t, err)
		assert.Zero(t, inserted)
	})

	t.Run("changed documents are replaced", func(t *testing.T) {
		writeDoc(t, dir, "payments.md", "# Payments\n\nRestart the gateway.\n\nThen page on-call.")

		inserted, err := ingester.IngestFolder(ctx, dir, "runbooks", []string{"ops"})
		require.NoError(t, err)
		assert.Equal(t, 1, inserted)

		updated, err := client.RunbookChunk.Query().
			Where(runbookchunk.SourceDocumentEQ("payments.md")).
			All(ctx)
		require.NoError(t, err)
		require.Len(t, updated, 1)
		assert.Contains(t, updated[0].Content, "page on-call")
	})
}
