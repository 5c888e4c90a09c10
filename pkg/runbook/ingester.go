package runbook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/opsrelay/opsrelay/ent"
	"github.com/opsrelay/opsrelay/ent/runbookchunk"
	"github.com/opsrelay/opsrelay/pkg/embedding"
)

// Ingester loads markdown documents into the chunk store with embeddings.
// Re-ingesting an unchanged document (same version hash) is a no-op.
type Ingester struct {
	client *ent.Client
	logger *slog.Logger
}

// NewIngester creates a new Ingester.
func NewIngester(client *ent.Client, logger *slog.Logger) *Ingester {
	return &Ingester{client: client, logger: logger}
}

// IngestFolder ingests every .md file in folder (non-recursive, README
// files skipped) under the given source. Returns the number of chunks
// inserted.
func (i *Ingester) IngestFolder(ctx context.Context, folder, source string, tags []string) (int, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return 0, fmt.Errorf("failed to read runbook folder: %w", err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".md") {
			continue
		}
		if strings.HasPrefix(strings.ToLower(name), "readme") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	inserted := 0
	for _, name := range names {
		path := filepath.Join(folder, name)
		content, err := os.ReadFile(path)
		if err != nil {
			return inserted, fmt.Errorf("failed to read %s: %w", path, err)
		}

		n, err := i.IngestDocument(ctx, name, string(content), source, path, tags)
		if err != nil {
			return inserted, err
		}
		inserted += n
	}

	i.logger.Info("Runbook ingestion complete",
		"folder", folder, "documents", len(names), "chunks_inserted", inserted)
	return inserted, nil
}

// IngestDocument chunks and stores one document. An existing unchanged
// version is left alone; a changed one is replaced wholesale so chunk
// indexes stay dense.
func (i *Ingester) IngestDocument(ctx context.Context, name, content, source, sourceURI string, tags []string) (int, error) {
	versionHash := hashContent(content)

	existing, err := i.client.RunbookChunk.Query().
		Where(
			runbookchunk.SourceDocumentEQ(name),
			runbookchunk.SourceEQ(source),
		).
		First(ctx)
	if err != nil && !ent.IsNotFound(err) {
		return 0, fmt.Errorf("failed to check existing chunks: %w", err)
	}
	if existing != nil && existing.DocMetadata["version_hash"] == versionHash {
		i.logger.Debug("Document unchanged, skipping", "document", name)
		return 0, nil
	}

	chunks := ChunkMarkdown(content, DefaultMaxChars, DefaultOverlap)

	tx, err := i.client.Tx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.RunbookChunk.Delete().
		Where(
			runbookchunk.SourceDocumentEQ(name),
			runbookchunk.SourceEQ(source),
		).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale chunks: %w", err)
	}

	tagsMeta := make([]any, len(tags))
	for idx, tag := range tags {
		tagsMeta[idx] = tag
	}

	for _, chunk := range chunks {
		vec := pgvector.NewVector(embedding.Embed(chunk.Content))
		builder := tx.RunbookChunk.Create().
			SetSource(source).
			SetSourceDocument(name).
			SetChunkIndex(chunk.ChunkIndex).
			SetContent(chunk.Content).
			SetEmbedding(&vec).
			SetSourceURI(sourceURI).
			SetDocMetadata(map[string]any{
				"tags":         tagsMeta,
				"source":       source,
				"version_hash": versionHash,
				"title":        chunk.Title,
			})
		if chunk.Title != "" {
			builder.SetTitle(chunk.Title)
		}
		if err := builder.Exec(ctx); err != nil {
			return 0, fmt.Errorf("failed to insert chunk %d of %s: %w", chunk.ChunkIndex, name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit ingestion: %w", err)
	}
	return len(chunks), nil
}

func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
