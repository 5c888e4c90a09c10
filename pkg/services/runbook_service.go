package services

import (
	"context"
	"fmt"
	"time"

	"github.com/opsrelay/opsrelay/ent"
	"github.com/opsrelay/opsrelay/ent/runbookchunk"
	"github.com/opsrelay/opsrelay/pkg/embedding"
	"github.com/opsrelay/opsrelay/pkg/models"
	"github.com/opsrelay/opsrelay/pkg/retrieval"
)

// RunbookService serves the runbook catalog and search.
type RunbookService struct {
	client    *ent.Client
	retriever *retrieval.RunbookRetriever
}

// NewRunbookService creates a new RunbookService.
func NewRunbookService(client *ent.Client, retriever *retrieval.RunbookRetriever) *RunbookService {
	return &RunbookService{client: client, retriever: retriever}
}

// ListRunbooks aggregates chunks into a per-document catalog: tags are the
// union across chunks, last_updated the newest chunk timestamp, the title
// comes from the first chunk. Ids are positional over the sorted catalog.
func (s *RunbookService) ListRunbooks(ctx context.Context, limit, offset int) ([]models.RunbookIndexItem, int, error) {
	chunks, err := s.client.RunbookChunk.Query().
		Order(
			ent.Asc(runbookchunk.FieldSourceDocument),
			ent.Asc(runbookchunk.FieldChunkIndex),
		).
		All(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load runbook chunks: %w", err)
	}

	items := buildRunbookIndex(chunks)
	total := len(items)

	if offset >= len(items) {
		return nil, total, nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items, total, nil
}

// SearchRunbooks runs the hybrid retriever over the chunk store.
func (s *RunbookService) SearchRunbooks(ctx context.Context, query string, limit int) ([]retrieval.RunbookMatch, error) {
	if query == "" {
		return nil, NewValidationError("query", "required")
	}
	if limit <= 0 {
		limit = 5
	}
	return s.retriever.Search(ctx, embedding.Embed(query), query, limit)
}

// buildRunbookIndex folds chunk rows into document entries. Chunks arrive
// ordered by (source_document, chunk_index) so the first chunk of each
// document wins the title.
func buildRunbookIndex(chunks []*ent.RunbookChunk) []models.RunbookIndexItem {
	type entry struct {
		title       string
		tags        []string
		lastUpdated time.Time
	}
	byDoc := make(map[string]*entry)
	var order []string

	for _, chunk := range chunks {
		updated := chunk.UpdatedAt
		if updated.IsZero() {
			updated = chunk.CreatedAt
		}

		e, ok := byDoc[chunk.SourceDocument]
		if !ok {
			title := chunk.SourceDocument
			if chunk.Title != nil && *chunk.Title != "" {
				title = *chunk.Title
			}
			e = &entry{title: title, lastUpdated: updated}
			byDoc[chunk.SourceDocument] = e
			order = append(order, chunk.SourceDocument)
		} else if updated.After(e.lastUpdated) {
			e.lastUpdated = updated
		}

		for _, tag := range chunkTags(chunk) {
			if !containsTag(e.tags, tag) {
				e.tags = append(e.tags, tag)
			}
		}
	}

	items := make([]models.RunbookIndexItem, len(order))
	for i, doc := range order {
		e := byDoc[doc]
		last := e.lastUpdated
		items[i] = models.RunbookIndexItem{
			ID:          fmt.Sprintf("RB-%03d", i+1),
			Title:       e.title,
			Source:      doc,
			Tags:        e.tags,
			LastUpdated: &last,
		}
	}
	return items
}

func chunkTags(chunk *ent.RunbookChunk) []string {
	raw, ok := chunk.DocMetadata["tags"]
	if !ok {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	tags := make([]string, 0, len(list))
	for _, item := range list {
		if tag, ok := item.(string); ok {
			tags = append(tags, tag)
		}
	}
	return tags
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
