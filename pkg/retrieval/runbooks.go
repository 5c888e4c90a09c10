package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/opsrelay/opsrelay/ent"
	"github.com/opsrelay/opsrelay/ent/runbookchunk"
	"github.com/opsrelay/opsrelay/pkg/config"
	"github.com/opsrelay/opsrelay/pkg/embedding"
)

// RunbookSource is the knowledge-base source searched by default.
const RunbookSource = "runbooks"

// RunbookMatch is one scored chunk from the hybrid retriever.
type RunbookMatch struct {
	Chunk *ent.RunbookChunk
	Score float64
}

// RunbookRetriever blends vector distance and lexical rank over runbook
// chunks. Either signal may be absent; the final degradation is an in-memory
// token-overlap pass.
type RunbookRetriever struct {
	client *ent.Client
	db     *sql.DB
	cfg    config.RetrievalConfig
	logger *slog.Logger
}

// NewRunbookRetriever creates the retriever.
func NewRunbookRetriever(client *ent.Client, db *sql.DB, cfg config.RetrievalConfig, logger *slog.Logger) *RunbookRetriever {
	return &RunbookRetriever{client: client, db: db, cfg: cfg, logger: logger}
}

// EnsureEmbeddings backfills embeddings for runbook chunks that lack one.
func (r *RunbookRetriever) EnsureEmbeddings(ctx context.Context) error {
	chunks, err := r.client.RunbookChunk.Query().
		Where(
			runbookchunk.EmbeddingIsNil(),
			runbookchunk.Source(RunbookSource),
		).
		All(ctx)
	if err != nil {
		return fmt.Errorf("failed to load chunks without embeddings: %w", err)
	}

	for _, chunk := range chunks {
		vec := pgvector.NewVector(embedding.Embed(chunkText(chunk)))
		if err := r.client.RunbookChunk.UpdateOneID(chunk.ID).
			SetEmbedding(&vec).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to persist chunk embedding: %w", err)
		}
	}
	return nil
}

// Search returns up to limit chunks scored by the blended signal, sorted by
// score descending. Scores are capped to 1.0 and floored at MinScore.
func (r *RunbookRetriever) Search(ctx context.Context, queryVec []float32, queryText string, limit int) ([]RunbookMatch, error) {
	vectorScores, err := r.vectorScores(ctx, queryVec, limit)
	if err != nil {
		r.logger.Warn("Vector runbook search failed, continuing keyword-only", "error", err)
		vectorScores = nil
	}

	keywordScores, err := r.keywordScores(ctx, queryText, limit)
	if err != nil {
		r.logger.Warn("Full-text runbook search failed, falling back to token overlap", "error", err)
		keywordScores, err = r.jaccardScores(ctx, queryText)
		if err != nil {
			return nil, err
		}
	}

	if len(vectorScores) == 0 && len(keywordScores) == 0 {
		keywordScores, err = r.jaccardScores(ctx, queryText)
		if err != nil {
			return nil, err
		}
	}

	ids := make([]int, 0, len(vectorScores)+len(keywordScores))
	seen := make(map[int]struct{})
	for id := range vectorScores {
		ids = append(ids, id)
		seen[id] = struct{}{}
	}
	for id := range keywordScores {
		if _, ok := seen[id]; !ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	chunks, err := r.client.RunbookChunk.Query().
		Where(runbookchunk.IDIn(ids...)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate chunks: %w", err)
	}

	queryLower := strings.ToLower(queryText)
	var matches []RunbookMatch
	for _, chunk := range chunks {
		score := r.cfg.VectorWeight*vectorScores[chunk.ID] +
			r.cfg.KeywordWeight*keywordScores[chunk.ID] +
			r.boosts(queryLower, chunk)
		score = capScore(score)
		if score < r.cfg.MinScore {
			continue
		}
		matches = append(matches, RunbookMatch{Chunk: chunk, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// vectorScores returns 1/(1+distance) for the top chunks by L2 distance.
func (r *RunbookRetriever) vectorScores(ctx context.Context, queryVec []float32, limit int) (map[int]float64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, embedding <-> $1 AS distance
		FROM runbook_chunks
		WHERE source = $2 AND embedding IS NOT NULL
		ORDER BY distance ASC
		LIMIT $3`,
		pgvector.NewVector(queryVec), RunbookSource, limit)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}
	defer rows.Close()

	scores := make(map[int]float64)
	for rows.Next() {
		var id int
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan vector row: %w", err)
		}
		scores[id] = scoreFromDistance(distance)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vector rows failed: %w", err)
	}
	return scores, nil
}

// keywordScores returns ts_rank for the top chunks matching the query.
func (r *RunbookRetriever) keywordScores(ctx context.Context, queryText string, limit int) (map[int]float64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, ts_rank(
			to_tsvector('english', COALESCE(title, '') || ' ' || content),
			plainto_tsquery('english', $1)) AS rank
		FROM runbook_chunks
		WHERE source = $2
		  AND to_tsvector('english', COALESCE(title, '') || ' ' || content) @@ plainto_tsquery('english', $1)
		ORDER BY rank DESC
		LIMIT $3`,
		queryText, RunbookSource, limit)
	if err != nil {
		return nil, fmt.Errorf("full-text query failed: %w", err)
	}
	defer rows.Close()

	scores := make(map[int]float64)
	for rows.Next() {
		var id int
		var rank float64
		if err := rows.Scan(&id, &rank); err != nil {
			return nil, fmt.Errorf("failed to scan rank row: %w", err)
		}
		scores[id] = rank
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rank rows failed: %w", err)
	}
	return scores, nil
}

// jaccardScores is the in-memory degradation: token overlap over every chunk
// of the source, keeping overlaps above the configured minimum.
func (r *RunbookRetriever) jaccardScores(ctx context.Context, queryText string) (map[int]float64, error) {
	chunks, err := r.client.RunbookChunk.Query().
		Where(runbookchunk.Source(RunbookSource)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks for overlap pass: %w", err)
	}

	scores := make(map[int]float64)
	for _, chunk := range chunks {
		overlap := embedding.Jaccard(queryText, chunkText(chunk))
		if overlap >= r.cfg.MinKeywordOverlap {
			scores[chunk.ID] = overlap
		}
	}
	return scores, nil
}

// boosts adds the rerank bonuses: query appearing verbatim in the title or
// in the content.
func (r *RunbookRetriever) boosts(queryLower string, chunk *ent.RunbookChunk) float64 {
	if queryLower == "" {
		return 0
	}
	boost := 0.0
	if chunk.Title != nil && strings.Contains(strings.ToLower(*chunk.Title), queryLower) {
		boost += r.cfg.RerankTitleBoost
	}
	if strings.Contains(strings.ToLower(chunk.Content), queryLower) {
		boost += r.cfg.RerankPhraseBoost
	}
	return boost
}

func chunkText(chunk *ent.RunbookChunk) string {
	title := ""
	if chunk.Title != nil {
		title = *chunk.Title
	}
	return strings.TrimSpace(title + " " + chunk.Content)
}
