// Package retrieval implements the two retrieval surfaces: similar-incident
// lookup and hybrid semantic+lexical search over the runbook knowledge base.
// Vector queries run as raw SQL against pgvector; every path degrades to an
// in-memory token-overlap pass when the vector index is unavailable.
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
	"github.com/opsrelay/opsrelay/ent/alert"
	"github.com/opsrelay/opsrelay/ent/incident"
	"github.com/opsrelay/opsrelay/pkg/embedding"
)

// SimilarIncident is one scored match from the similar-incident finder.
type SimilarIncident struct {
	Incident *ent.Incident
	Score    float64
}

// Relevance gate and structural boost constants for incident similarity.
const (
	minTokenOverlap        = 0.05
	severityBoost          = 0.05
	sharedServiceBoost     = 0.10
	defaultSimilarMinScore = 0.1
)

// BuildIncidentText composes the synthetic retrieval text for an incident:
// title, summary, affected services, and the first five alerts' titles and
// messages, newline-joined.
func BuildIncidentText(inc *ent.Incident, alerts []*ent.Alert) string {
	parts := []string{inc.Title}
	if inc.Summary != nil && *inc.Summary != "" {
		parts = append(parts, *inc.Summary)
	}
	if len(inc.AffectedServices) > 0 {
		parts = append(parts, "services: "+strings.Join(inc.AffectedServices, ", "))
	}

	limit := len(alerts)
	if limit > 5 {
		limit = 5
	}
	for _, a := range alerts[:limit] {
		if a.Title != "" {
			parts = append(parts, a.Title)
		}
		if a.Message != "" {
			parts = append(parts, a.Message)
		}
	}

	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "\n")
}

// IncidentAlerts loads an incident's alerts most recent first.
func IncidentAlerts(ctx context.Context, client *ent.Client, incidentID int) ([]*ent.Alert, error) {
	return client.Alert.Query().
		Where(alert.IncidentID(incidentID)).
		Order(ent.Desc(alert.FieldCreatedAt)).
		All(ctx)
}

// UpdateIncidentEmbedding recomputes and persists the incident's embedding
// from its current synthetic text.
func UpdateIncidentEmbedding(ctx context.Context, client *ent.Client, incidentID int) error {
	inc, err := client.Incident.Get(ctx, incidentID)
	if err != nil {
		return fmt.Errorf("failed to load incident: %w", err)
	}

	alerts, err := IncidentAlerts(ctx, client, incidentID)
	if err != nil {
		return fmt.Errorf("failed to load incident alerts: %w", err)
	}

	vec := pgvector.NewVector(embedding.Embed(BuildIncidentText(inc, alerts)))
	if err := client.Incident.UpdateOneID(incidentID).
		SetIncidentEmbedding(&vec).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to persist incident embedding: %w", err)
	}
	return nil
}

// IncidentFinder performs similar-incident lookup.
type IncidentFinder struct {
	client *ent.Client
	db     *sql.DB
	logger *slog.Logger
}

// NewIncidentFinder creates a finder. db is used for the raw vector distance
// query; everything else goes through the Ent client.
func NewIncidentFinder(client *ent.Client, db *sql.DB, logger *slog.Logger) *IncidentFinder {
	return &IncidentFinder{client: client, db: db, logger: logger}
}

// FindSimilar returns up to limit incidents similar to the subject, scored in
// [0, 1]. The subject's embedding is computed and persisted first when
// missing. Candidates must pass the relevance gate: a shared affected service
// or token overlap of at least 0.05.
func (f *IncidentFinder) FindSimilar(ctx context.Context, subject *ent.Incident, alerts []*ent.Alert, limit int) ([]SimilarIncident, error) {
	queryText := BuildIncidentText(subject, alerts)

	queryVec := subject.IncidentEmbedding
	if queryVec == nil {
		vec := pgvector.NewVector(embedding.Embed(queryText))
		if err := f.client.Incident.UpdateOneID(subject.ID).
			SetIncidentEmbedding(&vec).
			Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to persist subject embedding: %w", err)
		}
		queryVec = &vec
	}

	results, err := f.vectorPass(ctx, subject, queryText, queryVec, limit)
	if err != nil {
		f.logger.Warn("Vector similarity search failed, falling back to token overlap",
			"incident_id", subject.ID,
			"error", err)
	}
	if len(results) > 0 {
		return results, nil
	}

	return f.keywordPass(ctx, subject, queryText, limit)
}

// vectorPass queries top candidates by L2 distance, then gates and scores.
func (f *IncidentFinder) vectorPass(ctx context.Context, subject *ent.Incident, queryText string, queryVec *pgvector.Vector, limit int) ([]SimilarIncident, error) {
	rows, err := f.db.QueryContext(ctx,
		`SELECT id, incident_embedding <-> $1 AS distance
		FROM incidents
		WHERE id != $2 AND incident_embedding IS NOT NULL
		ORDER BY distance ASC
		LIMIT $3`,
		*queryVec, subject.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}
	defer rows.Close()

	distances := make(map[int]float64)
	order := make([]int, 0, limit)
	for rows.Next() {
		var id int
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan similarity row: %w", err)
		}
		distances[id] = distance
		order = append(order, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("similarity rows failed: %w", err)
	}
	if len(order) == 0 {
		return nil, nil
	}

	candidates, err := f.client.Incident.Query().
		Where(incident.IDIn(order...)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate incidents: %w", err)
	}

	var results []SimilarIncident
	for _, candidate := range candidates {
		if !passesGate(subject, queryText, candidate) {
			continue
		}
		score := scoreFromDistance(distances[candidate.ID]) + structuralBoost(subject, candidate)
		score = capScore(score)
		if score >= defaultSimilarMinScore {
			results = append(results, SimilarIncident{Incident: candidate, Score: score})
		}
	}
	sortByScore(results)
	return results, nil
}

// keywordPass scores every other incident by token overlap. Used when the
// vector pass fails or admits nothing.
func (f *IncidentFinder) keywordPass(ctx context.Context, subject *ent.Incident, queryText string, limit int) ([]SimilarIncident, error) {
	candidates, err := f.client.Incident.Query().
		Where(incident.IDNEQ(subject.ID)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load incidents for fallback pass: %w", err)
	}

	var results []SimilarIncident
	for _, candidate := range candidates {
		if !passesGate(subject, queryText, candidate) {
			continue
		}
		candidateText := BuildIncidentText(candidate, nil)
		score := embedding.Jaccard(queryText, candidateText) + structuralBoost(subject, candidate)
		score = capScore(score)
		if score >= defaultSimilarMinScore {
			results = append(results, SimilarIncident{Incident: candidate, Score: score})
		}
	}
	sortByScore(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// passesGate admits a candidate that shares an affected service with the
// subject or overlaps its tokens by at least the minimum.
func passesGate(subject *ent.Incident, queryText string, candidate *ent.Incident) bool {
	if intersects(subject.AffectedServices, candidate.AffectedServices) {
		return true
	}
	return embedding.Jaccard(queryText, BuildIncidentText(candidate, nil)) >= minTokenOverlap
}

func structuralBoost(subject, candidate *ent.Incident) float64 {
	boost := 0.0
	if subject.Severity == candidate.Severity {
		boost += severityBoost
	}
	if intersects(subject.AffectedServices, candidate.AffectedServices) {
		boost += sharedServiceBoost
	}
	return boost
}

func scoreFromDistance(distance float64) float64 {
	return 1.0 / (1.0 + distance)
}

func capScore(score float64) float64 {
	if score > 1.0 {
		return 1.0
	}
	return score
}

func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[s]; ok {
			return true
		}
	}
	return false
}

func sortByScore(results []SimilarIncident) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
