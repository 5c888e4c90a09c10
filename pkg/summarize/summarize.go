// Package summarize produces the deterministic incident summary, its
// citations, and recommended next steps, and persists them on the incident.
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/opsrelay/opsrelay/ent"
	"github.com/opsrelay/opsrelay/ent/alert"
	"github.com/opsrelay/opsrelay/ent/incident"
	"github.com/opsrelay/opsrelay/pkg/models"
	"github.com/opsrelay/opsrelay/pkg/retrieval"
)

// Default retrieval limits for summary composition.
const (
	DefaultSimilarLimit = 5
	DefaultRunbookLimit = 5
)

// Result is the summarization outcome for one incident.
type Result struct {
	Incident  *ent.Incident
	Summary   string
	Citations []models.Citation
	NextSteps []string
	Cached    bool
}

// Summarizer composes and persists incident summaries from the two retrieval
// surfaces.
type Summarizer struct {
	client   *ent.Client
	finder   *retrieval.IncidentFinder
	runbooks *retrieval.RunbookRetriever
	logger   *slog.Logger
}

// NewSummarizer creates a summarizer.
func NewSummarizer(client *ent.Client, finder *retrieval.IncidentFinder, runbooks *retrieval.RunbookRetriever, logger *slog.Logger) *Summarizer {
	return &Summarizer{client: client, finder: finder, runbooks: runbooks, logger: logger}
}

// Summarize returns the incident's summary with the default retrieval limits.
// Unless force is set, a persisted summary is returned verbatim without
// recomputation.
func (s *Summarizer) Summarize(ctx context.Context, incidentID int, force bool) (*Result, error) {
	return s.SummarizeWithLimits(ctx, incidentID, DefaultSimilarLimit, DefaultRunbookLimit, force)
}

// SummarizeWithLimits is Summarize with caller-chosen retrieval limits.
func (s *Summarizer) SummarizeWithLimits(ctx context.Context, incidentID, limitSimilar, limitRunbook int, force bool) (*Result, error) {
	inc, err := s.client.Incident.Get(ctx, incidentID)
	if err != nil {
		return nil, err
	}

	if !force && inc.Summary != nil && *inc.Summary != "" {
		return &Result{
			Incident:  inc,
			Summary:   *inc.Summary,
			Citations: inc.SummaryCitations,
			NextSteps: inc.NextSteps,
			Cached:    true,
		}, nil
	}

	alerts, err := s.client.Alert.Query().
		Where(alert.IncidentID(incidentID)).
		Order(ent.Desc(alert.FieldAlertTimestamp)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load incident alerts: %w", err)
	}

	// Refresh embeddings before querying. Runbook backfill failures degrade
	// retrieval but must not block the summary.
	if err := retrieval.UpdateIncidentEmbedding(ctx, s.client, incidentID); err != nil {
		return nil, fmt.Errorf("failed to refresh incident embedding: %w", err)
	}
	if err := s.runbooks.EnsureEmbeddings(ctx); err != nil {
		s.logger.Warn("Failed to backfill runbook embeddings", "error", err)
	}

	inc, err = s.client.Incident.Get(ctx, incidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload incident: %w", err)
	}

	similar, err := s.finder.FindSimilar(ctx, inc, alerts, limitSimilar)
	if err != nil {
		s.logger.Warn("Similar-incident search failed", "incident_id", incidentID, "error", err)
		similar = nil
	}

	queryText := retrieval.BuildIncidentText(inc, alerts)
	var queryVec []float32
	if inc.IncidentEmbedding != nil {
		queryVec = inc.IncidentEmbedding.Slice()
	}
	runbookMatches, err := s.runbooks.Search(ctx, queryVec, queryText, limitRunbook)
	if err != nil {
		s.logger.Warn("Runbook search failed", "incident_id", incidentID, "error", err)
		runbookMatches = nil
	}

	summary, citations := composeSummary(inc, alerts, similar, runbookMatches)
	nextSteps := composeNextSteps(inc, similar, runbookMatches)

	updated, err := s.client.Incident.UpdateOneID(incidentID).
		SetSummary(summary).
		SetSummaryCitations(citations).
		SetNextSteps(nextSteps).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to persist summary: %w", err)
	}

	s.logger.Info("Incident summary generated",
		"incident_id", incidentID,
		"similar_count", len(similar),
		"runbook_count", len(runbookMatches))

	return &Result{
		Incident:  updated,
		Summary:   summary,
		Citations: citations,
		NextSteps: nextSteps,
	}, nil
}

// composeSummary builds the summary text and its citation list. The header
// is always present; key alerts, similar incidents and runbook references
// appear only when non-empty.
func composeSummary(inc *ent.Incident, alerts []*ent.Alert, similar []retrieval.SimilarIncident, runbookMatches []retrieval.RunbookMatch) (string, []models.Citation) {
	lines := []string{
		fmt.Sprintf("Incident #%d %q is %s with severity %s.", inc.ID, inc.Title, inc.Status, inc.Severity),
	}
	var citations []models.Citation

	highlights := alertHighlights(alerts, 3)
	if len(highlights) > 0 {
		lines = append(lines, "Key alerts: "+strings.Join(highlights, "; "))
		for _, a := range alerts[:min(len(alerts), 3)] {
			citations = append(citations, models.Citation{
				Type:  models.CitationAlert,
				ID:    a.ID,
				Title: a.Title,
			})
		}
	}

	if len(similar) > 0 {
		lines = append(lines, "Similar incidents:")
		for _, item := range similar {
			score := round3(item.Score)
			lines = append(lines, fmt.Sprintf("- #%d %s (score %v)", item.Incident.ID, item.Incident.Title, score))
			citations = append(citations, models.Citation{
				Type:  models.CitationIncident,
				ID:    item.Incident.ID,
				Title: item.Incident.Title,
				Score: score,
			})
		}
	}

	if len(runbookMatches) > 0 {
		lines = append(lines, "Relevant runbook references:")
		for _, item := range runbookMatches {
			chunkIndex := item.Chunk.ChunkIndex
			lines = append(lines, fmt.Sprintf("- %s (chunk %d)", item.Chunk.SourceDocument, chunkIndex))
			title := ""
			if item.Chunk.Title != nil {
				title = *item.Chunk.Title
			}
			citations = append(citations, models.Citation{
				Type:           models.CitationRunbook,
				SourceDocument: item.Chunk.SourceDocument,
				ChunkIndex:     &chunkIndex,
				Title:          title,
				Score:          round3(item.Score),
			})
		}
	}

	return strings.Join(lines, "\n"), citations
}

// composeNextSteps builds the recommended actions in fixed priority order.
func composeNextSteps(inc *ent.Incident, similar []retrieval.SimilarIncident, runbookMatches []retrieval.RunbookMatch) []string {
	var steps []string

	if inc.Severity == incident.SeverityCritical || inc.Severity == incident.SeverityError {
		steps = append(steps, "Page on-call and open an incident bridge")
	}
	if len(inc.AffectedServices) > 0 {
		steps = append(steps, "Validate service health for: "+strings.Join(inc.AffectedServices, ", "))
	}
	if len(similar) > 0 {
		top := similar[0].Incident
		steps = append(steps, fmt.Sprintf("Review similar incident #%d: %s", top.ID, top.Title))
	}
	if len(runbookMatches) > 0 {
		chunk := runbookMatches[0].Chunk
		steps = append(steps, fmt.Sprintf("Check runbook: %s (chunk %d)", chunk.SourceDocument, chunk.ChunkIndex))
	}
	if len(steps) == 0 {
		steps = append(steps, "Gather additional context from logs and metrics")
	}

	return steps
}

func alertHighlights(alerts []*ent.Alert, limit int) []string {
	var highlights []string
	for _, a := range alerts[:min(len(alerts), limit)] {
		if a.Title != "" {
			highlights = append(highlights, a.Title)
		}
	}
	return highlights
}

func round3(score float64) float64 {
	return math.Round(score*1000) / 1000
}
