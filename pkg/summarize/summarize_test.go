package summarize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsrelay/opsrelay/ent"
	"github.com/opsrelay/opsrelay/ent/incident"
	"github.com/opsrelay/opsrelay/pkg/models"
	"github.com/opsrelay/opsrelay/pkg/retrieval"
)

func strPtr(s string) *string { return &s }

func testIncident() *ent.Incident {
	return &ent.Incident{
		ID:               42,
		Title:            "Payment gateway outage",
		Status:           incident.StatusInvestigating,
		Severity:         incident.SeverityCritical,
		AffectedServices: []string{"payments", "checkout"},
	}
}

func TestComposeSummaryHeaderOnly(t *testing.T) {
	summary, citations := composeSummary(testIncident(), nil, nil, nil)

	assert.Equal(t,
		`Incident #42 "Payment gateway outage" is investigating with severity critical.`,
		summary)
	assert.Empty(t, citations)
}

func TestComposeSummaryFull(t *testing.T) {
	alerts := []*ent.Alert{
		{ID: 1, Title: "Gateway 503s"},
		{ID: 2, Title: "Checkout latency"},
		{ID: 3, Title: "Stripe webhook errors"},
		{ID: 4, Title: "Should not appear"},
	}
	similar := []retrieval.SimilarIncident{
		{Incident: &ent.Incident{ID: 7, Title: "Previous gateway outage"}, Score: 0.8234},
	}
	runbooks := []retrieval.RunbookMatch{
		{Chunk: &ent.RunbookChunk{SourceDocument: "payments.md", ChunkIndex: 2, Title: strPtr("Failover")}, Score: 0.5},
	}

	summary, citations := composeSummary(testIncident(), alerts, similar, runbooks)

	assert.Contains(t, summary, "Key alerts: Gateway 503s; Checkout latency; Stripe webhook errors")
	assert.NotContains(t, summary, "Should not appear")
	assert.Contains(t, summary, "Similar incidents:\n- #7 Previous gateway outage (score 0.823)")
	assert.Contains(t, summary, "Relevant runbook references:\n- payments.md (chunk 2)")

	require.Len(t, citations, 5)
	assert.Equal(t, models.CitationAlert, citations[0].Type)
	assert.Equal(t, 1, citations[0].ID)
	assert.Equal(t, models.CitationIncident, citations[3].Type)
	assert.InDelta(t, 0.823, citations[3].Score, 1e-9)
	assert.Equal(t, models.CitationRunbook, citations[4].Type)
	assert.Equal(t, "payments.md", citations[4].SourceDocument)
	require.NotNil(t, citations[4].ChunkIndex)
	assert.Equal(t, 2, *citations[4].ChunkIndex)
}

func TestComposeSummarySkipsUntitledAlertHighlights(t *testing.T) {
	alerts := []*ent.Alert{{ID: 1, Title: ""}, {ID: 2, Title: ""}}

	summary, citations := composeSummary(testIncident(), alerts, nil, nil)

	assert.NotContains(t, summary, "Key alerts:")
	assert.Empty(t, citations)
}

func TestComposeNextStepsOrder(t *testing.T) {
	similar := []retrieval.SimilarIncident{
		{Incident: &ent.Incident{ID: 7, Title: "Previous gateway outage"}, Score: 0.8},
	}
	runbooks := []retrieval.RunbookMatch{
		{Chunk: &ent.RunbookChunk{SourceDocument: "payments.md", ChunkIndex: 2}, Score: 0.5},
	}

	steps := composeNextSteps(testIncident(), similar, runbooks)

	require.Len(t, steps, 4)
	assert.Equal(t, "Page on-call and open an incident bridge", steps[0])
	assert.Equal(t, "Validate service health for: payments, checkout", steps[1])
	assert.Equal(t, "Review similar incident #7: Previous gateway outage", steps[2])
	assert.Equal(t, "Check runbook: payments.md (chunk 2)", steps[3])
}

func TestComposeNextStepsDefault(t *testing.T) {
	inc := &ent.Incident{
		ID:       1,
		Title:    "Quiet incident",
		Status:   incident.StatusOpen,
		Severity: incident.SeverityInfo,
	}

	steps := composeNextSteps(inc, nil, nil)

	require.Len(t, steps, 1)
	assert.Equal(t, "Gather additional context from logs and metrics", steps[0])
}

func TestComposeNextStepsWarningSeverityNotPaged(t *testing.T) {
	inc := testIncident()
	inc.Severity = incident.SeverityWarning

	steps := composeNextSteps(inc, nil, nil)

	require.NotEmpty(t, steps)
	assert.NotEqual(t, "Page on-call and open an incident bridge", steps[0])
	assert.Equal(t, "Validate service health for: payments, checkout", steps[0])
}

func TestRound3(t *testing.T) {
	assert.InDelta(t, 0.823, round3(0.82345), 1e-9)
	assert.InDelta(t, 1.0, round3(0.9996), 1e-9)
}
