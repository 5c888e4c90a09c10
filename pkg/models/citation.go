// Package models defines shared domain types that cross package boundaries:
// citations, retrieval results, and API-facing value objects.
package models

// CitationType discriminates the tagged Citation variants.
type CitationType string

// Citation variants.
const (
	CitationIncident CitationType = "incident"
	CitationAlert    CitationType = "alert"
	CitationRunbook  CitationType = "runbook"
)

// Citation is a lightweight reference emitted by the summarizer and echoed
// back on chat responses. Exactly one variant's fields are populated:
//
//	incident: ID, Title, Score
//	alert:    ID, Title
//	runbook:  SourceDocument, ChunkIndex, Title, Score
type Citation struct {
	Type           CitationType `json:"type"`
	ID             int          `json:"id,omitempty"`
	Title          string       `json:"title,omitempty"`
	Score          float64      `json:"score,omitempty"`
	SourceDocument string       `json:"source_document,omitempty"`
	ChunkIndex     *int         `json:"chunk_index,omitempty"`
}
