// Package runbook ingests markdown operational documentation into the
// retrievable chunk store.
package runbook

import (
	"strings"
)

const (
	// DefaultMaxChars bounds a chunk before paragraph packing stops.
	DefaultMaxChars = 2400
	// DefaultOverlap is the tail of the previous chunk prepended to the next
	// one so context survives the cut.
	DefaultOverlap = 200
)

// Chunk is one retrievable passage of a document.
type Chunk struct {
	Content    string
	ChunkIndex int
	Title      string
}

// ExtractTitle returns the first markdown heading, hashes stripped, or "".
func ExtractTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "#"))
		}
	}
	return ""
}

// ChunkMarkdown splits markdown into chunks by packing blank-line separated
// paragraphs up to maxChars, then prepends an overlap tail from each chunk's
// predecessor. Every chunk carries the document title.
func ChunkMarkdown(text string, maxChars, overlap int) []Chunk {
	title := ExtractTitle(text)
	paragraphs := splitParagraphs(text)

	var chunks []Chunk
	current := ""

	flush := func() {
		if trimmed := strings.TrimSpace(current); trimmed != "" {
			chunks = append(chunks, Chunk{
				Content:    trimmed,
				ChunkIndex: len(chunks),
				Title:      title,
			})
		}
		current = ""
	}

	for _, para := range paragraphs {
		if para == "" {
			continue
		}
		if len(current)+len(para)+2 <= maxChars {
			current = strings.TrimSpace(current + "\n\n" + para)
		} else {
			flush()
			current = para
		}
	}
	flush()

	if overlap > 0 && len(chunks) > 1 {
		for i := 1; i < len(chunks); i++ {
			prev := chunks[i-1].Content
			tail := prev
			if len(prev) > overlap {
				tail = prev[len(prev)-overlap:]
			}
			chunks[i].Content = tail + "\n" + chunks[i].Content
		}
	}

	return chunks
}

// splitParagraphs groups lines into blank-line separated blocks.
func splitParagraphs(text string) []string {
	var paragraphs []string
	var buffer []string

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" && len(buffer) > 0 {
			paragraphs = append(paragraphs, strings.TrimSpace(strings.Join(buffer, "\n")))
			buffer = nil
		} else if strings.TrimSpace(line) != "" || len(buffer) > 0 {
			buffer = append(buffer, line)
		}
	}
	if len(buffer) > 0 {
		paragraphs = append(paragraphs, strings.TrimSpace(strings.Join(buffer, "\n")))
	}
	return paragraphs
}
