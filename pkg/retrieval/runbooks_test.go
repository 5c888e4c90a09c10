package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opsrelay/opsrelay/ent"
	"github.com/opsrelay/opsrelay/pkg/config"
)

func newTestRetriever() *RunbookRetriever {
	return &RunbookRetriever{cfg: config.DefaultRetrievalConfig()}
}

func TestBoostsTitleMatch(t *testing.T) {
	r := newTestRetriever()
	chunk := &ent.RunbookChunk{
		Title:   strPtr("Database failover procedure"),
		Content: "Unrelated body text",
	}

	assert.InDelta(t, 0.08, r.boosts("database failover", chunk), 1e-9)
}

func TestBoostsContentMatch(t *testing.T) {
	r := newTestRetriever()
	chunk := &ent.RunbookChunk{
		Title:   strPtr("Unrelated"),
		Content: "Run the cache warmup script before restarting",
	}

	assert.InDelta(t, 0.05, r.boosts("cache warmup", chunk), 1e-9)
}

func TestBoostsBoth(t *testing.T) {
	r := newTestRetriever()
	chunk := &ent.RunbookChunk{
		Title:   strPtr("Redis restart"),
		Content: "How to perform a redis restart safely",
	}

	assert.InDelta(t, 0.13, r.boosts("redis restart", chunk), 1e-9)
}

func TestBoostsNone(t *testing.T) {
	r := newTestRetriever()
	chunk := &ent.RunbookChunk{
		Title:   strPtr("Kafka rebalance"),
		Content: "Partition reassignment steps",
	}

	assert.Zero(t, r.boosts("postgres vacuum", chunk))
	assert.Zero(t, r.boosts("", chunk))
}

func TestChunkText(t *testing.T) {
	assert.Equal(t, "Title Body",
		chunkText(&ent.RunbookChunk{Title: strPtr("Title"), Content: "Body"}))
	assert.Equal(t, "Body only",
		chunkText(&ent.RunbookChunk{Content: "Body only"}))
}
