package config

// RetrievalConfig contains the hybrid retrieval weights and thresholds.
type RetrievalConfig struct {
	// VectorWeight and KeywordWeight blend the two retrieval signals.
	// They are not required to sum to 1.
	VectorWeight  float64
	KeywordWeight float64

	// MinScore is the inclusive floor below which blended results are dropped.
	MinScore float64

	// MinKeywordOverlap is the minimum jaccard overlap for the degraded
	// keyword-only path.
	MinKeywordOverlap float64

	// RerankTitleBoost is added when a query token appears in a chunk title.
	RerankTitleBoost float64

	// RerankPhraseBoost is added when the query appears verbatim in a chunk.
	RerankPhraseBoost float64
}

// DefaultRetrievalConfig returns the built-in retrieval defaults.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		VectorWeight:      0.7,
		KeywordWeight:     0.3,
		MinScore:          0.1,
		MinKeywordOverlap: 0.05,
		RerankTitleBoost:  0.08,
		RerankPhraseBoost: 0.05,
	}
}

// LoadRetrievalConfig reads retrieval settings from the environment on top of
// the defaults.
func LoadRetrievalConfig() RetrievalConfig {
	cfg := DefaultRetrievalConfig()
	cfg.VectorWeight = getEnvFloat("RAG_VECTOR_WEIGHT", cfg.VectorWeight)
	cfg.KeywordWeight = getEnvFloat("RAG_KEYWORD_WEIGHT", cfg.KeywordWeight)
	cfg.MinScore = getEnvFloat("RAG_MIN_SCORE", cfg.MinScore)
	cfg.MinKeywordOverlap = getEnvFloat("RAG_MIN_KEYWORD_OVERLAP", cfg.MinKeywordOverlap)
	cfg.RerankTitleBoost = getEnvFloat("RAG_RERANK_TITLE_BOOST", cfg.RerankTitleBoost)
	cfg.RerankPhraseBoost = getEnvFloat("RAG_RERANK_PHRASE_BOOST", cfg.RerankPhraseBoost)
	return cfg
}
