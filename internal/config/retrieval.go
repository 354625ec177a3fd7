package config

// RetrievalConfig controls the fusion stage of the local retrieval pipeline.
type RetrievalConfig struct {
	// CandidatePool caps how many hits each index contributes before fusion.
	CandidatePool int `mapstructure:"candidate_pool" json:"candidate_pool"`
	// TopN is the size of the fused evidence set handed to downstream stages.
	TopN int `mapstructure:"top_n" json:"top_n"`
	// RerankEnabled turns on LLM reranking of the fused candidate set.
	RerankEnabled bool `mapstructure:"rerank_enabled" json:"rerank_enabled"`
}
