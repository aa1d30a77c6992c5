package core

import "context"

// Document is one retrieval hit.
type Document struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score"`
}

// Retriever reaches the external vector-store backend. The engine uses it for
// rag prompt assembly and through the retrieve_information tool.
type Retriever interface {
	SimilaritySearch(ctx context.Context, query string, k int, collection string, scoreThreshold float64) ([]Document, error)
}
