// Package vector provides the knowledge retrieval service interface consumed
// by the conversation pipeline.
package vector

import "context"

// DefaultTopK is the default number of results returned by a search.
const DefaultTopK = 5

// Service defines the retrieval collaborator contract. Implementations embed
// the query, search the knowledge index, and filter by the similarity floor
// before returning. Callers receive only results at or above the floor,
// highest similarity first.
type Service interface {
	// Search returns up to topK results for the query, best match first.
	Search(ctx context.Context, query string, topK int, floor float32) ([]RetrievalResult, error)

	// Stats reports the size of the knowledge index.
	Stats(ctx context.Context) (*Stats, error)
}

// ChunkMetadata is the fixed-shape metadata carried by a retrieval result.
// Extra holds unclassified tags that have no dedicated field.
type ChunkMetadata struct {
	SourcePath  string            `json:"source_path"`
	ChunkIndex  int               `json:"chunk_index"`
	TotalChunks int               `json:"total_chunks"`
	ContentType string            `json:"content_type"`
	Tags        []string          `json:"tags,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// RetrievalResult represents one retrieved knowledge chunk. Results are
// consumed once by the prompt assembler and never persisted.
type RetrievalResult struct {
	Content    string        `json:"content"`
	Similarity float32       `json:"similarity"` // 0-1, higher is more similar
	Source     string        `json:"source"`
	Metadata   ChunkMetadata `json:"metadata"`
}

// Stats reports the size of the knowledge index.
type Stats struct {
	ChunkCount     int64  `json:"chunk_count"`
	SourceCount    int64  `json:"source_count"`
	SizeEstimate   int64  `json:"size_estimate_bytes"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
}
