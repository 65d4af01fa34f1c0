package store

import "context"

// KnowledgeChunk is one embedded slice of a knowledge base document.
type KnowledgeChunk struct {
	// ID is derived from the source stem, chunk index, and content hash,
	// so re-indexing unchanged content is idempotent.
	ID          string
	Source      string // display name, e.g. "projects.md"
	SourcePath  string
	ChunkIndex  int
	TotalChunks int
	ContentType string
	Tags        []string
	Content     string
	Embedding   []float32
	CreatedTs   int64
	UpdatedTs   int64
}

// FindKnowledgeChunk is the find condition for knowledge chunks.
type FindKnowledgeChunk struct {
	ID          *string
	SourcePath  *string
	ContentType *string
}

// DeleteKnowledgeChunk is the delete condition for knowledge chunks.
// A nil SourcePath deletes everything.
type DeleteKnowledgeChunk struct {
	SourcePath *string
}

// ChunkWithScore is a vector search result with its similarity score.
type ChunkWithScore struct {
	Chunk *KnowledgeChunk
	Score float32 // cosine similarity, 0-1, higher is more similar
}

// VectorSearchOptions are the options for vector similarity search.
type VectorSearchOptions struct {
	Vector []float32
	Limit  int // number of results to return, default 10
}

// KnowledgeStats summarizes the indexed knowledge base.
type KnowledgeStats struct {
	ChunkCount   int64
	SourceCount  int64
	ContentBytes int64
}

// UpsertKnowledgeChunk inserts or updates a knowledge chunk.
func (s *Store) UpsertKnowledgeChunk(ctx context.Context, chunk *KnowledgeChunk) (*KnowledgeChunk, error) {
	return s.driver.UpsertKnowledgeChunk(ctx, chunk)
}

// ListKnowledgeChunks lists knowledge chunks.
func (s *Store) ListKnowledgeChunks(ctx context.Context, find *FindKnowledgeChunk) ([]*KnowledgeChunk, error) {
	return s.driver.ListKnowledgeChunks(ctx, find)
}

// DeleteKnowledgeChunks deletes knowledge chunks matching the condition.
func (s *Store) DeleteKnowledgeChunks(ctx context.Context, delete *DeleteKnowledgeChunk) error {
	return s.driver.DeleteKnowledgeChunks(ctx, delete)
}

// KnowledgeStats reports aggregate stats over the indexed chunks.
func (s *Store) KnowledgeStats(ctx context.Context) (*KnowledgeStats, error) {
	return s.driver.KnowledgeStats(ctx)
}

// VectorSearch performs vector similarity search.
func (s *Store) VectorSearch(ctx context.Context, opts *VectorSearchOptions) ([]*ChunkWithScore, error) {
	return s.driver.VectorSearch(ctx, opts)
}
