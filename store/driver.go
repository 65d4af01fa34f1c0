package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database drivers should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	// Migrate creates the schema if it does not exist.
	Migrate(ctx context.Context) error

	// KnowledgeChunk model related methods.
	UpsertKnowledgeChunk(ctx context.Context, chunk *KnowledgeChunk) (*KnowledgeChunk, error)
	ListKnowledgeChunks(ctx context.Context, find *FindKnowledgeChunk) ([]*KnowledgeChunk, error)
	DeleteKnowledgeChunks(ctx context.Context, delete *DeleteKnowledgeChunk) error
	KnowledgeStats(ctx context.Context) (*KnowledgeStats, error)

	// VectorSearch performs cosine similarity search over chunk embeddings.
	VectorSearch(ctx context.Context, opts *VectorSearchOptions) ([]*ChunkWithScore, error)
}
