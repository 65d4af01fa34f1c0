// Package retrieval embeds user queries and ranks knowledge chunks by
// vector similarity.
package retrieval

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/pachverse/sitechat/plugin/ai/vector"
	"github.com/pachverse/sitechat/store"
)

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embedding(ctx context.Context, text string) ([]float32, error)
}

// Searcher implements vector.Service on top of the store's vector search.
// The similarity floor is applied here, before results reach any caller,
// so downstream code never sees below-threshold matches.
type Searcher struct {
	embedder       Embedder
	store          *store.Store
	embeddingModel string
}

// NewSearcher creates a searcher over the given embedder and store.
func NewSearcher(embedder Embedder, st *store.Store, embeddingModel string) *Searcher {
	return &Searcher{
		embedder:       embedder,
		store:          st,
		embeddingModel: embeddingModel,
	}
}

var _ vector.Service = (*Searcher)(nil)

// Search embeds the query and returns up to topK chunks whose cosine
// similarity is at or above floor, best first.
func (s *Searcher) Search(ctx context.Context, query string, topK int, floor float32) ([]vector.RetrievalResult, error) {
	if query == "" {
		return nil, nil
	}
	if topK <= 0 {
		topK = vector.DefaultTopK
	}

	embedding, err := s.embedder.Embedding(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to embed query")
	}

	// Over-fetch: the floor may discard some of the nearest neighbors.
	scored, err := s.store.VectorSearch(ctx, &store.VectorSearchOptions{
		Vector: embedding,
		Limit:  topK * 2,
	})
	if err != nil {
		return nil, errors.Wrap(err, "vector search failed")
	}

	results := make([]vector.RetrievalResult, 0, topK)
	for _, item := range scored {
		if item.Score < floor {
			continue
		}
		results = append(results, vector.RetrievalResult{
			Content:    item.Chunk.Content,
			Similarity: item.Score,
			Source:     item.Chunk.Source,
			Metadata: vector.ChunkMetadata{
				SourcePath:  item.Chunk.SourcePath,
				ChunkIndex:  item.Chunk.ChunkIndex,
				TotalChunks: item.Chunk.TotalChunks,
				ContentType: item.Chunk.ContentType,
				Tags:        item.Chunk.Tags,
			},
		})
		if len(results) == topK {
			break
		}
	}

	slog.Debug("retrieval search done",
		slog.Int("candidates", len(scored)),
		slog.Int("kept", len(results)),
		slog.Float64("floor", float64(floor)))
	return results, nil
}

// Stats reports the state of the indexed knowledge base.
func (s *Searcher) Stats(ctx context.Context) (*vector.Stats, error) {
	stats, err := s.store.KnowledgeStats(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load knowledge stats")
	}
	return &vector.Stats{
		ChunkCount:     stats.ChunkCount,
		SourceCount:    stats.SourceCount,
		SizeEstimate:   stats.ContentBytes,
		EmbeddingModel: s.embeddingModel,
	}, nil
}
