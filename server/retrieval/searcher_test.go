package retrieval

import (
	"context"
	"database/sql"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pachverse/sitechat/store"
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embedding(context.Context, string) ([]float32, error) {
	return f.vector, f.err
}

// fakeDriver serves canned vector search results.
type fakeDriver struct {
	scored []*store.ChunkWithScore
	stats  store.KnowledgeStats
	err    error
}

func (f *fakeDriver) GetDB() *sql.DB                    { return nil }
func (f *fakeDriver) Close() error                      { return nil }
func (f *fakeDriver) Migrate(context.Context) error     { return nil }
func (f *fakeDriver) UpsertKnowledgeChunk(_ context.Context, c *store.KnowledgeChunk) (*store.KnowledgeChunk, error) {
	return c, nil
}
func (f *fakeDriver) ListKnowledgeChunks(context.Context, *store.FindKnowledgeChunk) ([]*store.KnowledgeChunk, error) {
	return nil, nil
}
func (f *fakeDriver) DeleteKnowledgeChunks(context.Context, *store.DeleteKnowledgeChunk) error {
	return nil
}
func (f *fakeDriver) KnowledgeStats(context.Context) (*store.KnowledgeStats, error) {
	stats := f.stats
	return &stats, nil
}
func (f *fakeDriver) VectorSearch(context.Context, *store.VectorSearchOptions) ([]*store.ChunkWithScore, error) {
	return f.scored, f.err
}

func scoredChunk(id, source, content string, score float32) *store.ChunkWithScore {
	return &store.ChunkWithScore{
		Chunk: &store.KnowledgeChunk{
			ID:          id,
			Source:      source,
			SourcePath:  "knowledge/" + source,
			ContentType: "general",
			Content:     content,
		},
		Score: score,
	}
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2}}

	t.Run("FloorFiltersResults", func(t *testing.T) {
		driver := &fakeDriver{scored: []*store.ChunkWithScore{
			scoredChunk("a_0_11111111", "about.md", "high match", 0.92),
			scoredChunk("b_0_22222222", "projects.md", "mid match", 0.75),
			scoredChunk("c_0_33333333", "contact.md", "low match", 0.41),
		}}
		s := NewSearcher(embedder, store.New(driver, nil), "text-embedding-3-small")

		results, err := s.Search(ctx, "what projects?", 5, 0.7)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "high match", results[0].Content)
		assert.Equal(t, "about.md", results[0].Source)
		assert.Equal(t, float32(0.75), results[1].Similarity)
	})

	t.Run("TopKCapsResults", func(t *testing.T) {
		driver := &fakeDriver{scored: []*store.ChunkWithScore{
			scoredChunk("a_0_11111111", "a.md", "one", 0.9),
			scoredChunk("b_0_22222222", "b.md", "two", 0.89),
			scoredChunk("c_0_33333333", "c.md", "three", 0.88),
		}}
		s := NewSearcher(embedder, store.New(driver, nil), "text-embedding-3-small")

		results, err := s.Search(ctx, "q", 2, 0.5)
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("EmptyQueryNoResults", func(t *testing.T) {
		s := NewSearcher(embedder, store.New(&fakeDriver{}, nil), "text-embedding-3-small")
		results, err := s.Search(ctx, "", 5, 0.7)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("EmbedderFailurePropagates", func(t *testing.T) {
		failing := &fakeEmbedder{err: errors.New("embedding service down")}
		s := NewSearcher(failing, store.New(&fakeDriver{}, nil), "text-embedding-3-small")
		_, err := s.Search(ctx, "q", 5, 0.7)
		assert.Error(t, err)
	})

	t.Run("StoreFailurePropagates", func(t *testing.T) {
		driver := &fakeDriver{err: errors.New("db unreachable")}
		s := NewSearcher(embedder, store.New(driver, nil), "text-embedding-3-small")
		_, err := s.Search(ctx, "q", 5, 0.7)
		assert.Error(t, err)
	})

	t.Run("MetadataCarried", func(t *testing.T) {
		chunk := scoredChunk("skills_2_44444444", "skills.md", "Go, Postgres", 0.95)
		chunk.Chunk.ChunkIndex = 2
		chunk.Chunk.TotalChunks = 4
		chunk.Chunk.ContentType = "skills"
		chunk.Chunk.Tags = []string{"go", "postgresql"}
		driver := &fakeDriver{scored: []*store.ChunkWithScore{chunk}}
		s := NewSearcher(embedder, store.New(driver, nil), "text-embedding-3-small")

		results, err := s.Search(ctx, "skills", 5, 0.7)
		require.NoError(t, err)
		require.Len(t, results, 1)
		meta := results[0].Metadata
		assert.Equal(t, "knowledge/skills.md", meta.SourcePath)
		assert.Equal(t, 2, meta.ChunkIndex)
		assert.Equal(t, 4, meta.TotalChunks)
		assert.Equal(t, "skills", meta.ContentType)
		assert.Equal(t, []string{"go", "postgresql"}, meta.Tags)
	})
}

func TestStats(t *testing.T) {
	driver := &fakeDriver{stats: store.KnowledgeStats{
		ChunkCount:   12,
		SourceCount:  3,
		ContentBytes: 4096,
	}}
	s := NewSearcher(&fakeEmbedder{}, store.New(driver, nil), "text-embedding-3-small")

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), stats.ChunkCount)
	assert.Equal(t, int64(3), stats.SourceCount)
	assert.Equal(t, int64(4096), stats.SizeEstimate)
	assert.Equal(t, "text-embedding-3-small", stats.EmbeddingModel)
}
