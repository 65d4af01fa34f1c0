package knowledge

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	serverai "github.com/pachverse/sitechat/server/ai"
	"github.com/pachverse/sitechat/store"
)

// defaultEmbedConcurrency bounds how many documents embed in parallel.
const defaultEmbedConcurrency = 4

// BatchEmbedder turns a batch of texts into embedding vectors.
type BatchEmbedder interface {
	EmbeddingBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Indexer chunks knowledge documents, embeds the chunks, and writes them to
// the store. Chunk IDs are derived from content, so indexing the same
// documents twice writes the same rows.
type Indexer struct {
	embedder    BatchEmbedder
	store       *store.Store
	chunker     *serverai.Chunker
	concurrency int64
}

// NewIndexer creates an indexer with the given chunk token budget.
func NewIndexer(embedder BatchEmbedder, st *store.Store, chunkTokenBudget int) *Indexer {
	return &Indexer{
		embedder:    embedder,
		store:       st,
		chunker:     serverai.NewChunker(chunkTokenBudget),
		concurrency: defaultEmbedConcurrency,
	}
}

// IndexResult summarizes one indexing run.
type IndexResult struct {
	Documents int
	Chunks    int
	Failed    []string // paths of documents that failed to index
	Elapsed   time.Duration
}

// IndexDir loads every document under dir and indexes it. A document that
// fails to embed or store is recorded in Failed and the run continues;
// the error return is reserved for total failures like an unreadable dir.
func (ix *Indexer) IndexDir(ctx context.Context, dir string) (*IndexResult, error) {
	start := time.Now()

	docs, loadErrs := LoadDir(dir)
	for _, err := range loadErrs {
		slog.Warn("skipping unreadable knowledge file", slog.Any("error", err))
	}
	if len(docs) == 0 && len(loadErrs) > 0 {
		return nil, errors.Errorf("no knowledge documents loaded from %s", dir)
	}

	result := &IndexResult{Documents: len(docs)}

	sem := semaphore.NewWeighted(ix.concurrency)
	type docOutcome struct {
		path   string
		chunks int
		err    error
	}
	outcomes := make(chan docOutcome, len(docs))

	for _, doc := range docs {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, errors.Wrap(err, "indexing cancelled")
		}
		go func(doc Document) {
			defer sem.Release(1)
			n, err := ix.indexDocument(ctx, doc)
			outcomes <- docOutcome{path: doc.Path, chunks: n, err: err}
		}(doc)
	}

	for range docs {
		outcome := <-outcomes
		if outcome.err != nil {
			slog.Error("failed to index document",
				slog.String("path", outcome.path),
				slog.Any("error", outcome.err))
			result.Failed = append(result.Failed, outcome.path)
			continue
		}
		result.Chunks += outcome.chunks
	}

	result.Elapsed = time.Since(start)
	slog.Info("knowledge indexing done",
		slog.Int("documents", result.Documents),
		slog.Int("chunks", result.Chunks),
		slog.Int("failed", len(result.Failed)),
		slog.Duration("elapsed", result.Elapsed))
	return result, nil
}

// Reindex drops every stored chunk and rebuilds the index from dir.
func (ix *Indexer) Reindex(ctx context.Context, dir string) (*IndexResult, error) {
	if err := ix.store.DeleteKnowledgeChunks(ctx, &store.DeleteKnowledgeChunk{}); err != nil {
		return nil, errors.Wrap(err, "failed to clear knowledge index")
	}
	return ix.IndexDir(ctx, dir)
}

func (ix *Indexer) indexDocument(ctx context.Context, doc Document) (int, error) {
	chunks := ix.chunker.Chunk(doc.Content)
	if len(chunks) == 0 {
		return 0, nil
	}

	embeddings, err := ix.embedder.EmbeddingBatch(ctx, chunks)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to embed %s", doc.Path)
	}
	if len(embeddings) != len(chunks) {
		return 0, errors.Errorf("embedding count mismatch for %s: %d chunks, %d vectors", doc.Path, len(chunks), len(embeddings))
	}

	now := time.Now().Unix()
	for i, content := range chunks {
		chunk := &store.KnowledgeChunk{
			ID:          serverai.ChunkID(doc.Stem, i, content),
			Source:      doc.Name,
			SourcePath:  doc.Path,
			ChunkIndex:  i,
			TotalChunks: len(chunks),
			ContentType: doc.ContentType,
			Tags:        doc.Tags,
			Content:     content,
			Embedding:   embeddings[i],
			CreatedTs:   now,
			UpdatedTs:   now,
		}
		if _, err := ix.store.UpsertKnowledgeChunk(ctx, chunk); err != nil {
			return 0, errors.Wrapf(err, "failed to store chunk %s", chunk.ID)
		}
	}
	return len(chunks), nil
}
