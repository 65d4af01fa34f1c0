package sqlite

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/pachverse/sitechat/store"
)

// UpsertKnowledgeChunk inserts or updates a knowledge chunk.
func (d *DB) UpsertKnowledgeChunk(ctx context.Context, chunk *store.KnowledgeChunk) (*store.KnowledgeChunk, error) {
	tags, err := json.Marshal(chunk.Tags)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal tags")
	}
	embedding, err := json.Marshal(chunk.Embedding)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal embedding")
	}

	stmt := `
		INSERT INTO knowledge_chunk (id, source, source_path, chunk_index, total_chunks, content_type, tags, content, embedding, created_ts, updated_ts)
		VALUES (` + placeholders(11) + `)
		ON CONFLICT (id)
		DO UPDATE SET
			total_chunks = EXCLUDED.total_chunks,
			content_type = EXCLUDED.content_type,
			tags = EXCLUDED.tags,
			embedding = EXCLUDED.embedding,
			updated_ts = EXCLUDED.updated_ts
	`

	_, err = d.db.ExecContext(ctx, stmt,
		chunk.ID,
		chunk.Source,
		chunk.SourcePath,
		chunk.ChunkIndex,
		chunk.TotalChunks,
		chunk.ContentType,
		string(tags),
		chunk.Content,
		string(embedding),
		chunk.CreatedTs,
		chunk.UpdatedTs,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert knowledge chunk")
	}
	return chunk, nil
}

// ListKnowledgeChunks lists knowledge chunks.
func (d *DB) ListKnowledgeChunks(ctx context.Context, find *store.FindKnowledgeChunk) ([]*store.KnowledgeChunk, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.SourcePath != nil {
		where, args = append(where, "source_path = ?"), append(args, *find.SourcePath)
	}
	if find.ContentType != nil {
		where, args = append(where, "content_type = ?"), append(args, *find.ContentType)
	}

	query := `
		SELECT id, source, source_path, chunk_index, total_chunks, content_type, tags, content, embedding, created_ts, updated_ts
		FROM knowledge_chunk
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY source_path, chunk_index
	`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list knowledge chunks")
	}
	defer rows.Close()

	list := []*store.KnowledgeChunk{}
	for rows.Next() {
		var chunk store.KnowledgeChunk
		var tags, embedding string
		err := rows.Scan(
			&chunk.ID,
			&chunk.Source,
			&chunk.SourcePath,
			&chunk.ChunkIndex,
			&chunk.TotalChunks,
			&chunk.ContentType,
			&tags,
			&chunk.Content,
			&embedding,
			&chunk.CreatedTs,
			&chunk.UpdatedTs,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan knowledge chunk")
		}
		if err := json.Unmarshal([]byte(tags), &chunk.Tags); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal tags")
		}
		if err := json.Unmarshal([]byte(embedding), &chunk.Embedding); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal embedding")
		}
		list = append(list, &chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// DeleteKnowledgeChunks deletes knowledge chunks matching the condition.
func (d *DB) DeleteKnowledgeChunks(ctx context.Context, delete *store.DeleteKnowledgeChunk) error {
	stmt := "DELETE FROM knowledge_chunk"
	args := []any{}
	if delete.SourcePath != nil {
		stmt += " WHERE source_path = ?"
		args = append(args, *delete.SourcePath)
	}
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return errors.Wrap(err, "failed to delete knowledge chunks")
	}
	return nil
}

// KnowledgeStats reports aggregate stats over the indexed chunks.
func (d *DB) KnowledgeStats(ctx context.Context) (*store.KnowledgeStats, error) {
	stats := &store.KnowledgeStats{}
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT source_path), COALESCE(SUM(LENGTH(content)), 0)
		FROM knowledge_chunk
	`).Scan(&stats.ChunkCount, &stats.SourceCount, &stats.ContentBytes)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query knowledge stats")
	}
	return stats, nil
}

// VectorSearch scans every stored embedding and ranks by cosine similarity
// in-process. Linear in the number of chunks, which is acceptable for the
// knowledge base sizes SQLite deployments carry.
func (d *DB) VectorSearch(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.ChunkWithScore, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	chunks, err := d.ListKnowledgeChunks(ctx, &store.FindKnowledgeChunk{})
	if err != nil {
		return nil, err
	}

	results := []*store.ChunkWithScore{}
	for _, chunk := range chunks {
		score, ok := cosineSimilarity(opts.Vector, chunk.Embedding)
		if !ok {
			continue
		}
		results = append(results, &store.ChunkWithScore{Chunk: chunk, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// cosineSimilarity returns the cosine of the angle between a and b.
// Reports false for mismatched dimensions or zero vectors.
func cosineSimilarity(a, b []float32) (float32, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB))), true
}
