package postgres

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/pachverse/sitechat/store"
)

// UpsertKnowledgeChunk inserts or updates a knowledge chunk.
func (d *DB) UpsertKnowledgeChunk(ctx context.Context, chunk *store.KnowledgeChunk) (*store.KnowledgeChunk, error) {
	tags, err := json.Marshal(chunk.Tags)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal tags")
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
		RETURNING created_ts, updated_ts
	`

	vector := pgvector.NewVector(chunk.Embedding)
	err = d.db.QueryRowContext(ctx, stmt,
		chunk.ID,
		chunk.Source,
		chunk.SourcePath,
		chunk.ChunkIndex,
		chunk.TotalChunks,
		chunk.ContentType,
		string(tags),
		chunk.Content,
		vector,
		chunk.CreatedTs,
		chunk.UpdatedTs,
	).Scan(&chunk.CreatedTs, &chunk.UpdatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert knowledge chunk")
	}

	return chunk, nil
}

// ListKnowledgeChunks lists knowledge chunks.
func (d *DB) ListKnowledgeChunks(ctx context.Context, find *store.FindKnowledgeChunk) ([]*store.KnowledgeChunk, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.SourcePath != nil {
		where, args = append(where, "source_path = "+placeholder(len(args)+1)), append(args, *find.SourcePath)
	}
	if find.ContentType != nil {
		where, args = append(where, "content_type = "+placeholder(len(args)+1)), append(args, *find.ContentType)
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
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, chunk)
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
		stmt += " WHERE source_path = " + placeholder(1)
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

// VectorSearch performs vector similarity search using pgvector.
// The <=> operator computes cosine distance, so similarity is 1 - distance.
func (d *DB) VectorSearch(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.ChunkWithScore, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, source, source_path, chunk_index, total_chunks, content_type, tags, content, embedding, created_ts, updated_ts,
			1 - (embedding <=> $1) AS score
		FROM knowledge_chunk
		ORDER BY embedding <=> $1
		LIMIT $2
	`

	rows, err := d.db.QueryContext(ctx, query, pgvector.NewVector(opts.Vector), limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to perform vector search")
	}
	defer rows.Close()

	results := []*store.ChunkWithScore{}
	for rows.Next() {
		var chunk store.KnowledgeChunk
		var tags string
		var vector pgvector.Vector
		var score float32
		err := rows.Scan(
			&chunk.ID,
			&chunk.Source,
			&chunk.SourcePath,
			&chunk.ChunkIndex,
			&chunk.TotalChunks,
			&chunk.ContentType,
			&tags,
			&chunk.Content,
			&vector,
			&chunk.CreatedTs,
			&chunk.UpdatedTs,
			&score,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan vector search result")
		}
		if err := json.Unmarshal([]byte(tags), &chunk.Tags); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal tags")
		}
		chunk.Embedding = vector.Slice()
		results = append(results, &store.ChunkWithScore{Chunk: &chunk, Score: score})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func scanChunk(rows interface {
	Scan(dest ...any) error
}) (*store.KnowledgeChunk, error) {
	var chunk store.KnowledgeChunk
	var tags string
	var vector pgvector.Vector
	err := rows.Scan(
		&chunk.ID,
		&chunk.Source,
		&chunk.SourcePath,
		&chunk.ChunkIndex,
		&chunk.TotalChunks,
		&chunk.ContentType,
		&tags,
		&chunk.Content,
		&vector,
		&chunk.CreatedTs,
		&chunk.UpdatedTs,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan knowledge chunk")
	}
	if err := json.Unmarshal([]byte(tags), &chunk.Tags); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal tags")
	}
	chunk.Embedding = vector.Slice()
	return &chunk, nil
}
