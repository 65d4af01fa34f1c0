package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/pachverse/sitechat/internal/profile"
	"github.com/pachverse/sitechat/store"
)

// embeddingDimensions matches text-embedding-3-small.
const embeddingDimensions = 1536

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", profile.DSN)
	}

	// Small pool: the service is a single-process chat backend.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(2 * time.Hour)
	db.SetConnMaxIdleTime(15 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return &DB{
		db:      db,
		profile: profile,
	}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Migrate creates the pgvector extension and the knowledge_chunk table.
func (d *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS knowledge_chunk (
				id TEXT PRIMARY KEY,
				source TEXT NOT NULL,
				source_path TEXT NOT NULL,
				chunk_index INTEGER NOT NULL,
				total_chunks INTEGER NOT NULL,
				content_type TEXT NOT NULL DEFAULT 'general',
				tags TEXT NOT NULL DEFAULT '[]',
				content TEXT NOT NULL,
				embedding vector(%d) NOT NULL,
				created_ts BIGINT NOT NULL,
				updated_ts BIGINT NOT NULL
			)`, embeddingDimensions),
		"CREATE INDEX IF NOT EXISTS idx_knowledge_chunk_source_path ON knowledge_chunk (source_path)",
		`CREATE INDEX IF NOT EXISTS idx_knowledge_chunk_embedding
			ON knowledge_chunk USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to run migration statement")
		}
	}
	return nil
}

// placeholder returns the n-th PostgreSQL placeholder ($1, $2, ...).
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// placeholders returns n placeholders.
func placeholders(n int) string {
	list := []string{}
	for i := 0; i < n; i++ {
		list = append(list, placeholder(i+1))
	}
	return strings.Join(list, ", ")
}
