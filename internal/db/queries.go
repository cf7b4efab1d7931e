package db

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type EmbeddingCache struct {
	EmbedModel  string
	ContentHash string
	Dimension   int64
	Embedding   []byte
	CreatedAt   int64
}

const getEmbeddingCache = `
SELECT embed_model, content_hash, dimension, embedding, created_at
FROM embedding_cache
WHERE embed_model = ? AND content_hash = ?
`

// GetEmbeddingCache returns sql.ErrNoRows when the entry is absent.
func (q *Queries) GetEmbeddingCache(ctx context.Context, model, hash string) (EmbeddingCache, error) {
	var e EmbeddingCache
	err := q.db.QueryRowContext(ctx, getEmbeddingCache, model, hash).Scan(
		&e.EmbedModel,
		&e.ContentHash,
		&e.Dimension,
		&e.Embedding,
		&e.CreatedAt,
	)
	return e, err
}

const upsertEmbeddingCache = `
INSERT INTO embedding_cache (embed_model, content_hash, dimension, embedding)
VALUES (?, ?, ?, ?)
ON CONFLICT (embed_model, content_hash) DO UPDATE SET
    dimension  = excluded.dimension,
    embedding  = excluded.embedding,
    created_at = unixepoch()
`

type UpsertEmbeddingCacheParams struct {
	EmbedModel  string
	ContentHash string
	Dimension   int64
	Embedding   []byte
}

func (q *Queries) UpsertEmbeddingCache(ctx context.Context, arg UpsertEmbeddingCacheParams) error {
	_, err := q.db.ExecContext(ctx, upsertEmbeddingCache,
		arg.EmbedModel,
		arg.ContentHash,
		arg.Dimension,
		arg.Embedding,
	)
	return err
}

const pruneEmbeddingCache = `
DELETE FROM embedding_cache
WHERE rowid NOT IN (
    SELECT rowid FROM embedding_cache
    ORDER BY created_at DESC, rowid DESC
    LIMIT ?
)
`

// PruneEmbeddingCache keeps only the keep most recent entries.
func (q *Queries) PruneEmbeddingCache(ctx context.Context, keep int64) error {
	_, err := q.db.ExecContext(ctx, pruneEmbeddingCache, keep)
	return err
}

const countEmbeddingCache = `SELECT COUNT(*) FROM embedding_cache`

func (q *Queries) CountEmbeddingCache(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countEmbeddingCache).Scan(&n)
	return n, err
}
