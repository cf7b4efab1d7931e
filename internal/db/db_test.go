package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingCacheQueries(t *testing.T) {
	database, err := Open(filepath.Join(t.TempDir(), "nested", "cache.db"))
	require.NoError(t, err)
	defer database.Close()
	require.NoError(t, database.Migrate())
	require.NoError(t, database.Migrate(), "migrate is idempotent")

	q := New(database.Conn())
	ctx := context.Background()

	_, err = q.GetEmbeddingCache(ctx, "m", "h1")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, q.UpsertEmbeddingCache(ctx, UpsertEmbeddingCacheParams{
		EmbedModel: "m", ContentHash: "h1", Dimension: 2, Embedding: []byte{1, 2, 3, 4, 5, 6, 7, 8},
	}))
	require.NoError(t, q.UpsertEmbeddingCache(ctx, UpsertEmbeddingCacheParams{
		EmbedModel: "m", ContentHash: "h1", Dimension: 1, Embedding: []byte{9, 9, 9, 9},
	}))

	got, err := q.GetEmbeddingCache(ctx, "m", "h1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.Dimension)
	assert.Equal(t, []byte{9, 9, 9, 9}, got.Embedding)

	_, err = q.GetEmbeddingCache(ctx, "other", "h1")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	for _, h := range []string{"h2", "h3"} {
		require.NoError(t, q.UpsertEmbeddingCache(ctx, UpsertEmbeddingCacheParams{
			EmbedModel: "m", ContentHash: h, Dimension: 1, Embedding: []byte{0, 0, 0, 0},
		}))
	}
	n, err := q.CountEmbeddingCache(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	require.NoError(t, q.PruneEmbeddingCache(ctx, 1))
	n, err = q.CountEmbeddingCache(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
