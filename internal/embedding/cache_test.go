package embedding

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"ctxembed/internal/db"
	"ctxembed/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate())
	t.Cleanup(func() { database.Close() })
	return database
}

func TestCachedProviderServesRepeatsFromCache(t *testing.T) {
	inner := newStubProvider("text-embedding-3-small", 4)
	c := NewCachedProvider(inner, openTestDB(t), 100)
	ctx := context.Background()
	hits := testutil.ToFloat64(metrics.CacheHitsTotal)

	first, err := c.Embed(ctx, "hello")
	require.NoError(t, err)
	second, err := c.Embed(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 4, second.Dimension)
	assert.Len(t, inner.embedCalls(), 1)
	assert.Equal(t, hits+1, testutil.ToFloat64(metrics.CacheHitsTotal))
}

func TestCachedProviderBatchesOnlyMisses(t *testing.T) {
	inner := newStubProvider("text-embedding-3-small", 4)
	c := NewCachedProvider(inner, openTestDB(t), 100)
	ctx := context.Background()

	_, err := c.EmbedBatch(ctx, []string{"b", "dd"})
	require.NoError(t, err)

	vecs, err := c.EmbedBatch(ctx, []string{"a", "b", "ccc", "dd"})
	require.NoError(t, err)
	require.Len(t, vecs, 4)
	for i, want := range []float32{1, 1, 3, 2} {
		assert.Equal(t, want, vecs[i].Values[0], "index %d", i)
	}

	calls := inner.embedCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"a", "ccc"}, calls[1])
}

func TestCachedProviderKeysByModel(t *testing.T) {
	inner := newStubProvider("text-embedding-3-small", 4)
	c := NewCachedProvider(inner, openTestDB(t), 100)
	ctx := context.Background()

	_, err := c.Embed(ctx, "hello")
	require.NoError(t, err)
	require.NoError(t, c.SetModel(ctx, "text-embedding-ada-002"))
	assert.Equal(t, "text-embedding-ada-002", c.Model())

	_, err = c.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Len(t, inner.embedCalls(), 2)
}

func TestCachedProviderIgnoresRowsWithStaleDimension(t *testing.T) {
	inner := newStubProvider("text-embedding-3-small", 4)
	c := NewCachedProvider(inner, openTestDB(t), 100)
	ctx := context.Background()

	_, err := c.Embed(ctx, "hello")
	require.NoError(t, err)

	inner.mu.Lock()
	inner.dim = 6
	inner.mu.Unlock()

	v, err := c.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, 6, v.Dimension)
	assert.Len(t, inner.embedCalls(), 2)
}

func TestCachedProviderBypassesCacheUntilResolved(t *testing.T) {
	inner := newStubProvider("custom", 4)
	inner.resolved = false
	database := openTestDB(t)
	c := NewCachedProvider(inner, database, 100)
	ctx := context.Background()

	_, err := c.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.True(t, c.Resolved())

	_, err = c.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Len(t, inner.embedCalls(), 1, "second call is served once the dimension is confirmed")
}

func TestCachedProviderSkipsStoreWhenModelChangesMidCall(t *testing.T) {
	inner := newStubProvider("text-embedding-3-small", 4)
	c := NewCachedProvider(inner, openTestDB(t), 100)
	ctx := context.Background()

	inner.switchTo = "text-embedding-ada-002"
	_, err := c.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-ada-002", c.Model())

	require.NoError(t, c.SetModel(ctx, "text-embedding-3-small"))
	_, err = c.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Len(t, inner.embedCalls(), 2, "vector from the switched call must not be cached")

	require.NoError(t, c.SetModel(ctx, "text-embedding-ada-002"))
	_, err = c.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Len(t, inner.embedCalls(), 3)
}

func TestCachedProviderPrunes(t *testing.T) {
	inner := newStubProvider("text-embedding-3-small", 4)
	database := openTestDB(t)
	c := NewCachedProvider(inner, database, 2)
	ctx := context.Background()

	_, err := c.EmbedBatch(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)

	n, err := db.New(database.Conn()).CountEmbeddingCache(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestCachedProviderPropagatesErrors(t *testing.T) {
	inner := newStubProvider("text-embedding-3-small", 4)
	inner.err = newError(OpBatch, "text-embedding-3-small", errors.New("unauthorized"))
	c := NewCachedProvider(inner, openTestDB(t), 100)

	_, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrAuthentication)

	_, err = c.DetectDimension(context.Background(), "")
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestCachedProviderEmptyBatch(t *testing.T) {
	inner := newStubProvider("text-embedding-3-small", 4)
	c := NewCachedProvider(inner, openTestDB(t), 0)

	vecs, err := c.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
	assert.Empty(t, inner.embedCalls())
	assert.Equal(t, defaultCacheSize, c.cacheSize)
}
