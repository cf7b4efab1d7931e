package embedding

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"ctxembed/internal/db"
	"ctxembed/internal/metrics"
)

const defaultCacheSize = 10000

// CachedProvider wraps a Provider with SHA-256 content-addressed caching in
// SQLite. Entries are keyed by model, and an entry whose length differs from
// the inner provider's current dimension is treated as a miss.
type CachedProvider struct {
	inner     Provider
	queries   *db.Queries
	cacheSize int
}

func NewCachedProvider(inner Provider, database *db.DB, cacheSize int) *CachedProvider {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	return &CachedProvider{
		inner:     inner,
		queries:   db.New(database.Conn()),
		cacheSize: cacheSize,
	}
}

func (c *CachedProvider) Provider() string { return c.inner.Provider() }
func (c *CachedProvider) Model() string    { return c.inner.Model() }
func (c *CachedProvider) Dimension() int   { return c.inner.Dimension() }

func (c *CachedProvider) DetectDimension(ctx context.Context, testText string) (int, error) {
	return c.inner.DetectDimension(ctx, testText)
}

// SetModel forwards to the inner provider if it supports model changes.
func (c *CachedProvider) SetModel(ctx context.Context, model string) error {
	ms, ok := c.inner.(ModelSetter)
	if !ok {
		return fmt.Errorf("provider %s does not support changing models", c.inner.Provider())
	}
	return ms.SetModel(ctx, model)
}

// Resolved forwards to the inner provider if it implements Resolver.
func (c *CachedProvider) Resolved() bool {
	if r, ok := c.inner.(Resolver); ok {
		return r.Resolved()
	}
	return true
}

func (c *CachedProvider) Embed(ctx context.Context, text string) (Vector, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return Vector{}, err
	}
	return vecs[0], nil
}

func (c *CachedProvider) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	if len(texts) == 0 {
		return []Vector{}, nil
	}

	model := c.inner.Model()
	dim := 0
	if c.Resolved() {
		dim = c.inner.Dimension()
	}

	results := make([]Vector, len(texts))
	var misses []int // indices of texts not found in cache

	for i, text := range texts {
		cached, err := c.queries.GetEmbeddingCache(ctx, model, contentHash(text))
		if err == nil {
			// Rows are only trusted against a confirmed dimension.
			vec := decodeVector(cached.Embedding)
			if dim > 0 && len(vec) == dim && int(cached.Dimension) == dim {
				results[i] = newVector(vec)
				continue
			}
		} else if !errors.Is(err, sql.ErrNoRows) {
			slog.Debug("embedding cache lookup error", "error", err)
		}
		misses = append(misses, i)
	}

	metrics.CacheHitsTotal.Add(float64(len(texts) - len(misses)))
	metrics.CacheMissesTotal.Add(float64(len(misses)))
	if len(misses) == 0 {
		return results, nil
	}

	missTexts := make([]string, len(misses))
	for i, idx := range misses {
		missTexts[i] = texts[idx]
	}

	var embedded []Vector
	if len(missTexts) == 1 {
		v, err := c.inner.Embed(ctx, missTexts[0])
		if err != nil {
			return nil, err
		}
		embedded = []Vector{v}
	} else {
		var err error
		embedded, err = c.inner.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, err
		}
	}

	// A model switched mid-call leaves the vectors unattributable.
	if c.inner.Model() != model {
		for i, idx := range misses {
			results[idx] = embedded[i]
		}
		return results, nil
	}

	for i, idx := range misses {
		results[idx] = embedded[i]
		if err := c.queries.UpsertEmbeddingCache(ctx, db.UpsertEmbeddingCacheParams{
			EmbedModel:  model,
			ContentHash: contentHash(texts[idx]),
			Dimension:   int64(embedded[i].Dimension),
			Embedding:   encodeVector(embedded[i].Values),
		}); err != nil {
			slog.Debug("embedding cache store error", "error", err)
		}
	}

	// Prune if needed (best-effort).
	if err := c.queries.PruneEmbeddingCache(ctx, int64(c.cacheSize)); err != nil {
		slog.Debug("embedding cache prune error", "error", err)
	}

	return results, nil
}

func contentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", h)
}
