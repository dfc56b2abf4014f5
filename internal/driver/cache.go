package driver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultEmbeddingCacheSize = 1024

// CachedEmbeddingDriver memoizes embeddings of an underlying driver.
type CachedEmbeddingDriver struct {
	next  EmbeddingDriver
	cache *lru.Cache[string, []float64]
}

// NewCachedEmbeddingDriver wraps next with an LRU cache holding up to size
// vectors. A non-positive size selects the default.
func NewCachedEmbeddingDriver(next EmbeddingDriver, size int) (*CachedEmbeddingDriver, error) {
	if size <= 0 {
		size = defaultEmbeddingCacheSize
	}
	cache, err := lru.New[string, []float64](size)
	if err != nil {
		return nil, err
	}
	return &CachedEmbeddingDriver{next: next, cache: cache}, nil
}

func (d *CachedEmbeddingDriver) Model() string { return d.next.Model() }

func (d *CachedEmbeddingDriver) EmbedChunk(ctx context.Context, text string) ([]float64, error) {
	key := cacheKey(d.next.Model(), text)
	if vec, ok := d.cache.Get(key); ok {
		return append([]float64(nil), vec...), nil
	}

	vec, err := d.next.EmbedChunk(ctx, text)
	if err != nil {
		return nil, err
	}
	d.cache.Add(key, append([]float64(nil), vec...))
	return vec, nil
}

// Len returns the number of cached vectors.
func (d *CachedEmbeddingDriver) Len() int { return d.cache.Len() }

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
