package embedding

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"mnemo/internal/logging"
)

// =============================================================================
// EXACT-TEXT CACHE
// =============================================================================
// Embedding a query is by far the most expensive step of hybrid retrieval,
// and identical query texts recur. Cached wraps any Provider with an
// exact-text cache; concurrent misses for the same text are collapsed into a
// single upstream call via singleflight.

// Cached is a caching decorator around a Provider.
type Cached struct {
	inner Provider

	mu      sync.RWMutex
	entries map[string][]float32
	maxSize int

	group singleflight.Group
}

// NewCached wraps a provider with an exact-text cache of at most maxSize
// entries (0 selects a default).
func NewCached(inner Provider, maxSize int) *Cached {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &Cached{
		inner:   inner,
		entries: make(map[string][]float32),
		maxSize: maxSize,
	}
}

// Embed returns the cached vector for text, embedding through the inner
// provider on miss.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	c.mu.RLock()
	if vec, ok := c.entries[text]; ok {
		c.mu.RUnlock()
		logging.EmbedDebug("Embedding cache hit (%d chars)", len(text))
		return vec, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.group.Do(text, func() (interface{}, error) {
		vec, err := c.inner.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		if vec != nil {
			c.store(text, vec)
		}
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	vec, _ := result.([]float32)
	return vec, nil
}

// store inserts into the cache, discarding everything when the map grows
// past the bound. A full reset is crude but keeps the common case lock-cheap.
func (c *Cached) store(text string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		logging.EmbedDebug("Embedding cache full (%d entries), resetting", len(c.entries))
		c.entries = make(map[string][]float32)
	}
	c.entries[text] = vec
}

// Dimensions returns the inner provider's dimensionality.
func (c *Cached) Dimensions() int { return c.inner.Dimensions() }

// Name returns the inner provider's name with a cache marker.
func (c *Cached) Name() string { return c.inner.Name() + "+cache" }

// Len returns the current number of cached embeddings.
func (c *Cached) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
