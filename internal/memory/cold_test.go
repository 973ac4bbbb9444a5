package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColdTierLocalRoundTripWithoutBackend(t *testing.T) {
	cold := NewColdTier(nil)

	ok := cold.Store("k", []byte("payload"), &Metadata{RelevanceScore: 0.1})
	require.True(t, ok, "store without backend should succeed locally")

	value, found := cold.Retrieve("k")
	require.True(t, found)
	assert.Equal(t, []byte("payload"), value)
	assert.Equal(t, 1, cold.Items())
	assert.Equal(t, int64(len("payload")), cold.Size())
}

func TestColdTierMirrorsStoreIntoBackend(t *testing.T) {
	backend := newFakeBackend()
	cold := NewColdTier(backend)

	meta := &Metadata{
		Embedding: []float32{0.1, 0.2},
		Semantics: map[string]float64{"importance": 0.9, "relevance": 1.0},
	}
	ok := cold.StoreContext(context.Background(), "k", []byte("content"), meta)
	require.True(t, ok)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.nodes, 1)
	for _, content := range backend.nodes {
		assert.Equal(t, "content", content)
	}
}

func TestColdTierTripleEdgeWeightFromSemantics(t *testing.T) {
	backend := newFakeBackend()
	cold := NewColdTier(backend)

	meta := &Metadata{
		Semantics: map[string]float64{"rel_weight_depends_on": 0.42},
		Triples:   []Triple{{Subject: "a", Relation: "depends_on", Object: "b"}},
	}
	ok := cold.StoreContext(context.Background(), "k", []byte("v"), meta)
	require.True(t, ok)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.edges, 1)
	assert.Equal(t, 0.42, backend.edges[0].weight)
	assert.Equal(t, "depends_on", backend.edges[0].relation)
}

func TestColdTierRetrieveAugmentsRelationships(t *testing.T) {
	backend := newFakeBackend()
	cold := NewColdTier(backend)
	ctx := context.Background()

	require.True(t, cold.StoreContext(ctx, "k", []byte("v"), &Metadata{}))

	// Give the stored node a neighbor so retrieval has context to pull in.
	backend.mu.Lock()
	var nodeID string
	for id := range backend.nodes {
		nodeID = id
	}
	backend.nodes["Z"] = "neighbor"
	backend.edges = append(backend.edges, fakeEdge{from: nodeID, to: "Z", relation: "references", weight: 1.0})
	backend.mu.Unlock()

	_, found := cold.RetrieveContext(ctx, "k")
	require.True(t, found)

	meta := cold.GetMetadata("k")
	require.NotNil(t, meta)
	assert.Contains(t, meta.Relationships, "references")
	assert.Equal(t, []string{"Z"}, meta.Relationships["references"])
}

func TestColdTierRetrieveSurvivesBackendFailure(t *testing.T) {
	backend := newFakeBackend()
	cold := NewColdTier(backend)
	ctx := context.Background()

	require.True(t, cold.StoreContext(ctx, "k", []byte("v"), &Metadata{}))
	backend.failAll = true

	// Graph augmentation fails but the hit itself must still come back.
	value, found := cold.RetrieveContext(ctx, "k")
	require.True(t, found)
	assert.Equal(t, []byte("v"), value)
}

func TestColdTierRetrieveBumpsAccess(t *testing.T) {
	cold := NewColdTier(nil)
	fixed := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	cold.now = func() time.Time { return fixed }

	cold.Store("k", []byte("v"), &Metadata{AccessCount: 2})
	cold.Retrieve("k")

	meta := cold.GetMetadata("k")
	require.NotNil(t, meta)
	assert.Equal(t, 3, meta.AccessCount)
	assert.True(t, meta.LastAccess.Equal(fixed))
}

func TestColdTierEvictRemovesBackendNode(t *testing.T) {
	backend := newFakeBackend()
	cold := NewColdTier(backend)
	ctx := context.Background()

	require.True(t, cold.StoreContext(ctx, "k", []byte("v"), &Metadata{}))
	require.True(t, cold.Evict("k"))

	assert.Equal(t, 0, cold.Items())
	assert.Equal(t, int64(0), cold.Size())
	assert.False(t, cold.Evict("k"), "second evict should report absence")

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Len(t, backend.deleted, 1)
}
