package memory

import (
	"context"
	"sync"
	"time"

	"mnemo/internal/logging"
)

// =============================================================================
// COLD TIER
// =============================================================================
// Backed by an external persistent vector+graph store. The tier keeps its own
// key-indexed view so retrieval order stays uniform across tiers, and mirrors
// every store into the backend: the entry content with its embedding becomes
// a memory node, and each relation triple becomes two lazily-created endpoint
// nodes plus one edge. Backend failures are logged and surfaced as false/nil
// results, never raised to the caller.
//
// Locking: network calls to the backend never run while the tier lock is
// held. The in-memory maps are mutated first under the lock, then the backend
// call proceeds unlocked.

// RelatedMemory is a graph-neighborhood record returned by the backend.
type RelatedMemory struct {
	ID       string
	Content  string
	Relation string
	Weight   float64
	Hops     int
}

// PersistentStore is the narrow interface the cold tier consumes.
type PersistentStore interface {
	// StoreMemory persists content with its embedding and returns the node id.
	StoreMemory(ctx context.Context, content string, vector []float32, metadata map[string]interface{}, importance float64) (string, error)

	// EnsureNode returns the id of a node with the given content, creating
	// it if absent.
	EnsureNode(ctx context.Context, content string) (string, error)

	// CreateEdge links two nodes with a typed, weighted relation.
	CreateEdge(ctx context.Context, fromID, toID, relation string, weight float64) error

	// FindRelated walks the graph outward from a node up to maxHops,
	// dropping edges below minWeight.
	FindRelated(ctx context.Context, id string, maxHops int, minWeight float64) ([]RelatedMemory, error)

	// DeleteMemory removes a node, reporting whether it existed.
	DeleteMemory(ctx context.Context, id string) (bool, error)
}

// relatedContextHops bounds the graph walk during retrieval.
const relatedContextHops = 2

// ColdTier persists entries through an external store while keeping a local
// key index for tier-ordered retrieval.
type ColdTier struct {
	backend PersistentStore

	mu     sync.Mutex
	data   map[string][]byte
	meta   map[string]*Metadata
	nodeID map[string]string // application key -> backend node id
	size   int64

	now func() time.Time
}

// NewColdTier creates the cold tier around a persistent store backend.
func NewColdTier(backend PersistentStore) *ColdTier {
	return &ColdTier{
		backend: backend,
		data:    make(map[string][]byte),
		meta:    make(map[string]*Metadata),
		nodeID:  make(map[string]string),
		now:     time.Now,
	}
}

// Name returns the tier's name.
func (t *ColdTier) Name() TierName { return TierCold }

// Store records the entry locally and mirrors it into the persistent store.
func (t *ColdTier) Store(key string, value []byte, meta *Metadata) bool {
	return t.StoreContext(context.Background(), key, value, meta)
}

// StoreContext is Store with caller-controlled cancellation for the backend
// calls.
func (t *ColdTier) StoreContext(ctx context.Context, key string, value []byte, meta *Metadata) bool {
	t.mu.Lock()
	if old, ok := t.data[key]; ok {
		t.size -= int64(len(old))
	}
	t.data[key] = value
	t.size += int64(len(value))
	if meta != nil {
		t.meta[key] = meta.Clone()
	}
	t.mu.Unlock()

	if t.backend == nil || meta == nil {
		return true
	}

	// Backend mirroring happens outside the lock: these are network calls.
	importance := 1.0
	if v, ok := meta.Semantics["importance"]; ok {
		importance = v
	}
	backendMeta := map[string]interface{}{
		"key":               key,
		"tokens":            meta.Tokens,
		"semantics":         meta.Semantics,
		"relationships":     meta.Relationships,
		"last_access":       meta.LastAccess.Unix(),
		"access_count":      meta.AccessCount,
		"relevance_score":   meta.RelevanceScore,
		"compression_ratio": meta.CompressionRatio,
	}

	id, err := t.backend.StoreMemory(ctx, string(value), meta.Embedding, backendMeta, importance)
	if err != nil {
		logging.Get(logging.CategoryTier).Error("Cold tier backend store failed for %q: %v", key, err)
		return false
	}

	t.mu.Lock()
	t.nodeID[key] = id
	t.mu.Unlock()

	for _, triple := range meta.Triples {
		if err := t.storeTriple(ctx, triple, meta); err != nil {
			logging.Get(logging.CategoryTier).Warn("Cold tier triple %s-[%s]->%s failed: %v",
				triple.Subject, triple.Relation, triple.Object, err)
		}
	}

	logging.TierDebug("cold tier stored %q (node=%s, triples=%d)", key, id, len(meta.Triples))
	return true
}

// storeTriple creates the endpoint nodes lazily, then links them.
func (t *ColdTier) storeTriple(ctx context.Context, triple Triple, meta *Metadata) error {
	fromID, err := t.backend.EnsureNode(ctx, triple.Subject)
	if err != nil {
		return err
	}
	toID, err := t.backend.EnsureNode(ctx, triple.Object)
	if err != nil {
		return err
	}

	weight := 1.0
	if v, ok := meta.Semantics["rel_weight_"+triple.Relation]; ok {
		weight = v
	}
	return t.backend.CreateEdge(ctx, fromID, toID, triple.Relation, weight)
}

// Retrieve returns the value and augments the stored metadata with related
// context fetched from the backend graph.
func (t *ColdTier) Retrieve(key string) ([]byte, bool) {
	return t.RetrieveContext(context.Background(), key)
}

// RetrieveContext is Retrieve with caller-controlled cancellation.
func (t *ColdTier) RetrieveContext(ctx context.Context, key string) ([]byte, bool) {
	t.mu.Lock()
	value, ok := t.data[key]
	if !ok {
		t.mu.Unlock()
		return nil, false
	}
	if m := t.meta[key]; m != nil {
		t.meta[key] = m.touched(t.now())
	}
	id := t.nodeID[key]
	t.mu.Unlock()

	if t.backend != nil && id != "" {
		// Graph walk outside the lock; failures degrade to an unaugmented hit.
		related, err := t.backend.FindRelated(ctx, id, relatedContextHops, 0)
		if err != nil {
			logging.Get(logging.CategoryTier).Warn("Cold tier related-context fetch failed for %q: %v", key, err)
		} else if len(related) > 0 {
			t.mu.Lock()
			if m := t.meta[key]; m != nil {
				augmented := m.Clone()
				if augmented.Relationships == nil {
					augmented.Relationships = make(map[string][]string)
				}
				for _, rel := range related {
					augmented.Relationships[rel.Relation] = append(augmented.Relationships[rel.Relation], rel.ID)
				}
				t.meta[key] = augmented
			}
			t.mu.Unlock()
			logging.TierDebug("cold tier augmented %q with %d related memories", key, len(related))
		}
	}

	return value, true
}

// Evict removes the entry locally and from the backend.
func (t *ColdTier) Evict(key string) bool {
	t.mu.Lock()
	value, present := t.data[key]
	if present {
		t.size -= int64(len(value))
		delete(t.data, key)
		delete(t.meta, key)
	}
	id := t.nodeID[key]
	delete(t.nodeID, key)
	t.mu.Unlock()

	if t.backend != nil && id != "" {
		if _, err := t.backend.DeleteMemory(context.Background(), id); err != nil {
			logging.Get(logging.CategoryTier).Warn("Cold tier backend delete failed for %q: %v", key, err)
		}
	}

	if present {
		logging.TierDebug("cold tier evicted %q", key)
	}
	return present
}

// GetMetadata returns the current metadata snapshot for the key.
func (t *ColdTier) GetMetadata(key string) *Metadata {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.meta[key]
}

// Items returns the current entry count.
func (t *ColdTier) Items() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.data)
}

// Size returns the current payload size in bytes.
func (t *ColdTier) Size() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.size
}
