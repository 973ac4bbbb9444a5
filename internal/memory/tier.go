package memory

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"mnemo/internal/logging"
)

// =============================================================================
// IN-MEMORY TIERS (Hot, Warm, Archive)
// =============================================================================
// One generic store parameterized by policy values instead of a class per
// tier: Hot is a byte-capacity admission-controlled configuration, Warm a
// windowed-LRU configuration, Archive an unbounded compress-on-store
// configuration. The cold tier lives in cold.go because its backing store is
// external.

// Default intra-tier similarity thresholds. Archive content is lossier, so
// its threshold is lower.
const (
	DefaultWarmSimilarityThreshold    = 0.7
	DefaultArchiveSimilarityThreshold = 0.6
)

// Tier is the operation set every tier exposes.
type Tier interface {
	// Store places an entry. Returns false when admission control or the
	// backing store rejects it; the tier's existing entries are untouched.
	Store(key string, value []byte, meta *Metadata) bool

	// Retrieve returns the value and records the access.
	Retrieve(key string) ([]byte, bool)

	// Evict removes the entry, reporting whether it was present.
	Evict(key string) bool

	// GetMetadata returns the current metadata snapshot, or nil.
	GetMetadata(key string) *Metadata

	// Name returns the tier's name.
	Name() TierName

	// Items returns the current entry count.
	Items() int

	// Size returns the current payload size in bytes.
	Size() int64
}

// memTier is the generic in-memory tier. All fields guarded by mu; every
// read-modify-write sequence (including Warm's find-oldest-then-evict) runs
// under one lock acquisition.
type memTier struct {
	name TierName

	mu          sync.Mutex
	data        map[string][]byte
	meta        map[string]*Metadata
	currentSize int64

	// Policy knobs. capacity <= 0 and window <= 0 mean unbounded.
	capacity   int64            // Hot: byte-capacity admission control
	window     int              // Warm: item-count window with LRU eviction
	compressor *TokenCompressor // Archive: compress text payloads on store
	ratio      int              // Archive: compression ratio

	simThreshold float64

	now func() time.Time
}

// NewHotTier creates the hot tier: admission control only, never evicts.
func NewHotTier(capacity int64) *memTier {
	return &memTier{
		name:         TierHot,
		data:         make(map[string][]byte),
		meta:         make(map[string]*Metadata),
		capacity:     capacity,
		simThreshold: DefaultWarmSimilarityThreshold,
		now:          time.Now,
	}
}

// NewWarmTier creates the warm tier: fixed item-count window, oldest
// last-access evicted on overflow.
func NewWarmTier(window int) *memTier {
	return &memTier{
		name:         TierWarm,
		data:         make(map[string][]byte),
		meta:         make(map[string]*Metadata),
		window:       window,
		simThreshold: DefaultWarmSimilarityThreshold,
		now:          time.Now,
	}
}

// NewArchiveTier creates the archive tier: unbounded, text payloads
// compressed at the given ratio on store.
func NewArchiveTier(compressor *TokenCompressor, ratio int) *memTier {
	if compressor == nil {
		compressor = NewTokenCompressor(0)
	}
	if ratio <= 0 {
		ratio = 4
	}
	return &memTier{
		name:         TierArchive,
		data:         make(map[string][]byte),
		meta:         make(map[string]*Metadata),
		compressor:   compressor,
		ratio:        ratio,
		simThreshold: DefaultArchiveSimilarityThreshold,
		now:          time.Now,
	}
}

// Name returns the tier's name.
func (t *memTier) Name() TierName { return t.name }

// Store places an entry according to the tier's policy.
func (t *memTier) Store(key string, value []byte, meta *Metadata) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.capacity > 0 {
		// Admission control: hot data is precious, so a full tier rejects
		// instead of silently evicting. Replacing an existing key only
		// charges the delta.
		delta := int64(len(value))
		if old, ok := t.data[key]; ok {
			delta -= int64(len(old))
		}
		if t.currentSize+delta > t.capacity {
			logging.Get(logging.CategoryTier).Warn("%s tier at capacity, rejecting %q (%d + %d > %d)",
				t.name, key, t.currentSize, delta, t.capacity)
			return false
		}
	}

	if t.window > 0 {
		if _, exists := t.data[key]; !exists && len(t.data) >= t.window {
			victim := t.oldestLocked()
			if victim != "" {
				t.removeLocked(victim)
				logging.TierDebug("%s tier window full, evicted oldest %q", t.name, victim)
			}
		}
	}

	if t.compressor != nil {
		value, meta = t.compressLocked(key, value, meta)
	}

	if old, ok := t.data[key]; ok {
		t.currentSize -= int64(len(old))
	}
	t.data[key] = value
	t.currentSize += int64(len(value))
	if meta != nil {
		t.meta[key] = meta.Clone()
	}

	logging.TierDebug("%s tier stored %q (%d bytes, %d items)", t.name, key, len(value), len(t.data))
	return true
}

// compressLocked applies token compression to text payloads. Non-text
// payloads pass through unchanged.
func (t *memTier) compressLocked(key string, value []byte, meta *Metadata) ([]byte, *Metadata) {
	if !utf8.Valid(value) {
		return value, meta
	}

	tokens := strings.Fields(string(value))
	kept, _, err := t.compressor.Compress(tokens, t.ratio)
	if err != nil {
		logging.Get(logging.CategoryCompress).Error("Compression failed for %q: %v", key, err)
		return value, meta
	}

	compressed := []byte(strings.Join(kept, " "))
	if meta != nil {
		meta = meta.Clone()
		meta.Tokens = kept
		meta.CompressionRatio = t.ratio
	}
	logging.CompressDebug("%s tier compressed %q: %d -> %d tokens (ratio %d)",
		t.name, key, len(tokens), len(kept), t.ratio)
	return compressed, meta
}

// oldestLocked returns the member with the minimum last-access time.
// Ties break to the lexicographically smallest key so eviction is
// deterministic.
func (t *memTier) oldestLocked() string {
	var oldestKey string
	var oldest time.Time
	first := true
	for key := range t.data {
		la := time.Time{}
		if m := t.meta[key]; m != nil {
			la = m.LastAccess
		}
		if first || la.Before(oldest) || (la.Equal(oldest) && key < oldestKey) {
			oldestKey, oldest, first = key, la, false
		}
	}
	return oldestKey
}

// Retrieve returns the value and installs a metadata snapshot with bumped
// access tracking.
func (t *memTier) Retrieve(key string) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	value, ok := t.data[key]
	if !ok {
		return nil, false
	}
	if m := t.meta[key]; m != nil {
		t.meta[key] = m.touched(t.now())
	}
	return value, true
}

// Peek returns the value without recording the access. Resident lookups use
// it so that merely appearing in search results does not advance promotion.
func (t *memTier) Peek(key string) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	value, ok := t.data[key]
	return value, ok
}

// Evict removes the entry.
func (t *memTier) Evict(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.data[key]; !ok {
		return false
	}
	t.removeLocked(key)
	logging.TierDebug("%s tier evicted %q", t.name, key)
	return true
}

func (t *memTier) removeLocked(key string) {
	if value, ok := t.data[key]; ok {
		t.currentSize -= int64(len(value))
		delete(t.data, key)
	}
	delete(t.meta, key)
}

// GetMetadata returns the current metadata snapshot for the key.
func (t *memTier) GetMetadata(key string) *Metadata {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.meta[key]
}

// Items returns the current entry count.
func (t *memTier) Items() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.data)
}

// Size returns the current payload size in bytes.
func (t *memTier) Size() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentSize
}

// FindSimilar scans this tier's metadata for embeddings similar to the query.
// threshold <= 0 selects the tier's default.
func (t *memTier) FindSimilar(query []float32, threshold float64, maxResults int) []SimilarityHit {
	if threshold <= 0 {
		threshold = t.simThreshold
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return FindSimilar(query, t.meta, threshold, maxResults)
}
