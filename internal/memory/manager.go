package memory

import (
	"context"
	"errors"
	"fmt"

	"mnemo/internal/logging"
)

// =============================================================================
// TIER MANAGER
// =============================================================================
// Orchestrates cross-tier store/retrieve/evict and the promotion state
// machine. Tier membership is the state; transitions happen only through
// Retrieve:
//
//	hot hit      -> no transition
//	warm hit     -> promote to hot once the access count clears the
//	                promotion threshold; hot admission rejection leaves the
//	                entry in warm (store before evict)
//	archive hit  -> bump access count, move to warm
//	cold hit     -> copy into archive; cold keeps its copy (authoritative
//	                backing storage, not a cache)
//
// There is no global lock across tiers, so a promotion is not atomic: two
// concurrent retrievals of the same key may both attempt it. The target
// tier's own lock makes the duplicate writes converge (last write wins), and
// both callers already hold the value by the time the race can manifest.

// ErrInvalidTier reports a direct store against an unknown tier name.
// This is a programmer error, not a cache miss.
var ErrInvalidTier = errors.New("invalid tier name")

// Analyzer produces an allocation decision from raw context text. It must
// never fail: on unanalyzable input it returns the safe default
// (cold, low priority, short TTL).
type Analyzer interface {
	Analyze(ctx context.Context, text string) *AnalysisResult
}

// Stats is the aggregate view recomputed after every mutating operation.
// Purely observational; no correctness impact.
type Stats struct {
	HotBytes     int64
	HotItems     int
	WarmBytes    int64
	WarmItems    int
	ArchiveBytes int64
	ArchiveItems int
	ColdBytes    int64
	ColdItems    int

	// Utilization is hot-tier fill as a percentage of its capacity.
	Utilization float64
}

// ManagerConfig sizes the tiers and tunes promotion.
type ManagerConfig struct {
	HotCapacityBytes     int64
	WarmWindow           int
	ArchiveRatio         int
	MaxCompressionRatio  int
	PromotionAccessCount int // warm -> hot once access count exceeds this
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		HotCapacityBytes:     1 << 20, // 1 MiB of active context
		WarmWindow:           128,
		ArchiveRatio:         4,
		MaxCompressionRatio:  DefaultMaxCompressionRatio,
		PromotionAccessCount: 5,
	}
}

// Manager owns the four tiers and the collaborator handles. Collaborators
// are injected; there are no package-level singletons.
type Manager struct {
	hot     *memTier
	warm    *memTier
	archive *memTier
	cold    *ColdTier

	analyzer     Analyzer
	promoteAfter int

	onStats func(Stats)
}

// NewManager wires the tiers together. backend may be nil (cold tier then
// keeps entries in memory only); analyzer may be nil if StoreWithContext is
// never used.
func NewManager(cfg ManagerConfig, backend PersistentStore, analyzer Analyzer) *Manager {
	if cfg.HotCapacityBytes <= 0 {
		cfg.HotCapacityBytes = DefaultManagerConfig().HotCapacityBytes
	}
	if cfg.WarmWindow <= 0 {
		cfg.WarmWindow = DefaultManagerConfig().WarmWindow
	}
	if cfg.PromotionAccessCount <= 0 {
		cfg.PromotionAccessCount = DefaultManagerConfig().PromotionAccessCount
	}

	compressor := NewTokenCompressor(cfg.MaxCompressionRatio)

	m := &Manager{
		hot:          NewHotTier(cfg.HotCapacityBytes),
		warm:         NewWarmTier(cfg.WarmWindow),
		archive:      NewArchiveTier(compressor, cfg.ArchiveRatio),
		cold:         NewColdTier(backend),
		analyzer:     analyzer,
		promoteAfter: cfg.PromotionAccessCount,
	}

	logging.Manager("Tier manager initialized (hot=%dB, warm window=%d, archive ratio=%d)",
		cfg.HotCapacityBytes, cfg.WarmWindow, cfg.ArchiveRatio)
	return m
}

// SetStatsCallback registers a sink for aggregate statistics. The callback
// runs synchronously after each mutating operation; keep it cheap.
func (m *Manager) SetStatsCallback(fn func(Stats)) { m.onStats = fn }

// StoreWithContext analyzes the context text and places the entry in the
// suggested tier. Returns the admission result and the analysis.
func (m *Manager) StoreWithContext(ctx context.Context, key string, value []byte, contextText string) (bool, *AnalysisResult) {
	timer := logging.StartTimer(logging.CategoryManager, "StoreWithContext")
	defer timer.Stop()

	if m.analyzer == nil {
		logging.Get(logging.CategoryManager).Error("StoreWithContext called without an analyzer")
		return false, nil
	}

	analysis := m.analyzer.Analyze(ctx, contextText)
	ok, err := m.Store(ctx, key, value, analysis.Metadata, analysis.SuggestedTier)
	if err != nil {
		logging.Get(logging.CategoryManager).Error("StoreWithContext dispatch failed: %v", err)
		return false, analysis
	}
	return ok, analysis
}

// Store dispatches directly to the named tier. An unrecognized tier name is
// an error, not a silent no-op.
func (m *Manager) Store(ctx context.Context, key string, value []byte, meta *Metadata, tier TierName) (bool, error) {
	timer := logging.StartTimer(logging.CategoryManager, "Store")
	defer timer.Stop()

	var ok bool
	switch tier {
	case TierHot:
		ok = m.hot.Store(key, value, meta)
	case TierWarm:
		ok = m.warm.Store(key, value, meta)
	case TierArchive:
		ok = m.archive.Store(key, value, meta)
	case TierCold:
		ok = m.cold.StoreContext(ctx, key, value, meta)
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidTier, tier)
	}

	logging.ManagerDebug("Store %q -> %s: %v", key, tier, ok)
	m.publishStats()
	return ok, nil
}

// Retrieve checks the tiers in fixed order and applies promotions on hit.
// Returns the value, the tier it was found in, and whether it was found.
func (m *Manager) Retrieve(ctx context.Context, key string) ([]byte, TierName, bool) {
	timer := logging.StartTimer(logging.CategoryManager, "Retrieve")
	defer timer.Stop()

	if value, ok := m.hot.Retrieve(key); ok {
		logging.ManagerDebug("Retrieve %q: hot hit", key)
		return value, TierHot, true
	}

	if value, ok := m.warm.Retrieve(key); ok {
		meta := m.warm.GetMetadata(key)
		if meta != nil && meta.AccessCount > m.promoteAfter {
			// Store before evict: if hot's admission control rejects, the
			// entry must stay in warm.
			if m.hot.Store(key, value, meta) {
				m.warm.Evict(key)
				logging.Manager("Promoted %q warm -> hot (access count %d)", key, meta.AccessCount)
			} else {
				logging.ManagerDebug("Promotion of %q rejected by hot tier, staying warm", key)
			}
			m.publishStats()
		}
		return value, TierWarm, true
	}

	if value, ok := m.archive.Retrieve(key); ok {
		meta := m.archive.GetMetadata(key)
		if meta == nil {
			meta = &Metadata{}
		}
		// Archive hits always climb to warm.
		if m.warm.Store(key, value, meta) {
			m.archive.Evict(key)
			logging.Manager("Promoted %q archive -> warm", key)
		}
		m.publishStats()
		return value, TierArchive, true
	}

	if value, ok := m.cold.RetrieveContext(ctx, key); ok {
		// Cold stays authoritative: copy up, never evict the source.
		meta := m.cold.GetMetadata(key)
		m.archive.Store(key, value, meta)
		logging.Manager("Promoted %q cold -> archive (cold copy retained)", key)
		m.publishStats()
		return value, TierCold, true
	}

	logging.ManagerDebug("Retrieve %q: miss in all tiers", key)
	return nil, "", false
}

// LookupResident checks only the in-process tiers (hot, then warm) without
// side effects: no access bump, no promotion. Used by hybrid retrieval to
// assemble the local memory context, where appearing in search results must
// not count as an access.
func (m *Manager) LookupResident(key string) ([]byte, TierName, bool) {
	if value, ok := m.hot.Peek(key); ok {
		return value, TierHot, true
	}
	if value, ok := m.warm.Peek(key); ok {
		return value, TierWarm, true
	}
	return nil, "", false
}

// Evict broadcasts the eviction to all four tiers; success means any tier
// held the key.
func (m *Manager) Evict(ctx context.Context, key string) bool {
	timer := logging.StartTimer(logging.CategoryManager, "Evict")
	defer timer.Stop()

	evicted := m.hot.Evict(key)
	evicted = m.warm.Evict(key) || evicted
	evicted = m.archive.Evict(key) || evicted
	evicted = m.cold.Evict(key) || evicted

	if evicted {
		logging.ManagerDebug("Evicted %q (broadcast)", key)
		m.publishStats()
	}
	return evicted
}

// GetMetadata returns the metadata snapshot from the first tier holding the
// key, in retrieval order.
func (m *Manager) GetMetadata(key string) *Metadata {
	for _, t := range []Tier{m.hot, m.warm, m.archive, m.cold} {
		if meta := t.GetMetadata(key); meta != nil {
			return meta
		}
	}
	return nil
}

// FindSimilar runs an intra-tier similarity scan. Only the warm and archive
// tiers support it. threshold <= 0 selects the tier default.
func (m *Manager) FindSimilar(tier TierName, query []float32, threshold float64, maxResults int) ([]SimilarityHit, error) {
	switch tier {
	case TierWarm:
		return m.warm.FindSimilar(query, threshold, maxResults), nil
	case TierArchive:
		return m.archive.FindSimilar(query, threshold, maxResults), nil
	default:
		return nil, fmt.Errorf("%w: similarity search unsupported in %q", ErrInvalidTier, tier)
	}
}

// Stats recomputes the aggregate tier statistics.
func (m *Manager) Stats() Stats {
	s := Stats{
		HotBytes:     m.hot.Size(),
		HotItems:     m.hot.Items(),
		WarmBytes:    m.warm.Size(),
		WarmItems:    m.warm.Items(),
		ArchiveBytes: m.archive.Size(),
		ArchiveItems: m.archive.Items(),
		ColdBytes:    m.cold.Size(),
		ColdItems:    m.cold.Items(),
	}
	if m.hot.capacity > 0 {
		s.Utilization = float64(s.HotBytes) / float64(m.hot.capacity) * 100
	}
	return s
}

// publishStats recomputes stats and hands them to the callback, if any.
func (m *Manager) publishStats() {
	s := m.Stats()
	logging.ManagerDebug("Stats: hot=%d/%dB warm=%d archive=%d cold=%d util=%.1f%%",
		s.HotItems, s.HotBytes, s.WarmItems, s.ArchiveItems, s.ColdItems, s.Utilization)
	if m.onStats != nil {
		m.onStats(s)
	}
}
