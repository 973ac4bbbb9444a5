// Package memory implements the tiered context memory engine: four storage
// tiers with per-tier admission/eviction policies, a token compressor for the
// archive tier, intra-tier similarity search, and the manager that moves
// entries between tiers as access patterns change.
package memory

import "time"

// =============================================================================
// TIER NAMES AND PRIORITIES
// =============================================================================

// TierName identifies one of the four storage tiers, in retrieval order.
type TierName string

const (
	TierHot     TierName = "hot"     // Active context, admission-controlled
	TierWarm    TierName = "warm"    // Recent data, windowed LRU
	TierArchive TierName = "archive" // Inactive but relevant, compressed
	TierCold    TierName = "cold"    // Persistent store backed
)

// Valid reports whether the tier name is one of the four known tiers.
func (t TierName) Valid() bool {
	switch t {
	case TierHot, TierWarm, TierArchive, TierCold:
		return true
	}
	return false
}

// Priority is the urgency level attached to an allocation decision.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// =============================================================================
// METADATA
// =============================================================================

// Triple is a (subject, relation, object) statement attached to an entry.
// The cold tier materializes each triple as two graph nodes and one edge.
type Triple struct {
	Subject  string
	Relation string
	Object   string
}

// Metadata describes a stored entry. Treated as an immutable snapshot: tiers
// replace the stored pointer with an updated clone rather than mutating in
// place, so a snapshot handed to a caller never changes under it.
type Metadata struct {
	Tokens           []string
	Semantics        map[string]float64
	Relationships    map[string][]string
	LastAccess       time.Time
	AccessCount      int
	RelevanceScore   float64
	Embedding        []float32
	Triples          []Triple
	CompressionRatio int
}

// Clone returns a deep copy of the metadata.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	c := &Metadata{
		LastAccess:       m.LastAccess,
		AccessCount:      m.AccessCount,
		RelevanceScore:   m.RelevanceScore,
		CompressionRatio: m.CompressionRatio,
	}
	if m.Tokens != nil {
		c.Tokens = append([]string(nil), m.Tokens...)
	}
	if m.Semantics != nil {
		c.Semantics = make(map[string]float64, len(m.Semantics))
		for k, v := range m.Semantics {
			c.Semantics[k] = v
		}
	}
	if m.Relationships != nil {
		c.Relationships = make(map[string][]string, len(m.Relationships))
		for k, v := range m.Relationships {
			c.Relationships[k] = append([]string(nil), v...)
		}
	}
	if m.Embedding != nil {
		c.Embedding = append([]float32(nil), m.Embedding...)
	}
	if m.Triples != nil {
		c.Triples = append([]Triple(nil), m.Triples...)
	}
	return c
}

// touched returns a clone with access tracking advanced to now.
func (m *Metadata) touched(now time.Time) *Metadata {
	c := m.Clone()
	if c == nil {
		c = &Metadata{}
	}
	c.LastAccess = now
	c.AccessCount++
	return c
}

// =============================================================================
// ANALYSIS RESULT
// =============================================================================

// AnalysisResult is the context analyzer's verdict for one store operation:
// the metadata it derived, the suggested tier, a priority, and a TTL.
// Produced once per store; never mutated afterward.
type AnalysisResult struct {
	Metadata      *Metadata
	SuggestedTier TierName
	Priority      Priority
	TTLSeconds    int
}
