package analyzer

import (
	"mnemo/internal/logging"
	"mnemo/internal/memory"
)

// =============================================================================
// ALLOCATION POLICY
// =============================================================================
// Pure, deterministic, total mapping from context metadata to a target tier,
// priority, and TTL. The two relevance thresholds are compared high-first
// (promotion threshold before the "high relevance" floor) so that every
// branch is reachable; see DESIGN.md for the rationale.

// Thresholds parameterize the allocation decision.
type Thresholds struct {
	// RelevanceHigh is the floor above which content is at least
	// archive-worthy.
	RelevanceHigh float64

	// PromotionThreshold is the floor above which content belongs in the
	// fast tiers.
	PromotionThreshold float64

	// ComplexityHot routes complex content to the hot tier.
	ComplexityHot float64

	// AccessCountHot routes frequently-accessed content to the hot tier.
	AccessCountHot int
}

// DefaultThresholds returns the standard allocation thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		RelevanceHigh:      0.2,
		PromotionThreshold: 0.5,
		ComplexityHot:      0.7,
		AccessCountHot:     5,
	}
}

// Allocation TTLs in seconds.
const (
	ttlHot         = 7200
	ttlWarm        = 3600
	ttlArchive     = 1800
	ttlCold        = 300
	ttlSafeDefault = 60
)

// SafeDefault is the allocation used when context is empty or unanalyzable.
func SafeDefault(meta *memory.Metadata) *memory.AnalysisResult {
	if meta == nil {
		meta = &memory.Metadata{}
	}
	return &memory.AnalysisResult{
		Metadata:      meta,
		SuggestedTier: memory.TierCold,
		Priority:      memory.PriorityLow,
		TTLSeconds:    ttlSafeDefault,
	}
}

// DetermineAllocation maps context metadata to a tier, priority, and TTL.
func DetermineAllocation(meta *memory.Metadata, th Thresholds) *memory.AnalysisResult {
	if meta == nil {
		return SafeDefault(nil)
	}

	relevance := meta.RelevanceScore
	complexity := meta.Semantics["complexity"]

	if relevance > th.PromotionThreshold {
		if complexity > th.ComplexityHot || meta.AccessCount > th.AccessCountHot {
			logging.AnalyzerDebug("Allocation: hot (relevance=%.2f complexity=%.2f accesses=%d)",
				relevance, complexity, meta.AccessCount)
			return &memory.AnalysisResult{
				Metadata:      meta,
				SuggestedTier: memory.TierHot,
				Priority:      memory.PriorityHigh,
				TTLSeconds:    ttlHot,
			}
		}
		logging.AnalyzerDebug("Allocation: warm (relevance=%.2f)", relevance)
		return &memory.AnalysisResult{
			Metadata:      meta,
			SuggestedTier: memory.TierWarm,
			Priority:      memory.PriorityMedium,
			TTLSeconds:    ttlWarm,
		}
	}

	if relevance > th.RelevanceHigh {
		logging.AnalyzerDebug("Allocation: archive (relevance=%.2f)", relevance)
		return &memory.AnalysisResult{
			Metadata:      meta,
			SuggestedTier: memory.TierArchive,
			Priority:      memory.PriorityLow,
			TTLSeconds:    ttlArchive,
		}
	}

	logging.AnalyzerDebug("Allocation: cold (relevance=%.2f)", relevance)
	return &memory.AnalysisResult{
		Metadata:      meta,
		SuggestedTier: memory.TierCold,
		Priority:      memory.PriorityLow,
		TTLSeconds:    ttlCold,
	}
}
