package analyzer

import (
	"testing"

	"mnemo/internal/memory"
)

func TestDetermineAllocation(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name         string
		meta         *memory.Metadata
		wantTier     memory.TierName
		wantPriority memory.Priority
		wantTTL      int
	}{
		{
			name: "Hot By Complexity",
			meta: &memory.Metadata{
				RelevanceScore: 0.9,
				Semantics:      map[string]float64{"complexity": 0.8},
			},
			wantTier:     memory.TierHot,
			wantPriority: memory.PriorityHigh,
			wantTTL:      7200,
		},
		{
			name: "Hot By Access Count",
			meta: &memory.Metadata{
				RelevanceScore: 0.6,
				AccessCount:    6,
			},
			wantTier:     memory.TierHot,
			wantPriority: memory.PriorityHigh,
			wantTTL:      7200,
		},
		{
			name: "Warm When Relevant But Simple",
			meta: &memory.Metadata{
				RelevanceScore: 0.6,
				Semantics:      map[string]float64{"complexity": 0.3},
				AccessCount:    2,
			},
			wantTier:     memory.TierWarm,
			wantPriority: memory.PriorityMedium,
			wantTTL:      3600,
		},
		{
			name: "Archive For Mid Relevance",
			meta: &memory.Metadata{
				RelevanceScore: 0.3,
			},
			wantTier:     memory.TierArchive,
			wantPriority: memory.PriorityLow,
			wantTTL:      1800,
		},
		{
			name: "Cold For Low Relevance",
			meta: &memory.Metadata{
				RelevanceScore: 0.1,
			},
			wantTier:     memory.TierCold,
			wantPriority: memory.PriorityLow,
			wantTTL:      300,
		},
		{
			name: "Boundary Relevance Is Exclusive",
			meta: &memory.Metadata{
				// Exactly at the promotion threshold falls through to the
				// archive check; exactly at the archive floor falls to cold.
				RelevanceScore: 0.5,
			},
			wantTier:     memory.TierArchive,
			wantPriority: memory.PriorityLow,
			wantTTL:      1800,
		},
		{
			name: "High Access Alone Is Not Enough",
			meta: &memory.Metadata{
				RelevanceScore: 0.1,
				AccessCount:    100,
			},
			wantTier:     memory.TierCold,
			wantPriority: memory.PriorityLow,
			wantTTL:      300,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetermineAllocation(tt.meta, th)
			if got.SuggestedTier != tt.wantTier {
				t.Errorf("SuggestedTier = %q, want %q", got.SuggestedTier, tt.wantTier)
			}
			if got.Priority != tt.wantPriority {
				t.Errorf("Priority = %q, want %q", got.Priority, tt.wantPriority)
			}
			if got.TTLSeconds != tt.wantTTL {
				t.Errorf("TTLSeconds = %d, want %d", got.TTLSeconds, tt.wantTTL)
			}
		})
	}
}

func TestDetermineAllocationNilMetadata(t *testing.T) {
	got := DetermineAllocation(nil, DefaultThresholds())
	if got.SuggestedTier != memory.TierCold || got.Priority != memory.PriorityLow || got.TTLSeconds != 60 {
		t.Errorf("Nil metadata allocation = %+v, want safe default", got)
	}
	if got.Metadata == nil {
		t.Error("Safe default returned nil metadata")
	}
}

func TestSafeDefaultPreservesMetadata(t *testing.T) {
	meta := &memory.Metadata{RelevanceScore: 0.4}
	got := SafeDefault(meta)
	if got.Metadata != meta {
		t.Error("SafeDefault replaced caller metadata")
	}
	if got.SuggestedTier != memory.TierCold {
		t.Errorf("SuggestedTier = %q, want cold", got.SuggestedTier)
	}
}
