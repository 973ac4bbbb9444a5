package memory

import (
	"fmt"
	"sort"

	"mnemo/internal/logging"
)

// =============================================================================
// TOKEN COMPRESSOR
// =============================================================================
// Deterministic important-token selector used by the archive tier. Not a
// semantic summarizer: each token is scored by position (head and tail of the
// sequence score highest) and frequency, and everything at or above the score
// at rank n/ratio survives. Ties at the threshold can make output length vary
// slightly from the exact target.

// DefaultMaxCompressionRatio caps the requested ratio.
const DefaultMaxCompressionRatio = 16

// TokenCompressor selects important tokens at a target compression ratio.
type TokenCompressor struct {
	maxRatio int
}

// NewTokenCompressor creates a compressor. maxRatio <= 0 selects the default.
func NewTokenCompressor(maxRatio int) *TokenCompressor {
	if maxRatio <= 0 {
		maxRatio = DefaultMaxCompressionRatio
	}
	return &TokenCompressor{maxRatio: maxRatio}
}

// MaxRatio returns the configured ratio cap.
func (c *TokenCompressor) MaxRatio() int { return c.maxRatio }

// Compress reduces tokens at the given ratio, returning the surviving tokens
// and their importance scores. A ratio above the cap is silently clamped;
// a ratio <= 0 is a programmer error.
func (c *TokenCompressor) Compress(tokens []string, ratio int) ([]string, []float64, error) {
	if ratio <= 0 {
		return nil, nil, fmt.Errorf("compression ratio must be positive, got %d", ratio)
	}
	if ratio > c.maxRatio {
		logging.CompressDebug("Clamping compression ratio %d to max %d", ratio, c.maxRatio)
		ratio = c.maxRatio
	}

	n := len(tokens)
	if n <= ratio {
		scores := make([]float64, n)
		for i := range scores {
			scores[i] = 1.0
		}
		return append([]string(nil), tokens...), scores, nil
	}

	// Frequency table over the full sequence.
	counts := make(map[string]int, n)
	for _, tok := range tokens {
		counts[tok]++
	}

	scores := make([]float64, n)
	for i, tok := range tokens {
		edge := i
		if n-1-i < edge {
			edge = n - 1 - i
		}
		posScore := 1.0 - float64(edge)/float64(n)
		freqScore := float64(counts[tok]) / float64(n)
		scores[i] = 0.6*posScore + 0.4*freqScore
	}

	// Threshold is the score at the target rank of the descending sort.
	// Ratio 1 puts the target rank at n; clamp to the last index so the
	// threshold is the minimum score and every token survives.
	sorted := append([]float64(nil), scores...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	rank := n / ratio
	if rank >= n {
		rank = n - 1
	}
	threshold := sorted[rank]

	var kept []string
	var keptScores []float64
	for i, tok := range tokens {
		if scores[i] >= threshold {
			kept = append(kept, tok)
			keptScores = append(keptScores, scores[i])
		}
	}

	logging.CompressDebug("Compressed %d tokens -> %d at ratio %d (threshold=%.4f)", n, len(kept), ratio, threshold)
	return kept, keptScores, nil
}
