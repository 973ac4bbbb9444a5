package memory

import (
	"math"
	"sort"

	"mnemo/internal/logging"
)

// =============================================================================
// SIMILARITY SEARCH
// =============================================================================
// Linear cosine scan over one tier's metadata. Acceptable because a tier is
// bounded; the full corpus lives in the external vector index.

// SimilarityHit is one result of an intra-tier similarity scan.
type SimilarityHit struct {
	Key   string
	Score float64
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns 0 for mismatched lengths or when either vector has zero norm.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// FindSimilar scans metadata entries carrying an embedding, keeps those with
// similarity >= threshold, and returns the top maxResults sorted descending.
// Ties are broken by key so results are deterministic.
func FindSimilar(query []float32, metadata map[string]*Metadata, threshold float64, maxResults int) []SimilarityHit {
	if maxResults <= 0 {
		maxResults = 5
	}

	var hits []SimilarityHit
	for key, meta := range metadata {
		if meta == nil || len(meta.Embedding) == 0 {
			continue
		}
		score := CosineSimilarity(query, meta.Embedding)
		if score >= threshold {
			hits = append(hits, SimilarityHit{Key: key, Score: score})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Key < hits[j].Key
	})

	if len(hits) > maxResults {
		hits = hits[:maxResults]
	}

	logging.TierDebug("Similarity scan: %d candidates >= %.2f (returning %d)", len(hits), threshold, len(hits))
	return hits
}
