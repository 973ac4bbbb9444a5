package store

import (
	"context"
	"sort"

	"mnemo/internal/logging"
	"mnemo/internal/memory"
)

// =============================================================================
// VECTOR SEARCH
// =============================================================================
// The store doubles as the vector index for hybrid retrieval. When the
// sqlite-vec extension is available the scan could be pushed into SQL; the
// in-process cosine scan below is the path that always works, and node counts
// stay small enough that it is not the bottleneck (embedding is).

// SearchFilter narrows a vector search.
type SearchFilter struct {
	// MinRelevance drops results scoring below it. Zero is treated as
	// unset by the hybrid searcher, which substitutes its configured
	// floor; a negative value requests no floor at all.
	MinRelevance float64

	// SemanticTypes, when non-empty, keeps only nodes whose metadata carries
	// at least one of these semantic keys.
	SemanticTypes []string

	// RelatedTo, when non-empty, keeps only nodes within two hops of the
	// given node id.
	RelatedTo string
}

// SearchResult is a single vector search hit.
type SearchResult struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]interface{}
}

// Search returns up to k memory nodes ranked by cosine similarity against the
// query vector, after applying the filter.
func (s *SQLiteStore) Search(ctx context.Context, query []float32, k int, filter SearchFilter) ([]SearchResult, error) {
	timer := logging.StartTimer(logging.CategorySearch, "store.Search")
	defer timer.Stop()

	if len(query) == 0 || k <= 0 {
		return nil, nil
	}

	var neighborhood map[string]bool
	if filter.RelatedTo != "" {
		related, err := s.FindRelated(ctx, filter.RelatedTo, 2, 0)
		if err != nil {
			return nil, err
		}
		neighborhood = make(map[string]bool, len(related))
		for _, r := range related {
			neighborhood[r.ID] = true
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, embedding, importance, metadata, created_at
		 FROM memory_nodes WHERE kind = 'memory' AND embedding IS NOT NULL`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			logging.Get(logging.CategorySearch).Warn("Node scan failed during search: %v", err)
			continue
		}
		if len(node.Embedding) == 0 {
			continue
		}
		if neighborhood != nil && !neighborhood[node.ID] {
			continue
		}
		if !matchesSemanticTypes(node.Metadata, filter.SemanticTypes) {
			continue
		}

		score := memory.CosineSimilarity(query, node.Embedding)
		if score < filter.MinRelevance {
			continue
		}
		results = append(results, SearchResult{
			ID:       node.ID,
			Content:  node.Content,
			Score:    score,
			Metadata: node.Metadata,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > k {
		results = results[:k]
	}

	logging.SearchDebug("Vector search: %d hits (k=%d, minRelevance=%.2f)", len(results), k, filter.MinRelevance)
	return results, nil
}

// matchesSemanticTypes reports whether the node metadata carries one of the
// wanted semantic keys. Semantics are stored as a nested map under the
// "semantics" key, mirroring how cold-tier writes shape metadata.
func matchesSemanticTypes(metadata map[string]interface{}, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	sem, ok := metadata["semantics"].(map[string]interface{})
	if !ok {
		return false
	}
	for _, key := range wanted {
		if _, present := sem[key]; present {
			return true
		}
	}
	return false
}
