// Package search implements hybrid retrieval: vector similarity over the
// persistent store blended with context-aware reranking driven by the query's
// own analysis. Retrieval is best-effort by contract: every failure path
// degrades to an empty result list rather than an error.
package search

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"mnemo/internal/embedding"
	"mnemo/internal/logging"
	"mnemo/internal/memory"
	"mnemo/internal/store"
)

// =============================================================================
// CONTEXT SCORE WEIGHTS
// =============================================================================
// The context score blends three signals. Semantic and relationship overlap
// dominate; recency breaks near-ties between otherwise similar memories.

const (
	semanticWeight     = 0.4
	relationshipWeight = 0.4
	recencyWeight      = 0.2

	// recencyHalfScaleSeconds is the age at which the recency signal decays
	// to one half.
	recencyHalfScaleSeconds = 3600.0

	// candidateFactor oversamples the vector search so reranking has
	// headroom to reorder before truncation.
	candidateFactor = 2
)

// VectorIndex is the vector search surface the searcher consumes.
type VectorIndex interface {
	Search(ctx context.Context, query []float32, k int, filter store.SearchFilter) ([]store.SearchResult, error)
}

// ResidentLookup checks the in-process tiers without side effects. Satisfied
// by the tier manager.
type ResidentLookup interface {
	LookupResident(key string) ([]byte, memory.TierName, bool)
}

// Config tunes one searcher instance.
type Config struct {
	// TopK is the number of results returned.
	TopK int

	// MinRelevance drops results whose combined score falls below it. A
	// per-call filter floor of zero defers to this value; a negative
	// per-call floor disables the cutoff entirely.
	MinRelevance float64

	// ContextBoost is the blend factor between the vector score and the
	// context score: combined = (1-boost)*vector + boost*context.
	ContextBoost float64
}

// DefaultConfig returns the standard retrieval tuning.
func DefaultConfig() Config {
	return Config{
		TopK:         10,
		MinRelevance: 0.2,
		ContextBoost: 0.3,
	}
}

// Result is a single hybrid retrieval hit.
type Result struct {
	ID      string
	Content string

	// VectorScore is the raw cosine similarity from the index.
	VectorScore float64

	// ContextScore is the analysis-driven rerank signal.
	ContextScore float64

	// Score is the blended final score results are ordered by.
	Score float64

	// ResidentTier names the in-process tier currently holding this memory's
	// key, if any.
	ResidentTier memory.TierName

	Metadata map[string]interface{}
}

// Searcher runs hybrid retrieval against a vector index.
type Searcher struct {
	index    VectorIndex
	embedder embedding.Provider
	analyzer memory.Analyzer
	resident ResidentLookup // optional

	cfg Config
	now func() time.Time
}

// NewSearcher wires a hybrid searcher. resident may be nil; results then
// carry no tier annotation.
func NewSearcher(index VectorIndex, embedder embedding.Provider, analyzer memory.Analyzer, resident ResidentLookup, cfg Config) *Searcher {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultConfig().TopK
	}
	if cfg.ContextBoost < 0 || cfg.ContextBoost > 1 {
		cfg.ContextBoost = DefaultConfig().ContextBoost
	}
	return &Searcher{
		index:    index,
		embedder: embedder,
		analyzer: analyzer,
		resident: resident,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Search runs the full hybrid pipeline for a query text: analyze and embed
// the query concurrently, oversample the vector index, rerank with the
// context score, then filter and truncate. Any failure degrades to an empty
// list; retrieval never blocks the caller on an error.
func (s *Searcher) Search(ctx context.Context, query string, filter store.SearchFilter) []Result {
	timer := logging.StartTimer(logging.CategorySearch, "hybrid.Search")
	defer timer.Stop()

	if query == "" {
		return []Result{}
	}

	var (
		analysis *memory.AnalysisResult
		vector   []float32
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		analysis = s.analyzer.Analyze(gctx, query)
		return nil
	})
	g.Go(func() error {
		var err error
		vector, err = s.embedder.Embed(gctx, query)
		return err
	})
	if err := g.Wait(); err != nil {
		logging.Get(logging.CategorySearch).Warn("Query embedding failed, returning empty results: %v", err)
		return []Result{}
	}
	if len(vector) == 0 {
		logging.SearchDebug("Embedder produced no vector for query, returning empty results")
		return []Result{}
	}

	// A zero per-call floor means unset and defers to the configured
	// MinRelevance; a negative floor explicitly disables filtering.
	minRelevance := filter.MinRelevance
	if minRelevance == 0 {
		minRelevance = s.cfg.MinRelevance
	}
	filter.MinRelevance = minRelevance
	candidates, err := s.index.Search(ctx, vector, s.cfg.TopK*candidateFactor, filter)
	if err != nil {
		logging.Get(logging.CategorySearch).Warn("Vector search failed, returning empty results: %v", err)
		return []Result{}
	}

	// Entries the query explicitly references and which are already resident
	// in a fast tier join the candidate set with a full context score.
	referenced := s.referencedResidents(analysis.Metadata)

	results := s.rerank(analysis.Metadata, candidates, referenced)
	for key, ref := range referenced {
		if ref.merged {
			continue
		}
		results = append(results, Result{
			ID:           "resident:" + key,
			Content:      ref.content,
			ContextScore: 1.0,
			Score:        combineScores(0, 1.0, s.cfg.ContextBoost),
			ResidentTier: ref.tier,
		})
	}

	filtered := results[:0]
	for _, r := range results {
		if r.Score >= minRelevance {
			filtered = append(filtered, r)
		}
	}
	results = filtered

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > s.cfg.TopK {
		results = results[:s.cfg.TopK]
	}

	logging.Search("Hybrid search: %d results (candidates=%d, boost=%.2f)",
		len(results), len(candidates), s.cfg.ContextBoost)
	return results
}

// referencedResident is a fast-tier entry the query analysis named directly.
type referencedResident struct {
	content string
	tier    memory.TierName
	merged  bool // true once folded into an index candidate
}

// referencedResidents looks up the analysis's explicit references in the
// in-process tiers (hot first, then warm, via the manager's lookup order).
func (s *Searcher) referencedResidents(queryMeta *memory.Metadata) map[string]*referencedResident {
	if s.resident == nil || queryMeta == nil || len(queryMeta.Relationships) == 0 {
		return nil
	}
	found := make(map[string]*referencedResident)
	for _, key := range queryMeta.Relationships["references"] {
		if _, ok := found[key]; ok {
			continue
		}
		if value, tier, ok := s.resident.LookupResident(key); ok {
			found[key] = &referencedResident{content: string(value), tier: tier}
		}
	}
	return found
}

// rerank blends each candidate's vector score with its context score against
// the query analysis. Candidates backing an explicitly referenced resident
// entry absorb it: full context score plus the tier annotation.
func (s *Searcher) rerank(queryMeta *memory.Metadata, candidates []store.SearchResult, referenced map[string]*referencedResident) []Result {
	now := s.now()
	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		contextScore := s.contextScore(queryMeta, c.Metadata, now)
		r := Result{
			ID:           c.ID,
			Content:      c.Content,
			VectorScore:  c.Score,
			ContextScore: contextScore,
			Metadata:     c.Metadata,
		}
		if key, ok := c.Metadata["key"].(string); ok && key != "" {
			if ref, hit := referenced[key]; hit {
				r.ContextScore = 1.0
				r.ResidentTier = ref.tier
				ref.merged = true
			} else if s.resident != nil {
				if _, tier, found := s.resident.LookupResident(key); found {
					r.ResidentTier = tier
				}
			}
		}
		r.Score = combineScores(r.VectorScore, r.ContextScore, s.cfg.ContextBoost)
		results = append(results, r)
	}
	return results
}

// combineScores blends the vector and context scores with the boost factor.
func combineScores(vectorScore, contextScore, boost float64) float64 {
	return (1-boost)*vectorScore + boost*contextScore
}

// contextScore measures how well a candidate's stored metadata matches the
// query analysis: semantic key overlap, relationship key overlap, and a
// recency decay on the candidate's last access.
func (s *Searcher) contextScore(queryMeta *memory.Metadata, candidateMeta map[string]interface{}, now time.Time) float64 {
	if queryMeta == nil || candidateMeta == nil {
		return 0
	}

	semantic := keyOverlap(queryMeta.Semantics, candidateMeta["semantics"])
	relationship := relationshipOverlap(queryMeta.Relationships, candidateMeta["relationships"])
	recency := recencyScore(candidateMeta["last_access"], now)

	return semanticWeight*semantic + relationshipWeight*relationship + recencyWeight*recency
}

// keyOverlap computes |query keys ∩ candidate keys| / |query keys|.
func keyOverlap(query map[string]float64, candidate interface{}) float64 {
	if len(query) == 0 {
		return 0
	}
	keys, ok := candidate.(map[string]interface{})
	if !ok || len(keys) == 0 {
		return 0
	}
	matched := 0
	for k := range query {
		if _, present := keys[k]; present {
			matched++
		}
	}
	return float64(matched) / float64(len(query))
}

// relationshipOverlap is keyOverlap over relation names.
func relationshipOverlap(query map[string][]string, candidate interface{}) float64 {
	if len(query) == 0 {
		return 0
	}
	keys, ok := candidate.(map[string]interface{})
	if !ok || len(keys) == 0 {
		return 0
	}
	matched := 0
	for k := range query {
		if _, present := keys[k]; present {
			matched++
		}
	}
	return float64(matched) / float64(len(query))
}

// recencyScore decays with the candidate's age: 1/(1 + age/3600). A missing
// or malformed last-access timestamp scores zero.
func recencyScore(lastAccess interface{}, now time.Time) float64 {
	var ts int64
	switch v := lastAccess.(type) {
	case int64:
		ts = v
	case float64: // JSON round-trip decodes numbers as float64
		ts = int64(v)
	default:
		return 0
	}
	if ts <= 0 {
		return 0
	}
	age := now.Sub(time.Unix(ts, 0)).Seconds()
	if age < 0 {
		age = 0
	}
	return 1 / (1 + age/recencyHalfScaleSeconds)
}
