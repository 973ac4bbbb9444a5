// Package analyzer turns raw context text into an allocation decision: which
// tier an entry belongs in, at what priority, and for how long. The heuristic
// analyzer here is the default implementation; callers with a richer model
// can supply their own memory.Analyzer.
package analyzer

import (
	"context"
	"regexp"
	"strings"
	"time"

	"mnemo/internal/logging"
	"mnemo/internal/memory"
)

// referencePattern matches explicit key references of the form ref:some-key.
var referencePattern = regexp.MustCompile(`\bref:([A-Za-z0-9_.:-]+)`)

// Heuristic is a lightweight, dependency-free context analyzer: whitespace
// tokenization, surface-statistics semantics, and explicit-reference
// relationship extraction. Analyze never fails; unanalyzable input yields
// the safe default allocation.
type Heuristic struct {
	thresholds Thresholds
	now        func() time.Time
}

// NewHeuristic creates the default analyzer.
func NewHeuristic(th Thresholds) *Heuristic {
	return &Heuristic{thresholds: th, now: time.Now}
}

// Analyze implements memory.Analyzer.
func (h *Heuristic) Analyze(ctx context.Context, text string) *memory.AnalysisResult {
	timer := logging.StartTimer(logging.CategoryAnalyzer, "Analyze")
	defer timer.Stop()

	if strings.TrimSpace(text) == "" {
		logging.Get(logging.CategoryAnalyzer).Warn("Empty context provided, using safe default")
		return SafeDefault(nil)
	}

	tokens := tokenize(text)
	semantics := extractSemantics(tokens)
	relationships := identifyRelationships(text)

	meta := &memory.Metadata{
		Tokens:         tokens,
		Semantics:      semantics,
		Relationships:  relationships,
		LastAccess:     h.now(),
		AccessCount:    1,
		RelevanceScore: semantics["relevance"],
	}

	logging.AnalyzerDebug("Analyzed context: %d tokens, relevance=%.2f, complexity=%.2f",
		len(tokens), meta.RelevanceScore, semantics["complexity"])
	return DetermineAllocation(meta, h.thresholds)
}

// tokenize splits context into whitespace-delimited units.
func tokenize(text string) []string {
	return strings.Fields(text)
}

// extractSemantics derives surface-statistics features: longer contexts are
// assumed more relevant, and lexical diversity stands in for complexity.
func extractSemantics(tokens []string) map[string]float64 {
	if len(tokens) == 0 {
		return map[string]float64{}
	}

	unique := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		unique[strings.ToLower(tok)] = struct{}{}
	}

	relevance := 0.5
	if len(tokens) > 10 {
		relevance = 1.0
	}

	return map[string]float64{
		"relevance":  relevance,
		"complexity": float64(len(unique)) / float64(len(tokens)),
	}
}

// identifyRelationships extracts explicit key references from the text.
func identifyRelationships(text string) map[string][]string {
	rels := map[string][]string{
		"dependencies": {},
		"references":   {},
	}
	for _, match := range referencePattern.FindAllStringSubmatch(text, -1) {
		rels["references"] = append(rels["references"], match[1])
	}
	return rels
}
