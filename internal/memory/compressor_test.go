package memory

import (
	"reflect"
	"testing"
)

func TestCompressRejectsNonPositiveRatio(t *testing.T) {
	c := NewTokenCompressor(0)
	for _, ratio := range []int{0, -1, -100} {
		if _, _, err := c.Compress([]string{"a", "b"}, ratio); err == nil {
			t.Errorf("Compress(ratio=%d) expected error, got nil", ratio)
		}
	}
}

func TestCompressClampsRatioToMax(t *testing.T) {
	c := NewTokenCompressor(4)

	// 100 tokens at a requested ratio of 1000: with clamping to 4 the
	// threshold rank is 100/4=25, so a meaningful fraction survives. Without
	// clamping the rank would be 0 and only the single top score would pass.
	tokens := make([]string, 100)
	for i := range tokens {
		tokens[i] = string(rune('a' + i%26))
	}

	kept, _, err := c.Compress(tokens, 1000)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if len(kept) < 10 {
		t.Errorf("Expected clamped ratio to keep a meaningful fraction, got %d of %d", len(kept), len(tokens))
	}
}

func TestCompressRatioOneKeepsEveryToken(t *testing.T) {
	c := NewTokenCompressor(0)

	// Ratio 1 asks for no reduction. The target rank lands past the end of
	// the score list and must clamp instead of indexing out of range.
	tokens := []string{"a", "b", "c"}
	kept, scores, err := c.Compress(tokens, 1)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if !reflect.DeepEqual(kept, tokens) {
		t.Errorf("Ratio 1 changed the sequence: got %v, want %v", kept, tokens)
	}
	if len(scores) != len(tokens) {
		t.Errorf("Scores length %d != token length %d", len(scores), len(tokens))
	}
}

func TestCompressShortInputPassesThrough(t *testing.T) {
	c := NewTokenCompressor(0)

	tokens := []string{"x", "y", "z"}
	kept, scores, err := c.Compress(tokens, 4)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if !reflect.DeepEqual(kept, tokens) {
		t.Errorf("Short input changed: got %v, want %v", kept, tokens)
	}
	for i, s := range scores {
		if s != 1.0 {
			t.Errorf("Short input score[%d] = %v, want 1.0", i, s)
		}
	}
}

func TestCompressKeepsEdgesOfDistinctSequence(t *testing.T) {
	c := NewTokenCompressor(0)

	// Eight distinct tokens: frequency is uniform, so position decides.
	// Head and tail outscore the middle and survive ratio 4.
	tokens := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	kept, scores, err := c.Compress(tokens, 4)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}

	want := []string{"a", "b", "g", "h"}
	if !reflect.DeepEqual(kept, want) {
		t.Errorf("Compress kept %v, want %v", kept, want)
	}
	if len(scores) != len(kept) {
		t.Fatalf("Scores length %d != kept length %d", len(scores), len(kept))
	}
	// Outermost tokens carry the top score.
	if scores[0] <= scores[1] {
		t.Errorf("Expected edge token to outscore its neighbor: %v", scores)
	}
}

func TestCompressFrequencyBoostsRepeatedToken(t *testing.T) {
	c := NewTokenCompressor(0)

	// "x" repeats in the middle where position alone would drop it.
	tokens := []string{"a", "b", "x", "x", "x", "x", "c", "d"}
	kept, _, err := c.Compress(tokens, 4)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}

	found := false
	for _, tok := range kept {
		if tok == "x" {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("Repeated middle token dropped despite frequency: kept %v", kept)
	}
}

func TestCompressOutputNearTarget(t *testing.T) {
	c := NewTokenCompressor(0)

	tokens := make([]string, 64)
	for i := range tokens {
		tokens[i] = string(rune('a'+i%26)) + string(rune('a'+(i/26)))
	}

	for _, ratio := range []int{2, 4, 8, 16} {
		kept, _, err := c.Compress(tokens, ratio)
		if err != nil {
			t.Fatalf("Compress(ratio=%d) failed: %v", ratio, err)
		}
		target := len(tokens) / ratio
		// Threshold ties allow slight overshoot, never an empty result.
		if len(kept) == 0 {
			t.Errorf("Compress(ratio=%d) kept nothing", ratio)
		}
		if len(kept) < target {
			t.Errorf("Compress(ratio=%d) kept %d, below target %d", ratio, len(kept), target)
		}
	}
}
