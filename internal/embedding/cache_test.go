package embedding

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// countingProvider counts upstream calls.
type countingProvider struct {
	calls int32
	vec   []float32
	err   error
	block chan struct{} // optional: hold calls open until closed
}

func (p *countingProvider) Embed(context.Context, string) ([]float32, error) {
	atomic.AddInt32(&p.calls, 1)
	if p.block != nil {
		<-p.block
	}
	return p.vec, p.err
}
func (p *countingProvider) Dimensions() int { return len(p.vec) }
func (p *countingProvider) Name() string    { return "counting" }

func TestCachedHitSkipsProvider(t *testing.T) {
	inner := &countingProvider{vec: []float32{1, 2}}
	c := NewCached(inner, 10)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		vec, err := c.Embed(ctx, "same text")
		if err != nil {
			t.Fatalf("Embed failed: %v", err)
		}
		if len(vec) != 2 {
			t.Fatalf("Vector length = %d, want 2", len(vec))
		}
	}

	if got := atomic.LoadInt32(&inner.calls); got != 1 {
		t.Errorf("Provider calls = %d, want 1", got)
	}
	if c.Len() != 1 {
		t.Errorf("Cache entries = %d, want 1", c.Len())
	}
}

func TestCachedErrorNotCached(t *testing.T) {
	inner := &countingProvider{err: errors.New("down")}
	c := NewCached(inner, 10)
	ctx := context.Background()

	if _, err := c.Embed(ctx, "q"); err == nil {
		t.Fatal("Expected error from provider")
	}
	if _, err := c.Embed(ctx, "q"); err == nil {
		t.Fatal("Expected error on retry")
	}
	if got := atomic.LoadInt32(&inner.calls); got != 2 {
		t.Errorf("Provider calls = %d, want 2 (failures must not cache)", got)
	}
}

func TestCachedCollapsesConcurrentMisses(t *testing.T) {
	inner := &countingProvider{vec: []float32{1}, block: make(chan struct{})}
	c := NewCached(inner, 10)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			c.Embed(ctx, "same text")
		}()
	}

	// Release the single in-flight upstream call once all workers have had a
	// chance to pile onto it.
	time.Sleep(100 * time.Millisecond)
	close(inner.block)
	wg.Wait()

	if got := atomic.LoadInt32(&inner.calls); got != 1 {
		t.Errorf("Provider calls = %d, want 1 (singleflight collapse)", got)
	}
}

func TestCachedResetsWhenFull(t *testing.T) {
	inner := &countingProvider{vec: []float32{1}}
	c := NewCached(inner, 2)
	ctx := context.Background()

	c.Embed(ctx, "a")
	c.Embed(ctx, "b")
	c.Embed(ctx, "c") // over the bound: cache resets before insert

	if c.Len() != 1 {
		t.Errorf("Cache entries = %d after reset, want 1", c.Len())
	}
}

func TestCachedName(t *testing.T) {
	c := NewCached(&countingProvider{vec: []float32{1, 2, 3}}, 0)
	if c.Name() != "counting+cache" {
		t.Errorf("Name = %q", c.Name())
	}
	if c.Dimensions() != 3 {
		t.Errorf("Dimensions = %d, want 3", c.Dimensions())
	}
}
