package vad

import (
	"context"
	"testing"
	"time"
)

func TestNewPoolDefaultsToThreeOnNonPositiveSize(t *testing.T) {
	p := NewPool(0)
	if len(p.free) != 3 {
		t.Fatalf("expected default pool size 3, got %d", len(p.free))
	}
}

func TestAcquireReleaseRoundTrip(t *testing.T) {
	p := NewPool(1)
	m, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.free) != 0 {
		t.Fatalf("expected pool drained after acquire, got %d free", len(p.free))
	}
	m.residual = []float64{1, 2, 3}
	p.Release(m)
	if len(p.free) != 1 {
		t.Fatalf("expected handle returned to pool, got %d free", len(p.free))
	}
	if len(m.residual) != 0 {
		t.Error("expected Release to reset the model's residual buffer")
	}
}

func TestAcquireBlocksUntilContextCancelled(t *testing.T) {
	p := NewPool(1)
	if _, err := p.Acquire(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := p.Acquire(ctx); err == nil {
		t.Fatal("expected Acquire to fail once the pool is exhausted and the context expires")
	}
}
