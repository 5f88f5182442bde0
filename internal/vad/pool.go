package vad

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool is a fixed-size set of independent Model handles. Acquire blocks
// until a handle is free; Release resets and returns it. The pool's
// mutex is only ever held across the acquire/release boundary — never
// on the hot per-chunk inference path, which operates on a handle the
// caller already owns exclusively.
type Pool struct {
	sem   *semaphore.Weighted
	mu    sync.Mutex
	free  []*Model
}

// NewPool creates a pool of size handles (default 3 when size <= 0).
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 3
	}
	free := make([]*Model, size)
	for i := range free {
		free[i] = NewModel()
	}
	return &Pool{
		sem:  semaphore.NewWeighted(int64(size)),
		free: free,
	}
}

// Acquire blocks until a model handle is available or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (*Model, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	p.mu.Lock()
	m := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.mu.Unlock()
	return m, nil
}

// Release resets the model and returns it to the pool.
func (p *Pool) Release(m *Model) {
	m.Reset()
	p.mu.Lock()
	p.free = append(p.free, m)
	p.mu.Unlock()
	p.sem.Release(1)
}
