package pakstream

import (
	"context"
	"sync"
	"sync/atomic"
)

// gate admits one streaming session at a time. Acquisition never blocks;
// waiters block on a channel closed by release.
type gate struct {
	state atomic.Int32

	mu   sync.Mutex
	idle chan struct{}
}

// tryAcquire takes the gate if it is free.
func (g *gate) tryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.state.CompareAndSwap(0, 1) {
		return false
	}
	g.idle = make(chan struct{})
	return true
}

// release frees the gate and wakes waiters. It reports whether the gate
// was held.
func (g *gate) release() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.state.CompareAndSwap(1, 0) {
		return false
	}
	close(g.idle)
	g.idle = nil
	return true
}

// held reports whether a session holds the gate.
func (g *gate) held() bool {
	return g.state.Load() == 1
}

// wait blocks until the gate is free or ctx ends.
func (g *gate) wait(ctx context.Context) error {
	g.mu.Lock()
	idle := g.idle
	g.mu.Unlock()
	if idle == nil {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
