// File: fake/fakepool.go
// Author: momentics <momentics@gmail.com>
//
// Instrumented buffer pool for tests. Unlike the production pool it is
// locked, because tests inspect it while the sink goroutine uses it.

package fake

import (
	"sync"

	"github.com/momentics/komorebi-link/api"
)

// Pool is a counting api.BytePool.
type Pool struct {
	mu    sync.Mutex
	size  int
	free  [][]byte
	stats api.PoolStats
}

// NewPool creates a fake pool of size-byte buffers.
func NewPool(size int) *Pool {
	return &Pool{size: size}
}

// Acquire implements api.BytePool.
func (p *Pool) Acquire() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) > 0 {
		buf := p.free[0]
		p.free = p.free[1:]
		p.stats.Reused++
		return buf
	}
	p.stats.Allocated++
	return make([]byte, p.size)
}

// Release implements api.BytePool.
func (p *Pool) Release(buf []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cap(buf) != p.size {
		return
	}
	p.stats.Returned++
	p.free = append(p.free, buf[:p.size])
}

// Clear implements api.BytePool.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = nil
	p.stats.Cleared++
}

// Len implements api.BytePool.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Stats implements api.BytePool.
func (p *Pool) Stats() api.PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

var _ api.BytePool = (*Pool)(nil)
