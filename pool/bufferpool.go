// File: pool/bufferpool.go
// Author: momentics <momentics@gmail.com>
//
// Fixed-size receive-buffer free list. The pool is owned by the sink's
// worker goroutine and is deliberately unlocked; do not share it across
// goroutines.

package pool

import (
	"github.com/momentics/komorebi-link/api"
)

// Pool implements api.BytePool as a FIFO free list of same-size buffers.
type Pool struct {
	free  [][]byte
	size  int
	stats api.PoolStats
}

// New creates a pool whose buffers are size bytes, the protocol's maximum
// message size.
func New(size int) *Pool {
	return &Pool{size: size}
}

// Acquire pops a pooled buffer or allocates a fresh one when the pool is
// empty.
func (p *Pool) Acquire() []byte {
	if len(p.free) > 0 {
		buf := p.free[0]
		p.free = p.free[1:]
		p.stats.Reused++
		return buf
	}
	p.stats.Allocated++
	return make([]byte, p.size)
}

// Release returns buf to the free list. Buffers that do not match the
// pool's fixed size are dropped rather than pooled.
func (p *Pool) Release(buf []byte) {
	if cap(buf) != p.size {
		return
	}
	p.stats.Returned++
	p.free = append(p.free, buf[:p.size])
}

// Clear empties the free list. Subsequent acquisitions allocate fresh.
func (p *Pool) Clear() {
	p.free = nil
	p.stats.Cleared++
}

// Len reports how many buffers sit in the pool.
func (p *Pool) Len() int { return len(p.free) }

// Stats exposes allocation accounting.
func (p *Pool) Stats() api.PoolStats { return p.stats }

var _ api.BytePool = (*Pool)(nil)
