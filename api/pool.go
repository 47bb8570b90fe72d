// File: api/pool.go
// Author: momentics <momentics@gmail.com>
//
// Abstract pooling API for fixed-size receive buffers.

package api

// BytePool is a free list of fixed-size receive buffers. A buffer is owned
// either by exactly one in-flight operation or by the pool, never both.
type BytePool interface {
	// Acquire returns a buffer of the pool's fixed size, reusing a pooled
	// one when available and allocating fresh otherwise.
	Acquire() []byte

	// Release returns a buffer to the pool. Buffers of the wrong size are
	// dropped.
	Release(buf []byte)

	// Clear empties the free list, bounding long-run memory growth.
	Clear()

	// Len reports the number of buffers currently sitting in the pool.
	Len() int

	// Stats exposes allocation accounting for observability.
	Stats() PoolStats
}

// PoolStats aggregates buffer allocation and reuse counters.
type PoolStats struct {
	Allocated int64 // fresh allocations
	Reused    int64 // acquisitions served from the free list
	Returned  int64 // buffers handed back via Release
	Cleared   int64 // Clear invocations
}
