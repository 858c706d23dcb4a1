package core

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// bufferPool is a mutex-protected pool of byte buffers. Unlike
// sync.Pool its contents are not cleared by the garbage collector,
// which keeps large decompression buffers reusable across a long batch
// instead of being re-allocated per chunk.
type bufferPool struct {
	mu      sync.Mutex
	items   []*bytes.Buffer
	newFunc func() *bytes.Buffer

	hits    atomic.Uint64
	misses  atomic.Uint64
	created atomic.Uint64
}

// DefaultDecompressionBufferSize is the pre-allocated capacity of pooled
// buffers. Decompressed chunk payloads usually land well under this.
const DefaultDecompressionBufferSize = 64 * 1024

// BufferPool is the shared pool used by the compressors and the rewrite
// pipeline.
var BufferPool = NewBufferPool(DefaultDecompressionBufferSize)

// NewBufferPool creates a buffer pool whose buffers start with the given
// capacity.
func NewBufferPool(initialCapacity int) *bufferPool {
	bp := &bufferPool{}
	bp.newFunc = func() *bytes.Buffer {
		bp.created.Add(1)
		return bytes.NewBuffer(make([]byte, 0, initialCapacity))
	}
	return bp
}

// Get retrieves a reset buffer from the pool, allocating if empty.
func (bp *bufferPool) Get() *bytes.Buffer {
	bp.mu.Lock()
	n := len(bp.items)
	if n == 0 {
		bp.mu.Unlock()
		bp.misses.Add(1)
		return bp.newFunc()
	}
	buf := bp.items[n-1]
	bp.items = bp.items[:n-1]
	bp.mu.Unlock()
	bp.hits.Add(1)
	buf.Reset()
	return buf
}

// Put returns a buffer to the pool.
func (bp *bufferPool) Put(buf *bytes.Buffer) {
	if buf == nil {
		return
	}
	bp.mu.Lock()
	bp.items = append(bp.items, buf)
	bp.mu.Unlock()
}

// Stats reports pool activity counters.
func (bp *bufferPool) Stats() (hits, misses, created uint64) {
	return bp.hits.Load(), bp.misses.Load(), bp.created.Load()
}
