// Package ringbuffer implements a lock-free single-producer/single-consumer
// FIFO over a fixed-capacity backing array of float32 samples.
//
// Write never blocks: once the buffer is full it silently drops the
// overflow. Read never blocks: once the buffer is empty it returns fewer
// samples than requested. Both are safe to call concurrently with each
// other (one writer, one reader) but not with themselves.
package ringbuffer

import "sync/atomic"

// Ring is a fixed-capacity SPSC ring buffer of float32 samples.
type Ring struct {
	buf      []float32
	capacity uint64

	writeIdx atomic.Uint64
	readIdx  atomic.Uint64
}

// New allocates a ring buffer with room for exactly capacity samples.
func New(capacity int) *Ring {
	if capacity <= 0 {
		panic("ringbuffer: capacity must be positive")
	}
	return &Ring{
		buf:      make([]float32, capacity),
		capacity: uint64(capacity),
	}
}

// Capacity returns the fixed capacity of the ring.
func (r *Ring) Capacity() int {
	return int(r.capacity)
}

// AvailableRead returns the number of samples currently readable.
//
// Only safe to treat as exact from the consumer goroutine; from the
// producer it is an upper bound, since the consumer may be draining
// concurrently.
func (r *Ring) AvailableRead() int {
	w := r.writeIdx.Load()
	rd := r.readIdx.Load()
	return int(w - rd)
}

// AvailableWrite returns the number of samples currently writable.
//
// Only safe to treat as exact from the producer goroutine.
func (r *Ring) AvailableWrite() int {
	return int(r.capacity) - r.AvailableRead()
}

// Write copies as many samples from src into the ring as fit, dropping
// the rest. It returns the number of samples actually written. Called
// only from the producer.
func (r *Ring) Write(src []float32) int {
	w := r.writeIdx.Load()
	rd := r.readIdx.Load()
	free := r.capacity - (w - rd)

	n := uint64(len(src))
	if n > free {
		n = free
	}
	if n == 0 {
		return 0
	}

	for i := uint64(0); i < n; i++ {
		r.buf[(w+i)%r.capacity] = src[i]
	}
	r.writeIdx.Store(w + n)
	return int(n)
}

// Read copies as many samples as are available into dst, up to len(dst).
// It returns the number of samples actually read; a short read signals
// underrun to the caller, which is expected to zero-fill the remainder.
// Called only from the consumer.
func (r *Ring) Read(dst []float32) int {
	w := r.writeIdx.Load()
	rd := r.readIdx.Load()
	avail := w - rd

	n := uint64(len(dst))
	if n > avail {
		n = avail
	}
	if n == 0 {
		return 0
	}

	for i := uint64(0); i < n; i++ {
		dst[i] = r.buf[(rd+i)%r.capacity]
	}
	r.readIdx.Store(rd + n)
	return int(n)
}

// Reset drops all buffered samples, returning the ring to empty. Only
// safe to call when neither the producer nor the consumer is active.
func (r *Ring) Reset() {
	r.writeIdx.Store(0)
	r.readIdx.Store(0)
}
