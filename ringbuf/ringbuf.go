// SPDX-License-Identifier: EPL-2.0

// Package ringbuf provides a fixed-capacity, lock-free, single-producer
// single-consumer ring buffer of float32 samples.
//
// The producer (usually a decoding goroutine) calls Enqueue and
// AvailableWrite, the consumer (usually a real-time audio callback) calls
// Dequeue and AvailableRead. Neither side ever blocks: short writes and short
// reads are reported to the caller, and no data is ever fabricated.
package ringbuf

import "sync/atomic"

// RingBuffer is a bounded SPSC queue of float32 samples.
//
// Two monotonically increasing counters track the total number of samples
// written and read; their difference is the fill level. Indices wrap modulo
// the capacity, which does not have to be a power of two.
type RingBuffer struct {
	// Producer and consumer counters live on separate cache lines.
	writePos atomic.Uint64
	_        [56]byte
	readPos  atomic.Uint64
	_        [56]byte

	buf []float32
}

// New creates a ring buffer holding exactly capacity samples.
// It panics if capacity is not positive.
func New(capacity int) *RingBuffer {
	if capacity <= 0 {
		panic("ringbuf: capacity must be positive")
	}

	return &RingBuffer{buf: make([]float32, capacity)}
}

// Cap returns the fixed capacity in samples.
func (rb *RingBuffer) Cap() int { return len(rb.buf) }

// Enqueue copies as many samples of p as fit and returns how many were
// written. Producer side only.
func (rb *RingBuffer) Enqueue(p []float32) int {
	w := rb.writePos.Load()
	r := rb.readPos.Load()

	size := uint64(len(rb.buf))
	free := size - (w - r)
	n := min(uint64(len(p)), free)
	if n == 0 {
		return 0
	}

	pos := w % size
	first := size - pos
	if first >= n {
		copy(rb.buf[pos:pos+n], p[:n])
	} else {
		copy(rb.buf[pos:], p[:first])
		copy(rb.buf[:n-first], p[first:n])
	}

	// Publishing the counter after the copy makes the data visible to the
	// consumer before it can observe the new fill level.
	rb.writePos.Store(w + n)
	return int(n)
}

// Dequeue copies up to len(p) samples into p and returns how many were read.
// Consumer side only. The tail of p beyond the returned count is untouched.
func (rb *RingBuffer) Dequeue(p []float32) int {
	r := rb.readPos.Load()
	w := rb.writePos.Load()

	size := uint64(len(rb.buf))
	n := min(uint64(len(p)), w-r)
	if n == 0 {
		return 0
	}

	pos := r % size
	first := size - pos
	if first >= n {
		copy(p[:n], rb.buf[pos:pos+n])
	} else {
		copy(p[:first], rb.buf[pos:])
		copy(p[first:n], rb.buf[:n-first])
	}

	rb.readPos.Store(r + n)
	return int(n)
}

// AvailableRead returns the number of samples ready to be dequeued.
func (rb *RingBuffer) AvailableRead() int {
	r := rb.readPos.Load()
	return int(rb.writePos.Load() - r)
}

// AvailableWrite returns the number of samples that can be enqueued.
func (rb *RingBuffer) AvailableWrite() int {
	r := rb.readPos.Load()
	return len(rb.buf) - int(rb.writePos.Load()-r)
}
