package ringbuffer

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// MaxCapacity bounds the arena New is willing to reserve.
const MaxCapacity = 1 << 30

// ErrAllocation is returned when the arena cannot be reserved.
var ErrAllocation = errors.New("ring buffer allocation failed")

// cacheLinePad keeps the producer and consumer cursors on separate cache lines.
type cacheLinePad [56]byte

// RingBuffer is a fixed-capacity byte FIFO shared by exactly one producer
// goroutine and one consumer goroutine without locks.
//
// Cursors count bytes ever written and ever consumed; the arena index is the
// cursor modulo capacity. The producer only stores written and reserved, the
// consumer only stores read. When the producer outruns the consumer the
// oldest unread bytes are overwritten and the consumer skips forward on its
// next read.
type RingBuffer struct {
	buf      []byte
	capacity uint64

	_        cacheLinePad
	written  atomic.Uint64 // published end of data
	reserved atomic.Uint64 // end of data the producer is copying in
	_        cacheLinePad
	read     atomic.Uint64
	_        cacheLinePad

	overwritten atomic.Uint64
}

// New reserves a ring of the given capacity in bytes.
func New(capacity int) (rb *RingBuffer, err error) {
	if capacity <= 0 || capacity > MaxCapacity {
		return nil, fmt.Errorf("%w: capacity %d outside 1..%d", ErrAllocation, capacity, MaxCapacity)
	}
	defer func() {
		if r := recover(); r != nil {
			rb, err = nil, fmt.Errorf("%w: %v", ErrAllocation, r)
		}
	}()
	return &RingBuffer{
		buf:      make([]byte, capacity),
		capacity: uint64(capacity),
	}, nil
}

// Cap returns the capacity in bytes.
func (rb *RingBuffer) Cap() int { return int(rb.capacity) }

func (rb *RingBuffer) buffered(w, r uint64) uint64 {
	if d := w - r; d < rb.capacity {
		return d
	}
	return rb.capacity
}

// ReadAvailable returns the number of bytes the consumer can read.
func (rb *RingBuffer) ReadAvailable() int {
	r := rb.read.Load()
	w := rb.written.Load()
	return int(rb.buffered(w, r))
}

// WriteAvailable returns the number of bytes the producer can write without
// overwriting unread data.
func (rb *RingBuffer) WriteAvailable() int {
	return int(rb.capacity) - rb.ReadAvailable()
}

// Overwritten returns the total number of unread bytes lost to overwrites.
func (rb *RingBuffer) Overwritten() uint64 { return rb.overwritten.Load() }

// Write copies p into the ring and returns the number of bytes stored. If p
// is larger than the ring only its newest Cap() bytes are kept. Producer side
// only.
func (rb *RingBuffer) Write(p []byte) int {
	if len(p) == 0 {
		return 0
	}
	if n := uint64(len(p)); n > rb.capacity {
		rb.overwritten.Add(n - rb.capacity)
		p = p[n-rb.capacity:]
	}
	n := uint64(len(p))

	w := rb.written.Load()
	r := rb.read.Load()
	if used := rb.buffered(w, r); used+n > rb.capacity {
		rb.overwritten.Add(used + n - rb.capacity)
	}

	rb.reserved.Store(w + n)
	start := w % rb.capacity
	if c := uint64(copy(rb.buf[start:], p)); c < n {
		copy(rb.buf, p[c:])
	}
	rb.written.Store(w + n)
	return int(n)
}

// Read copies up to len(p) of the oldest unread bytes into p and returns how
// many were copied. Consumer side only.
func (rb *RingBuffer) Read(p []byte) int {
	if len(p) == 0 {
		return 0
	}
	for {
		r := rb.read.Load()
		w := rb.written.Load()
		if w-r > rb.capacity {
			r = w - rb.capacity
		}
		avail := w - r
		if avail == 0 {
			return 0
		}
		n := uint64(len(p))
		if n > avail {
			n = avail
		}

		start := r % rb.capacity
		if c := uint64(copy(p[:n], rb.buf[start:])); c < n {
			copy(p[c:n], rb.buf)
		}

		// The producer may have lapped us while copying; start over from the
		// new oldest byte if so.
		if rb.reserved.Load()-r > rb.capacity {
			continue
		}
		rb.read.Store(r + n)
		return int(n)
	}
}

// Reset discards all unread bytes. Consumer side only.
func (rb *RingBuffer) Reset() {
	rb.read.Store(rb.written.Load())
}
