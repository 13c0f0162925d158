package audio

import (
	"sync"
	"time"
)

// Frame is one captured period handed from the capture loop to the sender.
type Frame struct {
	Data       []byte
	Seq        uint64
	CapturedAt time.Time
}

// FramePool recycles period-sized frames so the capture hot path does not
// allocate per period.
type FramePool struct {
	size int
	pool sync.Pool
}

// NewFramePool returns a pool of frames holding size bytes each.
func NewFramePool(size int) *FramePool {
	p := &FramePool{size: size}
	p.pool.New = func() interface{} {
		return &Frame{Data: make([]byte, size)}
	}
	return p
}

// Get returns a frame with Data of exactly the pool's size.
func (p *FramePool) Get() *Frame {
	f := p.pool.Get().(*Frame)
	f.Data = f.Data[:p.size]
	return f
}

// Put returns f to the pool. Frames of a foreign size are dropped.
func (p *FramePool) Put(f *Frame) {
	if f == nil || cap(f.Data) < p.size {
		return
	}
	f.Seq = 0
	f.CapturedAt = time.Time{}
	p.pool.Put(f)
}
