package capture

import (
	"context"
	"sync/atomic"

	"github.com/chg95211/msx-ethernet-audio/internal/audio"
	"github.com/chg95211/msx-ethernet-audio/internal/metrics"
)

// Mailbox hands captured periods to the sender one at a time. If the sender
// has not collected the previous period when a new one arrives, the old one
// is discarded: the sender always gets the newest audio. Deposit must only be
// called from one goroutine.
type Mailbox struct {
	slot      chan *audio.Frame
	pool      *audio.FramePool
	coalesced atomic.Uint64
}

// NewMailbox returns an empty mailbox whose replaced frames go back to pool.
func NewMailbox(pool *audio.FramePool) *Mailbox {
	return &Mailbox{slot: make(chan *audio.Frame, 1), pool: pool}
}

// Deposit publishes f. Ownership of f passes to the mailbox.
func (m *Mailbox) Deposit(f *audio.Frame) {
	for {
		select {
		case m.slot <- f:
			return
		default:
		}
		select {
		case old := <-m.slot:
			m.coalesced.Add(1)
			metrics.PeriodsCoalescedTotal.Inc()
			m.pool.Put(old)
		default:
		}
	}
}

// Receive blocks for the next frame. The caller owns it until Release.
func (m *Mailbox) Receive(ctx context.Context) (*audio.Frame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case f := <-m.slot:
		return f, nil
	}
}

// Release returns a received frame for reuse.
func (m *Mailbox) Release(f *audio.Frame) { m.pool.Put(f) }

// Coalesced counts frames that were replaced before being received.
func (m *Mailbox) Coalesced() uint64 { return m.coalesced.Load() }
