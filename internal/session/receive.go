package session

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chg95211/msx-ethernet-audio/internal/audio"
	"github.com/chg95211/msx-ethernet-audio/internal/metrics"
	"github.com/chg95211/msx-ethernet-audio/internal/playback"
	"github.com/chg95211/msx-ethernet-audio/internal/ringbuffer"
	"github.com/chg95211/msx-ethernet-audio/internal/transport"
)

// ReceiveOptions configures a receive session.
type ReceiveOptions struct {
	Format audio.Format
	// Conn is owned by the session and closed when it ends.
	Conn net.PacketConn
	Sink audio.Sink

	StartDelay   time.Duration
	PollInterval time.Duration
	FillPartial  bool

	Logger *zap.Logger
}

// meteredRing reports overwrites as they happen.
type meteredRing struct {
	*ringbuffer.RingBuffer
}

func (m meteredRing) Write(p []byte) int {
	before := m.Overwritten()
	n := m.RingBuffer.Write(p)
	if lost := m.Overwritten() - before; lost > 0 {
		metrics.RingOverwrittenBytesTotal.Add(float64(lost))
	}
	return n
}

// NewReceive builds a session that plays datagrams arriving on opts.Conn.
func NewReceive(opts ReceiveOptions) (*Session, error) {
	f := opts.Format
	if err := f.Validate(); err != nil {
		return nil, err
	}
	rb, err := ringbuffer.New(f.RingBufferBytes())
	if err != nil {
		return nil, fmt.Errorf("create ring buffer: %w", err)
	}

	s := newSession(KindReceive, f, opts.Logger)
	s.RingBuffer = rb

	pump := transport.NewInboundPump(opts.Conn, f.PacketSize, meteredRing{rb}, s.logger)

	pc := playback.ConfigFor(f)
	pc.StartDelay = opts.StartDelay
	pc.PollInterval = opts.PollInterval
	pc.FillPartial = opts.FillPartial
	player, err := playback.New(pc, rb, pump, opts.Sink, s.logger)
	if err != nil {
		return nil, err
	}

	s.logger.Info("receive session configured",
		zap.Stringer("listen", pump.LocalAddr()),
		zap.Int("packet_bytes", f.PacketSize),
		zap.Int("ring_bytes", rb.Cap()),
	)

	s.run = func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return pump.Run(gctx) })
		g.Go(func() error { return player.Run(gctx) })
		return g.Wait()
	}
	s.stats = func(st *Status) {
		st.PacketsReceived = pump.Received()
		st.PacketsDropped = pump.Dropped()
		st.BytesBuffered = rb.ReadAvailable()
		st.BytesOverwritten = rb.Overwritten()
		st.Playback = player.State().String()
		st.PeriodsPlayed = player.Periods()
		st.Stalls = player.Stalls()
	}
	return s, nil
}
