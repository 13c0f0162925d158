package capture

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/chg95211/msx-ethernet-audio/internal/audio"
	"github.com/chg95211/msx-ethernet-audio/internal/metrics"
	"github.com/chg95211/msx-ethernet-audio/internal/pacing"
)

// DefaultIdleInterval is how often a closed gate is re-checked.
const DefaultIdleInterval = 10 * time.Millisecond

// Capturer reads periods from a source while its gate is open and deposits
// them in a mailbox.
type Capturer struct {
	src    audio.Source
	gate   Gate
	box    *Mailbox
	pool   *audio.FramePool
	logger *zap.Logger
	idle   time.Duration

	seq      uint64
	captured atomic.Uint64
}

// NewCapturer wires a source to a mailbox. Frames come from pool, which must
// hand out period-sized frames.
func NewCapturer(src audio.Source, gate Gate, box *Mailbox, pool *audio.FramePool, logger *zap.Logger) *Capturer {
	return &Capturer{
		src:    src,
		gate:   gate,
		box:    box,
		pool:   pool,
		logger: logger,
		idle:   DefaultIdleInterval,
	}
}

// Captured returns how many periods were read.
func (c *Capturer) Captured() uint64 { return c.captured.Load() }

// Run captures until ctx is cancelled or the source fails.
func (c *Capturer) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if !c.gate.Active() {
			if !pacing.Sleep(ctx, c.idle) {
				return nil
			}
			continue
		}
		if err := c.capture(ctx); err != nil {
			return err
		}
	}
}

// capture runs one open-gate interval.
func (c *Capturer) capture(ctx context.Context) error {
	if err := c.src.Recover(); err != nil {
		return fmt.Errorf("prepare capture device: %w", err)
	}
	c.logger.Info("capture started")

	for c.gate.Active() && ctx.Err() == nil {
		f := c.pool.Get()
		if err := c.read(f.Data); err != nil {
			c.pool.Put(f)
			if ctx.Err() != nil {
				break
			}
			return err
		}
		c.seq++
		f.Seq = c.seq
		f.CapturedAt = time.Now()
		c.captured.Add(1)
		metrics.PeriodsCapturedTotal.Inc()
		c.box.Deposit(f)
	}

	if err := c.src.Drain(); err != nil {
		c.logger.Warn("drain capture device", zap.Error(err))
	}
	c.logger.Info("capture stopped", zap.Uint64("periods", c.captured.Load()))
	return nil
}

func (c *Capturer) read(p []byte) error {
	err := c.src.ReadPeriod(p)
	if errors.Is(err, audio.ErrOverrun) {
		metrics.DeviceOverrunsTotal.Inc()
		c.logger.Warn("capture overrun, recovering")
		if rerr := c.src.Recover(); rerr != nil {
			return fmt.Errorf("recover from overrun: %w", rerr)
		}
		err = c.src.ReadPeriod(p)
	}
	if err != nil {
		return fmt.Errorf("read period: %w", err)
	}
	return nil
}

// Transmitter sends one captured buffer. *transport.Fanout satisfies it.
type Transmitter interface {
	Send(buf []byte) error
}

// Sender forwards mailbox frames to a transmitter.
type Sender struct {
	box    *Mailbox
	out    Transmitter
	logger *zap.Logger
	sent   atomic.Uint64
}

// NewSender returns a sender draining box into out.
func NewSender(box *Mailbox, out Transmitter, logger *zap.Logger) *Sender {
	return &Sender{box: box, out: out, logger: logger}
}

// Sent returns how many frames were transmitted.
func (s *Sender) Sent() uint64 { return s.sent.Load() }

// Run sends until ctx is cancelled. A transmit failure is returned and ends
// the session.
func (s *Sender) Run(ctx context.Context) error {
	for {
		f, err := s.box.Receive(ctx)
		if err != nil {
			return nil
		}
		metrics.CaptureToSendLatency.Observe(float64(time.Since(f.CapturedAt).Microseconds()) / 1000)
		err = s.out.Send(f.Data)
		seq := f.Seq
		s.box.Release(f)
		if err != nil {
			return fmt.Errorf("send captured period %d: %w", seq, err)
		}
		s.sent.Add(1)
	}
}
