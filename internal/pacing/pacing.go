package pacing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Gains used by the file sender since its first release.
const (
	DefaultCoarseGain      = 0.25
	DefaultFineGain        = 0.01
	DefaultCoarseThreshold = 0.25
)

// minInterval keeps the interval strictly positive after repeated shrinking.
const minInterval = 1e-9

// Config describes the stream being paced and the controller gains. Zero
// gains select the defaults.
type Config struct {
	BytesPerSecond int
	PacketSize     int

	CoarseGain float64
	FineGain   float64
	// CoarseThreshold is the fraction of the nominal interval beyond which
	// the coarse gain applies even when the error is shrinking.
	CoarseThreshold float64
}

func (c *Config) setDefaults() {
	if c.CoarseGain == 0 {
		c.CoarseGain = DefaultCoarseGain
	}
	if c.FineGain == 0 {
		c.FineGain = DefaultFineGain
	}
	if c.CoarseThreshold == 0 {
		c.CoarseThreshold = DefaultCoarseThreshold
	}
}

// Validate checks rates and gains after defaults are applied.
func (c Config) Validate() error {
	c.setDefaults()
	var errs []error
	if c.BytesPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("bytes per second must be positive, got %d", c.BytesPerSecond))
	}
	if c.PacketSize <= 0 {
		errs = append(errs, fmt.Errorf("packet size must be positive, got %d", c.PacketSize))
	}
	for name, g := range map[string]float64{"coarse gain": c.CoarseGain, "fine gain": c.FineGain} {
		if g <= 0 || g >= 1 {
			errs = append(errs, fmt.Errorf("%s must be in (0, 1), got %g", name, g))
		}
	}
	if c.CoarseThreshold < 0 {
		errs = append(errs, fmt.Errorf("coarse threshold must not be negative, got %g", c.CoarseThreshold))
	}
	return errors.Join(errs...)
}

// Pacer adapts the inter-packet sleep so a sender tracks the nominal byte
// rate. It is not safe for concurrent use.
type Pacer struct {
	nominal   float64
	interval  float64
	threshold float64
	coarse    float64
	fine      float64
	prevDelta float64
}

// New returns a pacer whose interval starts at the nominal packet duration.
func New(cfg Config) (*Pacer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pacing config: %w", err)
	}
	cfg.setDefaults()
	nominal := float64(cfg.PacketSize) / float64(cfg.BytesPerSecond)
	return &Pacer{
		nominal:   nominal,
		interval:  nominal,
		threshold: cfg.CoarseThreshold * nominal,
		coarse:    cfg.CoarseGain,
		fine:      cfg.FineGain,
	}, nil
}

// Nominal is the ideal interval between packets.
func (p *Pacer) Nominal() time.Duration { return seconds(p.nominal) }

// Interval is the sleep the pacer currently recommends.
func (p *Pacer) Interval() time.Duration { return seconds(p.interval) }

// Update feeds the latest schedule error and returns the new interval.
// A positive delta means the sender is ahead of schedule and should slow
// down; a negative one means it is behind and should speed up.
func (p *Pacer) Update(delta time.Duration) time.Duration {
	d := delta.Seconds()
	grown := (d > 0 && d > p.prevDelta) || (d < 0 && d < p.prevDelta)
	beyond := math.Abs(d) > p.threshold

	gain := p.fine
	if grown || beyond {
		gain = p.coarse
	}
	switch {
	case d > 0:
		p.interval *= 1 + gain
	case d < 0:
		p.interval *= 1 - gain
	}
	if p.interval < minInterval {
		p.interval = minInterval
	}
	p.prevDelta = d
	return seconds(p.interval)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Clock tracks how much audio a session has sent against wall time.
type Clock struct {
	start      time.Time
	sampleRate int
	frameBytes int
	sent       uint64
}

// NewClock starts a session clock at start.
func NewClock(start time.Time, sampleRate, frameBytes int) *Clock {
	return &Clock{start: start, sampleRate: sampleRate, frameBytes: frameBytes}
}

// Add records n more bytes as sent.
func (c *Clock) Add(n int) { c.sent += uint64(n) }

// Sent returns the bytes sent so far.
func (c *Clock) Sent() uint64 { return c.sent }

// Expected is the playback time of the bytes sent so far. Partial frames do
// not count.
func (c *Clock) Expected() time.Duration {
	frames := c.sent / uint64(c.frameBytes)
	return time.Duration(frames) * time.Second / time.Duration(c.sampleRate)
}

// Delta returns start + Expected() - now.
func (c *Clock) Delta(now time.Time) time.Duration {
	return c.start.Add(c.Expected()).Sub(now)
}

// Sleep waits for d or until ctx is done, reporting whether the full
// duration elapsed.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
