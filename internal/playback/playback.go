package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/chg95211/msx-ethernet-audio/internal/audio"
	"github.com/chg95211/msx-ethernet-audio/internal/metrics"
	"github.com/chg95211/msx-ethernet-audio/internal/pacing"
)

// ErrFillTimeout is reported internally when a period cannot be assembled
// before its deadline. It ends the current run of playback, not the session.
var ErrFillTimeout = errors.New("playback fill deadline elapsed")

// State is the playback loop's position in its lifecycle.
type State int32

const (
	StateIdle State = iota
	StateFilling
	StatePlaying
	StateStalled
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFilling:
		return "filling"
	case StatePlaying:
		return "playing"
	case StateStalled:
		return "stalled"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

const (
	DefaultPollInterval    = 10 * time.Millisecond
	DefaultDeadlinePeriods = 4
)

// Buffer is the consumer side of the receive ring.
type Buffer interface {
	Read(p []byte) int
	ReadAvailable() int
}

// Counter reports how many packets have arrived so far.
type Counter interface {
	Received() uint64
}

// Config sizes the playback loop.
type Config struct {
	PeriodBytes    int
	ChunkBytes     int
	PeriodDuration time.Duration
	Silence        byte

	// PollInterval is both the idle activity check and the fill retry delay.
	PollInterval time.Duration
	// DeadlinePeriods is how many period durations a fill may take.
	DeadlinePeriods int
	// StartDelay is slept after activity is seen and before the first fill.
	StartDelay time.Duration
	// FillPartial plays a timed-out partial period padded with silence
	// instead of discarding it.
	FillPartial bool
}

// ConfigFor derives a Config from an audio format.
func ConfigFor(f audio.Format) Config {
	return Config{
		PeriodBytes:    f.PeriodBytes(),
		ChunkBytes:     f.PacketSize,
		PeriodDuration: f.PeriodDuration(),
		Silence:        f.SilenceByte(),
	}
}

func (c *Config) setDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.DeadlinePeriods <= 0 {
		c.DeadlinePeriods = DefaultDeadlinePeriods
	}
	if c.ChunkBytes <= 0 || c.ChunkBytes > c.PeriodBytes {
		c.ChunkBytes = c.PeriodBytes
	}
}

// Player drains the receive ring into a playback device one period at a time.
// It is the ring's only consumer.
type Player struct {
	cfg     Config
	buf     Buffer
	counter Counter
	sink    audio.Sink
	logger  *zap.Logger

	period []byte
	state  atomic.Int32

	periods atomic.Uint64
	stalls  atomic.Uint64
}

// New returns an idle player.
func New(cfg Config, buf Buffer, counter Counter, sink audio.Sink, logger *zap.Logger) (*Player, error) {
	if cfg.PeriodBytes <= 0 {
		return nil, fmt.Errorf("playback: period size must be positive, got %d", cfg.PeriodBytes)
	}
	if cfg.PeriodDuration <= 0 {
		return nil, fmt.Errorf("playback: period duration must be positive, got %s", cfg.PeriodDuration)
	}
	cfg.setDefaults()
	metrics.PlaybackState.Set(float64(StateIdle))
	return &Player{
		cfg:     cfg,
		buf:     buf,
		counter: counter,
		sink:    sink,
		logger:  logger,
		period:  make([]byte, cfg.PeriodBytes),
	}, nil
}

// State returns the current state.
func (p *Player) State() State { return State(p.state.Load()) }

// Periods returns how many periods were handed to the device.
func (p *Player) Periods() uint64 { return p.periods.Load() }

// Stalls returns how many times a fill deadline elapsed.
func (p *Player) Stalls() uint64 { return p.stalls.Load() }

func (p *Player) setState(s State) {
	old := State(p.state.Swap(int32(s)))
	if old == s {
		return
	}
	metrics.PlaybackState.Set(float64(s))
	if ce := p.logger.Check(zap.DebugLevel, "playback state changed"); ce != nil {
		ce.Write(zap.Stringer("from", old), zap.Stringer("to", s))
	}
}

// Run watches the packet counter and plays whenever packets arrive. It
// returns nil when ctx is cancelled and an error only for fatal device
// failures.
func (p *Player) Run(ctx context.Context) error {
	defer p.setState(StateStopped)

	var prev uint64
	for {
		if ctx.Err() != nil {
			return nil
		}
		if cur := p.counter.Received(); cur != prev {
			if err := p.playUntilStall(ctx); err != nil {
				return err
			}
		}
		prev = p.counter.Received()
		if !pacing.Sleep(ctx, p.cfg.PollInterval) {
			return nil
		}
	}
}

func (p *Player) playUntilStall(ctx context.Context) error {
	p.setState(StateFilling)
	if !pacing.Sleep(ctx, p.cfg.StartDelay) {
		return nil
	}
	if err := p.sink.Recover(); err != nil {
		return fmt.Errorf("prepare playback device: %w", err)
	}
	p.logger.Info("playback started")

	for {
		got, err := p.fill(ctx)
		switch {
		case errors.Is(err, ErrFillTimeout):
			return p.stall(got)
		case err != nil:
			p.drain()
			return nil
		}
		p.setState(StatePlaying)
		if err := p.write(p.period); err != nil {
			return err
		}
	}
}

// fill assembles one period from the ring in chunk-sized reads, waiting for
// data until the deadline.
func (p *Player) fill(ctx context.Context) (int, error) {
	deadline := time.Now().Add(time.Duration(p.cfg.DeadlinePeriods) * p.cfg.PeriodDuration)
	got := 0
	for got < len(p.period) {
		want := len(p.period) - got
		if want > p.cfg.ChunkBytes {
			want = p.cfg.ChunkBytes
		}
		if p.buf.ReadAvailable() >= want {
			got += p.buf.Read(p.period[got : got+want])
			continue
		}
		if !time.Now().Before(deadline) {
			return got, ErrFillTimeout
		}
		if !pacing.Sleep(ctx, p.cfg.PollInterval) {
			return got, ctx.Err()
		}
	}
	return got, nil
}

func (p *Player) stall(got int) error {
	p.setState(StateStalled)
	p.stalls.Add(1)
	metrics.FillTimeoutsTotal.Inc()
	p.logger.Info("playback stalled", zap.Int("partial_bytes", got))

	if p.cfg.FillPartial && got > 0 {
		fillSilence(p.period[got:], p.cfg.Silence)
		if err := p.write(p.period); err != nil {
			return err
		}
	}
	p.drain()
	p.setState(StateIdle)
	return nil
}

// write hands one period to the device, recovering once from an underrun.
func (p *Player) write(data []byte) error {
	err := p.sink.WritePeriod(data)
	if errors.Is(err, audio.ErrUnderrun) {
		metrics.DeviceUnderrunsTotal.Inc()
		p.logger.Warn("playback underrun, recovering")
		if rerr := p.sink.Recover(); rerr != nil {
			return fmt.Errorf("recover from underrun: %w", rerr)
		}
		err = p.sink.WritePeriod(data)
	}
	if err != nil {
		return fmt.Errorf("write period: %w", err)
	}
	p.periods.Add(1)
	metrics.PeriodsPlayedTotal.Inc()
	return nil
}

func (p *Player) drain() {
	if err := p.sink.Drain(); err != nil {
		p.logger.Warn("drain playback device", zap.Error(err))
	}
}

// PlayFile plays raw audio from r straight to the device, bypassing the ring.
// A short final period is padded with silence.
func (p *Player) PlayFile(ctx context.Context, r io.Reader) error {
	defer p.setState(StateStopped)

	p.setState(StateFilling)
	if err := p.sink.Recover(); err != nil {
		return fmt.Errorf("prepare playback device: %w", err)
	}
	defer p.drain()

	for ctx.Err() == nil {
		n, err := io.ReadFull(r, p.period)
		switch {
		case n == 0 && (err == io.EOF || err == io.ErrUnexpectedEOF):
			return nil
		case err == io.ErrUnexpectedEOF:
			fillSilence(p.period[n:], p.cfg.Silence)
		case err != nil:
			return fmt.Errorf("read audio file: %w", err)
		}
		p.setState(StatePlaying)
		if werr := p.write(p.period); werr != nil {
			return werr
		}
		if err == io.ErrUnexpectedEOF {
			return nil
		}
	}
	return nil
}

func fillSilence(b []byte, s byte) {
	for i := range b {
		b[i] = s
	}
}
