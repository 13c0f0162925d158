package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chg95211/msx-ethernet-audio/internal/audio"
	"github.com/chg95211/msx-ethernet-audio/internal/capture"
	"github.com/chg95211/msx-ethernet-audio/internal/metrics"
	"github.com/chg95211/msx-ethernet-audio/internal/pacing"
	"github.com/chg95211/msx-ethernet-audio/internal/transport"
)

// LiveSendOptions configures a push-to-talk sender.
type LiveSendOptions struct {
	Format audio.Format
	Source audio.Source
	Gate   capture.Gate
	Fanout *transport.Fanout
	Logger *zap.Logger
}

// NewLiveSend builds a session that captures while the gate is open and fans
// each period out to every destination.
func NewLiveSend(opts LiveSendOptions) (*Session, error) {
	f := opts.Format
	if err := f.Validate(); err != nil {
		return nil, err
	}
	gate := opts.Gate
	if gate == nil {
		gate = capture.AlwaysOpen
	}

	s := newSession(KindLiveSend, f, opts.Logger)
	pool := audio.NewFramePool(f.PeriodBytes())
	box := capture.NewMailbox(pool)
	capturer := capture.NewCapturer(opts.Source, gate, box, pool, s.logger)
	sender := capture.NewSender(box, opts.Fanout, s.logger)

	s.run = func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return capturer.Run(gctx) })
		g.Go(func() error { return sender.Run(gctx) })
		err := g.Wait()
		if errors.Is(err, io.EOF) {
			s.logger.Info("capture input ended")
			return nil
		}
		return err
	}
	s.stats = func(st *Status) {
		st.PacketsSent = opts.Fanout.Sent()
		st.PeriodsCaptured = capturer.Captured()
		st.PeriodsCoalesced = box.Coalesced()
		if sw, ok := gate.(*capture.Switch); ok {
			talking := sw.Active()
			st.Talking = &talking
		}
	}
	return s, nil
}

// FileSendOptions configures a paced file sender.
type FileSendOptions struct {
	Format audio.Format
	Files  []string
	// Loop repeats the file list until the session is cancelled.
	Loop bool
	// ULaw treats the files as 16-bit PCM and compresses them on the fly.
	ULaw   bool
	Fanout *transport.Fanout
	Pacing pacing.Config
	Logger *zap.Logger
}

// NewFileSend builds a session that streams files at the nominal byte rate.
func NewFileSend(opts FileSendOptions) (*Session, error) {
	f := opts.Format
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if len(opts.Files) == 0 {
		return nil, fmt.Errorf("file send: no files given")
	}
	if opts.ULaw && f.Encoding != audio.EncodingULaw {
		return nil, fmt.Errorf("file send: mu-law conversion needs a mu-law mode, have %s", f)
	}
	if err := opts.Pacing.Validate(); err != nil {
		return nil, err
	}

	s := newSession(KindFileSend, f, opts.Logger)
	fs := &fileSender{opts: opts, logger: s.logger}
	s.run = fs.run
	s.stats = func(st *Status) {
		st.PacketsSent = opts.Fanout.Sent()
		st.FilesSent = fs.files.Load()
	}
	return s, nil
}

type fileSender struct {
	opts   FileSendOptions
	logger *zap.Logger
	files  atomic.Uint64
}

func (fs *fileSender) run(ctx context.Context) error {
	for {
		for _, path := range fs.opts.Files {
			if ctx.Err() != nil {
				return nil
			}
			if err := fs.sendFile(ctx, path); err != nil {
				return err
			}
			fs.files.Add(1)
		}
		if !fs.opts.Loop {
			return nil
		}
	}
}

func (fs *fileSender) sendFile(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	var r io.Reader = file
	if fs.opts.ULaw {
		r = audio.NewULawEncoder(file)
	}

	pacer, err := pacing.New(fs.opts.Pacing)
	if err != nil {
		return err
	}
	format := fs.opts.Format
	clock := pacing.NewClock(time.Now(), format.SampleRate, format.FrameBytes())
	logger := fs.logger.With(zap.String("file", path))
	logger.Info("sending file", zap.Duration("nominal_interval", pacer.Nominal()))

	pkt := make([]byte, format.PacketSize)
	for {
		n, rerr := io.ReadFull(r, pkt)
		if n == 0 {
			if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
				break
			}
			return fmt.Errorf("read %s: %w", path, rerr)
		}
		if rerr != nil && rerr != io.ErrUnexpectedEOF {
			return fmt.Errorf("read %s: %w", path, rerr)
		}
		if n < len(pkt) {
			format.FillSilence(pkt[n:])
		}

		delta := clock.Delta(time.Now())
		if err := fs.opts.Fanout.Send(pkt); err != nil {
			return err
		}
		clock.Add(len(pkt))

		interval := pacer.Update(delta)
		metrics.PacingDeltaSeconds.Set(delta.Seconds())
		metrics.PacingIntervalSeconds.Set(interval.Seconds())
		if ce := logger.Check(zap.DebugLevel, "packet paced"); ce != nil {
			ce.Write(zap.Duration("delta", delta), zap.Duration("interval", interval), zap.Uint64("bytes_sent", clock.Sent()))
		}

		if rerr == io.ErrUnexpectedEOF {
			break
		}
		if !pacing.Sleep(ctx, interval) {
			return nil
		}
	}
	logger.Info("file sent", zap.Uint64("bytes", clock.Sent()), zap.Duration("audio", clock.Expected()))
	return nil
}
