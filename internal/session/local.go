package session

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"

	"go.uber.org/zap"

	"github.com/chg95211/msx-ethernet-audio/internal/audio"
	"github.com/chg95211/msx-ethernet-audio/internal/playback"
	"github.com/chg95211/msx-ethernet-audio/internal/recorder"
)

// LocalPlayOptions configures playback of a raw file without the network.
type LocalPlayOptions struct {
	Format audio.Format
	File   string
	Sink   audio.Sink
	Logger *zap.Logger
}

// NewLocalPlay builds a session that plays one raw audio file.
func NewLocalPlay(opts LocalPlayOptions) (*Session, error) {
	f := opts.Format
	if err := f.Validate(); err != nil {
		return nil, err
	}
	s := newSession(KindLocalPlay, f, opts.Logger)
	player, err := playback.New(playback.ConfigFor(f), nil, nil, opts.Sink, s.logger)
	if err != nil {
		return nil, err
	}

	s.run = func(ctx context.Context) error {
		var r io.Reader = os.Stdin
		if opts.File != "-" {
			file, err := os.Open(opts.File)
			if err != nil {
				return fmt.Errorf("open %s: %w", opts.File, err)
			}
			defer file.Close()
			r = file
		}
		return player.PlayFile(ctx, r)
	}
	s.stats = func(st *Status) {
		st.Playback = player.State().String()
		st.PeriodsPlayed = player.Periods()
	}
	return s, nil
}

// RecordOptions configures a packet dump session.
type RecordOptions struct {
	Format audio.Format
	Conn   net.PacketConn
	Out    io.Writer
	Logger *zap.Logger
}

// NewRecord builds a session that hex-dumps every datagram to opts.Out.
func NewRecord(opts RecordOptions) *Session {
	s := newSession(KindRecord, opts.Format, opts.Logger)
	rec := recorder.New(opts.Conn, opts.Out, s.logger)
	s.run = rec.Run
	s.stats = func(st *Status) {
		st.PacketsReceived = rec.Packets()
	}
	return s
}
