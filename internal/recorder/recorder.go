// Package recorder dumps raw datagrams for inspecting what a sender puts on
// the wire.
package recorder

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/chg95211/msx-ethernet-audio/internal/metrics"
	"github.com/chg95211/msx-ethernet-audio/internal/transport"
)

// Recorder writes a numbered, timestamped hex dump of every datagram it
// receives.
type Recorder struct {
	conn   net.PacketConn
	out    io.Writer
	logger *zap.Logger
	now    func() time.Time

	packets atomic.Uint64
}

// New takes ownership of conn; it is closed when Run returns.
func New(conn net.PacketConn, out io.Writer, logger *zap.Logger) *Recorder {
	return &Recorder{conn: conn, out: out, logger: logger, now: time.Now}
}

// Packets returns how many datagrams have been dumped.
func (r *Recorder) Packets() uint64 { return r.packets.Load() }

// Run dumps datagrams of any size until ctx is cancelled.
func (r *Recorder) Run(ctx context.Context) error {
	defer r.conn.Close()

	buf := make([]byte, 65535)
	for ctx.Err() == nil {
		if err := r.conn.SetReadDeadline(time.Now().Add(transport.DefaultReadTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
		n, from, err := r.conn.ReadFrom(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}

		count := r.packets.Add(1)
		metrics.RecordedPacketsTotal.Inc()
		if _, err := fmt.Fprintf(r.out, "\nPacket %d from %s, %d bytes, local time %d ms\n%s",
			count, from, n, r.now().UnixMilli(), hex.Dump(buf[:n])); err != nil {
			return fmt.Errorf("write dump: %w", err)
		}
	}
	return nil
}
