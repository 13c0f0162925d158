package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/chg95211/msx-ethernet-audio/internal/metrics"
)

// ErrNetworkSend marks a failed datagram send.
var ErrNetworkSend = errors.New("network send failed")

// SendError reports the destination a send failed for.
type SendError struct {
	Destination Destination
	Err         error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to %s: %v", e.Destination, e.Err)
}

// Unwrap exposes both ErrNetworkSend and the underlying socket error.
func (e *SendError) Unwrap() []error { return []error{ErrNetworkSend, e.Err} }

// PacketWriter is the sending half of a datagram socket.
type PacketWriter interface {
	WriteTo(p []byte, addr net.Addr) (int, error)
}

// FanoutOptions tunes failure handling.
type FanoutOptions struct {
	// ContinueOnError sends to the remaining destinations after a failure and
	// returns every failure joined. The default stops at the first failure.
	ContinueOnError bool
}

// Fanout slices buffers into packets and sends each packet to every
// destination in order.
type Fanout struct {
	conn       PacketWriter
	dests      []Destination
	packetSize int
	opts       FanoutOptions
	logger     *zap.Logger

	sent   atomic.Uint64
	failed atomic.Uint64
}

// NewFanout binds a socket to a fixed destination list.
func NewFanout(conn PacketWriter, dests []Destination, packetSize int, opts FanoutOptions, logger *zap.Logger) (*Fanout, error) {
	if len(dests) == 0 {
		return nil, fmt.Errorf("%w: no destinations", ErrBadDestination)
	}
	if packetSize <= 0 {
		return nil, fmt.Errorf("fanout: packet size must be positive, got %d", packetSize)
	}
	for _, d := range dests {
		if d.Addr == nil {
			return nil, fmt.Errorf("%w %s: not resolved", ErrBadDestination, d)
		}
	}
	return &Fanout{
		conn:       conn,
		dests:      append([]Destination(nil), dests...),
		packetSize: packetSize,
		opts:       opts,
		logger:     logger,
	}, nil
}

// Destinations returns a copy of the destination list.
func (f *Fanout) Destinations() []Destination {
	return append([]Destination(nil), f.dests...)
}

// Sent returns the number of datagrams sent successfully.
func (f *Fanout) Sent() uint64 { return f.sent.Load() }

// Failed returns the number of datagram sends that failed.
func (f *Fanout) Failed() uint64 { return f.failed.Load() }

// Send transmits buf as consecutive packets of at most packetSize bytes. For
// each packet every destination is sent to before the next packet starts.
func (f *Fanout) Send(buf []byte) error {
	start := time.Now()
	defer func() {
		metrics.SendDuration.Observe(float64(time.Since(start).Microseconds()) / 1000)
	}()

	var errs []error
	for off := 0; off < len(buf); off += f.packetSize {
		end := off + f.packetSize
		if end > len(buf) {
			end = len(buf)
		}
		pkt := buf[off:end]

		for _, d := range f.dests {
			if err := f.sendOne(pkt, d); err != nil {
				if !f.opts.ContinueOnError {
					return err
				}
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) sendOne(pkt []byte, d Destination) error {
	n, err := f.conn.WriteTo(pkt, d.Addr)
	if err == nil && n != len(pkt) {
		err = io.ErrShortWrite
	}
	label := d.String()
	if err != nil {
		f.failed.Add(1)
		metrics.SendFailuresTotal.WithLabelValues(label).Inc()
		f.logger.Error("datagram send failed",
			zap.String("destination", label),
			zap.Int("bytes", len(pkt)),
			zap.Error(err),
		)
		return &SendError{Destination: d, Err: err}
	}
	f.sent.Add(1)
	metrics.PacketsSentTotal.WithLabelValues(label).Inc()
	if ce := f.logger.Check(zap.DebugLevel, "datagram sent"); ce != nil {
		ce.Write(zap.String("destination", label), zap.Int("bytes", n))
	}
	return nil
}

// ListenSender opens an IPv4 datagram socket on an ephemeral port. Go enables
// SO_BROADCAST on UDP sockets, so broadcast destinations work unchanged.
func ListenSender() (*net.UDPConn, error) {
	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return nil, fmt.Errorf("open send socket: %w", err)
	}
	return conn, nil
}
