package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/chg95211/msx-ethernet-audio/internal/metrics"
)

// maxDatagram is large enough that oversized packets are seen at their true
// length instead of being truncated to the expected size.
const maxDatagram = 65535

// DefaultReadTimeout bounds how long a receive blocks before re-checking for
// shutdown.
const DefaultReadTimeout = 100 * time.Millisecond

// ListenConfig selects the local port and optional multicast group.
type ListenConfig struct {
	Port           int
	MulticastGroup string
	Interface      string
}

// Listen opens the receive socket described by cfg.
func Listen(cfg ListenConfig) (net.PacketConn, error) {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("listen: port %d out of range", cfg.Port)
	}
	if cfg.MulticastGroup == "" {
		conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: cfg.Port})
		if err != nil {
			return nil, fmt.Errorf("listen on port %d: %w", cfg.Port, err)
		}
		return conn, nil
	}

	group := net.ParseIP(cfg.MulticastGroup)
	if group == nil || !group.IsMulticast() {
		return nil, fmt.Errorf("listen: %q is not a multicast group", cfg.MulticastGroup)
	}
	var ifi *net.Interface
	if cfg.Interface != "" {
		var err error
		if ifi, err = net.InterfaceByName(cfg.Interface); err != nil {
			return nil, fmt.Errorf("listen: interface %q: %w", cfg.Interface, err)
		}
	}
	conn, err := net.ListenMulticastUDP("udp4", ifi, &net.UDPAddr{IP: group, Port: cfg.Port})
	if err != nil {
		return nil, fmt.Errorf("join %s on port %d: %w", cfg.MulticastGroup, cfg.Port, err)
	}
	return conn, nil
}

// ByteSink accepts whole packets. *ringbuffer.RingBuffer satisfies it.
type ByteSink interface {
	Write(p []byte) int
}

// InboundPump moves exact-size datagrams from a socket into a sink. It is the
// only producer for that sink.
type InboundPump struct {
	conn        net.PacketConn
	packetSize  int
	sink        ByteSink
	logger      *zap.Logger
	readTimeout time.Duration

	received atomic.Uint64
	dropped  atomic.Uint64
}

// NewInboundPump takes ownership of conn; it is closed when Run returns.
func NewInboundPump(conn net.PacketConn, packetSize int, sink ByteSink, logger *zap.Logger) *InboundPump {
	return &InboundPump{
		conn:        conn,
		packetSize:  packetSize,
		sink:        sink,
		logger:      logger,
		readTimeout: DefaultReadTimeout,
	}
}

// Received counts accepted packets. The playback loop watches it for activity.
func (p *InboundPump) Received() uint64 { return p.received.Load() }

// Dropped counts datagrams discarded for having the wrong size.
func (p *InboundPump) Dropped() uint64 { return p.dropped.Load() }

// LocalAddr returns the bound address of the receive socket.
func (p *InboundPump) LocalAddr() net.Addr { return p.conn.LocalAddr() }

// Run receives until ctx is cancelled or the socket fails.
func (p *InboundPump) Run(ctx context.Context) error {
	defer p.conn.Close()

	buf := make([]byte, maxDatagram)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := p.conn.SetReadDeadline(time.Now().Add(p.readTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
		n, from, err := p.conn.ReadFrom(buf)
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

		if n != p.packetSize {
			p.dropped.Add(1)
			metrics.PacketsDroppedTotal.Inc()
			if ce := p.logger.Check(zap.DebugLevel, "dropped datagram of unexpected size"); ce != nil {
				ce.Write(zap.Stringer("from", from), zap.Int("bytes", n), zap.Int("expected", p.packetSize))
			}
			continue
		}

		p.sink.Write(buf[:n])
		count := p.received.Add(1)
		metrics.PacketsReceivedTotal.Inc()
		if ce := p.logger.Check(zap.DebugLevel, "datagram received"); ce != nil {
			ce.Write(zap.Stringer("from", from), zap.Uint64("count", count))
		}
	}
}
