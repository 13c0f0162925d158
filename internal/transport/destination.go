package transport

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// ErrBadDestination is returned for a destination that cannot be parsed or
// resolved.
var ErrBadDestination = errors.New("invalid destination")

// Destination is one receiver of a send session.
type Destination struct {
	Host string
	Port int
	Addr *net.UDPAddr
}

func (d Destination) String() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// ParseDestination splits a "host:port" string without resolving it.
func ParseDestination(s string) (Destination, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Destination{}, fmt.Errorf("%w %q: %v", ErrBadDestination, s, err)
	}
	if host == "" {
		return Destination{}, fmt.Errorf("%w %q: missing host", ErrBadDestination, s)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return Destination{}, fmt.Errorf("%w %q: port must be 1-65535", ErrBadDestination, s)
	}
	return Destination{Host: host, Port: port}, nil
}

// ResolveDestinations parses and resolves every entry, preserving order.
func ResolveDestinations(specs []string) ([]Destination, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: at least one destination is required", ErrBadDestination)
	}
	dests := make([]Destination, 0, len(specs))
	for _, s := range specs {
		d, err := ParseDestination(s)
		if err != nil {
			return nil, err
		}
		addr, err := net.ResolveUDPAddr("udp4", d.String())
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrBadDestination, s, err)
		}
		d.Addr = addr
		dests = append(dests, d)
	}
	return dests, nil
}
