package capture

import (
	"sync/atomic"

	"github.com/chg95211/msx-ethernet-audio/internal/metrics"
)

// Gate decides whether capture should be running.
type Gate interface {
	Active() bool
}

type openGate struct{}

func (openGate) Active() bool { return true }

// AlwaysOpen is a gate that never closes.
var AlwaysOpen Gate = openGate{}

// Switch is a push-to-talk gate flipped by any number of control sources.
type Switch struct {
	on      atomic.Bool
	changes atomic.Uint64
}

// Active reports whether the gate is open.
func (s *Switch) Active() bool { return s.on.Load() }

// Set opens or closes the gate and reports whether that changed anything.
func (s *Switch) Set(on bool, source string) bool {
	if s.on.Swap(on) == on {
		return false
	}
	s.record(on, source)
	return true
}

// Toggle flips the gate and returns the new state.
func (s *Switch) Toggle(source string) bool {
	for {
		cur := s.on.Load()
		if s.on.CompareAndSwap(cur, !cur) {
			s.record(!cur, source)
			return !cur
		}
	}
}

func (s *Switch) record(on bool, source string) {
	s.changes.Add(1)
	metrics.PushToTalkTogglesTotal.WithLabelValues(source).Inc()
	if on {
		metrics.CaptureActive.Set(1)
	} else {
		metrics.CaptureActive.Set(0)
	}
}

// Changes returns how many times the gate has flipped.
func (s *Switch) Changes() uint64 { return s.changes.Load() }
