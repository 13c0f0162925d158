package testutil

import (
	"bytes"
	"io"
	"sync"
	"time"
)

// RecordingSink captures every period written to it. Errors queued in
// WriteErrs are returned by successive WritePeriod calls before any data is
// recorded.
type RecordingSink struct {
	mu        sync.Mutex
	periods   [][]byte
	recovers  int
	drains    int
	WriteErrs []error
}

func (s *RecordingSink) WritePeriod(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.WriteErrs) > 0 {
		err := s.WriteErrs[0]
		s.WriteErrs = s.WriteErrs[1:]
		if err != nil {
			return err
		}
	}
	s.periods = append(s.periods, append([]byte(nil), p...))
	return nil
}

func (s *RecordingSink) Recover() error {
	s.mu.Lock()
	s.recovers++
	s.mu.Unlock()
	return nil
}

func (s *RecordingSink) Drain() error {
	s.mu.Lock()
	s.drains++
	s.mu.Unlock()
	return nil
}

// Periods returns a copy of the periods written so far.
func (s *RecordingSink) Periods() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.periods...)
}

// Bytes returns every written period concatenated.
func (s *RecordingSink) Bytes() []byte {
	return bytes.Join(s.Periods(), nil)
}

// Recovers returns how many times Recover was called.
func (s *RecordingSink) Recovers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recovers
}

// Drains returns how many times Drain was called.
func (s *RecordingSink) Drains() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drains
}

// ScriptedSource serves periods from a byte stream, pausing Interval before
// each one the way a real device blocks for the next period. At the end of
// the stream it returns io.EOF.
type ScriptedSource struct {
	mu       sync.Mutex
	r        io.Reader
	Interval time.Duration
	reads    int
	drains   int
}

// NewScriptedSource serves data one period at a time.
func NewScriptedSource(data []byte, interval time.Duration) *ScriptedSource {
	return &ScriptedSource{r: bytes.NewReader(data), Interval: interval}
}

func (s *ScriptedSource) ReadPeriod(p []byte) error {
	if s.Interval > 0 {
		time.Sleep(s.Interval)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.ReadFull(s.r, p); err != nil {
		return io.EOF
	}
	s.reads++
	return nil
}

func (s *ScriptedSource) Recover() error { return nil }

func (s *ScriptedSource) Drain() error {
	s.mu.Lock()
	s.drains++
	s.mu.Unlock()
	return nil
}

// Reads returns the number of periods served.
func (s *ScriptedSource) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Drains returns how many times Drain was called.
func (s *ScriptedSource) Drains() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drains
}
