package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/chg95211/msx-ethernet-audio/internal/audio"
)

// WriterSink plays periods by writing raw bytes to w, typically stdout piped
// into an external player or a capture file.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink wraps w.
func NewWriterSink(w io.Writer) *WriterSink { return &WriterSink{w: w} }

func (s *WriterSink) WritePeriod(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(p); err != nil {
		return fmt.Errorf("write audio output: %w", err)
	}
	return nil
}

func (s *WriterSink) Recover() error { return nil }

func (s *WriterSink) Drain() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// ReaderSource captures by reading raw bytes from r, such as a pipe from an
// external recorder. End of input is reported as io.EOF.
type ReaderSource struct {
	r io.Reader
}

// NewReaderSource wraps r.
func NewReaderSource(r io.Reader) *ReaderSource { return &ReaderSource{r: r} }

func (s *ReaderSource) ReadPeriod(p []byte) error {
	if _, err := io.ReadFull(s.r, p); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return io.EOF
		}
		return err
	}
	return nil
}

func (s *ReaderSource) Recover() error { return nil }
func (s *ReaderSource) Drain() error   { return nil }

// ToneSource is a capture device that produces a continuous sine wave at the
// real-time rate of its format.
type ToneSource struct {
	format audio.Format
	tone   []byte
	pos    int
	next   time.Time
	ctx    context.Context
}

// NewToneSource loops one second of a sine wave at frequency Hz. Reads block
// to match the sample clock and give up early when ctx is done.
func NewToneSource(ctx context.Context, f audio.Format, frequency float64) *ToneSource {
	return &ToneSource{
		format: f,
		tone:   audio.GenerateTone(f, 1, frequency),
		ctx:    ctx,
	}
}

func (s *ToneSource) ReadPeriod(p []byte) error {
	if s.next.IsZero() {
		s.next = time.Now()
	}
	if wait := time.Until(s.next); wait > 0 {
		t := time.NewTimer(wait)
		select {
		case <-s.ctx.Done():
			t.Stop()
			return s.ctx.Err()
		case <-t.C:
		}
	}
	for n := 0; n < len(p); {
		c := copy(p[n:], s.tone[s.pos:])
		n += c
		s.pos = (s.pos + c) % len(s.tone)
	}
	frames := len(p) / s.format.FrameBytes()
	s.next = s.next.Add(time.Duration(frames) * time.Second / time.Duration(s.format.SampleRate))
	return nil
}

// Recover restarts the sample clock.
func (s *ToneSource) Recover() error {
	s.next = time.Time{}
	return nil
}

func (s *ToneSource) Drain() error { return nil }
