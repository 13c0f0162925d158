package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chg95211/msx-ethernet-audio/internal/audio"
	"github.com/chg95211/msx-ethernet-audio/internal/metrics"
	"github.com/chg95211/msx-ethernet-audio/internal/ringbuffer"
)

// Kind names what a session does.
type Kind string

const (
	KindReceive   Kind = "receive"
	KindLiveSend  Kind = "live-send"
	KindFileSend  Kind = "file-send"
	KindLocalPlay Kind = "local-play"
	KindRecord    Kind = "record"
)

// State constants for the session lifecycle.
const (
	StateStarting = "starting"
	StateRunning  = "running"
	StateStopped  = "stopped"
	StateError    = "error"
)

// Status is a point-in-time snapshot of a session.
type Status struct {
	ID        string     `json:"id"`
	Kind      Kind       `json:"kind"`
	State     string     `json:"state"`
	Format    string     `json:"format"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	LastError string     `json:"lastError,omitempty"`

	PacketsReceived  uint64 `json:"packetsReceived,omitempty"`
	PacketsDropped   uint64 `json:"packetsDropped,omitempty"`
	BytesBuffered    int    `json:"bytesBuffered,omitempty"`
	BytesOverwritten uint64 `json:"bytesOverwritten,omitempty"`
	Playback         string `json:"playback,omitempty"`
	PeriodsPlayed    uint64 `json:"periodsPlayed,omitempty"`
	Stalls           uint64 `json:"stalls,omitempty"`

	PacketsSent      uint64 `json:"packetsSent,omitempty"`
	PeriodsCaptured  uint64 `json:"periodsCaptured,omitempty"`
	PeriodsCoalesced uint64 `json:"periodsCoalesced,omitempty"`
	Talking          *bool  `json:"talking,omitempty"`
	FilesSent        uint64 `json:"filesSent,omitempty"`
}

// Session is one running stream: a receiver, a live or file sender, a local
// player or a recorder.
type Session struct {
	ID     string
	Kind   Kind
	Format audio.Format
	// RingBuffer is set for receive sessions.
	RingBuffer *ringbuffer.RingBuffer

	logger *zap.Logger
	run    func(ctx context.Context) error
	stats  func(*Status)

	mu        sync.Mutex
	state     string
	lastErr   string
	startedAt time.Time
	onChange  func(Status)
}

func newSession(kind Kind, f audio.Format, logger *zap.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		ID:     id,
		Kind:   kind,
		Format: f,
		logger: logger.With(zap.String("session", id), zap.String("kind", string(kind))),
		state:  StateStarting,
	}
}

// OnChange registers fn to be called after every state transition. It must be
// set before Run.
func (s *Session) OnChange(fn func(Status)) { s.onChange = fn }

// Run blocks until the session ends. Cancelling ctx is a clean stop.
func (s *Session) Run(ctx context.Context) error {
	kind := string(s.Kind)
	metrics.SessionsStartedTotal.WithLabelValues(kind).Inc()
	metrics.ActiveSessions.WithLabelValues(kind).Inc()
	defer metrics.ActiveSessions.WithLabelValues(kind).Dec()

	s.mu.Lock()
	s.startedAt = time.Now()
	s.mu.Unlock()
	s.setState(StateRunning, nil)
	s.logger.Info("session started", zap.Stringer("format", s.Format))

	if err := s.run(ctx); err != nil {
		metrics.SessionErrorsTotal.WithLabelValues(kind).Inc()
		s.setState(StateError, err)
		s.logger.Error("session failed", zap.Error(err))
		return err
	}
	s.setState(StateStopped, nil)
	s.logger.Info("session stopped")
	return nil
}

func (s *Session) setState(state string, err error) {
	s.mu.Lock()
	s.state = state
	if err != nil {
		s.lastErr = err.Error()
	}
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(s.Status())
	}
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	st := Status{
		ID:        s.ID,
		Kind:      s.Kind,
		State:     s.state,
		Format:    s.Format.String(),
		LastError: s.lastErr,
	}
	if !s.startedAt.IsZero() {
		started := s.startedAt
		st.StartedAt = &started
	}
	s.mu.Unlock()
	if s.stats != nil {
		s.stats(&st)
	}
	return st
}
