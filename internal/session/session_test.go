package session

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/chg95211/msx-ethernet-audio/internal/audio"
	"github.com/chg95211/msx-ethernet-audio/internal/capture"
	"github.com/chg95211/msx-ethernet-audio/internal/pacing"
	"github.com/chg95211/msx-ethernet-audio/internal/testutil"
	"github.com/chg95211/msx-ethernet-audio/internal/transport"
)

func muLaw(t *testing.T) audio.Format {
	t.Helper()
	f, err := audio.ModeFormat(1)
	require.NoError(t, err)
	return f
}

func pacingFor(f audio.Format) pacing.Config {
	return pacing.Config{BytesPerSecond: f.BytesPerSecond(), PacketSize: f.PacketSize}
}

func tempFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.raw")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func ramp(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i * 3)
	}
	return out
}

func recordingFanout(t *testing.T, conn *testutil.RecordingConn, packetSize int) *transport.Fanout {
	t.Helper()
	dests, err := transport.ResolveDestinations([]string{"127.0.0.1:9100"})
	require.NoError(t, err)
	f, err := transport.NewFanout(conn, dests, packetSize, transport.FanoutOptions{}, zap.NewNop())
	require.NoError(t, err)
	return f
}

func TestFileSendPacesAndPads(t *testing.T) {
	f := muLaw(t)
	data := ramp(256*3 + 100)
	conn := &testutil.RecordingConn{}

	s, err := NewFileSend(FileSendOptions{
		Format: f,
		Files:  []string{tempFile(t, data)},
		Fanout: recordingFanout(t, conn, f.PacketSize),
		Pacing: pacingFor(f),
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, s.Run(context.Background()))
	// three full sleeps of roughly 32 ms; the padded tail is not followed by one
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)

	sent := conn.Sent()
	require.Len(t, sent, 4)
	var got []byte
	for _, d := range sent {
		require.Len(t, d.Data, 256)
		got = append(got, d.Data...)
	}
	assert.Equal(t, data, got[:len(data)])
	assert.Equal(t, bytes.Repeat([]byte{audio.ULawSilence}, 156), got[len(data):])

	st := s.Status()
	assert.Equal(t, StateStopped, st.State)
	assert.Equal(t, uint64(4), st.PacketsSent)
	assert.Equal(t, uint64(1), st.FilesSent)
}

func TestFileSendULawConversion(t *testing.T) {
	f := muLaw(t)
	samples := make([]int16, 256)
	for i := range samples {
		samples[i] = int16(i*100 - 12800)
	}
	pcm := audio.Int16ToBytesInto(samples, make([]byte, 512))
	conn := &testutil.RecordingConn{}

	s, err := NewFileSend(FileSendOptions{
		Format: f,
		Files:  []string{tempFile(t, pcm)},
		ULaw:   true,
		Fanout: recordingFanout(t, conn, f.PacketSize),
		Pacing: pacingFor(f),
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))

	sent := conn.Sent()
	require.Len(t, sent, 1)
	for i, sample := range samples {
		assert.Equal(t, audio.LinearToULaw(sample), sent[0].Data[i])
	}
}

func TestFileSendRejectsULawInPCMMode(t *testing.T) {
	f, _ := audio.ModeFormat(2)
	_, err := NewFileSend(FileSendOptions{
		Format: f,
		Files:  []string{"x"},
		ULaw:   true,
		Fanout: recordingFanout(t, &testutil.RecordingConn{}, f.PacketSize),
		Pacing: pacingFor(f),
		Logger: zap.NewNop(),
	})
	assert.Error(t, err)
}

func TestFileSendMissingFileFails(t *testing.T) {
	f := muLaw(t)
	s, err := NewFileSend(FileSendOptions{
		Format: f,
		Files:  []string{filepath.Join(t.TempDir(), "missing.raw")},
		Fanout: recordingFanout(t, &testutil.RecordingConn{}, f.PacketSize),
		Pacing: pacingFor(f),
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	assert.Error(t, s.Run(context.Background()))
	assert.Equal(t, StateError, s.Status().State)
	assert.NotEmpty(t, s.Status().LastError)
}

func TestLoopStopsOnCancel(t *testing.T) {
	f := muLaw(t)
	conn := &testutil.RecordingConn{}
	s, err := NewFileSend(FileSendOptions{
		Format: f,
		Files:  []string{tempFile(t, ramp(256))},
		Loop:   true,
		Fanout: recordingFanout(t, conn, f.PacketSize),
		Pacing: pacingFor(f),
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))
	assert.Greater(t, len(conn.Sent()), 1)
}

// A file sent over loopback by one session plays out of another unchanged.
func TestFileSendToReceive(t *testing.T) {
	defer testutil.GoroutineBaseline(t, 2)()

	f := muLaw(t)
	log := zaptest.NewLogger(t)

	conn, err := transport.Listen(transport.ListenConfig{Port: 0})
	require.NoError(t, err)
	port := conn.LocalAddr().(*net.UDPAddr).Port

	sink := &testutil.RecordingSink{}
	rx, err := NewReceive(ReceiveOptions{Format: f, Conn: conn, Sink: sink, Logger: log})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	rxDone := make(chan error, 1)
	go func() { rxDone <- rx.Run(ctx) }()

	txConn, err := transport.ListenSender()
	require.NoError(t, err)
	defer txConn.Close()
	dests, err := transport.ResolveDestinations([]string{net.JoinHostPort("127.0.0.1", strconv.Itoa(port))})
	require.NoError(t, err)
	fan, err := transport.NewFanout(txConn, dests, f.PacketSize, transport.FanoutOptions{}, log)
	require.NoError(t, err)

	data := ramp(256 * 12)
	tx, err := NewFileSend(FileSendOptions{
		Format: f,
		Files:  []string{tempFile(t, data)},
		Fanout: fan,
		Pacing: pacingFor(f),
		Logger: log,
	})
	require.NoError(t, err)
	require.NoError(t, tx.Run(ctx))

	require.Eventually(t, func() bool {
		return bytes.Equal(sink.Bytes(), data)
	}, 2*time.Second, 5*time.Millisecond)

	st := rx.Status()
	assert.Equal(t, StateRunning, st.State)
	assert.Equal(t, uint64(12), st.PacketsReceived)
	assert.Zero(t, st.PacketsDropped)
	assert.Zero(t, st.BytesOverwritten)

	cancel()
	require.NoError(t, <-rxDone)
	assert.Equal(t, StateStopped, rx.Status().State)
}

func TestLiveSendForwardsCapturedPeriods(t *testing.T) {
	f := muLaw(t)
	src := testutil.NewScriptedSource(ramp(256*4), 2*time.Millisecond)
	conn := &testutil.RecordingConn{}
	var sw capture.Switch
	sw.Set(true, "test")

	s, err := NewLiveSend(LiveSendOptions{
		Format: f,
		Source: src,
		Gate:   &sw,
		Fanout: recordingFanout(t, conn, f.PacketSize),
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	// the scripted source ends after four periods, which ends the session
	require.NoError(t, s.Run(context.Background()))

	st := s.Status()
	assert.Equal(t, uint64(4), st.PeriodsCaptured)
	require.NotNil(t, st.Talking)
	assert.True(t, *st.Talking)
	for _, d := range conn.Sent() {
		assert.Len(t, d.Data, 256)
	}
}

func TestLocalPlay(t *testing.T) {
	f := muLaw(t)
	sink := &testutil.RecordingSink{}
	data := ramp(300)
	s, err := NewLocalPlay(LocalPlayOptions{Format: f, File: tempFile(t, data), Sink: sink, Logger: zap.NewNop()})
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))

	got := sink.Bytes()
	require.Len(t, got, 512)
	assert.Equal(t, data, got[:300])
	assert.Equal(t, "stopped", s.Status().Playback)
}

func TestStatusOmitsStartBeforeRun(t *testing.T) {
	f := muLaw(t)
	s, err := NewLocalPlay(LocalPlayOptions{Format: f, File: tempFile(t, ramp(10)), Sink: &testutil.RecordingSink{}, Logger: zap.NewNop()})
	require.NoError(t, err)

	st := s.Status()
	assert.Nil(t, st.StartedAt)
	raw, err := json.Marshal(st)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "startedAt")

	before := time.Now()
	require.NoError(t, s.Run(context.Background()))
	st = s.Status()
	require.NotNil(t, st.StartedAt)
	assert.False(t, st.StartedAt.Before(before))
	raw, err = json.Marshal(st)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"startedAt"`)
}

func TestOnChangeAndRegistry(t *testing.T) {
	f := muLaw(t)
	reg := NewRegistry()
	assert.False(t, reg.Ready())

	s, err := NewLocalPlay(LocalPlayOptions{Format: f, File: tempFile(t, ramp(10)), Sink: &testutil.RecordingSink{}, Logger: zap.NewNop()})
	require.NoError(t, err)
	reg.Add(s)

	var mu sync.Mutex
	var states []string
	s.OnChange(func(st Status) {
		mu.Lock()
		states = append(states, st.State)
		mu.Unlock()
	})
	require.NoError(t, s.Run(context.Background()))

	mu.Lock()
	assert.Equal(t, []string{StateRunning, StateStopped}, states)
	mu.Unlock()

	got, ok := reg.Get(s.ID)
	require.True(t, ok)
	assert.Equal(t, s, got)
	list := reg.List()
	require.Len(t, list, 1)
	assert.Equal(t, KindLocalPlay, list[0].Kind)
	assert.False(t, reg.Ready())

	reg.Remove(s.ID)
	assert.Empty(t, reg.List())
}
