package pacing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 8 kHz mono mu-law, 256-byte packets: 32 ms nominal.
func newMuLawPacer(t *testing.T) *Pacer {
	t.Helper()
	p, err := New(Config{BytesPerSecond: 8000, PacketSize: 256})
	require.NoError(t, err)
	return p
}

func TestNominalInterval(t *testing.T) {
	p := newMuLawPacer(t)
	assert.Equal(t, 32*time.Millisecond, p.Nominal())
	assert.Equal(t, 32*time.Millisecond, p.Interval())
}

func TestZeroDeltaLeavesIntervalUnchanged(t *testing.T) {
	p := newMuLawPacer(t)
	for i := 0; i < 10; i++ {
		assert.Equal(t, 32*time.Millisecond, p.Update(0))
	}
}

func TestAheadBeyondThresholdUsesCoarseGain(t *testing.T) {
	p := newMuLawPacer(t)
	got := p.Update(20 * time.Millisecond)
	assert.InDelta(t, float64(40*time.Millisecond), float64(got), 2)
}

func TestBehindShrinksCoarseThenFine(t *testing.T) {
	p := newMuLawPacer(t)
	delta := -time.Millisecond // well inside the coarse threshold

	first := p.Update(delta)
	assert.InDelta(t, float64(24*time.Millisecond), float64(first), 2, "first step grows the error from zero")

	prev := first
	for i := 0; i < 20; i++ {
		next := p.Update(delta)
		assert.Less(t, next, prev, "step %d", i)
		assert.InDelta(t, float64(prev)*0.99, float64(next), 2, "step %d", i)
		prev = next
	}
}

func TestAheadShrinkingErrorUsesFineGain(t *testing.T) {
	p := newMuLawPacer(t)
	p.Update(4 * time.Millisecond)
	before := p.Interval()
	after := p.Update(2 * time.Millisecond)
	assert.InDelta(t, float64(before)*1.01, float64(after), 2)
}

func TestIntervalStaysPositive(t *testing.T) {
	p := newMuLawPacer(t)
	for i := 0; i < 500; i++ {
		require.Greater(t, p.Update(-time.Second), time.Duration(0))
	}
}

func TestCustomGains(t *testing.T) {
	p, err := New(Config{BytesPerSecond: 8000, PacketSize: 256, CoarseGain: 0.5, FineGain: 0.1})
	require.NoError(t, err)
	assert.InDelta(t, float64(16*time.Millisecond), float64(p.Update(-20*time.Millisecond)), 2)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{}.Validate())
	assert.Error(t, Config{BytesPerSecond: 8000, PacketSize: 256, FineGain: 1.5}.Validate())
	assert.NoError(t, Config{BytesPerSecond: 8000, PacketSize: 256}.Validate())
}

func TestClockDelta(t *testing.T) {
	start := time.Unix(1000, 0)
	c := NewClock(start, 8000, 1)
	c.Add(8000)

	assert.Equal(t, uint64(8000), c.Sent())
	assert.Equal(t, time.Second, c.Expected())
	assert.Equal(t, 500*time.Millisecond, c.Delta(start.Add(500*time.Millisecond)))
	assert.Equal(t, -250*time.Millisecond, c.Delta(start.Add(1250*time.Millisecond)))
}

func TestClockIgnoresPartialFrames(t *testing.T) {
	c := NewClock(time.Unix(0, 0), 16000, 2)
	c.Add(3)
	assert.Equal(t, time.Second/16000, c.Expected())
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, Sleep(ctx, time.Hour))
	assert.True(t, Sleep(context.Background(), time.Millisecond))
}
