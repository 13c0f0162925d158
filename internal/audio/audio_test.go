package audio

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModePresets(t *testing.T) {
	tests := []struct {
		mode        int
		periodBytes int
		packetSize  int
		bps         int
		ringBytes   int
		silence     byte
	}{
		{1, 256, 256, 8000, 256 * 31 * 2, 0xFF},
		{2, 1024, 1024, 32000, 1024 * 31 * 2, 0x00},
		{3, 1024, 1024, 88200, 1024 * 86 * 2, 0x00},
	}
	for _, tt := range tests {
		f, err := ModeFormat(tt.mode)
		require.NoError(t, err)
		assert.NoError(t, f.Validate())
		assert.Equal(t, tt.periodBytes, f.PeriodBytes(), "mode %d", tt.mode)
		assert.Equal(t, tt.packetSize, f.PacketSize, "mode %d", tt.mode)
		assert.Equal(t, tt.bps, f.BytesPerSecond(), "mode %d", tt.mode)
		assert.Equal(t, tt.ringBytes, f.RingBufferBytes(), "mode %d", tt.mode)
		assert.Equal(t, tt.silence, f.SilenceByte(), "mode %d", tt.mode)
	}
}

func TestModeFormatUnknown(t *testing.T) {
	_, err := ModeFormat(4)
	assert.True(t, errors.Is(err, ErrUnknownMode))
}

func TestPeriodDuration(t *testing.T) {
	f, _ := ModeFormat(1)
	assert.Equal(t, 32*time.Millisecond, f.PeriodDuration())
	f, _ = ModeFormat(2)
	assert.Equal(t, 32*time.Millisecond, f.PeriodDuration())
}

func TestULawSilence(t *testing.T) {
	assert.Equal(t, int16(0), ULawToLinear(ULawSilence))
	assert.Equal(t, ULawSilence, LinearToULaw(0))
}

func TestULawRoundTrip(t *testing.T) {
	for u := 0; u < 256; u++ {
		if u == 0x7F {
			// negative zero re-encodes as positive zero
			continue
		}
		got := LinearToULaw(ULawToLinear(byte(u)))
		if got != byte(u) {
			t.Errorf("0x%02X: re-encoded as 0x%02X", u, got)
		}
	}
}

func TestLinearToULawMonotonic(t *testing.T) {
	prev := ULawToLinear(LinearToULaw(-32768))
	for s := -32768; s <= 32767; s += 7 {
		v := ULawToLinear(LinearToULaw(int16(s)))
		if v < prev {
			t.Fatalf("sample %d decoded to %d, below previous %d", s, v, prev)
		}
		prev = v
	}
}

func TestULawEncoderStream(t *testing.T) {
	samples := []int16{0, 1000, -1000, 32000, -32000}
	pcm := Int16ToBytesInto(samples, make([]byte, len(samples)*2))
	pcm = append(pcm, 0x01) // dangling half sample

	out, err := io.ReadAll(NewULawEncoder(bytes.NewReader(pcm)))
	require.NoError(t, err)
	require.Len(t, out, len(samples))
	for i, s := range samples {
		assert.Equal(t, LinearToULaw(s), out[i])
	}
}

func TestSampleConversion(t *testing.T) {
	f, _ := ModeFormat(2)
	samples := []int16{-5, 0, 5, 32767, -32768}
	wire := FromSamples(f, samples, make([]byte, 10))
	assert.Equal(t, samples, ToSamples(f, wire, make([]int16, 5)))
}

func TestGenerateToneSizes(t *testing.T) {
	for mode := 1; mode <= 3; mode++ {
		f, _ := ModeFormat(mode)
		tone := GenerateTone(f, 0.5, ToneFrequency)
		assert.Equal(t, f.BytesPerSecond()/2, len(tone), "mode %d", mode)
	}
}

func TestFramePool(t *testing.T) {
	p := NewFramePool(256)
	f := p.Get()
	assert.Len(t, f.Data, 256)
	f.Seq = 9
	f.Data = f.Data[:10]
	p.Put(f)

	g := p.Get()
	assert.Len(t, g.Data, 256)
	assert.Zero(t, g.Seq)
}
