package audio

import (
	"errors"
	"fmt"
	"time"
)

// Encoding is the on-wire sample encoding of a mode.
type Encoding int

const (
	EncodingULaw Encoding = iota + 1
	EncodingS16LE
)

func (e Encoding) String() string {
	switch e {
	case EncodingULaw:
		return "mu-law"
	case EncodingS16LE:
		return "s16le"
	default:
		return fmt.Sprintf("encoding(%d)", int(e))
	}
}

// ErrUnknownMode is returned for a mode number outside the preset table.
var ErrUnknownMode = errors.New("unknown audio configuration mode")

// Format is the session-wide audio configuration. Both ends of a stream must
// agree on it out of band; nothing about it travels on the wire.
type Format struct {
	Mode           int
	Encoding       Encoding
	SampleRate     int
	Channels       int
	BytesPerSample int
	PeriodFrames   int
	PacketSize     int
}

// Presets, keyed by mode number.
var modes = map[int]Format{
	1: {Mode: 1, Encoding: EncodingULaw, SampleRate: 8000, Channels: 1, BytesPerSample: 1, PeriodFrames: 256, PacketSize: 256},
	2: {Mode: 2, Encoding: EncodingS16LE, SampleRate: 16000, Channels: 1, BytesPerSample: 2, PeriodFrames: 512, PacketSize: 1024},
	3: {Mode: 3, Encoding: EncodingS16LE, SampleRate: 22050, Channels: 2, BytesPerSample: 2, PeriodFrames: 256, PacketSize: 1024},
}

// DefaultMode is the 8 kHz mu-law preset.
const DefaultMode = 1

// ModeFormat returns the preset for mode.
func ModeFormat(mode int) (Format, error) {
	f, ok := modes[mode]
	if !ok {
		return Format{}, fmt.Errorf("%w: %d (valid: 1, 2, 3)", ErrUnknownMode, mode)
	}
	return f, nil
}

// FrameBytes is the size of one sample across all channels.
func (f Format) FrameBytes() int { return f.Channels * f.BytesPerSample }

// PeriodBytes is the size of one device transaction.
func (f Format) PeriodBytes() int { return f.PeriodFrames * f.FrameBytes() }

// BytesPerSecond is the nominal byte rate of the sample clock.
func (f Format) BytesPerSecond() int { return f.SampleRate * f.FrameBytes() }

// PacketsPerSecond uses integer division, so the ring sizing below rounds down
// exactly like the receivers already deployed.
func (f Format) PacketsPerSecond() int {
	if f.PacketSize == 0 {
		return 0
	}
	return f.BytesPerSecond() / f.PacketSize
}

// RingBufferBytes sizes the receive buffer to hold about two seconds of packets.
func (f Format) RingBufferBytes() int { return f.PacketSize * f.PacketsPerSecond() * 2 }

// PeriodDuration is the wall-clock length of one period at the nominal rate.
func (f Format) PeriodDuration() time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(f.PeriodFrames) * time.Second / time.Duration(f.SampleRate)
}

// SilenceByte is the byte value that decodes to zero amplitude.
func (f Format) SilenceByte() byte {
	if f.Encoding == EncodingULaw {
		return ULawSilence
	}
	return 0
}

// FillSilence overwrites buf with silence.
func (f Format) FillSilence(buf []byte) {
	s := f.SilenceByte()
	for i := range buf {
		buf[i] = s
	}
}

// Validate reports whether the derived sizes are usable for streaming.
func (f Format) Validate() error {
	switch {
	case f.SampleRate <= 0, f.Channels <= 0, f.BytesPerSample <= 0:
		return fmt.Errorf("audio format: rate, channels and sample width must be positive")
	case f.PeriodFrames <= 0, f.PacketSize <= 0:
		return fmt.Errorf("audio format: period and packet size must be positive")
	case f.PacketSize%f.FrameBytes() != 0:
		return fmt.Errorf("audio format: packet size %d is not a whole number of frames", f.PacketSize)
	case f.PacketsPerSecond() == 0:
		return fmt.Errorf("audio format: packet size %d exceeds one second of audio", f.PacketSize)
	}
	return nil
}

func (f Format) String() string {
	ch := fmt.Sprintf("%d channels", f.Channels)
	switch f.Channels {
	case 1:
		ch = "mono"
	case 2:
		ch = "stereo"
	}
	return fmt.Sprintf("%s, %d Hz, %s", f.Encoding, f.SampleRate, ch)
}
