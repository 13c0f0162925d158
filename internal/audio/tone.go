package audio

import "math"

const (
	ToneFrequency = 440.0
	ToneAmplitude = 16000
)

// GenerateTone produces a sine wave of the given duration encoded in format
// f, with every channel carrying the same signal.
func GenerateTone(f Format, durationSec, frequency float64) []byte {
	frames := int(durationSec * float64(f.SampleRate))
	samples := make([]int16, frames*f.Channels)
	for i := 0; i < frames; i++ {
		t := float64(i) / float64(f.SampleRate)
		s := int16(ToneAmplitude * math.Sin(2*math.Pi*frequency*t))
		for c := 0; c < f.Channels; c++ {
			samples[i*f.Channels+c] = s
		}
	}
	return FromSamples(f, samples, make([]byte, len(samples)*f.BytesPerSample))
}
