// Package portaudio adapts sound cards reached through PortAudio to the
// period-oriented audio.Sink and audio.Source interfaces.
package portaudio

import (
	"errors"
	"fmt"

	pa "github.com/gordonklaus/portaudio"
	"go.uber.org/zap"

	"github.com/chg95211/msx-ethernet-audio/internal/audio"
	"github.com/chg95211/msx-ethernet-audio/internal/metrics"
)

// DefaultDevice selects the host's default input or output.
const DefaultDevice = "default"

// Initialize must be called once before any device is opened.
func Initialize() error {
	if err := pa.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}
	return nil
}

// Terminate releases PortAudio. Every device must be closed first.
func Terminate() error { return pa.Terminate() }

// Info describes one device.
type Info struct {
	Name              string  `json:"name"`
	HostAPI           string  `json:"host_api"`
	MaxInputChannels  int     `json:"max_input_channels"`
	MaxOutputChannels int     `json:"max_output_channels"`
	DefaultSampleRate float64 `json:"default_sample_rate"`
}

// List returns every device PortAudio can see.
func List() ([]Info, error) {
	devs, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	out := make([]Info, 0, len(devs))
	for _, d := range devs {
		info := Info{
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
		}
		if d.HostApi != nil {
			info.HostAPI = d.HostApi.Name
		}
		out = append(out, info)
	}
	return out, nil
}

func findDevice(name string, input bool) (*pa.DeviceInfo, error) {
	if name == "" || name == DefaultDevice {
		if input {
			return pa.DefaultInputDevice()
		}
		return pa.DefaultOutputDevice()
	}
	devs, err := pa.Devices()
	if err != nil {
		return nil, err
	}
	for _, d := range devs {
		if d.Name != name {
			continue
		}
		if (input && d.MaxInputChannels > 0) || (!input && d.MaxOutputChannels > 0) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no %s device named %q", direction(input), name)
}

func direction(input bool) string {
	if input {
		return "capture"
	}
	return "playback"
}

// Device is one open blocking-mode stream. It converts between the wire
// encoding of its format and the 16-bit samples the sound card takes. A
// Device is used by a single goroutine.
type Device struct {
	format  audio.Format
	stream  *pa.Stream
	samples []int16
	input   bool
	running bool
	logger  *zap.Logger
}

// OpenOutput opens a playback device by name.
func OpenOutput(name string, f audio.Format, logger *zap.Logger) (*Device, error) {
	return open(name, f, false, logger)
}

// OpenInput opens a capture device by name.
func OpenInput(name string, f audio.Format, logger *zap.Logger) (*Device, error) {
	return open(name, f, true, logger)
}

func open(name string, f audio.Format, input bool, logger *zap.Logger) (*Device, error) {
	info, err := findDevice(name, input)
	if err != nil {
		return nil, fmt.Errorf("open %s device: %w", direction(input), err)
	}

	var p pa.StreamParameters
	if input {
		p = pa.LowLatencyParameters(info, nil)
		p.Input.Channels = f.Channels
	} else {
		p = pa.LowLatencyParameters(nil, info)
		p.Output.Channels = f.Channels
	}
	p.SampleRate = float64(f.SampleRate)
	p.FramesPerBuffer = f.PeriodFrames

	samples := make([]int16, f.PeriodFrames*f.Channels)
	stream, err := pa.OpenStream(p, samples)
	if err != nil {
		return nil, fmt.Errorf("open %s stream on %q: %w", direction(input), info.Name, err)
	}
	logger.Info("audio device opened",
		zap.String("device", info.Name),
		zap.String("direction", direction(input)),
		zap.Stringer("format", f),
	)
	return &Device{
		format:  f,
		stream:  stream,
		samples: samples,
		input:   input,
		logger:  logger,
	}, nil
}

// WritePeriod plays one period. An output underflow means the card ran dry
// before this period arrived; the period itself was still queued, so it is
// counted and not treated as a failure.
func (d *Device) WritePeriod(p []byte) error {
	if err := d.Recover(); err != nil {
		return err
	}
	audio.ToSamples(d.format, p, d.samples)
	err := d.stream.Write()
	if errors.Is(err, pa.OutputUnderflowed) {
		metrics.DeviceUnderrunsTotal.Inc()
		d.logger.Debug("output underflowed")
		return nil
	}
	if err != nil {
		return fmt.Errorf("portaudio write: %w", err)
	}
	return nil
}

// ReadPeriod captures one period.
func (d *Device) ReadPeriod(p []byte) error {
	if err := d.Recover(); err != nil {
		return err
	}
	err := d.stream.Read()
	if errors.Is(err, pa.InputOverflowed) {
		metrics.DeviceOverrunsTotal.Inc()
		d.logger.Debug("input overflowed")
		err = nil
	}
	if err != nil {
		return fmt.Errorf("portaudio read: %w", err)
	}
	audio.FromSamples(d.format, d.samples, p)
	return nil
}

// Recover starts the stream if it is stopped.
func (d *Device) Recover() error {
	if d.running {
		return nil
	}
	if err := d.stream.Start(); err != nil {
		return fmt.Errorf("start %s stream: %w", direction(d.input), err)
	}
	d.running = true
	return nil
}

// Drain stops the stream after queued output has played.
func (d *Device) Drain() error {
	if !d.running {
		return nil
	}
	d.running = false
	if err := d.stream.Stop(); err != nil {
		return fmt.Errorf("stop %s stream: %w", direction(d.input), err)
	}
	return nil
}

// Close stops and releases the stream.
func (d *Device) Close() error {
	if d.running {
		d.running = false
		_ = d.stream.Abort()
	}
	return d.stream.Close()
}
