package audio

import "errors"

var (
	// ErrUnderrun marks a transient output underrun. The caller recovers the
	// device and retries the same period once.
	ErrUnderrun = errors.New("audio device underrun")
	// ErrOverrun is the capture-side counterpart of ErrUnderrun.
	ErrOverrun = errors.New("audio device overrun")
)

// Sink is a playback device fed one period at a time. WritePeriod blocks
// until the device has accepted the whole period.
type Sink interface {
	WritePeriod(p []byte) error
	// Recover prepares the device for a new run of periods.
	Recover() error
	// Drain lets queued audio finish and stops the device.
	Drain() error
}

// Source is a capture device read one period at a time. ReadPeriod blocks
// until p is completely filled.
type Source interface {
	ReadPeriod(p []byte) error
	Recover() error
	Drain() error
}
