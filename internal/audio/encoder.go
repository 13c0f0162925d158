package audio

import (
	"encoding/binary"
	"io"
)

const (
	ulawBias = 0x84
	ulawClip = 32635
)

// LinearToULaw compresses one 16-bit linear sample to G.711 mu-law.
func LinearToULaw(sample int16) byte {
	s := int(sample)
	var sign int
	if s < 0 {
		s = -s
		sign = 0x80
	}
	if s > ulawClip {
		s = ulawClip
	}
	s += ulawBias

	exponent := 7
	for mask := 0x4000; s&mask == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := (s >> (exponent + 3)) & 0x0F
	return ^byte(sign | exponent<<4 | mantissa)
}

// EncodeULawInto compresses s16le bytes from pcm into dst, one output byte per
// input sample. dst must have room for len(pcm)/2 bytes. Returns the used portion.
func EncodeULawInto(pcm []byte, dst []byte) []byte {
	n := len(pcm) / 2
	for i := 0; i < n; i++ {
		dst[i] = LinearToULaw(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	return dst[:n]
}

// ULawEncoder converts a 16-bit little-endian mono PCM stream into mu-law
// bytes as it is read.
type ULawEncoder struct {
	r   io.Reader
	buf []byte
}

// NewULawEncoder wraps r, which must yield s16le PCM.
func NewULawEncoder(r io.Reader) *ULawEncoder {
	return &ULawEncoder{r: r}
}

// Read fills p with up to len(p) mu-law bytes. A trailing odd byte in the
// source is discarded.
func (e *ULawEncoder) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if cap(e.buf) < 2*len(p) {
		e.buf = make([]byte, 2*len(p))
	}
	buf := e.buf[:2*len(p)]

	n, err := io.ReadFull(e.r, buf)
	samples := n / 2
	if samples > 0 {
		EncodeULawInto(buf[:samples*2], p)
		if err == io.ErrUnexpectedEOF {
			err = nil
		}
		return samples, err
	}
	if err == nil || err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return 0, err
}
