package audio

import "encoding/binary"

// Int16ToBytesInto writes s16le bytes into dst, avoiding allocation.
// dst must have capacity >= len(samples)*2. Returns the used portion.
func Int16ToBytesInto(samples []int16, dst []byte) []byte {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(s))
	}
	return dst[:len(samples)*2]
}

// BytesToInt16Into reads s16le bytes into dst, avoiding allocation.
// dst must have capacity >= len(data)/2. Returns the used portion.
func BytesToInt16Into(data []byte, dst []int16) []int16 {
	n := len(data) / 2
	for i := 0; i < n; i++ {
		dst[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return dst[:n]
}

// ToSamples converts one period of wire bytes in format f to linear samples.
func ToSamples(f Format, data []byte, dst []int16) []int16 {
	if f.Encoding == EncodingULaw {
		return DecodeULawInto(data, dst)
	}
	return BytesToInt16Into(data, dst)
}

// FromSamples converts linear samples to wire bytes in format f.
func FromSamples(f Format, samples []int16, dst []byte) []byte {
	if f.Encoding == EncodingULaw {
		for i, s := range samples {
			dst[i] = LinearToULaw(s)
		}
		return dst[:len(samples)]
	}
	return Int16ToBytesInto(samples, dst)
}
