package audio

// ULawSilence decodes to zero amplitude.
const ULawSilence byte = 0xFF

// ULawToLinear expands one G.711 mu-law byte to a 16-bit linear sample.
func ULawToLinear(u byte) int16 {
	u = ^u
	sign := u & 0x80
	exponent := int(u>>4) & 0x07
	mantissa := int(u & 0x0F)

	sample := ((mantissa << 3) + ulawBias) << exponent
	sample -= ulawBias
	if sign != 0 {
		return int16(-sample)
	}
	return int16(sample)
}

// DecodeULawInto expands mu-law bytes into dst, which must have capacity
// >= len(data). Returns the used portion.
func DecodeULawInto(data []byte, dst []int16) []int16 {
	for i, u := range data {
		dst[i] = ULawToLinear(u)
	}
	return dst[:len(data)]
}
