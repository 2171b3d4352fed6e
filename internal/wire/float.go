package wire

import "math"

// Auto-scaled floats are the controller's portable 32-bit float format:
//
//	sign(1) | exponent(8, bias 126) | fraction(23)
//
// The fraction is the frexp mantissa in [0.5, 1) with the leading half
// removed. It is bit-compatible with IEEE-754 single precision for normal
// numbers, but is built arithmetically so it does not depend on the host
// float layout.
const (
	autoExpBias      = 126
	autoFracScale    = 8388608.0 // 2^23
	autoMinMagnitude = 1.5e-38   // smaller values are sent as zero
)

// Words with an all-ones exponent carry the non-finite values, laid out as
// in IEEE-754 single precision.
const (
	autoExpMax  = 0xFF
	autoInfWord = autoExpMax << 23
	autoNaNWord = autoInfWord | 1<<22
	autoSignBit = 1 << 31
)

// EncodeFloat32Auto returns the 32-bit auto-scaled encoding of v. NaN and
// ±Inf use the all-ones exponent, and finite values beyond the float32
// range saturate to ±Inf.
func EncodeFloat32Auto(v float64) uint32 {
	switch {
	case math.IsNaN(v):
		return autoNaNWord
	case v > math.MaxFloat32:
		return autoInfWord
	case v < -math.MaxFloat32:
		return autoInfWord | autoSignBit
	case math.Abs(v) < autoMinMagnitude:
		v = 0
	}

	frac, exp := math.Frexp(v)
	fracAbs := math.Abs(frac)

	var fracBits uint32
	if fracAbs >= 0.5 {
		fracBits = uint32((fracAbs - 0.5) * 2.0 * autoFracScale)
		exp += autoExpBias
	}

	word := (uint32(exp)&0xFF)<<23 | fracBits&0x7FFFFF
	if frac < 0 {
		word |= autoSignBit
	}
	return word
}

// DecodeFloat32Auto reverses EncodeFloat32Auto. An all-zero exponent and
// fraction decodes to exactly zero; an all-ones exponent to ±Inf, or NaN
// when the fraction is set.
func DecodeFloat32Auto(word uint32) float64 {
	exp := int((word >> 23) & 0xFF)
	fracBits := word & 0x7FFFFF
	negative := word&autoSignBit != 0

	if exp == autoExpMax {
		switch {
		case fracBits != 0:
			return math.NaN()
		case negative:
			return math.Inf(-1)
		default:
			return math.Inf(1)
		}
	}

	var f float32
	if exp != 0 || fracBits != 0 {
		f = float32(fracBits)/(autoFracScale*2.0) + 0.5
		f = float32(math.Ldexp(float64(f), exp-autoExpBias))
	}

	if negative {
		return -float64(f)
	}
	return float64(f)
}

// clampFloat32 maps v onto the float32 range: NaN stays NaN and finite
// values beyond ±MaxFloat32 become ±Inf.
func clampFloat32(v float64) float64 {
	switch {
	case v > math.MaxFloat32:
		return math.Inf(1)
	case v < -math.MaxFloat32:
		return math.Inf(-1)
	}
	return v
}

// AppendFloat32Auto stores v in the auto-scaled 32-bit format.
func (b *Buffer) AppendFloat32Auto(v float64) {
	b.AppendUint32(EncodeFloat32Auto(v))
}

// AppendFloat64Auto stores v as two auto-scaled words: the nearest float32
// and the float32 residual. Their sum restores most of the double's
// precision. A value that is not finite as a float32 gets a zero residual.
func (b *Buffer) AppendFloat64Auto(v float64) {
	n := float32(clampFloat32(v))
	var residual float32
	if !math.IsInf(float64(n), 0) && !math.IsNaN(float64(n)) {
		residual = float32(v - float64(n))
	}
	b.AppendFloat32Auto(float64(n))
	b.AppendFloat32Auto(float64(residual))
}

// PopFloat32Auto reads one auto-scaled word.
func (b *Buffer) PopFloat32Auto() float64 {
	return DecodeFloat32Auto(b.PopUint32())
}

// PopFloat64Auto reads the two words written by AppendFloat64Auto and
// returns their sum.
func (b *Buffer) PopFloat64Auto() float64 {
	n := b.PopFloat32Auto()
	residual := b.PopFloat32Auto()
	return n + residual
}
