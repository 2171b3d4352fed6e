package wire

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Buffer is an append/consume cursor over a byte slice. Appends grow the
// tail; pops consume from the head. All integers are big-endian.
//
// Pops never fail: reading past the end yields the zero value and leaves
// the buffer untouched. Telemetry decoding relies on this to degrade
// gracefully on truncated responses.
type Buffer struct {
	data []byte
}

// NewBuffer returns a Buffer that reads from (and appends to) data.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Bytes returns the unread bytes.
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the number of unread bytes.
func (b *Buffer) Len() int { return len(b.data) }

// roundHalfAway rounds to the nearest integer, ties away from zero.
func roundHalfAway(x float64) float64 {
	if x < 0 {
		return math.Ceil(x - 0.5)
	}
	return math.Floor(x + 0.5)
}

// AppendUint8 stores one byte.
func (b *Buffer) AppendUint8(v uint8) { b.data = append(b.data, v) }

// AppendInt8 stores v as one two's-complement byte.
func (b *Buffer) AppendInt8(v int8) { b.data = append(b.data, byte(v)) }

// AppendUint16 stores v in 2 bytes.
func (b *Buffer) AppendUint16(v uint16) { b.data = binary.BigEndian.AppendUint16(b.data, v) }

// AppendInt16 stores v in 2 bytes, two's complement.
func (b *Buffer) AppendInt16(v int16) { b.AppendUint16(uint16(v)) }

// AppendUint32 stores v in 4 bytes.
func (b *Buffer) AppendUint32(v uint32) { b.data = binary.BigEndian.AppendUint32(b.data, v) }

// AppendInt32 stores v in 4 bytes, two's complement.
func (b *Buffer) AppendInt32(v int32) { b.AppendUint32(uint32(v)) }

// AppendUint64 stores v in 8 bytes.
func (b *Buffer) AppendUint64(v uint64) { b.data = binary.BigEndian.AppendUint64(b.data, v) }

// AppendInt64 stores v in 8 bytes, two's complement.
func (b *Buffer) AppendInt64(v int64) { b.AppendUint64(uint64(v)) }

// AppendFloat16 stores round(v*scale) as a signed 16-bit integer, saturated
// to the int16 range. NaN is stored as 0.
func (b *Buffer) AppendFloat16(v, scale float64) {
	b.AppendInt16(int16(saturate(v*scale, math.MinInt16, math.MaxInt16)))
}

// AppendFloat32 stores round(v*scale) as a signed 32-bit integer, saturated
// to the int32 range.
func (b *Buffer) AppendFloat32(v, scale float64) {
	b.AppendInt32(int32(saturate(v*scale, math.MinInt32, math.MaxInt32)))
}

// AppendFloat64 stores round(v*scale) as a signed 64-bit integer, saturated
// to the int64 range.
func (b *Buffer) AppendFloat64(v, scale float64) {
	x := roundHalfAway(v * scale)
	switch {
	case math.IsNaN(x):
		b.AppendInt64(0)
	case x >= 0x1p63:
		b.AppendInt64(math.MaxInt64)
	case x <= -0x1p63:
		b.AppendInt64(math.MinInt64)
	default:
		b.AppendInt64(int64(x))
	}
}

// saturate rounds x and clamps it to [lo, hi]. Both bounds must be exactly
// representable as float64, which holds for 16 and 32-bit limits.
func saturate(x, lo, hi float64) float64 {
	x = roundHalfAway(x)
	switch {
	case math.IsNaN(x):
		return 0
	case x < lo:
		return lo
	case x > hi:
		return hi
	}
	return x
}

// AppendString stores s followed by a NUL byte.
func (b *Buffer) AppendString(s string) {
	b.data = append(b.data, s...)
	b.data = append(b.data, 0)
}

// take consumes n bytes, or returns nil without consuming if fewer remain.
func (b *Buffer) take(n int) []byte {
	if len(b.data) < n {
		return nil
	}
	p := b.data[:n]
	b.data = b.data[n:]
	return p
}

// PopUint8 reads one byte.
func (b *Buffer) PopUint8() uint8 {
	p := b.take(1)
	if p == nil {
		return 0
	}
	return p[0]
}

// PopInt8 reads one signed byte.
func (b *Buffer) PopInt8() int8 { return int8(b.PopUint8()) }

// PopUint16 reads a 2-byte unsigned integer.
func (b *Buffer) PopUint16() uint16 {
	p := b.take(2)
	if p == nil {
		return 0
	}
	return binary.BigEndian.Uint16(p)
}

// PopInt16 reads a 2-byte signed integer.
func (b *Buffer) PopInt16() int16 { return int16(b.PopUint16()) }

// PopUint32 reads a 4-byte unsigned integer.
func (b *Buffer) PopUint32() uint32 {
	p := b.take(4)
	if p == nil {
		return 0
	}
	return binary.BigEndian.Uint32(p)
}

// PopInt32 reads a 4-byte signed integer.
func (b *Buffer) PopInt32() int32 { return int32(b.PopUint32()) }

// PopUint64 reads an 8-byte unsigned integer.
func (b *Buffer) PopUint64() uint64 {
	p := b.take(8)
	if p == nil {
		return 0
	}
	return binary.BigEndian.Uint64(p)
}

// PopInt64 reads an 8-byte signed integer.
func (b *Buffer) PopInt64() int64 { return int64(b.PopUint64()) }

// PopFloat16 reads a signed 16-bit integer and divides it by scale.
func (b *Buffer) PopFloat16(scale float64) float64 {
	return float64(b.PopInt16()) / scale
}

// PopFloat32 reads a signed 32-bit integer and divides it by scale.
func (b *Buffer) PopFloat32(scale float64) float64 {
	return float64(b.PopInt32()) / scale
}

// PopFloat64 reads a signed 64-bit integer and divides it by scale.
func (b *Buffer) PopFloat64(scale float64) float64 {
	return float64(b.PopInt64()) / scale
}

// PopString reads a NUL-terminated string. If no terminator is present the
// buffer is left untouched and "" is returned.
func (b *Buffer) PopString() string {
	i := bytes.IndexByte(b.data, 0)
	if i < 0 {
		return ""
	}
	s := string(b.data[:i])
	b.data = b.data[i+1:]
	return s
}
