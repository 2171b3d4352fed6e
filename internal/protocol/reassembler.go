package protocol

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/vesclink/internal/logging"
)

// BufferCapacity is the size of the reassembly window. It holds the largest
// possible packet with a few bytes to spare.
const BufferCapacity = MaxPayloadLen + 8

// DecodeStatus is the outcome of a single decode attempt against the
// buffered bytes.
type DecodeStatus int

const (
	// NeedMarker means no bytes are buffered yet.
	NeedMarker DecodeStatus = iota
	// NeedLength means a marker was seen but its length field is incomplete.
	NeedLength
	// NeedBody means the length is known but payload, CRC or terminator are missing.
	NeedBody
	// Decoded means a complete packet with a matching CRC was found.
	Decoded
	// Invalid means the leading byte cannot start a valid packet.
	Invalid
)

// String returns a human-readable status name
func (s DecodeStatus) String() string {
	switch s {
	case NeedMarker:
		return "need_marker"
	case NeedLength:
		return "need_length"
	case NeedBody:
		return "need_body"
	case Decoded:
		return "decoded"
	case Invalid:
		return "invalid"
	default:
		return fmt.Sprintf("DecodeStatus(%d)", int(s))
	}
}

// decodeResult describes what tryDecode found at the head of the buffer.
type decodeResult struct {
	status   DecodeStatus
	need     int    // bytes still missing, for the Need* statuses
	consumed int    // total packet length, for Decoded
	payload  []byte // aliases the input, for Decoded
}

func (r decodeResult) needMore() bool {
	return r.status == NeedMarker || r.status == NeedLength || r.status == NeedBody
}

// tryDecode attempts to decode one packet from the start of buf. It never
// modifies buf.
func tryDecode(buf []byte) decodeResult {
	n := len(buf)
	if n == 0 {
		return decodeResult{status: NeedMarker, need: 1}
	}

	hdr := headerLen(buf[0])
	if hdr == 0 {
		return decodeResult{status: Invalid}
	}

	if n < hdr {
		return decodeResult{status: NeedLength, need: hdr - n}
	}

	var length int
	switch buf[0] {
	case MarkerLen8:
		length = int(buf[1])
		if length < 1 {
			return decodeResult{status: Invalid}
		}
	case MarkerLen16:
		length = int(buf[1])<<8 | int(buf[2])
		// A shorter packet must use the shorter length form.
		if length < 0xFF {
			return decodeResult{status: Invalid}
		}
	case MarkerLen24:
		length = int(buf[1])<<16 | int(buf[2])<<8 | int(buf[3])
		if length < 0xFFFF {
			return decodeResult{status: Invalid}
		}
	}

	if length > MaxPayloadLen {
		return decodeResult{status: Invalid}
	}

	total := hdr + length + trailerSize
	if n < total {
		return decodeResult{status: NeedBody, need: total - n}
	}

	if buf[total-1] != Terminator {
		return decodeResult{status: Invalid}
	}

	payload := buf[hdr : hdr+length]
	rxCRC := uint16(buf[hdr+length])<<8 | uint16(buf[hdr+length+1])
	if CRC16(payload) != rxCRC {
		return decodeResult{status: Invalid}
	}

	return decodeResult{status: Decoded, consumed: total, payload: payload}
}

// bufferOp names the transition rxBuffer.put took for an incoming byte.
type bufferOp int

const (
	opAppend  bufferOp = iota // byte stored after the unread region
	opCompact                 // unread region shifted to offset 0, then stored
	opOverrun                 // window was full; everything dropped, byte stored alone
)

// rxBuffer is a fixed-size sliding window with separate read and write
// cursors. Invariant: 0 <= read <= write <= len(data).
type rxBuffer struct {
	data      []byte
	read      int
	write     int
	bytesLeft int // bytes known to be missing before the next decode can succeed; 0 = unknown
}

func newRxBuffer(capacity int) *rxBuffer {
	return &rxBuffer{data: make([]byte, capacity)}
}

func (b *rxBuffer) buffered() int { return b.write - b.read }

func (b *rxBuffer) unread() []byte { return b.data[b.read:b.write] }

func (b *rxBuffer) reset() {
	b.read = 0
	b.write = 0
	b.bytesLeft = 0
}

// put stores c, compacting or discarding buffered bytes if the window is
// exhausted.
func (b *rxBuffer) put(c byte) bufferOp {
	op := opAppend

	switch {
	case b.buffered() >= len(b.data):
		b.reset()
		b.data[0] = c
		b.write = 1
		return opOverrun
	case b.write >= len(b.data):
		b.write = copy(b.data, b.unread())
		b.read = 0
		op = opCompact
	}

	b.data[b.write] = c
	b.write++
	b.check()
	return op
}

// consume advances the read cursor by n bytes and rewinds both cursors once
// the window is drained.
func (b *rxBuffer) consume(n int) {
	b.read += n
	b.check()
	if b.read == b.write {
		b.read = 0
		b.write = 0
	}
}

func (b *rxBuffer) check() {
	if b.read < 0 || b.read > b.write || b.write > len(b.data) {
		panic(fmt.Sprintf("protocol: rx buffer cursors corrupt (read=%d write=%d cap=%d)", b.read, b.write, len(b.data)))
	}
}

// ReassemblerStats counts how the byte stream has been handled so far.
type ReassemblerStats struct {
	Decoded   uint64 `json:"decoded"`   // packets yielded
	Discarded uint64 `json:"discarded"` // bytes skipped while resynchronising
	Overruns  uint64 `json:"overruns"`  // times the window overflowed and was reset
}

// Reassembler turns an arbitrarily chunked byte stream back into validated
// packet payloads. Malformed input never produces an error: a bad byte is
// skipped and decoding resumes at the next one.
//
// A Reassembler is not safe for concurrent use.
type Reassembler struct {
	buf   *rxBuffer
	stats ReassemblerStats
}

// NewReassembler creates a Reassembler with an empty window.
func NewReassembler() *Reassembler {
	return &Reassembler{buf: newRxBuffer(BufferCapacity)}
}

// Process feeds chunk into the reassembler one byte at a time and returns the
// payloads completed by it, in arrival order. Returned slices are owned by
// the caller.
//
// A stray 3 or 4 byte followed by a plausible length announces a long body,
// and a valid frame arriving behind it stays buffered until enough bytes
// follow to disprove that prefix or the window overruns.
func (r *Reassembler) Process(chunk []byte) [][]byte {
	var packets [][]byte
	discarded := r.stats.Discarded

	for _, c := range chunk {
		if r.buf.put(c) == opOverrun {
			r.stats.Overruns++
			logging.Debug("Reassembly window overrun, buffered bytes dropped",
				zap.Int("capacity", len(r.buf.data)))
			continue
		}

		// Still waiting for a known number of bytes.
		if r.buf.bytesLeft > 1 {
			r.buf.bytesLeft--
			continue
		}

		for {
			res := tryDecode(r.buf.unread())
			r.buf.bytesLeft = res.need
			if res.needMore() {
				break
			}

			if res.status == Decoded {
				payload := make([]byte, len(res.payload))
				copy(payload, res.payload)
				packets = append(packets, payload)
				r.stats.Decoded++
				r.buf.consume(res.consumed)
			} else {
				r.stats.Discarded++
				r.buf.consume(1)
			}
		}
	}

	if n := r.stats.Discarded - discarded; n > 0 {
		logging.Debug("Skipped bytes while resynchronising",
			zap.Uint64("count", n),
			zap.Int("buffered", r.buf.buffered()))
	}

	return packets
}

// Reset drops any partially received packet. Call it whenever the
// underlying link is (re)established.
func (r *Reassembler) Reset() {
	r.buf.reset()
}

// Buffered returns the number of bytes held while waiting for a complete packet.
func (r *Reassembler) Buffered() int {
	return r.buf.buffered()
}

// Stats returns a copy of the running counters.
func (r *Reassembler) Stats() ReassemblerStats {
	return r.stats
}
