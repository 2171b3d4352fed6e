package protocol

import (
	"errors"
	"fmt"
)

// Packet framing constants
const (
	MaxPayloadLen = 10000 // Largest payload the controller accepts

	MarkerLen8  = 0x02 // 1 length byte follows
	MarkerLen16 = 0x03 // 2 length bytes follow
	MarkerLen24 = 0x04 // 3 length bytes follow

	Terminator = 0x03

	crcSize     = 2
	trailerSize = crcSize + 1 // CRC + terminator
)

// ErrOversizedPayload is returned by EncodePacket for payloads that are empty
// or longer than MaxPayloadLen. Nothing should be transmitted in that case.
var ErrOversizedPayload = errors.New("protocol: payload size out of range")

// EncodePacket wraps payload in a complete wire packet:
//
//	[marker] [length: 1-3 bytes BE] [payload] [crc16 BE] [0x03]
//
// The shortest length form that can hold len(payload) is always used. The
// CRC covers only the payload bytes.
func EncodePacket(payload []byte) ([]byte, error) {
	n := len(payload)
	if n == 0 || n > MaxPayloadLen {
		return nil, fmt.Errorf("%w: %d bytes (allowed 1..%d)", ErrOversizedPayload, n, MaxPayloadLen)
	}

	packet := make([]byte, 0, n+4+trailerSize)

	switch {
	case n <= 0xFF:
		packet = append(packet, MarkerLen8, byte(n))
	case n <= 0xFFFF:
		packet = append(packet, MarkerLen16, byte(n>>8), byte(n))
	default:
		packet = append(packet, MarkerLen24, byte(n>>16), byte(n>>8), byte(n))
	}

	crc := CRC16(payload)
	packet = append(packet, payload...)
	packet = append(packet, byte(crc>>8), byte(crc), Terminator)

	return packet, nil
}

// headerLen returns the number of bytes occupied by the marker and length
// field for a given marker, or 0 if marker is not a length marker.
func headerLen(marker byte) int {
	switch marker {
	case MarkerLen8, MarkerLen16, MarkerLen24:
		// The marker value doubles as the header size.
		return int(marker)
	default:
		return 0
	}
}
