// Package protocol implements the VESC packet framing used on the serial and
// WebSocket links.
//
// # Packet Format
//
// Every payload travels inside a frame:
//   - Start marker: 2 for payloads up to 255 bytes, 3 up to 65535, 4 beyond
//   - Payload length: 1, 2 or 3 bytes, big-endian
//   - Payload: the command tag followed by its arguments
//   - CRC: CRC16-XMODEM of the payload, big-endian
//   - Terminator: 0x03
//
// EncodePacket builds a frame for a payload.
//
// # Reassembly
//
// Bytes arrive in arbitrary chunks. A Reassembler buffers them and returns
// every complete, valid payload. When a candidate frame fails validation it
// drops a single byte and scans again, so a corrupt frame costs at most its
// own bytes. A buffer that fills without yielding a frame is cleared.
//
//	r := protocol.NewReassembler()
//	for _, payload := range r.Process(chunk) {
//	    handle(payload)
//	}
//
// A Reassembler is not safe for concurrent use.
package protocol
