package volink

import "fmt"

// Control bytes used on the Optolink line outside of frames
const (
	NUL byte = 0x00 // Used as part of the sync sequence
	SOH byte = 0x01 // Start of heading
	EOT byte = 0x04 // End of transmission, resets the interface
	ENQ byte = 0x05 // Interface is up but waiting for the sync sequence
	ACK byte = 0x06 // Acknowledge
	NAK byte = 0x15 // Negative acknowledge / interface error
	SYN byte = 0x16 // First byte of the sync sequence SYN NUL NUL
)

// StartByte marks the begin of a P300 frame, ASCII "a"
const StartByte byte = 0x41

// ProtocolP300 is the protocol variant identifier carried in every frame
const ProtocolP300 byte = 0x30

// SyncSeq switches the interface into P300 mode
var SyncSeq = []byte{SYN, NUL, NUL}

// CommandType is the frame type/mode byte. The high nibble carries the
// telegram type (0 request, 1 response, 3 error), the low nibble the
// access mode (1 read, 2 write).
type CommandType byte

const (
	ReadRequest   CommandType = 0x01
	WriteRequest  CommandType = 0x02
	ReadResponse  CommandType = 0x11
	WriteResponse CommandType = 0x12
	ReadError     CommandType = 0x31
	WriteError    CommandType = 0x32
)

// IsError reports whether c is an error telegram type.
func (c CommandType) IsError() bool { return c>>4 == 0x3 }

// Responds reports whether c is the well-formed answer type for request
// type req. Error telegrams do not count as answers.
func (c CommandType) Responds(req CommandType) bool {
	return c>>4 == 0x1 && c&0x0f == req&0x0f
}

var knownCommandTypes = map[CommandType]bool{
	ReadRequest:   true,
	WriteRequest:  true,
	ReadResponse:  true,
	WriteResponse: true,
	ReadError:     true,
	WriteError:    true,
}

// Frame is one wire-level P300 message in either direction.
type Frame struct {
	Type    CommandType
	Addr    uint16
	Payload []byte
}

// frameOverhead is the byte count of a frame without its payload:
// start, protocol, command type, 2 address bytes, length, checksum.
const frameOverhead = 7

// Crc8 computes the additive checksum over b, truncated to one byte.
func Crc8(b []byte) byte {
	crc := byte(0)
	for i := 0; i < len(b); i++ {
		crc += b[i]
	}
	return crc
}

// EncodeFrame lays out a frame as the exact byte sequence sent on the
// wire. For a read request the payload is empty and length carries the
// expected byte count of the answer; everywhere else length equals the
// payload size. Pure function.
func EncodeFrame(t CommandType, addr uint16, length int, payload []byte) []byte {
	b := make([]byte, 0, frameOverhead+len(payload))
	b = append(b, StartByte, ProtocolP300, byte(t), byte(addr>>8), byte(addr&0xff), byte(length))
	b = append(b, payload...)
	b = append(b, Crc8(b))
	return b
}

// DecodeFrame parses b as one complete frame. The checksum is verified
// over every byte from the start byte through the payload. Payload
// semantics are not interpreted here.
func DecodeFrame(b []byte) (*Frame, error) {
	if len(b) < frameOverhead {
		return nil, fmt.Errorf("%w: got %d bytes, need at least %d", ErrTruncated, len(b), frameOverhead)
	}
	if b[0] != StartByte {
		return nil, fmt.Errorf("%w: start byte 0x%02x", ErrTruncated, b[0])
	}
	n := int(b[5])
	if len(b) < frameOverhead+n {
		return nil, fmt.Errorf("%w: declared payload length %d, got %d frame bytes", ErrTruncated, n, len(b))
	}
	b = b[:frameOverhead+n]
	if crc := Crc8(b[:len(b)-1]); crc != b[len(b)-1] {
		return nil, fmt.Errorf("%w: calculated 0x%02x, received 0x%02x", ErrBadChecksum, crc, b[len(b)-1])
	}
	t := CommandType(b[2])
	if !knownCommandTypes[t] {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownCommandType, byte(t))
	}
	f := &Frame{
		Type: t,
		Addr: uint16(b[3])<<8 | uint16(b[4]),
	}
	if n > 0 {
		f.Payload = append([]byte(nil), b[6:6+n]...)
	}
	return f, nil
}
