package volink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		typ     CommandType
		addr    uint16
		payload []byte
	}{
		{"read response", ReadResponse, 0x5525, []byte{0x00, 0xef}},
		{"write response empty", WriteResponse, 0x6304, nil},
		{"read error", ReadError, 0x0101, nil},
		{"long payload", ReadResponse, 0x00f8, []byte{0x20, 0x4d, 0x01, 0x07, 0x00, 0x00, 0x01, 0x5a}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := EncodeFrame(tt.typ, tt.addr, len(tt.payload), tt.payload)
			f, err := DecodeFrame(b)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, f.Type)
			assert.Equal(t, tt.addr, f.Addr)
			assert.Equal(t, tt.payload, f.Payload)
		})
	}
}

func TestFrameLayout(t *testing.T) {
	// Read request for two bytes at 0x5525, the outside temperature of
	// the known-good vendor trace.
	b := EncodeFrame(ReadRequest, 0x5525, 2, nil)
	require.Equal(t, []byte{0x41, 0x30, 0x01, 0x55, 0x25, 0x02, 0xee}, b)
}

func TestDecodeFrameCorruption(t *testing.T) {
	good := EncodeFrame(ReadResponse, 0x5525, 2, []byte{0x00, 0xef})

	for i := range good {
		b := append([]byte(nil), good...)
		b[i] ^= 0x04
		_, err := DecodeFrame(b)
		require.Errorf(t, err, "mutated byte %d must not decode", i)
		if i != 0 && i != 5 {
			// Start byte and length mutations trip earlier checks;
			// everything else must be caught by the checksum.
			assert.ErrorIsf(t, err, ErrBadChecksum, "mutated byte %d", i)
		}
	}
}

func TestDecodeFrameTruncated(t *testing.T) {
	good := EncodeFrame(ReadResponse, 0x5525, 2, []byte{0x00, 0xef})

	_, err := DecodeFrame(good[:3])
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = DecodeFrame(good[:len(good)-2])
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = DecodeFrame(nil)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeFrameUnknownCommandType(t *testing.T) {
	b := []byte{StartByte, ProtocolP300, 0x07, 0x55, 0x25, 0x00}
	b = append(b, Crc8(b))
	_, err := DecodeFrame(b)
	assert.ErrorIs(t, err, ErrUnknownCommandType)
}

func TestCommandTypeResponds(t *testing.T) {
	assert.True(t, ReadResponse.Responds(ReadRequest))
	assert.True(t, WriteResponse.Responds(WriteRequest))
	assert.False(t, ReadResponse.Responds(WriteRequest))
	assert.False(t, WriteResponse.Responds(ReadRequest))
	assert.False(t, ReadError.Responds(ReadRequest))

	assert.True(t, ReadError.IsError())
	assert.True(t, WriteError.IsError())
	assert.False(t, ReadResponse.IsError())
}

func TestCrc8(t *testing.T) {
	assert.Equal(t, byte(0x00), Crc8(nil))
	assert.Equal(t, byte(0x82), Crc8([]byte{0x05, 0x00, 0x01, 0x55, 0x25, 0x02}))
	// Truncation of the sum to one byte
	assert.Equal(t, byte(0x01), Crc8([]byte{0xff, 0x02}))
}
