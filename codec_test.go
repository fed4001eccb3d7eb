package volink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnsignedRoundTrip(t *testing.T) {
	tests := []struct {
		w int
		v uint32
		b []byte
	}{
		{1, 0, []byte{0x00}},
		{1, 0xff, []byte{0xff}},
		{2, 210, []byte{0x00, 0xd2}},
		{2, 0xbeef, []byte{0xbe, 0xef}},
		{4, 123456, []byte{0x00, 0x01, 0xe2, 0x40}},
	}
	for _, tt := range tests {
		u := Unsigned{W: tt.w}
		b, err := u.Encode(tt.v)
		require.NoError(t, err)
		assert.Equal(t, tt.b, b)
		v, err := u.Decode(b)
		require.NoError(t, err)
		assert.Equal(t, tt.v, v)
	}
}

func TestSignedRoundTrip(t *testing.T) {
	tests := []struct {
		w int
		v int32
		b []byte
	}{
		{1, -1, []byte{0xff}},
		{1, 127, []byte{0x7f}},
		{2, -600, []byte{0xfd, 0xa8}},
		{2, 239, []byte{0x00, 0xef}},
		{4, -1, []byte{0xff, 0xff, 0xff, 0xff}},
	}
	for _, tt := range tests {
		s := Signed{W: tt.w}
		b, err := s.Encode(tt.v)
		require.NoError(t, err)
		assert.Equal(t, tt.b, b)
		v, err := s.Decode(b)
		require.NoError(t, err)
		assert.Equal(t, tt.v, v)
	}
}

func TestFixedPoint(t *testing.T) {
	fp := FixedPoint{W: 2, Scale: 10, Signed: true}

	// The party mode room setpoint example: raw 210 is 21.0 degrees,
	// 22.0 degrees encode to raw 220.
	v, err := fp.Decode([]byte{0x00, 0xd2})
	require.NoError(t, err)
	assert.Equal(t, 21.0, v)

	b, err := fp.Encode(22.0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xdc}, b)

	// Negative temperatures
	v, err = fp.Decode([]byte{0xfd, 0xa8})
	require.NoError(t, err)
	assert.Equal(t, -60.0, v)
}

func TestFixedPointRounding(t *testing.T) {
	fp := FixedPoint{W: 2, Scale: 10, Signed: true}

	// Half rounds away from zero in both directions
	b, err := fp.Encode(21.25)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xd5}, b) // 213

	b, err = fp.Encode(-21.25)
	require.NoError(t, err)
	v, err := fp.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, -21.3, v)
}

func TestFixedPointDecodeEncodeExact(t *testing.T) {
	// Values produced by a decode must survive the round trip exactly.
	fp := FixedPoint{W: 2, Scale: 10, Signed: true}
	for _, raw := range [][]byte{{0x00, 0x00}, {0x00, 0xd2}, {0xfd, 0xa8}, {0x7f, 0xff}, {0x80, 0x00}} {
		v, err := fp.Decode(raw)
		require.NoError(t, err)
		b, err := fp.Encode(v)
		require.NoError(t, err)
		assert.Equal(t, raw, b)
	}
}

func TestUnrepresentable(t *testing.T) {
	tests := []struct {
		name string
		typ  ValueType
		v    interface{}
	}{
		{"negative into unsigned", Unsigned{W: 2}, -1},
		{"overflow unsigned byte", Unsigned{W: 1}, 300},
		{"overflow signed byte", Signed{W: 1}, 128},
		{"underflow signed byte", Signed{W: 1}, -129},
		{"non-numeric into unsigned", Unsigned{W: 2}, "hot"},
		{"fractional into unsigned", Unsigned{W: 2}, 1.5},
		{"fixed point overflow", FixedPoint{W: 1, Scale: 10}, 30.0},
		{"string into raw", Raw{W: 2}, "xx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.typ.Encode(tt.v)
			assert.ErrorIs(t, err, ErrUnrepresentable)
		})
	}
}

func TestLengthMismatch(t *testing.T) {
	for _, typ := range []ValueType{Unsigned{W: 2}, Signed{W: 2}, FixedPoint{W: 2, Scale: 10}, Raw{W: 2}, Enum{W: 1, Values: onOff}} {
		_, err := typ.Decode([]byte{0x00, 0x01, 0x02})
		assert.ErrorIs(t, err, ErrLengthMismatch)
	}
}

func TestBitField(t *testing.T) {
	bf := BitField{W: 1, Labels: map[uint]string{
		0: "SecondaryPump",
		1: "Compressor",
		3: "AuxHeater",
	}}

	v, err := bf.Decode([]byte{0x09})
	require.NoError(t, err)
	assert.Equal(t, []string{"SecondaryPump", "AuxHeater"}, v)

	b, err := bf.Encode([]string{"AuxHeater", "SecondaryPump"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x09}, b)

	// Set bits without a label are ignored on decode
	v, err = bf.Decode([]byte{0x84})
	require.NoError(t, err)
	assert.Empty(t, v)

	_, err = bf.Encode([]string{"Turbo"})
	assert.ErrorIs(t, err, ErrUnrepresentable)
}

func TestEnum(t *testing.T) {
	e := Enum{W: 1, Values: operatingModes}

	v, err := e.Decode([]byte{0x02})
	require.NoError(t, err)
	assert.Equal(t, "HeatingAndDHW", v)

	b, err := e.Encode("DHW")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, b)

	_, err = e.Decode([]byte{0x7e})
	assert.ErrorIs(t, err, ErrUnrepresentable)

	_, err = e.Encode("Defrost")
	assert.ErrorIs(t, err, ErrUnrepresentable)
}

func TestRaw(t *testing.T) {
	r := Raw{W: 4}
	in := []byte{0x20, 0x4d, 0x01, 0x07}

	v, err := r.Decode(in)
	require.NoError(t, err)
	assert.Equal(t, in, v)

	b, err := r.Encode(in)
	require.NoError(t, err)
	assert.Equal(t, in, b)

	// Decode copies, mutating the result must not touch the input
	v.([]byte)[0] = 0xff
	assert.Equal(t, byte(0x20), in[0])

	_, err = r.Encode([]byte{0x01})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestBCDDate(t *testing.T) {
	// 2023-11-05 (a Sunday, BCD weekday 7) 13:37:59
	blob := []byte{0x20, 0x23, 0x11, 0x05, 0x07, 0x13, 0x37, 0x59}

	d, err := DecodeBCDDate(blob)
	require.NoError(t, err)
	want := time.Date(2023, time.November, 5, 13, 37, 59, 0, time.Local)
	assert.True(t, d.Equal(want), "got %v", d)

	assert.Equal(t, blob, EncodeBCDDate(want))

	// Date-only blobs fill the time with zeroes
	d, err = DecodeBCDDate(blob[:4])
	require.NoError(t, err)
	assert.True(t, d.Equal(time.Date(2023, time.November, 5, 0, 0, 0, 0, time.Local)))

	_, err = DecodeBCDDate([]byte{0x20, 0x23})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}
