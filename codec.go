package volink

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// ValueType converts between raw payload bytes and a typed value. The
// set of variants is open: a new kind only has to implement this
// interface and declare its byte width.
type ValueType interface {
	// Width is the exact payload width in bytes.
	Width() int
	// Decode converts payload bytes into a typed value.
	Decode(b []byte) (interface{}, error)
	// Encode converts a typed value into payload bytes.
	Encode(v interface{}) ([]byte, error)
}

func checkWidth(b []byte, w int) error {
	if len(b) != w {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrLengthMismatch, len(b), w)
	}
	return nil
}

// decodeUint reads a big-endian unsigned integer of up to 4 bytes.
func decodeUint(b []byte) uint32 {
	var d uint32
	for i := 0; i < len(b); i++ {
		d = d<<8 | uint32(b[i])
	}
	return d
}

// encodeUint writes d as a big-endian unsigned integer of w bytes.
func encodeUint(d uint32, w int) []byte {
	b := make([]byte, w)
	for i := w - 1; i >= 0; i-- {
		b[i] = byte(d & 0xff)
		d >>= 8
	}
	return b
}

// signExtend interprets a w-byte big-endian value as two's complement.
func signExtend(d uint32, w int) int32 {
	shift := uint(32 - 8*w)
	return int32(d<<shift) >> shift
}

func toInt64(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case float64:
		// Accept integral floats, JSON and the CLI deliver numbers that way.
		if x != math.Trunc(x) {
			return 0, false
		}
		return int64(x), true
	case float32:
		if float64(x) != math.Trunc(float64(x)) {
			return 0, false
		}
		return int64(x), true
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	default:
		return 0, false
	}
}

func toFloat64(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	default:
		i, ok := toInt64(v)
		return float64(i), ok
	}
}

// Unsigned is an unsigned big-endian integer of 1, 2 or 4 bytes.
type Unsigned struct {
	W int
}

func (u Unsigned) Width() int { return u.W }

func (u Unsigned) Decode(b []byte) (interface{}, error) {
	if err := checkWidth(b, u.W); err != nil {
		return nil, err
	}
	return decodeUint(b), nil
}

func (u Unsigned) Encode(v interface{}) ([]byte, error) {
	d, ok := toInt64(v)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not an integer", ErrUnrepresentable, v)
	}
	if d < 0 || (u.W < 8 && d > (1<<(8*uint(u.W)))-1) {
		return nil, fmt.Errorf("%w: %d out of range for %d-byte unsigned", ErrUnrepresentable, d, u.W)
	}
	return encodeUint(uint32(d), u.W), nil
}

// Signed is a two's complement big-endian integer of 1, 2 or 4 bytes.
type Signed struct {
	W int
}

func (s Signed) Width() int { return s.W }

func (s Signed) Decode(b []byte) (interface{}, error) {
	if err := checkWidth(b, s.W); err != nil {
		return nil, err
	}
	return signExtend(decodeUint(b), s.W), nil
}

func (s Signed) Encode(v interface{}) ([]byte, error) {
	d, ok := toInt64(v)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not an integer", ErrUnrepresentable, v)
	}
	min, max := int64(-1)<<(8*uint(s.W)-1), int64(1)<<(8*uint(s.W)-1)-1
	if d < min || d > max {
		return nil, fmt.Errorf("%w: %d out of range for %d-byte signed", ErrUnrepresentable, d, s.W)
	}
	return encodeUint(uint32(d), s.W), nil
}

// FixedPoint is a scaled integer, e.g. scale 10 turns raw 215 into 21.5.
// Encode multiplies by Scale and rounds half away from zero, so
// Decode(Encode(v)) is exact for any v produced by a prior Decode of the
// same width and scale.
type FixedPoint struct {
	W      int
	Scale  int
	Signed bool
}

func (f FixedPoint) Width() int { return f.W }

func (f FixedPoint) Decode(b []byte) (interface{}, error) {
	if err := checkWidth(b, f.W); err != nil {
		return nil, err
	}
	d := decodeUint(b)
	if f.Signed {
		return float64(signExtend(d, f.W)) / float64(f.Scale), nil
	}
	return float64(d) / float64(f.Scale), nil
}

func (f FixedPoint) Encode(v interface{}) ([]byte, error) {
	x, ok := toFloat64(v)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not numeric", ErrUnrepresentable, v)
	}
	d := int64(math.Round(x * float64(f.Scale)))
	if f.Signed {
		return Signed{f.W}.Encode(d)
	}
	return Unsigned{f.W}.Encode(d)
}

// BitField is an integer whose bits carry independent flags. Labels maps
// a bit position to its name. Decode returns the names of the set bits
// in bit order; set bits without a label are ignored.
type BitField struct {
	W      int
	Labels map[uint]string
}

func (f BitField) Width() int { return f.W }

func (f BitField) Decode(b []byte) (interface{}, error) {
	if err := checkWidth(b, f.W); err != nil {
		return nil, err
	}
	d := decodeUint(b)
	bits := make([]uint, 0, len(f.Labels))
	for bit := range f.Labels {
		if d&(1<<bit) != 0 {
			bits = append(bits, bit)
		}
	}
	sort.Slice(bits, func(i, j int) bool { return bits[i] < bits[j] })
	set := make([]string, len(bits))
	for i, bit := range bits {
		set[i] = f.Labels[bit]
	}
	return set, nil
}

func (f BitField) Encode(v interface{}) ([]byte, error) {
	set, ok := v.([]string)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a bit name list", ErrUnrepresentable, v)
	}
	byName := make(map[string]uint, len(f.Labels))
	for bit, name := range f.Labels {
		byName[name] = bit
	}
	var d uint32
	for _, name := range set {
		bit, ok := byName[name]
		if !ok || int(bit) >= 8*f.W {
			return nil, fmt.Errorf("%w: unknown bit %q", ErrUnrepresentable, name)
		}
		d |= 1 << bit
	}
	return encodeUint(d, f.W), nil
}

// Enum is a small labeled value enumeration like the WO1C operating
// modes. Decode returns the label, Encode accepts it.
type Enum struct {
	W      int
	Values map[uint32]string
}

func (e Enum) Width() int { return e.W }

func (e Enum) Decode(b []byte) (interface{}, error) {
	if err := checkWidth(b, e.W); err != nil {
		return nil, err
	}
	d := decodeUint(b)
	label, ok := e.Values[d]
	if !ok {
		return nil, fmt.Errorf("%w: enum value 0x%02x", ErrUnrepresentable, d)
	}
	return label, nil
}

func (e Enum) Encode(v interface{}) ([]byte, error) {
	label, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not an enum label", ErrUnrepresentable, v)
	}
	for d, l := range e.Values {
		if l == label {
			return encodeUint(d, e.W), nil
		}
	}
	return nil, fmt.Errorf("%w: unknown enum label %q", ErrUnrepresentable, label)
}

// Raw passes payload bytes through unchanged. Used for values with no
// richer semantics, like BCD date blobs.
type Raw struct {
	W int
}

func (r Raw) Width() int { return r.W }

func (r Raw) Decode(b []byte) (interface{}, error) {
	if err := checkWidth(b, r.W); err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

func (r Raw) Encode(v interface{}) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a byte slice", ErrUnrepresentable, v)
	}
	if err := checkWidth(b, r.W); err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

func fromBCD(b byte) int {
	return (int(b)>>4)*10 + (int(b) & 0x0f)
}

func toBCD(i int) byte {
	return byte((i/10)*16 + i%10)
}

// DecodeBCDDate interprets a Raw blob as a BCD encoded date (4 bytes) or
// date and time (8 bytes: year hi, year lo, month, day, weekday, hour,
// minute, second).
func DecodeBCDDate(c []byte) (time.Time, error) {
	if len(c) < 4 {
		return time.Time{}, fmt.Errorf("%w: need at least 4 bytes for a BCD date", ErrLengthMismatch)
	}
	if len(c) < 8 {
		p := make([]byte, 8)
		copy(p, c)
		c = p
	}
	return time.Date(fromBCD(c[0])*100+fromBCD(c[1]), time.Month(fromBCD(c[2])), fromBCD(c[3]),
		fromBCD(c[5]), fromBCD(c[6]), fromBCD(c[7]), 0, time.Local), nil
}

// EncodeBCDDate lays out t as an 8 byte BCD date/time blob.
func EncodeBCDDate(t time.Time) []byte {
	t = t.Local()
	wday := int(t.Weekday())
	if wday == 0 {
		wday = 7
	}
	return []byte{
		toBCD(t.Year() / 100), toBCD(t.Year() % 100),
		toBCD(int(t.Month())), toBCD(t.Day()),
		toBCD(wday),
		toBCD(t.Hour()), toBCD(t.Minute()), toBCD(t.Second()),
	}
}
