package keyval

import (
	"bytes"
	"fmt"
	"math"

	"lukechampine.com/uint128"
)

// IntegerSize is the encoded width of an Integer.
const IntegerSize = 16

// Integer is the 16-byte big-endian encoding of an unsigned 128-bit integer.
// Byte-wise comparison of two Integers matches numeric comparison of the
// values they encode, so backends that keep keys in byte order iterate
// Integer keys in numeric order.
type Integer [IntegerSize]byte

// NewInteger encodes u.
func NewInteger(u uint128.Uint128) Integer {
	var i Integer
	u.PutBytesBE(i[:])
	return i
}

// IntegerFromBytes decodes a 16-byte encoding.
func IntegerFromBytes(b []byte) (Integer, error) {
	var i Integer
	if len(b) != IntegerSize {
		return i, fmt.Errorf("integer encoding must be %d bytes, got %d", IntegerSize, len(b))
	}
	copy(i[:], b)
	return i, nil
}

// Uint128 decodes the integer.
func (i Integer) Uint128() uint128.Uint128 {
	return uint128.FromBytesBE(i[:])
}

// Bytes returns a copy of the encoding.
func (i Integer) Bytes() []byte {
	out := make([]byte, IntegerSize)
	copy(out, i[:])
	return out
}

// Compare returns -1, 0 or +1 by byte order, which is also numeric order.
func (i Integer) Compare(j Integer) int {
	return bytes.Compare(i[:], j[:])
}

func (i Integer) String() string {
	return i.Uint128().String()
}

// Int is the set of fixed-width integer types that convert through Integer.
type Int interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// IntegerOf widens v to 128 bits. Negative values are sign-extended, so
// they encode above every non-negative value.
func IntegerOf[T Int](v T) Integer {
	lo := uint64(v)
	var hi uint64
	if v < 0 {
		hi = math.MaxUint64
	}
	return NewInteger(uint128.New(lo, hi))
}

// IntegerTo narrows i to T, keeping the low bits.
func IntegerTo[T Int](i Integer) T {
	return T(i.Uint128().Lo)
}
