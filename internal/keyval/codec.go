package keyval

import (
	"encoding/json"
	"errors"
	"unicode/utf8"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v2"

	"github.com/SmitUplenchwar2687/keyval/internal/storage"
)

// KeyCodec converts a typed key into the raw bytes stored in the backend.
type KeyCodec[K any] interface {
	EncodeKey(K) ([]byte, error)
}

// ValueCodec converts typed values to and from raw bytes.
type ValueCodec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// KeyFunc adapts a function to KeyCodec.
type KeyFunc[K any] func(K) ([]byte, error)

func (f KeyFunc[K]) EncodeKey(k K) ([]byte, error) { return f(k) }

// StringKey stores string keys as their UTF-8 bytes.
func StringKey() KeyCodec[string] {
	return KeyFunc[string](func(k string) ([]byte, error) {
		return []byte(k), nil
	})
}

// BytesKey stores byte-slice keys unchanged.
func BytesKey() KeyCodec[[]byte] {
	return KeyFunc[[]byte](func(k []byte) ([]byte, error) {
		return append([]byte(nil), k...), nil
	})
}

// IntegerKey stores integer keys with the Integer encoding. Byte order follows
// numeric order for unsigned and non-negative values; negative values sort
// after all of them.
func IntegerKey[T Int]() KeyCodec[T] {
	return KeyFunc[T](func(k T) ([]byte, error) {
		return IntegerOf(k).Bytes(), nil
	})
}

type stringCodec struct{}

// String stores strings as UTF-8. Decoding rejects invalid UTF-8.
func String() ValueCodec[string] { return stringCodec{} }

func (stringCodec) Encode(v string) ([]byte, error) { return []byte(v), nil }

func (stringCodec) Decode(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", &storage.DecodeError{Err: errors.New("invalid utf-8")}
	}
	return string(b), nil
}

type bytesCodec struct{}

// Bytes stores byte slices unchanged.
func Bytes() ValueCodec[[]byte] { return bytesCodec{} }

func (bytesCodec) Encode(v []byte) ([]byte, error) { return append([]byte{}, v...), nil }

func (bytesCodec) Decode(b []byte) ([]byte, error) { return append([]byte{}, b...), nil }

type intCodec[T Int] struct{}

// Integers stores fixed-width integers through the 16-byte Integer encoding.
func Integers[T Int]() ValueCodec[T] { return intCodec[T]{} }

func (intCodec[T]) Encode(v T) ([]byte, error) { return IntegerOf(v).Bytes(), nil }

func (intCodec[T]) Decode(b []byte) (T, error) {
	i, err := IntegerFromBytes(b)
	if err != nil {
		return 0, &storage.DecodeError{Err: err}
	}
	return IntegerTo[T](i), nil
}

type integerCodec struct{}

// Integers128 stores Integer values as-is.
func Integers128() ValueCodec[Integer] { return integerCodec{} }

func (integerCodec) Encode(v Integer) ([]byte, error) { return v.Bytes(), nil }

func (integerCodec) Decode(b []byte) (Integer, error) {
	i, err := IntegerFromBytes(b)
	if err != nil {
		return Integer{}, &storage.DecodeError{Err: err}
	}
	return i, nil
}

// Serde implements ValueCodec for any T once, given a serialization format.
// Marshal and Unmarshal failures are reported as EncodeError and
// DecodeError respectively.
type Serde[T any] struct {
	Marshal   func(v T) ([]byte, error)
	Unmarshal func(b []byte, v *T) error
}

func (s Serde[T]) Encode(v T) ([]byte, error) {
	b, err := s.Marshal(v)
	if err != nil {
		return nil, &storage.EncodeError{Err: err}
	}
	return b, nil
}

func (s Serde[T]) Decode(b []byte) (T, error) {
	var v T
	if err := s.Unmarshal(b, &v); err != nil {
		var zero T
		return zero, &storage.DecodeError{Err: err}
	}
	return v, nil
}

// CBOR encodes values as CBOR.
func CBOR[T any]() Serde[T] {
	return Serde[T]{
		Marshal:   func(v T) ([]byte, error) { return cbor.Marshal(v) },
		Unmarshal: func(b []byte, v *T) error { return cbor.Unmarshal(b, v) },
	}
}

// JSON encodes values as JSON.
func JSON[T any]() Serde[T] {
	return Serde[T]{
		Marshal:   func(v T) ([]byte, error) { return json.Marshal(v) },
		Unmarshal: func(b []byte, v *T) error { return json.Unmarshal(b, v) },
	}
}

// YAML encodes values as YAML.
func YAML[T any]() Serde[T] {
	return Serde[T]{
		Marshal:   func(v T) ([]byte, error) { return yaml.Marshal(v) },
		Unmarshal: func(b []byte, v *T) error { return yaml.UnmarshalStrict(b, v) },
	}
}
