// Package keyval is the typed key/value façade over any storage.Store.
package keyval

import (
	"lukechampine.com/uint128"

	internalkeyval "github.com/SmitUplenchwar2687/keyval/internal/keyval"
	"github.com/SmitUplenchwar2687/keyval/pkg/clock"
	"github.com/SmitUplenchwar2687/keyval/pkg/storage"
)

// KeyVal is a typed view over a raw Store.
type KeyVal[K, V any] = internalkeyval.KeyVal[K, V]

// TTLKeyVal adds expiration to KeyVal.
type TTLKeyVal[K, V any] = internalkeyval.TTLKeyVal[K, V]

// KeyCodec encodes keys to bytes.
type KeyCodec[K any] = internalkeyval.KeyCodec[K]

// ValueCodec encodes and decodes values.
type ValueCodec[V any] = internalkeyval.ValueCodec[V]

// KeyFunc adapts a function to KeyCodec.
type KeyFunc[K any] = internalkeyval.KeyFunc[K]

// Serde is a ValueCodec built from a marshal/unmarshal pair.
type Serde[T any] = internalkeyval.Serde[T]

// Integer is a 16-byte big-endian u128 whose byte order matches numeric order.
type Integer = internalkeyval.Integer

// Int is the set of built-in integer types usable as keys and values.
type Int = internalkeyval.Int

// IntegerSize is the encoded width of an Integer.
const IntegerSize = internalkeyval.IntegerSize

// New creates a typed view over s.
func New[K, V any](s storage.Store, keys KeyCodec[K], values ValueCodec[V]) *KeyVal[K, V] {
	return internalkeyval.New(s, keys, values)
}

// NewTTL creates a typed view over a TTL-capable store.
func NewTTL[K, V any](s storage.TTLStore, c clock.Clock, keys KeyCodec[K], values ValueCodec[V]) *TTLKeyVal[K, V] {
	return internalkeyval.NewTTL(s, c, keys, values)
}

// Built-in codecs.

func StringKey() KeyCodec[string] { return internalkeyval.StringKey() }
func BytesKey() KeyCodec[[]byte] { return internalkeyval.BytesKey() }
func IntegerKey[T Int]() KeyCodec[T] { return internalkeyval.IntegerKey[T]() }
func String() ValueCodec[string] { return internalkeyval.String() }
func Bytes() ValueCodec[[]byte] { return internalkeyval.Bytes() }
func Integers[T Int]() ValueCodec[T] { return internalkeyval.Integers[T]() }
func Integers128() ValueCodec[Integer] { return internalkeyval.Integers128() }
func CBOR[T any]() Serde[T] { return internalkeyval.CBOR[T]() }
func JSON[T any]() Serde[T] { return internalkeyval.JSON[T]() }
func YAML[T any]() Serde[T] { return internalkeyval.YAML[T]() }

// NewInteger encodes u.
func NewInteger(u uint128.Uint128) Integer {
	return internalkeyval.NewInteger(u)
}

// IntegerFromBytes decodes exactly IntegerSize bytes.
func IntegerFromBytes(b []byte) (Integer, error) {
	return internalkeyval.IntegerFromBytes(b)
}

// IntegerOf sign-extends v to 128 bits.
func IntegerOf[T Int](v T) Integer {
	return internalkeyval.IntegerOf(v)
}

// IntegerTo truncates i to T.
func IntegerTo[T Int](i Integer) T {
	return internalkeyval.IntegerTo[T](i)
}
