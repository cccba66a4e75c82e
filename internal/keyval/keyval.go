package keyval

import (
	"context"
	"time"

	"github.com/SmitUplenchwar2687/keyval/internal/clock"
	"github.com/SmitUplenchwar2687/keyval/internal/storage"
)

// KeyVal is a typed front end over a raw Store. Keys and values pass
// through their codecs on the way in and out; backend errors are normalized
// so callers only ever see the storage error taxonomy.
//
// Several KeyVals may share one Store, e.g. to view the same backend
// through different codecs.
type KeyVal[K, V any] struct {
	store   storage.Store
	backend string
	keys    KeyCodec[K]
	values  ValueCodec[V]
}

// New returns a KeyVal over s.
func New[K, V any](s storage.Store, keys KeyCodec[K], values ValueCodec[V]) *KeyVal[K, V] {
	return &KeyVal[K, V]{
		store:   s,
		backend: storage.BackendName(s),
		keys:    keys,
		values:  values,
	}
}

// Store returns the underlying raw store.
func (kv *KeyVal[K, V]) Store() storage.Store {
	return kv.store
}

func (kv *KeyVal[K, V]) Insert(ctx context.Context, key K, value V) error {
	rk, rv, err := kv.encode(key, value)
	if err != nil {
		return err
	}
	return kv.normalize("insert", kv.store.Insert(ctx, rk, rv))
}

func (kv *KeyVal[K, V]) Get(ctx context.Context, key K) (V, error) {
	var zero V

	rk, err := kv.encodeKey(key)
	if err != nil {
		return zero, err
	}
	raw, err := kv.store.Get(ctx, rk)
	if err != nil {
		return zero, kv.normalize("get", err)
	}
	v, err := kv.values.Decode(raw)
	if err != nil {
		return zero, asDecodeError(err)
	}
	return v, nil
}

func (kv *KeyVal[K, V]) Remove(ctx context.Context, key K) error {
	rk, err := kv.encodeKey(key)
	if err != nil {
		return err
	}
	return kv.normalize("remove", kv.store.Remove(ctx, rk))
}

func (kv *KeyVal[K, V]) encode(key K, value V) ([]byte, []byte, error) {
	rk, err := kv.encodeKey(key)
	if err != nil {
		return nil, nil, err
	}
	rv, err := kv.values.Encode(value)
	if err != nil {
		return nil, nil, asEncodeError(err)
	}
	return rk, rv, nil
}

func (kv *KeyVal[K, V]) encodeKey(key K) ([]byte, error) {
	rk, err := kv.keys.EncodeKey(key)
	if err != nil {
		return nil, asEncodeError(err)
	}
	return rk, nil
}

func (kv *KeyVal[K, V]) normalize(op string, err error) error {
	return storage.NormalizeWith(kv.store, kv.backend, op, err)
}

// TTLKeyVal is a KeyVal over a TTLStore.
type TTLKeyVal[K, V any] struct {
	*KeyVal[K, V]
	ttl   storage.TTLStore
	clock clock.Clock
}

// NewTTL returns a TTLKeyVal over s. The clock is only used by InsertFor;
// a nil clock uses the real clock.
func NewTTL[K, V any](s storage.TTLStore, c clock.Clock, keys KeyCodec[K], values ValueCodec[V]) *TTLKeyVal[K, V] {
	if c == nil {
		c = clock.NewRealClock()
	}
	return &TTLKeyVal[K, V]{
		KeyVal: New[K, V](s, keys, values),
		ttl:    s,
		clock:  c,
	}
}

// InsertWithTTL stores value under key until expiry.
func (kv *TTLKeyVal[K, V]) InsertWithTTL(ctx context.Context, key K, value V, expiry time.Time) error {
	rk, rv, err := kv.encode(key, value)
	if err != nil {
		return err
	}
	return kv.normalize("insert", kv.ttl.InsertWithTTL(ctx, rk, rv, expiry))
}

// InsertFor stores value under key for ttl from now.
func (kv *TTLKeyVal[K, V]) InsertFor(ctx context.Context, key K, value V, ttl time.Duration) error {
	return kv.InsertWithTTL(ctx, key, value, kv.clock.Now().Add(ttl))
}

// Touch replaces the expiry of key.
func (kv *TTLKeyVal[K, V]) Touch(ctx context.Context, key K, expiry time.Time) error {
	rk, err := kv.encodeKey(key)
	if err != nil {
		return err
	}
	return kv.normalize("touch", kv.ttl.Touch(ctx, rk, expiry))
}

func asEncodeError(err error) error {
	if _, ok := err.(*storage.EncodeError); ok {
		return err
	}
	return &storage.EncodeError{Err: err}
}

func asDecodeError(err error) error {
	if _, ok := err.(*storage.DecodeError); ok {
		return err
	}
	return &storage.DecodeError{Err: err}
}
