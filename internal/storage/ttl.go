package storage

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/SmitUplenchwar2687/keyval/internal/clock"
)

// TTLOverlay adds expiration to any Store. The wrapped store never needs to
// know about TTLs: every value it holds is an envelope carrying the expiry
// next to the caller's payload.
//
// Once a key is written through the overlay, every read of that key must go
// through the overlay as well. Mixing raw and overlay writes on the same key
// makes reads fail with a DecodeError.
type TTLOverlay struct {
	store Store
	inner string
	clock clock.Clock
	log   logrus.FieldLogger
}

// NewTTLOverlay wraps s. A nil clock uses the real clock and a nil logger
// uses the logrus standard logger.
func NewTTLOverlay(s Store, c clock.Clock, log logrus.FieldLogger) *TTLOverlay {
	if c == nil {
		c = clock.NewRealClock()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	inner := BackendName(s)
	return &TTLOverlay{
		store: s,
		inner: inner,
		clock: c,
		log:   log.WithFields(logrus.Fields{"backend": BackendTTL, "inner": inner}),
	}
}

// BackendName reports the wrapped backend as ttl(<inner>).
func (o *TTLOverlay) BackendName() string {
	return BackendTTL + "(" + o.inner + ")"
}

// Unwrap returns the wrapped store.
func (o *TTLOverlay) Unwrap() Store {
	return o.store
}

func (o *TTLOverlay) Insert(ctx context.Context, key, value []byte) error {
	return o.put(ctx, key, value, time.Time{})
}

func (o *TTLOverlay) InsertWithTTL(ctx context.Context, key, value []byte, expiry time.Time) error {
	return o.put(ctx, key, value, expiry)
}

func (o *TTLOverlay) put(ctx context.Context, key, value []byte, expiry time.Time) error {
	raw, err := encodeEnvelope(newEnvelope(value, expiry))
	if err != nil {
		return err
	}
	return o.normalize("insert", o.store.Insert(ctx, key, raw))
}

// Get returns the payload stored under key. An entry whose expiry has passed
// is removed from the wrapped store before ErrExpired is returned; if that
// removal fails the failure is returned instead.
func (o *TTLOverlay) Get(ctx context.Context, key []byte) ([]byte, error) {
	raw, err := o.store.Get(ctx, key)
	if err != nil {
		return nil, o.normalize("get", err)
	}
	env, err := decodeEnvelope(raw)
	if err != nil {
		return nil, err
	}

	if clock.Expired(o.clock, env.expiresAt()) {
		if err := o.store.Remove(ctx, key); err != nil {
			return nil, &BackendError{Backend: o.inner, Op: "remove expired", Err: err}
		}
		o.log.WithField("key", string(key)).Debug("purged expired entry")
		return nil, ErrExpired
	}
	return copyBytes(env.Payload), nil
}

// Touch replaces the expiry of an existing entry with a read-modify-write
// against the wrapped store. The two round-trips are not atomic: a
// concurrent Remove, expiry purge, Insert or Touch on the same key between
// the read and the write can be lost or can resurrect the entry.
func (o *TTLOverlay) Touch(ctx context.Context, key []byte, expiry time.Time) error {
	raw, err := o.store.Get(ctx, key)
	if err != nil {
		return o.normalize("touch", err)
	}
	env, err := decodeEnvelope(raw)
	if err != nil {
		return err
	}
	env.setExpiry(expiry)

	raw, err = encodeEnvelope(env)
	if err != nil {
		return err
	}
	return o.normalize("touch", o.store.Insert(ctx, key, raw))
}

func (o *TTLOverlay) Remove(ctx context.Context, key []byte) error {
	return o.normalize("remove", o.store.Remove(ctx, key))
}

func (o *TTLOverlay) normalize(op string, err error) error {
	return NormalizeWith(o.store, o.inner, op, err)
}

// Named is implemented by stores that report a backend name for errors
// and logs.
type Named interface {
	BackendName() string
}

// BackendName returns s's name if it implements Named, or "store".
func BackendName(s Store) string {
	if n, ok := s.(Named); ok {
		return n.BackendName()
	}
	return "store"
}
