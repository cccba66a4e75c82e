package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("keyval: not found")
	// ErrExpired is returned when a key existed but its TTL has elapsed.
	// The entry is purged as part of the read that reports it.
	ErrExpired = errors.New("keyval: expired")
)

// BackendError wraps a failure of the underlying storage engine.
type BackendError struct {
	Backend string
	Op      string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// ScheduleError is returned when blocking backend work could not be handed
// to a worker, e.g. because the pool is closed or saturated.
type ScheduleError struct {
	Backend string
	Err     error
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("%s: scheduling work: %v", e.Backend, e.Err)
}

func (e *ScheduleError) Unwrap() error { return e.Err }

// EncodeError is returned when a key or value cannot be converted to bytes.
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string { return "encode: " + e.Err.Error() }

func (e *EncodeError) Unwrap() error { return e.Err }

// DecodeError is returned when stored bytes cannot be converted back,
// e.g. malformed envelopes or invalid UTF-8 for string values.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

// ErrorMapper lets a backend translate its own errors into the taxonomy
// above before a layer boundary is crossed.
type ErrorMapper interface {
	MapError(op string, err error) error
}

// Normalize keeps taxonomy errors as they are and wraps anything else in a
// BackendError so no engine-specific type leaks across a layer.
func Normalize(backend, op string, err error) error {
	if err == nil || isTaxonomy(err) {
		return err
	}
	return &BackendError{Backend: backend, Op: op, Err: err}
}

// NormalizeWith is like Normalize but lets s map the error first when it
// implements ErrorMapper.
func NormalizeWith(s Store, backend, op string, err error) error {
	if err == nil {
		return nil
	}
	if m, ok := s.(ErrorMapper); ok {
		err = m.MapError(op, err)
	}
	return Normalize(backend, op, err)
}

func isTaxonomy(err error) bool {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrExpired) {
		return true
	}
	var (
		be *BackendError
		se *ScheduleError
		ee *EncodeError
		de *DecodeError
	)
	return errors.As(err, &be) || errors.As(err, &se) || errors.As(err, &ee) || errors.As(err, &de)
}
