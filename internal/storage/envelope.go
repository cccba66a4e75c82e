package storage

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// envelope is what TTLOverlay stores in the wrapped backend in place of the
// caller's value. It is encoded as the CBOR array [expiry, payload] where
// expiry is [unix seconds, nanoseconds] or null for entries that never
// expire. Seconds and nanoseconds are kept apart so any time.Time round-trips,
// including instants past the int64 nanosecond range.
type envelope struct {
	_       struct{} `cbor:",toarray"`
	Expiry  *stamp
	Payload []byte
}

type stamp struct {
	_    struct{} `cbor:",toarray"`
	Sec  int64
	Nsec int64
}

// cborMajorArray is the major type of a CBOR array in the initial byte.
const cborMajorArray = 4

var envelopeEncMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

func newEnvelope(payload []byte, expiry time.Time) envelope {
	env := envelope{Payload: payload}
	env.setExpiry(expiry)
	return env
}

func (e *envelope) setExpiry(expiry time.Time) {
	if expiry.IsZero() {
		e.Expiry = nil
		return
	}
	e.Expiry = &stamp{Sec: expiry.Unix(), Nsec: int64(expiry.Nanosecond())}
}

// expiresAt returns the zero time when the envelope never expires.
func (e envelope) expiresAt() time.Time {
	if e.Expiry == nil {
		return time.Time{}
	}
	return time.Unix(e.Expiry.Sec, e.Expiry.Nsec)
}

func encodeEnvelope(e envelope) ([]byte, error) {
	b, err := envelopeEncMode.Marshal(e)
	if err != nil {
		return nil, &EncodeError{Err: err}
	}
	return b, nil
}

// decodeEnvelope accepts only a CBOR array. Unmarshal would otherwise turn
// null or undefined into a zero envelope.
func decodeEnvelope(b []byte) (envelope, error) {
	if len(b) == 0 || b[0]>>5 != cborMajorArray {
		return envelope{}, &DecodeError{Err: fmt.Errorf("envelope is not a CBOR array")}
	}
	var e envelope
	if err := cbor.Unmarshal(b, &e); err != nil {
		return envelope{}, &DecodeError{Err: err}
	}
	if e.Expiry != nil && (e.Expiry.Nsec < 0 || e.Expiry.Nsec >= int64(time.Second)) {
		return envelope{}, &DecodeError{Err: fmt.Errorf("envelope expiry nanoseconds out of range: %d", e.Expiry.Nsec)}
	}
	return e, nil
}
