package clock

import (
	"time"

	internalclock "github.com/SmitUplenchwar2687/keyval/internal/clock"
)

// Clock abstracts time so expiry checks work with both real and virtual time.
type Clock = internalclock.Clock

// RealClock delegates to the standard time package.
type RealClock = internalclock.RealClock

// VirtualClock is a controllable clock for expiry tests.
type VirtualClock = internalclock.VirtualClock

// NewRealClock creates a real wall-clock implementation.
func NewRealClock() *RealClock {
	return internalclock.NewRealClock()
}

// NewVirtualClock creates a virtual clock starting at the given time.
func NewVirtualClock(start time.Time) *VirtualClock {
	return internalclock.NewVirtualClock(start)
}

// Expired reports whether expiry lies strictly before c.Now().
func Expired(c Clock, expiry time.Time) bool {
	return internalclock.Expired(c, expiry)
}
