package clock

import "time"

// Clock abstracts time so expiry checks work with both real and virtual time.
// Stores read the current instant through this interface instead of time.Now().
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// Since returns the duration elapsed since t.
	Since(t time.Time) time.Duration
}

// RealClock delegates to the standard time package. Times it returns carry
// a monotonic reading, so comparisons between them ignore wall-clock jumps.
type RealClock struct{}

func NewRealClock() *RealClock {
	return &RealClock{}
}

func (c *RealClock) Now() time.Time {
	return time.Now()
}

func (c *RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// Expired reports whether expiry lies strictly before now.
// The zero time means the entry never expires.
func Expired(c Clock, expiry time.Time) bool {
	if expiry.IsZero() {
		return false
	}
	return c.Now().After(expiry)
}
