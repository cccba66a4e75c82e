package clock

import (
	"testing"
	"time"
)

func TestClockImplementations(t *testing.T) {
	var _ Clock = NewRealClock()
	var _ Clock = NewVirtualClock(time.Now())
}

func TestVirtualClockExpiry(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	vc := NewVirtualClock(start)
	expiry := start.Add(time.Minute)

	if Expired(vc, expiry) {
		t.Fatal("entry should not be expired before its deadline")
	}
	vc.Advance(2 * time.Minute)
	if !Expired(vc, expiry) {
		t.Fatal("entry should be expired after its deadline")
	}
}
