package timeutil

import "time"

// TimeUs is a wrapping microsecond timestamp as produced by a flight
// controller's free-running timer.
type TimeUs uint32

// DeltaUs is a signed microsecond interval.
type DeltaUs int32

// CmpTimeUs returns a - b, correct across a single counter wrap.
func CmpTimeUs(a, b TimeUs) DeltaUs {
	return DeltaUs(int32(a - b))
}

// Add returns t advanced by d, wrapping like the hardware counter.
func (t TimeUs) Add(d DeltaUs) TimeUs {
	return t + TimeUs(d)
}

// Duration converts d to a time.Duration.
func (d DeltaUs) Duration() time.Duration {
	return time.Duration(d) * time.Microsecond
}

// Seconds returns d in seconds.
func (d DeltaUs) Seconds() float32 {
	return float32(d) * 0.000001
}

// FromMillis converts a millisecond setting to DeltaUs.
func FromMillis(ms uint16) DeltaUs {
	return DeltaUs(ms) * 1000
}
