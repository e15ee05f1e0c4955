package model

import "time"

// Clock supplies wall-clock time to the managers so expiry comparisons are
// testable with a fixed time source.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
