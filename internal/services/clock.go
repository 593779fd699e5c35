package services

import "time"

// Clock supplies the current time to computations that depend on it.
// Production code uses RealClock; tests pin the time with FixedClock.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// FixedClock always reports the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }
