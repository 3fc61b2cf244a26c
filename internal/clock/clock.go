// Package clock abstracts time for services that need deterministic
// tests around dates, such as invoice numbering.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func NewRealClock() Clock {
	return &RealClock{}
}

func (RealClock) Now() time.Time {
	return time.Now().UTC()
}
