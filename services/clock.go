package services

import "time"

// Clock supplies wall-clock time. Injected so time-driven transitions are
// testable; production code uses RealClock.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func RealClock() Clock { return realClock{} }
