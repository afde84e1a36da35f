// Package clock provides an injectable time source so month-boundary
// logic can be driven deterministically in tests.
package clock

import "time"

// Clock yields the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func NewSystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// MonthKey formats t as the YYYY-MM bucket used by the usage ledger.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
