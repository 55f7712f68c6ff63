package dsm

import (
	"fmt"
	"time"
)

// Window is the time range before a session's nominal start during which
// task activity still counts toward it.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window (inclusive start,
// inclusive end).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// ComputeWindow derives the task-inclusion window for a session starting at
// end, reaching lookbackHours before the previous session's start. Hours
// outside [0,24] are rejected, never clamped silently.
func ComputeWindow(lastSessionStart time.Time, lookbackHours int, end time.Time) (Window, error) {
	if lookbackHours < 0 || lookbackHours > 24 {
		return Window{}, fmt.Errorf("%w: lookback hours %d out of range [0,24]", ErrConfiguration, lookbackHours)
	}
	start := lastSessionStart.Add(-time.Duration(lookbackHours) * time.Hour)
	if end.Before(start) {
		end = start
	}
	return Window{Start: start, End: end}, nil
}
