// Package window computes the time ranges the relay queries upstream with.
package window

import (
	"fmt"
	"time"
)

// forwardPad absorbs clock skew so a record stamped slightly in the future
// is still inside the window on the tick that first sees it.
const forwardPad = time.Minute

// DefaultExpansion is the widening sequence used when none is configured.
var DefaultExpansion = []time.Duration{2 * time.Hour, 6 * time.Hour, 12 * time.Hour}

type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Widen returns w grown by delta on both sides.
func (w Window) Widen(delta time.Duration) Window {
	return Window{Start: w.Start.Add(-delta), End: w.End.Add(delta)}
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s]", w.Start.UTC().Format(time.RFC3339), w.End.UTC().Format(time.RFC3339))
}

// Sliding returns the window scanned by the scheduled pass.
func Sliding(now time.Time, windowHours, bufferMinutes int) Window {
	lookback := time.Duration(windowHours*60+bufferMinutes) * time.Minute
	return Window{Start: now.Add(-lookback), End: now.Add(forwardPad)}
}

// Lookback returns [now-d, now+pad], used for the discrete event feed.
func Lookback(now time.Time, d time.Duration) Window {
	return Window{Start: now.Add(-d), End: now.Add(forwardPad)}
}

// Around returns a window of ±delta centered on t.
func Around(t time.Time, delta time.Duration) Window {
	return Window{Start: t.Add(-delta), End: t.Add(delta)}
}

// Hours converts configured hour steps into durations.
func Hours(steps []int) []time.Duration {
	out := make([]time.Duration, 0, len(steps))
	for _, h := range steps {
		out = append(out, time.Duration(h)*time.Hour)
	}
	return out
}
