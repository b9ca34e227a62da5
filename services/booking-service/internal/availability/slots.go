package availability

import (
	"sort"
	"time"
)

// Starts walks each free interval from its beginning in steps of step and returns every start
// where a booking of duration still fits and start is strictly after now.
func Starts(free []Interval, duration, step time.Duration, now time.Time) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}
	var starts []time.Time
	for _, f := range free {
		for t := f.Start; !t.Add(duration).After(f.End); t = t.Add(step) {
			if t.After(now) {
				starts = append(starts, t)
			}
		}
	}
	return starts
}

// AvailableSlots returns the step-aligned starts inside [windowStart, windowEnd) whose
// [start, start+duration) falls entirely within a gap between busy intervals.
//
// All times are expected to be in the same location (timezone).
func AvailableSlots(windowStart, windowEnd time.Time, duration, step time.Duration, busy []Interval, now time.Time) []time.Time {
	return Starts(FreeIntervals(windowStart, windowEnd, busy), duration, step, now)
}

// Candidate is one bookable start for one collaborator.
type Candidate struct {
	Start          time.Time
	End            time.Time
	CollaboratorID string
}

// SortCandidates orders by start ascending, ties broken by collaborator id.
func SortCandidates(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if !cs[i].Start.Equal(cs[j].Start) {
			return cs[i].Start.Before(cs[j].Start)
		}
		return cs[i].CollaboratorID < cs[j].CollaboratorID
	})
}
