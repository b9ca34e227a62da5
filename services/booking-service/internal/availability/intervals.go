package availability

import (
	"sort"
	"time"
)

type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps uses half-open semantics: touching boundaries do not overlap.
func (i Interval) Overlaps(start, end time.Time) bool {
	return i.Start.Before(end) && start.Before(i.End)
}

// FreeIntervals subtracts busy from the window [windowStart, windowEnd) in one pass.
// busy may be unsorted; intervals that do not intersect the window are ignored.
func FreeIntervals(windowStart, windowEnd time.Time, busy []Interval) []Interval {
	if !windowEnd.After(windowStart) {
		return nil
	}

	sorted := make([]Interval, 0, len(busy))
	for _, b := range busy {
		if b.Overlaps(windowStart, windowEnd) {
			sorted = append(sorted, b)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	var free []Interval
	cursor := windowStart
	for _, b := range sorted {
		if cursor.Before(b.Start) {
			free = append(free, Interval{Start: cursor, End: b.Start})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}
	if cursor.Before(windowEnd) {
		free = append(free, Interval{Start: cursor, End: windowEnd})
	}
	return free
}
