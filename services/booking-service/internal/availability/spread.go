package availability

import "time"

// Spread picks up to limit candidates from a start-sorted list, each at least gap after the
// previously picked one. The first candidate is always picked. Display only: the result says
// nothing about what is still bookable.
func Spread(cs []Candidate, gap time.Duration, limit int) []Candidate {
	if len(cs) == 0 || limit <= 0 {
		return nil
	}
	picked := []Candidate{cs[0]}
	last := cs[0].Start
	for _, c := range cs[1:] {
		if len(picked) >= limit {
			break
		}
		if c.Start.Sub(last) >= gap {
			picked = append(picked, c)
			last = c.Start
		}
	}
	return picked
}
