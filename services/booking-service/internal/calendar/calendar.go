// Package calendar turns a collaborator's weekly business hours into concrete shift windows.
package calendar

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/model"
)

var ErrInvalidHours = errors.New("invalid business hours")

// Window is a concrete [Start, End) shift on a specific date.
type Window struct {
	Start     time.Time
	End       time.Time
	SlotOrder int
}

func (w Window) Contains(start, end time.Time) bool {
	return !start.Before(w.Start) && !end.After(w.End)
}

// Weekday maps an instant to the 0 = Monday .. 6 = Sunday index in loc.
func Weekday(t time.Time, loc *time.Location) int {
	return (int(t.In(loc).Weekday()) + 6) % 7
}

// Windows returns the shift windows of bh anchored on day in loc, ordered by slot order then start.
// Disabled hours yield no windows.
func Windows(bh model.BusinessHours, day time.Time, loc *time.Location) []Window {
	if !bh.IsEnabled {
		return nil
	}
	slots := append([]model.TimeSlot(nil), bh.Slots...)
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].SlotOrder != slots[j].SlotOrder {
			return slots[i].SlotOrder < slots[j].SlotOrder
		}
		return slots[i].Start < slots[j].Start
	})

	windows := make([]Window, 0, len(slots))
	for _, s := range slots {
		start := s.Start.On(day, loc)
		end := s.End.On(day, loc)
		if !end.After(start) {
			continue
		}
		windows = append(windows, Window{Start: start, End: end, SlotOrder: s.SlotOrder})
	}
	return windows
}

// Fits reports whether [start, end) lies entirely inside one window. Spanning two shifts does not fit.
func Fits(windows []Window, start, end time.Time) bool {
	for _, w := range windows {
		if w.Contains(start, end) {
			return true
		}
	}
	return false
}

// Validate checks the structural rules for one day of business hours.
func Validate(bh model.BusinessHours) error {
	if bh.DayOfWeek < 0 || bh.DayOfWeek > 6 {
		return fmt.Errorf("%w: day_of_week %d out of range", ErrInvalidHours, bh.DayOfWeek)
	}
	if len(bh.Slots) > 2 {
		return fmt.Errorf("%w: at most two slots per day", ErrInvalidHours)
	}

	seen := map[int]bool{}
	for _, s := range bh.Slots {
		if s.SlotOrder != 1 && s.SlotOrder != 2 {
			return fmt.Errorf("%w: slot_order must be 1 or 2", ErrInvalidHours)
		}
		if seen[s.SlotOrder] {
			return fmt.Errorf("%w: duplicate slot_order %d", ErrInvalidHours, s.SlotOrder)
		}
		seen[s.SlotOrder] = true
		if !s.Start.Valid() || !s.End.Valid() || s.End <= s.Start {
			return fmt.Errorf("%w: slot %d must end after it starts", ErrInvalidHours, s.SlotOrder)
		}
	}

	if !bh.IsEnabled {
		return nil
	}
	if bh.IsSplitShift {
		if len(bh.Slots) != 2 {
			return fmt.Errorf("%w: split shift needs exactly two slots", ErrInvalidHours)
		}
		first, second := bh.Slots[0], bh.Slots[1]
		if first.SlotOrder == 2 {
			first, second = second, first
		}
		if second.Start < first.End {
			return fmt.Errorf("%w: second shift must start after the first ends", ErrInvalidHours)
		}
		return nil
	}
	if len(bh.Slots) != 1 {
		return fmt.Errorf("%w: a continuous day needs exactly one slot", ErrInvalidHours)
	}
	return nil
}

// DefaultWeek is Monday to Friday 09:00-17:00, weekends off.
func DefaultWeek(collaboratorID string) []model.BusinessHours {
	week := make([]model.BusinessHours, 0, 7)
	for d := 0; d < 7; d++ {
		bh := model.BusinessHours{CollaboratorID: collaboratorID, DayOfWeek: d, IsEnabled: d < 5}
		if bh.IsEnabled {
			bh.Slots = []model.TimeSlot{{Start: model.NewClock(9, 0), End: model.NewClock(17, 0), SlotOrder: 1}}
		}
		week = append(week, bh)
	}
	return week
}
