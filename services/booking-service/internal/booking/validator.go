package booking

import (
	"context"
	"errors"
	"time"

	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/storage"
)

// Rule identifies which check rejected an interval. Rules run in declaration order.
type Rule int

const (
	RuleNone Rule = iota
	RuleCollaborator
	RuleInPast
	RuleOutsideHours
	RuleOverlap
)

const (
	ReasonCollaboratorUnavailable = "collaborator does not exist or is inactive"
	ReasonInPast                  = "requested time is in the past"
	ReasonOutsideHours            = "requested time is outside the collaborator's business hours"
	ReasonOverlap                 = "requested time overlaps an existing appointment"
)

type Verdict struct {
	OK     bool
	Rule   Rule
	Reason string
}

var valid = Verdict{OK: true}

func reject(rule Rule, reason string) Verdict {
	return Verdict{Rule: rule, Reason: reason}
}

// Snapshot is what the rules need to judge any interval of one collaborator on one business day.
type Snapshot struct {
	// Collaborator is nil when it does not exist.
	Collaborator *model.Collaborator
	Windows      []calendar.Window
	Busy         []availability.Interval
}

// Evaluate applies the four rules to [start, end) and stops at the first failure.
func Evaluate(s Snapshot, start, end, now time.Time) Verdict {
	if s.Collaborator == nil || !s.Collaborator.IsActive {
		return reject(RuleCollaborator, ReasonCollaboratorUnavailable)
	}
	if !start.After(now) {
		return reject(RuleInPast, ReasonInPast)
	}
	if !end.After(start) || !calendar.Fits(s.Windows, start, end) {
		return reject(RuleOutsideHours, ReasonOutsideHours)
	}
	for _, b := range s.Busy {
		if b.Overlaps(start, end) {
			return reject(RuleOverlap, ReasonOverlap)
		}
	}
	return valid
}

// Validator loads snapshots in the business zone and judges intervals against them.
type Validator struct {
	loc *time.Location
	now func() time.Time
}

func NewValidator(loc *time.Location, now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{loc: loc, now: now}
}

// Check judges [start, end) for collaboratorID using r, which may be a transaction.
// Datastore failures come back as error, never as a Verdict.
func (v *Validator) Check(ctx context.Context, r storage.Reader, collaboratorID string, start, end time.Time) (Verdict, error) {
	snap, err := v.Load(ctx, r, collaboratorID, start, end)
	if err != nil {
		return Verdict{}, err
	}
	return Evaluate(snap, start, end, v.now()), nil
}

// LoadDay loads the snapshot for the business day containing day.
func (v *Validator) LoadDay(ctx context.Context, r storage.Reader, collaboratorID string, day time.Time) (Snapshot, error) {
	return v.Load(ctx, r, collaboratorID, v.startOfDay(day), v.startOfDay(day))
}

// Load builds the snapshot for the business day of start. Busy time is fetched for the whole
// day, widened to cover [start, end) when that runs past midnight.
func (v *Validator) Load(ctx context.Context, r storage.Reader, collaboratorID string, start, end time.Time) (Snapshot, error) {
	c, err := r.GetCollaborator(ctx, collaboratorID)
	if errors.Is(err, storage.ErrNotFound) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Collaborator: &c}
	if !c.IsActive {
		return snap, nil
	}

	dayStart := v.startOfDay(start)
	dayEnd := dayStart.AddDate(0, 0, 1)
	bh, found, err := r.GetBusinessHours(ctx, collaboratorID, calendar.Weekday(dayStart, v.loc))
	if err != nil {
		return Snapshot{}, err
	}
	if found {
		snap.Windows = calendar.Windows(bh, dayStart, v.loc)
	}

	from, to := dayStart, dayEnd
	if end.After(to) {
		to = end
	}
	appts, err := r.ListActiveAppointments(ctx, collaboratorID, from, to)
	if err != nil {
		return Snapshot{}, err
	}
	for _, a := range appts {
		snap.Busy = append(snap.Busy, availability.Interval{Start: a.StartTime, End: a.EndTime})
	}
	return snap, nil
}

func (v *Validator) startOfDay(t time.Time) time.Time {
	y, m, d := t.In(v.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, v.loc)
}
