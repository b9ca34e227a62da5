package booking

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/slotcache"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/storage/memory"
)

// Monday 2 March 2026; "now" is the Sunday before.
var (
	monday  = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func at(h, m int) time.Time {
	return monday.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

type fixture struct {
	store  *memory.Store
	engine *Engine
	hair   model.Department
	cut    model.Service
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := memory.New()

	hair := &model.Department{ID: "hair", Name: "Hair"}
	if err := s.CreateDepartment(ctx, hair); err != nil {
		t.Fatalf("CreateDepartment: %v", err)
	}
	cut := &model.Service{ID: "cut", Name: "Cut", DurationMinutes: 30, DepartmentID: hair.ID, IsActive: true}
	if err := s.CreateService(ctx, cut); err != nil {
		t.Fatalf("CreateService: %v", err)
	}

	f := &fixture{store: s, hair: *hair, cut: *cut}
	f.engine = f.newEngine(s, nil)
	return f
}

func (f *fixture) newEngine(s storage.Store, cache slotcache.Cache) *Engine {
	return NewEngine(s, cache, discardLogger(), Config{
		Location:    time.UTC,
		Granularity: 15 * time.Minute,
		Now:         func() time.Time { return testNow },
	})
}

// addCollaborator creates an active member of hair working Monday 09:00-13:00.
func (f *fixture) addCollaborator(t *testing.T, id string) {
	t.Helper()
	f.addCollaboratorWithHours(t, id, model.BusinessHours{
		DayOfWeek: 0,
		IsEnabled: true,
		Slots:     []model.TimeSlot{{Start: model.NewClock(9, 0), End: model.NewClock(13, 0), SlotOrder: 1}},
	})
}

func (f *fixture) addCollaboratorWithHours(t *testing.T, id string, bh model.BusinessHours) {
	t.Helper()
	ctx := context.Background()
	if err := f.store.CreateCollaborator(ctx, &model.Collaborator{ID: id, Name: id, IsActive: true, DepartmentIDs: []string{f.hair.ID}}); err != nil {
		t.Fatalf("CreateCollaborator: %v", err)
	}
	bh.CollaboratorID = id
	if err := f.store.UpsertBusinessHours(ctx, bh); err != nil {
		t.Fatalf("UpsertBusinessHours: %v", err)
	}
}

func (f *fixture) book(collaboratorID string, start, end time.Time) Result {
	return f.engine.BookAppointment(context.Background(), Request{
		ServiceID:      f.cut.ID,
		CollaboratorID: collaboratorID,
		Start:          start,
		End:            end,
	})
}

func expectOutcome(t *testing.T, res Result, want Outcome) {
	t.Helper()
	if res.Outcome != want {
		t.Fatalf("expected %s, got %s (%s)", want, res.Outcome, res.Reason)
	}
}

func clocks(cs []availability.Candidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Start.Format(ClockLayout))
	}
	return out
}

// assertNoOverlap checks the global invariant over everything in the store.
func assertNoOverlap(t *testing.T, s storage.Reader) {
	t.Helper()
	all, err := s.ListAppointments(context.Background(), storage.AppointmentFilter{Limit: 1000})
	if err != nil {
		t.Fatalf("ListAppointments: %v", err)
	}
	for i, a := range all {
		for _, b := range all[i+1:] {
			if a.CollaboratorID == b.CollaboratorID && a.Blocks() && b.Blocks() && a.Overlaps(b.StartTime, b.EndTime) {
				t.Fatalf("overlapping active appointments %s and %s", a.ID, b.ID)
			}
		}
	}
}
