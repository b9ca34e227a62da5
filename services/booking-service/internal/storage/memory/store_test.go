package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/storage"
)

func seed(t *testing.T) (*Store, model.Collaborator) {
	t.Helper()
	ctx := context.Background()
	s := New()
	dep := &model.Department{Name: "Hair"}
	if err := s.CreateDepartment(ctx, dep); err != nil {
		t.Fatalf("CreateDepartment: %v", err)
	}
	c := &model.Collaborator{ID: "c1", Name: "Ana", IsActive: true, DepartmentIDs: []string{dep.ID}}
	if err := s.CreateCollaborator(ctx, c); err != nil {
		t.Fatalf("CreateCollaborator: %v", err)
	}
	return s, *c
}

func appt(collab string, start time.Time, d time.Duration, status model.Status) *model.Appointment {
	return &model.Appointment{
		ServiceID:      "s1",
		CollaboratorID: collab,
		StartTime:      start,
		EndTime:        start.Add(d),
		Status:         status,
		Source:         model.SourceAPI,
	}
}

func TestInsertRejectsOverlap(t *testing.T) {
	ctx := context.Background()
	s, c := seed(t)
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := tx.InsertAppointment(ctx, appt(c.ID, start, 30*time.Minute, model.StatusScheduled)); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	// Adjacent is fine.
	if err := tx.InsertAppointment(ctx, appt(c.ID, start.Add(30*time.Minute), 30*time.Minute, model.StatusScheduled)); err != nil {
		t.Fatalf("adjacent insert: %v", err)
	}
	err = tx.InsertAppointment(ctx, appt(c.ID, start.Add(15*time.Minute), 30*time.Minute, model.StatusScheduled))
	if !errors.Is(err, storage.ErrOverlap) {
		t.Fatalf("expected ErrOverlap, got %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := s.ListActiveAppointments(ctx, c.ID, start, start.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("ListActiveAppointments: %v", err)
	}
	if len(got) != 2 || !got[0].StartTime.Equal(start) {
		t.Fatalf("expected 2 sorted appointments, got %+v", got)
	}
}

func TestCancelledDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	s, c := seed(t)
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	tx, _ := s.Begin(ctx)
	first := appt(c.ID, start, time.Hour, model.StatusScheduled)
	if err := tx.InsertAppointment(ctx, first); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tx.UpdateAppointmentStatus(ctx, first.ID, model.StatusCancelled, start); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := tx.InsertAppointment(ctx, appt(c.ID, start, time.Hour, model.StatusScheduled)); err != nil {
		t.Fatalf("insert over cancelled: %v", err)
	}
	_ = tx.Commit(ctx)
}

func TestRollbackDiscards(t *testing.T) {
	ctx := context.Background()
	s, c := seed(t)
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	tx, _ := s.Begin(ctx)
	if err := tx.InsertAppointment(ctx, appt(c.ID, start, time.Hour, model.StatusScheduled)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tx.AppendEvent(ctx, outbox.Event{EventID: "e1", EventType: outbox.EventAppointmentBooked}); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("second Rollback should be a no-op: %v", err)
	}

	got, _ := s.ListActiveAppointments(ctx, c.ID, start, start.Add(time.Hour))
	if len(got) != 0 {
		t.Fatalf("rolled back insert is visible: %+v", got)
	}
	if len(s.Events()) != 0 {
		t.Fatal("rolled back event is visible")
	}
}

func TestListAppointmentsFilterAndPage(t *testing.T) {
	ctx := context.Background()
	s, c := seed(t)
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	tx, _ := s.Begin(ctx)
	for i := 0; i < 4; i++ {
		st := model.StatusScheduled
		if i == 3 {
			st = model.StatusCompleted
		}
		if err := tx.InsertAppointment(ctx, appt(c.ID, base.Add(time.Duration(i)*time.Hour), 30*time.Minute, st)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	_ = tx.Commit(ctx)

	got, _ := s.ListAppointments(ctx, storage.AppointmentFilter{Statuses: []model.Status{model.StatusScheduled}, Limit: 2, Offset: 1})
	if len(got) != 2 || !got[0].StartTime.Equal(base.Add(time.Hour)) {
		t.Fatalf("unexpected page %+v", got)
	}

	counts, _ := s.CountByStatus(ctx, base, base.Add(24*time.Hour))
	if counts[model.StatusScheduled] != 3 || counts[model.StatusCompleted] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestPublishBatchMarksPublished(t *testing.T) {
	ctx := context.Background()
	s, _ := seed(t)

	tx, _ := s.Begin(ctx)
	for _, id := range []string{"e1", "e2", "e3"} {
		_ = tx.AppendEvent(ctx, outbox.Event{EventID: id, EventType: outbox.EventAppointmentBooked})
	}
	_ = tx.Commit(ctx)

	failing := errors.New("broker down")
	if _, err := s.PublishBatch(ctx, 2, func(context.Context, []outbox.Event) error { return failing }); !errors.Is(err, failing) {
		t.Fatalf("expected broker error, got %v", err)
	}

	var seen []string
	for {
		n, err := s.PublishBatch(ctx, 2, func(_ context.Context, evs []outbox.Event) error {
			for _, e := range evs {
				seen = append(seen, e.EventID)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("PublishBatch: %v", err)
		}
		if n == 0 {
			break
		}
	}
	if len(seen) != 3 || seen[0] != "e1" || seen[2] != "e3" {
		t.Fatalf("expected each event exactly once in order, got %v", seen)
	}
}

func TestPublishBatchRunsWithoutStoreLock(t *testing.T) {
	ctx := context.Background()
	s, c := seed(t)

	tx, _ := s.Begin(ctx)
	_ = tx.AppendEvent(ctx, outbox.Event{EventID: "e1", EventType: outbox.EventAppointmentBooked})
	_ = tx.Commit(ctx)

	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	n, err := s.PublishBatch(ctx, 10, func(context.Context, []outbox.Event) error {
		// A booking commits while the broker call is in flight.
		bctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		tx, err := s.Begin(bctx)
		if err != nil {
			return err
		}
		if err := tx.InsertAppointment(bctx, appt(c.ID, start, 30*time.Minute, model.StatusScheduled)); err != nil {
			return err
		}
		if err := tx.AppendEvent(bctx, outbox.Event{EventID: "e2", EventType: outbox.EventAppointmentBooked}); err != nil {
			return err
		}
		return tx.Commit(bctx)
	})
	if err != nil || n != 1 {
		t.Fatalf("expected 1 published, got %d (%v)", n, err)
	}

	if got := s.Events(); len(got) != 2 || got[1].EventID != "e2" {
		t.Fatalf("event committed during publish was lost: %+v", got)
	}
	var seen []string
	n, err = s.PublishBatch(ctx, 10, func(_ context.Context, evs []outbox.Event) error {
		for _, e := range evs {
			seen = append(seen, e.EventID)
		}
		return nil
	})
	if err != nil || n != 1 || seen[0] != "e2" {
		t.Fatalf("expected only e2 pending, got %v (%v)", seen, err)
	}
}

func TestBeginGivesUpWhenContextDone(t *testing.T) {
	ctx := context.Background()
	s, _ := seed(t)

	open, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	wctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := s.Begin(wctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded while a tx is open, got %v", err)
	}

	_ = open.Rollback(ctx)
	next, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin after rollback: %v", err)
	}
	_ = next.Rollback(ctx)
}

func TestCatalogReferentialChecks(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.CreateService(ctx, &model.Service{Name: "Cut", DepartmentID: "missing", DurationMinutes: 30}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.UpsertBusinessHours(ctx, model.BusinessHours{CollaboratorID: "nobody"}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
