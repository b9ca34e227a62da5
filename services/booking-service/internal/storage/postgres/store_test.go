package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/staffbook/libs/db"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/storage"
)

// Runs against a disposable database named by STAFFBOOK_TEST_DATABASE_URL.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("STAFFBOOK_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("STAFFBOOK_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.Open(ctx, url, db.PoolOptions{})
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := Migrate(ctx, pool); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	// Second run must be a no-op.
	if err := Migrate(ctx, pool); err != nil {
		t.Fatalf("Migrate twice: %v", err)
	}
	return New(pool)
}

func TestExclusionConstraint(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	dep := &model.Department{Name: "dep-" + uuid.NewString()}
	if err := s.CreateDepartment(ctx, dep); err != nil {
		t.Fatalf("CreateDepartment: %v", err)
	}
	svc := &model.Service{Name: "Cut", DurationMinutes: 30, DepartmentID: dep.ID, IsActive: true}
	if err := s.CreateService(ctx, svc); err != nil {
		t.Fatalf("CreateService: %v", err)
	}
	c := &model.Collaborator{Name: "Ana", IsActive: true, DepartmentIDs: []string{dep.ID}}
	if err := s.CreateCollaborator(ctx, c); err != nil {
		t.Fatalf("CreateCollaborator: %v", err)
	}

	start := time.Now().Add(48 * time.Hour).Truncate(time.Hour).UTC()
	insert := func(st time.Time) error {
		tx, err := s.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()
		if err := tx.LockCollaborator(ctx, c.ID); err != nil {
			return err
		}
		a := &model.Appointment{ServiceID: svc.ID, CollaboratorID: c.ID, StartTime: st, EndTime: st.Add(30 * time.Minute),
			Status: model.StatusScheduled, Source: model.SourceAPI}
		if err := tx.InsertAppointment(ctx, a); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}

	if err := insert(start); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := insert(start.Add(30 * time.Minute)); err != nil {
		t.Fatalf("adjacent insert: %v", err)
	}
	if err := insert(start.Add(15 * time.Minute)); !errors.Is(err, storage.ErrOverlap) {
		t.Fatalf("expected ErrOverlap, got %v", err)
	}

	got, err := s.ListActiveAppointments(ctx, c.ID, start, start.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("ListActiveAppointments: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 appointments, got %d", len(got))
	}

	eligible, err := s.ListCollaboratorsByDepartment(ctx, dep.ID)
	if err != nil || len(eligible) != 1 || eligible[0].ID != c.ID {
		t.Fatalf("unexpected collaborators %+v (%v)", eligible, err)
	}
}

func TestBusinessHoursRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	c := &model.Collaborator{Name: "Luis", IsActive: true}
	if err := s.CreateCollaborator(ctx, c); err != nil {
		t.Fatalf("CreateCollaborator: %v", err)
	}
	bh := model.BusinessHours{
		CollaboratorID: c.ID,
		DayOfWeek:      2,
		IsEnabled:      true,
		IsSplitShift:   true,
		Slots: []model.TimeSlot{
			{Start: model.NewClock(16, 0), End: model.NewClock(20, 0), SlotOrder: 2},
			{Start: model.NewClock(9, 0), End: model.NewClock(14, 0), SlotOrder: 1},
		},
	}
	if err := s.UpsertBusinessHours(ctx, bh); err != nil {
		t.Fatalf("UpsertBusinessHours: %v", err)
	}
	got, found, err := s.GetBusinessHours(ctx, c.ID, 2)
	if err != nil || !found {
		t.Fatalf("GetBusinessHours: found=%v err=%v", found, err)
	}
	if len(got.Slots) != 2 || got.Slots[0].SlotOrder != 1 || got.Slots[0].Start != model.NewClock(9, 0) {
		t.Fatalf("unexpected slots %+v", got.Slots)
	}
	if _, found, _ := s.GetBusinessHours(ctx, c.ID, 6); found {
		t.Fatal("expected no row for Sunday")
	}
	if _, err := s.GetCollaborator(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
