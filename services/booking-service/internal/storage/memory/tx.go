package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/storage"
)

var errTxDone = errors.New("transaction already finished")

type tx struct {
	store  *Store
	d      *data
	staged []storedEvent
	done   bool
}

func (t *tx) finish() error {
	if t.done {
		return errTxDone
	}
	t.done = true
	t.store.mu.Unlock()
	<-t.store.txGate
	return nil
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return errTxDone
	}
	t.store.d.appointments = t.d.appointments
	t.store.d.events = append(t.store.d.events, t.staged...)
	t.store.d.nextEventID = t.d.nextEventID
	return t.finish()
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	return t.finish()
}

func (t *tx) LockCollaborator(ctx context.Context, collaboratorID string) error {
	// The store-wide lock is already held.
	_, err := t.d.getCollaborator(collaboratorID)
	return err
}

func (t *tx) InsertAppointment(ctx context.Context, a *model.Appointment) error {
	if _, err := t.d.getCollaborator(a.CollaboratorID); err != nil {
		return err
	}
	if a.Status.IsActive() {
		for _, other := range t.d.appointments {
			if other.CollaboratorID == a.CollaboratorID && other.Blocks() && other.Overlaps(a.StartTime, a.EndTime) {
				return fmt.Errorf("appointment %s: %w", other.ID, storage.ErrOverlap)
			}
		}
	}
	now := t.store.now()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}
	t.d.appointments[a.ID] = *a
	return nil
}

func (t *tx) GetAppointmentForUpdate(ctx context.Context, id string) (model.Appointment, error) {
	return t.d.getAppointment(id)
}

func (t *tx) UpdateAppointmentStatus(ctx context.Context, id string, status model.Status, at time.Time) error {
	a, err := t.d.getAppointment(id)
	if err != nil {
		return err
	}
	a.Status = status
	a.UpdatedAt = at
	t.d.appointments[id] = a
	return nil
}

func (t *tx) AppendEvent(ctx context.Context, evt outbox.Event) error {
	t.d.nextEventID++
	evt.ID = t.d.nextEventID
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = t.store.now()
	}
	t.staged = append(t.staged, storedEvent{evt: evt})
	return nil
}

func (t *tx) GetService(ctx context.Context, id string) (model.Service, error) {
	return t.d.getService(id)
}

func (t *tx) GetCollaborator(ctx context.Context, id string) (model.Collaborator, error) {
	return t.d.getCollaborator(id)
}

func (t *tx) ListCollaboratorsByDepartment(ctx context.Context, departmentID string) ([]model.Collaborator, error) {
	return t.d.collaboratorsIn(departmentID), nil
}

func (t *tx) GetBusinessHours(ctx context.Context, collaboratorID string, day int) (model.BusinessHours, bool, error) {
	bh, ok := t.d.businessHours(collaboratorID, day)
	return bh, ok, nil
}

func (t *tx) ListActiveAppointments(ctx context.Context, collaboratorID string, from, to time.Time) ([]model.Appointment, error) {
	return t.d.activeAppointments(collaboratorID, from, to), nil
}

func (t *tx) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	return t.d.getAppointment(id)
}

func (t *tx) ListAppointments(ctx context.Context, f storage.AppointmentFilter) ([]model.Appointment, error) {
	return t.d.listAppointments(f), nil
}

func (t *tx) CountByStatus(ctx context.Context, from, to time.Time) (map[model.Status]int, error) {
	return t.d.countByStatus(from, to), nil
}
