package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/staffbook/libs/db"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/storage"
)

type Store struct {
	reader
	pool   *db.Pool
	outbox *outbox.Repository
}

var _ storage.Store = (*Store)(nil)

func New(pool *db.Pool) *Store {
	return &Store{
		reader: reader{q: pool},
		pool:   pool,
		outbox: outbox.NewRepository(pool),
	}
}

// Outbox exposes the event repository for the publisher.
func (s *Store) Outbox() *outbox.Repository {
	return s.outbox
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	pgTx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &tx{reader: reader{q: pgTx}, tx: pgTx, outbox: s.outbox}, nil
}

func (s *Store) CreateDepartment(ctx context.Context, d *model.Department) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO departments (id, name) VALUES ($1, $2)`, d.ID, d.Name)
	return catalogErr(err, "department", d.ID)
}

func (s *Store) CreateService(ctx context.Context, svc *model.Service) error {
	if svc.ID == "" {
		svc.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO services (id, name, duration_minutes, price, department_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, svc.ID, svc.Name, svc.DurationMinutes, svc.Price, svc.DepartmentID, svc.IsActive)
	return catalogErr(err, "service", svc.ID)
}

func (s *Store) CreateCollaborator(ctx context.Context, c *model.Collaborator) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return pgx.BeginFunc(ctx, s.pool, func(t pgx.Tx) error {
		if _, err := t.Exec(ctx, `INSERT INTO collaborators (id, name, is_active) VALUES ($1, $2, $3)`, c.ID, c.Name, c.IsActive); err != nil {
			return catalogErr(err, "collaborator", c.ID)
		}
		for _, dep := range c.DepartmentIDs {
			if _, err := t.Exec(ctx, `
				INSERT INTO collaborator_departments (collaborator_id, department_id)
				VALUES ($1, $2)
				ON CONFLICT DO NOTHING
			`, c.ID, dep); err != nil {
				return catalogErr(err, "department", dep)
			}
		}
		return nil
	})
}

// UpsertBusinessHours replaces the row and its slots for one (collaborator, weekday).
func (s *Store) UpsertBusinessHours(ctx context.Context, bh model.BusinessHours) error {
	return pgx.BeginFunc(ctx, s.pool, func(t pgx.Tx) error {
		if _, err := t.Exec(ctx, `
			INSERT INTO business_hours (collaborator_id, day_of_week, is_enabled, is_split_shift)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (collaborator_id, day_of_week)
			DO UPDATE SET is_enabled = EXCLUDED.is_enabled, is_split_shift = EXCLUDED.is_split_shift
		`, bh.CollaboratorID, bh.DayOfWeek, bh.IsEnabled, bh.IsSplitShift); err != nil {
			return catalogErr(err, "collaborator", bh.CollaboratorID)
		}
		if _, err := t.Exec(ctx, `
			DELETE FROM business_hour_slots WHERE collaborator_id = $1 AND day_of_week = $2
		`, bh.CollaboratorID, bh.DayOfWeek); err != nil {
			return err
		}
		for _, slot := range bh.Slots {
			if _, err := t.Exec(ctx, `
				INSERT INTO business_hour_slots (collaborator_id, day_of_week, slot_order, start_minute, end_minute)
				VALUES ($1, $2, $3, $4, $5)
			`, bh.CollaboratorID, bh.DayOfWeek, slot.SlotOrder, int(slot.Start), int(slot.End)); err != nil {
				return err
			}
		}
		return nil
	})
}

// catalogErr maps constraint failures onto storage sentinels.
func catalogErr(err error, what, id string) error {
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err):
		return fmt.Errorf("%s %s: %w", what, id, storage.ErrDuplicate)
	case db.IsForeignKeyViolation(err):
		return fmt.Errorf("%s %s: %w", what, id, storage.ErrNotFound)
	default:
		return err
	}
}

type tx struct {
	reader
	tx     pgx.Tx
	outbox *outbox.Repository
}

func (t *tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// LockCollaborator takes the row lock that serializes bookings for one collaborator.
func (t *tx) LockCollaborator(ctx context.Context, collaboratorID string) error {
	var id string
	err := t.tx.QueryRow(ctx, `SELECT id FROM collaborators WHERE id = $1 FOR UPDATE`, collaboratorID).Scan(&id)
	if err != nil {
		return notFound(err, "collaborator", collaboratorID)
	}
	return nil
}

func (t *tx) InsertAppointment(ctx context.Context, a *model.Appointment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, client_id, service_id, collaborator_id, start_time, end_time, status, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, a.ID, a.ClientID, a.ServiceID, a.CollaboratorID, a.StartTime, a.EndTime, string(a.Status), string(a.Source)).
		Scan(&a.CreatedAt, &a.UpdatedAt)
	if db.IsExclusionViolation(err) {
		return fmt.Errorf("insert appointment: %w", storage.ErrOverlap)
	}
	return err
}

func (t *tx) GetAppointmentForUpdate(ctx context.Context, id string) (model.Appointment, error) {
	return t.getAppointment(ctx, id, true)
}

func (t *tx) UpdateAppointmentStatus(ctx context.Context, id string, status model.Status, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2, updated_at = $3
		WHERE id = $1
	`, id, string(status), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("appointment %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (t *tx) AppendEvent(ctx context.Context, evt outbox.Event) error {
	return t.outbox.Insert(ctx, t.tx, evt)
}
