package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/staffbook/libs/db"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/storage"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type reader struct {
	q querier
}

const appointmentColumns = `id, client_id, service_id, collaborator_id, start_time, end_time, status, source, created_at, updated_at`

func notFound(err error, what, id string) error {
	if db.IsNoRows(err) {
		return fmt.Errorf("%s %s: %w", what, id, storage.ErrNotFound)
	}
	return err
}

func (r reader) GetService(ctx context.Context, id string) (model.Service, error) {
	var s model.Service
	err := r.q.QueryRow(ctx, `
		SELECT id, name, duration_minutes, price, department_id, is_active
		FROM services
		WHERE id = $1
	`, id).Scan(&s.ID, &s.Name, &s.DurationMinutes, &s.Price, &s.DepartmentID, &s.IsActive)
	if err != nil {
		return model.Service{}, notFound(err, "service", id)
	}
	return s, nil
}

func (r reader) GetCollaborator(ctx context.Context, id string) (model.Collaborator, error) {
	var c model.Collaborator
	err := r.q.QueryRow(ctx, `
		SELECT c.id, c.name, c.is_active,
			COALESCE(array_agg(cd.department_id ORDER BY cd.department_id) FILTER (WHERE cd.department_id IS NOT NULL), '{}')
		FROM collaborators c
		LEFT JOIN collaborator_departments cd ON cd.collaborator_id = c.id
		WHERE c.id = $1
		GROUP BY c.id
	`, id).Scan(&c.ID, &c.Name, &c.IsActive, &c.DepartmentIDs)
	if err != nil {
		return model.Collaborator{}, notFound(err, "collaborator", id)
	}
	return c, nil
}

func (r reader) ListCollaboratorsByDepartment(ctx context.Context, departmentID string) ([]model.Collaborator, error) {
	rows, err := r.q.Query(ctx, `
		SELECT c.id, c.name, c.is_active,
			array_agg(all_cd.department_id ORDER BY all_cd.department_id)
		FROM collaborators c
		JOIN collaborator_departments cd ON cd.collaborator_id = c.id AND cd.department_id = $1
		JOIN collaborator_departments all_cd ON all_cd.collaborator_id = c.id
		GROUP BY c.id
		ORDER BY c.id ASC
	`, departmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Collaborator
	for rows.Next() {
		var c model.Collaborator
		if err := rows.Scan(&c.ID, &c.Name, &c.IsActive, &c.DepartmentIDs); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r reader) GetBusinessHours(ctx context.Context, collaboratorID string, day int) (model.BusinessHours, bool, error) {
	bh := model.BusinessHours{CollaboratorID: collaboratorID, DayOfWeek: day}
	err := r.q.QueryRow(ctx, `
		SELECT is_enabled, is_split_shift
		FROM business_hours
		WHERE collaborator_id = $1 AND day_of_week = $2
	`, collaboratorID, day).Scan(&bh.IsEnabled, &bh.IsSplitShift)
	if db.IsNoRows(err) {
		return model.BusinessHours{}, false, nil
	}
	if err != nil {
		return model.BusinessHours{}, false, err
	}

	rows, err := r.q.Query(ctx, `
		SELECT slot_order, start_minute, end_minute
		FROM business_hour_slots
		WHERE collaborator_id = $1 AND day_of_week = $2
		ORDER BY slot_order ASC, start_minute ASC
	`, collaboratorID, day)
	if err != nil {
		return model.BusinessHours{}, false, err
	}
	defer rows.Close()

	for rows.Next() {
		var order, start, end int
		if err := rows.Scan(&order, &start, &end); err != nil {
			return model.BusinessHours{}, false, err
		}
		bh.Slots = append(bh.Slots, model.TimeSlot{Start: model.Clock(start), End: model.Clock(end), SlotOrder: order})
	}
	if rows.Err() != nil {
		return model.BusinessHours{}, false, rows.Err()
	}
	return bh, true, nil
}

func (r reader) ListActiveAppointments(ctx context.Context, collaboratorID string, from, to time.Time) ([]model.Appointment, error) {
	return r.queryAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE collaborator_id = $1
			AND status = ANY($2)
			AND start_time < $4
			AND end_time > $3
		ORDER BY start_time ASC, id ASC
	`, collaboratorID, statusStrings(model.ActiveStatuses()), from, to)
}

func (r reader) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	return r.getAppointment(ctx, id, false)
}

func (r reader) getAppointment(ctx context.Context, id string, forUpdate bool) (model.Appointment, error) {
	sql := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	a, err := scanAppointment(r.q.QueryRow(ctx, sql, id))
	if err != nil {
		return model.Appointment{}, notFound(err, "appointment", id)
	}
	return a, nil
}

func (r reader) ListAppointments(ctx context.Context, f storage.AppointmentFilter) ([]model.Appointment, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.CollaboratorID != "" {
		add("collaborator_id = $%d", f.CollaboratorID)
	}
	if f.ServiceID != "" {
		add("service_id = $%d", f.ServiceID)
	}
	if len(f.Statuses) > 0 {
		add("status = ANY($%d)", statusStrings(f.Statuses))
	}
	if !f.From.IsZero() {
		add("start_time >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("start_time < $%d", f.To)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = storage.DefaultListLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	sql := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit, offset)
	sql += fmt.Sprintf(` ORDER BY start_time ASC, id ASC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	return r.queryAppointments(ctx, sql, args...)
}

func (r reader) CountByStatus(ctx context.Context, from, to time.Time) (map[model.Status]int, error) {
	rows, err := r.q.Query(ctx, `
		SELECT status, count(*)
		FROM appointments
		WHERE ($1::timestamptz IS NULL OR start_time >= $1)
			AND ($2::timestamptz IS NULL OR start_time < $2)
		GROUP BY status
	`, nullTime(from), nullTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[model.Status]int{}
	for rows.Next() {
		var raw string
		var n int
		if err := rows.Scan(&raw, &n); err != nil {
			return nil, err
		}
		st, err := model.ParseStatus(raw)
		if err != nil {
			return nil, err
		}
		counts[st] = n
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return counts, nil
}

func (r reader) queryAppointments(ctx context.Context, sql string, args ...any) ([]model.Appointment, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var (
		a              model.Appointment
		status, source string
	)
	if err := row.Scan(&a.ID, &a.ClientID, &a.ServiceID, &a.CollaboratorID, &a.StartTime, &a.EndTime,
		&status, &source, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return model.Appointment{}, err
	}
	var err error
	if a.Status, err = model.ParseStatus(status); err != nil {
		return model.Appointment{}, err
	}
	if a.Source, err = model.ParseSource(source); err != nil {
		return model.Appointment{}, err
	}
	return a, nil
}

func statusStrings(ss []model.Status) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		out = append(out, string(s))
	}
	return out
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
