package booking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	otelx "github.com/md-rashed-zaman/staffbook/libs/otel"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/storage"
)

// Transition moves an appointment to status to. Start and end are never touched.
// Cancelling an already cancelled appointment succeeds without writing.
func (e *Engine) Transition(ctx context.Context, appointmentID string, to model.Status) (_ model.Appointment, err error) {
	ctx, span := e.tracer.Start(ctx, "booking.Transition", trace.WithAttributes(
		attribute.String("appointment_id", appointmentID),
		attribute.String("to", string(to)),
	))
	defer func() { otelx.EndSpan(span, err) }()

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := tx.GetAppointmentForUpdate(ctx, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	if appt.Status == to && to == model.StatusCancelled {
		return appt, nil
	}
	if !model.CanTransition(appt.Status, to) {
		return model.Appointment{}, fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, appt.Status, to)
	}

	from := appt.Status
	now := e.cfg.Now()
	if err := tx.UpdateAppointmentStatus(ctx, appt.ID, to, now); err != nil {
		return model.Appointment{}, err
	}
	evt, err := outbox.NewEvent(ctx, uuid.NewString(), outbox.AggregateAppointment, appt.ID, outbox.EventAppointmentStatusChanged, outbox.AppointmentStatusChanged{
		AppointmentID:  appt.ID,
		CollaboratorID: appt.CollaboratorID,
		From:           string(from),
		To:             string(to),
		ChangedAt:      now,
	})
	if err != nil {
		return model.Appointment{}, err
	}
	if err := tx.AppendEvent(ctx, evt); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}

	if from.IsActive() && !to.IsActive() {
		e.cache.Invalidate(ctx, e.businessDate(appt.StartTime))
	}
	appt.Status = to
	appt.UpdatedAt = now
	e.logger.InfoContext(ctx, "appointment status changed", "appointment_id", appt.ID, "from", from, "to", to)
	return appt, nil
}

func (e *Engine) Confirm(ctx context.Context, id string) (model.Appointment, error) {
	return e.Transition(ctx, id, model.StatusConfirmed)
}

func (e *Engine) Start(ctx context.Context, id string) (model.Appointment, error) {
	return e.Transition(ctx, id, model.StatusInProgress)
}

func (e *Engine) Complete(ctx context.Context, id string) (model.Appointment, error) {
	return e.Transition(ctx, id, model.StatusCompleted)
}

func (e *Engine) Cancel(ctx context.Context, id string) (model.Appointment, error) {
	return e.Transition(ctx, id, model.StatusCancelled)
}

func (e *Engine) NoShow(ctx context.Context, id string) (model.Appointment, error) {
	return e.Transition(ctx, id, model.StatusNoShow)
}

var ErrInvalidRange = errors.New("invalid range")

func (e *Engine) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	return e.store.GetAppointment(ctx, id)
}

func (e *Engine) ListAppointments(ctx context.Context, f storage.AppointmentFilter) ([]model.Appointment, error) {
	if !f.From.IsZero() && !f.To.IsZero() && !f.To.After(f.From) {
		return nil, fmt.Errorf("%w: to must be after from", ErrInvalidRange)
	}
	if f.Limit > 200 {
		f.Limit = 200
	}
	return e.store.ListAppointments(ctx, f)
}

type Summary struct {
	Total    int
	ByStatus map[model.Status]int
	// CompletionRate is completed over total as a percentage, rounded to two decimals.
	CompletionRate float64
}

// Summary counts appointments whose start falls in [from, to). Zero bounds are open.
func (e *Engine) Summary(ctx context.Context, from, to time.Time) (Summary, error) {
	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		return Summary{}, fmt.Errorf("%w: to must be after from", ErrInvalidRange)
	}
	counts, err := e.store.CountByStatus(ctx, from, to)
	if err != nil {
		return Summary{}, err
	}
	s := Summary{ByStatus: make(map[model.Status]int, len(model.AllStatuses))}
	for _, st := range model.AllStatuses {
		s.ByStatus[st] = counts[st]
		s.Total += counts[st]
	}
	if s.Total > 0 {
		rate := float64(s.ByStatus[model.StatusCompleted]) / float64(s.Total) * 100
		s.CompletionRate = math.Round(rate*100) / 100
	}
	return s, nil
}
