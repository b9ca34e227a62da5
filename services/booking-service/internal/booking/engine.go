package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	otelx "github.com/md-rashed-zaman/staffbook/libs/otel"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/eligibility"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/slotcache"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/storage"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

const (
	reasonMissingFields   = "service_id and start_time are required"
	reasonEmptyInterval   = "end_time must be after start_time"
	reasonNobodyEligible  = "no active collaborator can perform this service"
	reasonNotEligible     = "collaborator cannot perform this service"
	reasonNobodyAvailable = "no eligible collaborator is available at the requested time"
	reasonPersistence     = "could not save the appointment"
)

type Config struct {
	Location     *time.Location
	Granularity  time.Duration
	DisplayGap   time.Duration
	DisplayLimit int
	Now          func() time.Time
}

func (c *Config) defaults() {
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.Granularity <= 0 {
		c.Granularity = 15 * time.Minute
	}
	if c.DisplayGap <= 0 {
		c.DisplayGap = 2 * time.Hour
	}
	if c.DisplayLimit <= 0 {
		c.DisplayLimit = 2
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Engine computes availability and books appointments. It keeps no scheduling state of its own;
// the store is the only shared mutable resource.
type Engine struct {
	store     storage.Store
	resolver  *eligibility.Resolver
	validator *Validator
	cache     slotcache.Cache
	cfg       Config
	logger    *slog.Logger
	tracer    trace.Tracer
}

func NewEngine(store storage.Store, cache slotcache.Cache, logger *slog.Logger, cfg Config) *Engine {
	cfg.defaults()
	if cache == nil {
		cache = slotcache.Noop{}
	}
	return &Engine{
		store:     store,
		resolver:  eligibility.NewResolver(store),
		validator: NewValidator(cfg.Location, cfg.Now),
		cache:     cache,
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer("staffbook/booking"),
	}
}

func (e *Engine) Location() *time.Location {
	return e.cfg.Location
}

func (e *Engine) Granularity() time.Duration {
	return e.cfg.Granularity
}

// ListAvailableSlots returns every bookable candidate on date for the service, merged across
// eligible collaborators (or just collaboratorID when set) and sorted by start then collaborator.
// The result is advisory: bookings re-validate inside their own transaction.
func (e *Engine) ListAvailableSlots(ctx context.Context, date time.Time, serviceID, collaboratorID string) (_ []availability.Candidate, err error) {
	ctx, span := e.tracer.Start(ctx, "booking.ListAvailableSlots", trace.WithAttributes(
		attribute.String("service_id", serviceID),
		attribute.String("collaborator_id", collaboratorID),
	))
	defer func() { otelx.EndSpan(span, err) }()

	day := e.localDay(date)
	key := slotcache.Key{Date: day.Format(DateLayout), ServiceID: serviceID, CollaboratorID: collaboratorID}
	now := e.cfg.Now()
	cached, ticket, ok := e.cache.Get(ctx, key)
	if ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return future(cached, now), nil
	}

	svc, eligible, err := e.resolver.Eligible(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if collaboratorID != "" {
		c, ok := eligibility.Find(eligible, collaboratorID)
		if !ok {
			return nil, nil
		}
		eligible = []model.Collaborator{c}
	}

	var out []availability.Candidate
	for _, c := range eligible {
		cs, err := e.collaboratorSlots(ctx, c.ID, day, svc.Duration(), now)
		if err != nil {
			return nil, err
		}
		out = append(out, cs...)
	}
	availability.SortCandidates(out)
	e.cache.Set(ctx, ticket, out)
	return out, nil
}

func (e *Engine) collaboratorSlots(ctx context.Context, collaboratorID string, day time.Time, duration time.Duration, now time.Time) ([]availability.Candidate, error) {
	snap, err := e.validator.LoadDay(ctx, e.store, collaboratorID, day)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", collaboratorID, err)
	}
	var out []availability.Candidate
	for _, w := range snap.Windows {
		for _, start := range availability.AvailableSlots(w.Start, w.End, duration, e.cfg.Granularity, snap.Busy, now) {
			end := start.Add(duration)
			if !Evaluate(snap, start, end, now).OK {
				continue
			}
			out = append(out, availability.Candidate{Start: start, End: end, CollaboratorID: collaboratorID})
		}
	}
	return out, nil
}

// SuggestSlots is ListAvailableSlots narrowed by the spacing selector for display.
func (e *Engine) SuggestSlots(ctx context.Context, date time.Time, serviceID, collaboratorID string) ([]availability.Candidate, error) {
	all, err := e.ListAvailableSlots(ctx, date, serviceID, collaboratorID)
	if err != nil {
		return nil, err
	}
	return availability.Spread(all, e.cfg.DisplayGap, e.cfg.DisplayLimit), nil
}

type Request struct {
	ClientID  *string
	ServiceID string
	// CollaboratorID is optional; empty means first-fit over eligible collaborators.
	CollaboratorID string
	Start          time.Time
	// End defaults to Start plus the service duration.
	End    time.Time
	Source model.Source
}

// BookAppointment validates and persists one appointment. It never returns a Go error: every
// failure is folded into one of the five outcomes.
func (e *Engine) BookAppointment(ctx context.Context, req Request) (res Result) {
	ctx, span := e.tracer.Start(ctx, "booking.BookAppointment", trace.WithAttributes(
		attribute.String("service_id", req.ServiceID),
		attribute.String("collaborator_id", req.CollaboratorID),
	))
	defer func() {
		span.SetAttributes(attribute.String("outcome", string(res.Outcome)))
		span.End()
		e.logOutcome(ctx, req, res)
	}()

	if req.ServiceID == "" || req.Start.IsZero() {
		return result(OutcomeMissingData, reasonMissingFields)
	}
	if req.Source == "" {
		req.Source = model.SourceAPI
	}

	svc, eligible, err := e.resolver.Eligible(ctx, req.ServiceID)
	if errors.Is(err, eligibility.ErrServiceUnavailable) {
		return result(OutcomeNoCollaborator, err.Error())
	}
	if err != nil {
		return e.fault(span, "resolve eligibility", err)
	}

	start := req.Start
	end := req.End
	if end.IsZero() {
		end = start.Add(svc.Duration())
	}
	if !end.After(start) {
		return result(OutcomeMissingData, reasonEmptyInterval)
	}
	if len(eligible) == 0 {
		return result(OutcomeNoCollaborator, reasonNobodyEligible)
	}
	if !start.After(e.cfg.Now()) {
		return result(OutcomeConflict, ReasonInPast)
	}

	chosen, res, ok := e.choose(ctx, span, eligible, req.CollaboratorID, start, end)
	if !ok {
		return res
	}
	return e.commit(ctx, span, svc, chosen, req, start, end)
}

// choose applies the validator outside the transaction: to the named collaborator, or first-fit
// in id order.
func (e *Engine) choose(ctx context.Context, span trace.Span, eligible []model.Collaborator, named string, start, end time.Time) (model.Collaborator, Result, bool) {
	if named != "" {
		c, ok := eligibility.Find(eligible, named)
		if !ok {
			return model.Collaborator{}, result(OutcomeNoCollaborator, reasonNotEligible), false
		}
		v, err := e.validator.Check(ctx, e.store, c.ID, start, end)
		if err != nil {
			return model.Collaborator{}, e.fault(span, "validate", err), false
		}
		if !v.OK {
			return model.Collaborator{}, result(outcomeFor(v), v.Reason), false
		}
		return c, Result{}, true
	}

	for _, c := range eligible {
		v, err := e.validator.Check(ctx, e.store, c.ID, start, end)
		if err != nil {
			return model.Collaborator{}, e.fault(span, "validate", err), false
		}
		if v.OK {
			return c, Result{}, true
		}
	}
	return model.Collaborator{}, result(OutcomeNoCollaborator, reasonNobodyAvailable), false
}

// commit locks the collaborator, re-validates and inserts within one transaction.
func (e *Engine) commit(ctx context.Context, span trace.Span, svc model.Service, c model.Collaborator, req Request, start, end time.Time) Result {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return e.fault(span, "begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.LockCollaborator(ctx, c.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return result(OutcomeNoCollaborator, ReasonCollaboratorUnavailable)
		}
		return e.fault(span, "lock collaborator", err)
	}

	v, err := e.validator.Check(ctx, tx, c.ID, start, end)
	if err != nil {
		return e.fault(span, "revalidate", err)
	}
	if !v.OK {
		return Result{Outcome: outcomeFor(v), CollaboratorID: c.ID, Reason: v.Reason}
	}

	appt := &model.Appointment{
		ClientID:       req.ClientID,
		ServiceID:      svc.ID,
		CollaboratorID: c.ID,
		StartTime:      start,
		EndTime:        end,
		Status:         model.StatusScheduled,
		Source:         req.Source,
	}
	if err := tx.InsertAppointment(ctx, appt); err != nil {
		if errors.Is(err, storage.ErrOverlap) {
			return Result{Outcome: OutcomeConflict, CollaboratorID: c.ID, Reason: ReasonOverlap}
		}
		return e.fault(span, "insert appointment", err)
	}

	evt, err := outbox.NewEvent(ctx, uuid.NewString(), outbox.AggregateAppointment, appt.ID, outbox.EventAppointmentBooked, outbox.AppointmentBooked{
		AppointmentID:  appt.ID,
		ClientID:       appt.ClientID,
		ServiceID:      appt.ServiceID,
		CollaboratorID: appt.CollaboratorID,
		StartTime:      appt.StartTime,
		EndTime:        appt.EndTime,
		Status:         string(appt.Status),
		Source:         string(appt.Source),
	})
	if err != nil {
		return e.fault(span, "encode event", err)
	}
	if err := tx.AppendEvent(ctx, evt); err != nil {
		return e.fault(span, "append event", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return e.fault(span, "commit", err)
	}

	e.cache.Invalidate(ctx, e.businessDate(start))
	return Result{Outcome: OutcomeConfirmed, AppointmentID: appt.ID, CollaboratorID: c.ID}
}

func (e *Engine) fault(span trace.Span, step string, err error) Result {
	err = fmt.Errorf("%s: %w", step, err)
	span.RecordError(err)
	return Result{Outcome: OutcomeError, Reason: reasonPersistence, cause: err}
}

func (e *Engine) logOutcome(ctx context.Context, req Request, res Result) {
	attrs := []any{
		"outcome", res.Outcome,
		"service_id", req.ServiceID,
		"collaborator_id", res.CollaboratorID,
		"start_time", req.Start,
		"source", req.Source,
	}
	if res.AppointmentID != "" {
		attrs = append(attrs, "appointment_id", res.AppointmentID)
	}
	if res.Outcome == OutcomeError {
		e.logger.ErrorContext(ctx, "booking failed", append(attrs, "err", res.cause)...)
		return
	}
	if res.Reason != "" {
		attrs = append(attrs, "reason", res.Reason)
	}
	e.logger.InfoContext(ctx, "booking outcome", attrs...)
}

// localDay is midnight of t's calendar date, read in t's own location, anchored in the business zone.
func (e *Engine) localDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, e.cfg.Location)
}

// businessDate is the YYYY-MM-DD of instant t in the business zone.
func (e *Engine) businessDate(t time.Time) string {
	return t.In(e.cfg.Location).Format(DateLayout)
}

func future(cs []availability.Candidate, now time.Time) []availability.Candidate {
	out := make([]availability.Candidate, 0, len(cs))
	for _, c := range cs {
		if c.Start.After(now) {
			out = append(out, c)
		}
	}
	return out
}
