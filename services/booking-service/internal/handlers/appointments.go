package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/storage"
)

type appointmentItem struct {
	AppointmentID  string  `json:"appointment_id"`
	ClientID       *string `json:"client_id,omitempty"`
	ServiceID      string  `json:"service_id"`
	CollaboratorID string  `json:"collaborator_id"`
	StartTime      string  `json:"start_time"`
	EndTime        string  `json:"end_time"`
	Status         string  `json:"status"`
	Source         string  `json:"source"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

type listAppointmentsResponse struct {
	Appointments []appointmentItem `json:"appointments"`
	Limit        int               `json:"limit"`
	Offset       int               `json:"offset"`
}

type summaryResponse struct {
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"by_status"`
	CompletionRate float64        `json:"completion_rate"`
}

type transitionRequest struct {
	AppointmentID string `json:"appointment_id" validate:"required,max=64"`
}

func (h *BookingHandler) toItem(a model.Appointment) appointmentItem {
	loc := h.engine.Location()
	return appointmentItem{
		AppointmentID:  a.ID,
		ClientID:       a.ClientID,
		ServiceID:      a.ServiceID,
		CollaboratorID: a.CollaboratorID,
		StartTime:      formatTime(a.StartTime, loc),
		EndTime:        formatTime(a.EndTime, loc),
		Status:         string(a.Status),
		Source:         string(a.Source),
		CreatedAt:      formatTime(a.CreatedAt, loc),
		UpdatedAt:      formatTime(a.UpdatedAt, loc),
	}
}

// List filters appointments by collaborator_id, service_id, status (comma separated) and a
// from/to start range given as dates or RFC3339 instants.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	f := storage.AppointmentFilter{
		CollaboratorID: strings.TrimSpace(q.Get("collaborator_id")),
		ServiceID:      strings.TrimSpace(q.Get("service_id")),
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			st, err := model.ParseStatus(strings.TrimSpace(s))
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error(), nil)
				return
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	var err error
	if f.From, f.To, err = h.parseRange(q.Get("from"), q.Get("to")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if f.Limit, err = queryInt(q.Get("limit"), storage.DefaultListLimit); err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit", nil)
		return
	}
	if f.Offset, err = queryInt(q.Get("offset"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset", nil)
		return
	}

	appts, err := h.engine.ListAppointments(r.Context(), f)
	if errors.Is(err, booking.ErrInvalidRange) {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list appointments failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list appointments", nil)
		return
	}

	resp := listAppointmentsResponse{Appointments: make([]appointmentItem, 0, len(appts)), Limit: f.Limit, Offset: f.Offset}
	for _, a := range appts {
		resp.Appointments = append(resp.Appointments, h.toItem(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BookingHandler) Summary(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	from, to, err := h.parseRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	s, err := h.engine.Summary(r.Context(), from, to)
	if errors.Is(err, booking.ErrInvalidRange) {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "summary failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to build summary", nil)
		return
	}

	resp := summaryResponse{Total: s.Total, ByStatus: make(map[string]int, len(s.ByStatus)), CompletionRate: s.CompletionRate}
	for st, n := range s.ByStatus {
		resp.ByStatus[string(st)] = n
	}
	writeJSON(w, http.StatusOK, resp)
}

// Transition returns a handler applying op to the appointment named in the body.
func (h *BookingHandler) Transition(op func(context.Context, string) (model.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodPost) {
			return
		}
		var req transitionRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body", nil)
			return
		}
		req.AppointmentID = strings.TrimSpace(req.AppointmentID)
		if err := h.validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request", validationDetails(err))
			return
		}

		appt, err := op(r.Context(), req.AppointmentID)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, h.toItem(appt))
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, "appointment not found", nil)
		case errors.Is(err, model.ErrInvalidTransition):
			writeError(w, http.StatusConflict, err.Error(), nil)
		default:
			h.logger.ErrorContext(r.Context(), "appointment transition failed", "err", err, "appointment_id", req.AppointmentID)
			writeError(w, http.StatusInternalServerError, "failed to update appointment", nil)
		}
	}
}

// parseRange accepts YYYY-MM-DD (business-local midnight) or RFC3339 for each bound. A date in
// to is inclusive: it extends to the following midnight.
func (h *BookingHandler) parseRange(rawFrom, rawTo string) (time.Time, time.Time, error) {
	from, err := h.parseBound(strings.TrimSpace(rawFrom), false)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid from")
	}
	to, err := h.parseBound(strings.TrimSpace(rawTo), true)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid to")
	}
	return from, to, nil
}

func (h *BookingHandler) parseBound(raw string, inclusiveDate bool) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseInLocation(booking.DateLayout, raw, h.engine.Location()); err == nil {
		if inclusiveDate {
			d = d.AddDate(0, 0, 1)
		}
		return d, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func queryInt(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("must be a non-negative integer")
	}
	return n, nil
}
