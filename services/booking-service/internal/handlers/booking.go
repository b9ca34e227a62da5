package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/eligibility"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/model"
)

// BookingHandler serves the public slot listing and booking endpoints.
type BookingHandler struct {
	engine   *booking.Engine
	validate *Validator
	logger   *slog.Logger
}

func NewBookingHandler(engine *booking.Engine, validate *Validator, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{engine: engine, validate: validate, logger: logger}
}

type slotsQuery struct {
	Date           string `json:"date" validate:"required,date"`
	ServiceID      string `json:"service_id" validate:"required,max=64"`
	CollaboratorID string `json:"collaborator_id" validate:"omitempty,max=64"`
}

type slotItem struct {
	Time           string `json:"time"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	CollaboratorID string `json:"collaborator_id"`
}

type slotsResponse struct {
	Date      string     `json:"date"`
	ServiceID string     `json:"service_id"`
	Slots     []slotItem `json:"slots"`
}

type bookRequest struct {
	ClientID       *string `json:"client_id" validate:"omitempty,max=64"`
	ServiceID      string  `json:"service_id" validate:"required,max=64"`
	CollaboratorID string  `json:"collaborator_id" validate:"omitempty,max=64"`
	StartTime      string  `json:"start_time" validate:"required,rfc3339"`
	EndTime        string  `json:"end_time" validate:"omitempty,rfc3339"`
	Source         string  `json:"source" validate:"omitempty,source"`
}

type intentRequest struct {
	ClientID       *string `json:"client_id" validate:"omitempty,max=64"`
	CollaboratorID string  `json:"collaborator_id" validate:"omitempty,max=64"`
	ServiceID      *string `json:"service_id"`
	Date           *string `json:"date"`
	Time           *string `json:"time"`
	Source         string  `json:"source" validate:"omitempty,source"`
}

type resultResponse struct {
	Outcome        booking.Outcome   `json:"outcome"`
	Reason         string            `json:"reason,omitempty"`
	AppointmentID  string            `json:"appointment_id,omitempty"`
	CollaboratorID string            `json:"collaborator_id,omitempty"`
	Details        map[string]string `json:"details,omitempty"`
}

// Slots lists bookable start times. suggest=true narrows the list with the spacing selector.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	in := slotsQuery{
		Date:           strings.TrimSpace(q.Get("date")),
		ServiceID:      strings.TrimSpace(q.Get("service_id")),
		CollaboratorID: strings.TrimSpace(q.Get("collaborator_id")),
	}
	if err := h.validate.Struct(in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid query", validationDetails(err))
		return
	}
	suggest, _ := strconv.ParseBool(q.Get("suggest"))

	loc := h.engine.Location()
	day, _ := time.ParseInLocation(booking.DateLayout, in.Date, loc)

	var (
		slots []availability.Candidate
		err   error
	)
	if suggest {
		slots, err = h.engine.SuggestSlots(r.Context(), day, in.ServiceID, in.CollaboratorID)
	} else {
		slots, err = h.engine.ListAvailableSlots(r.Context(), day, in.ServiceID, in.CollaboratorID)
	}
	if errors.Is(err, eligibility.ErrServiceUnavailable) {
		writeError(w, http.StatusNotFound, "service not found or inactive", nil)
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list slots failed", "err", err, "service_id", in.ServiceID, "date", in.Date)
		writeError(w, http.StatusInternalServerError, "failed to list slots", nil)
		return
	}

	resp := slotsResponse{Date: in.Date, ServiceID: in.ServiceID, Slots: make([]slotItem, 0, len(slots))}
	for _, s := range slots {
		resp.Slots = append(resp.Slots, slotItem{
			Time:           s.Start.In(loc).Format(booking.ClockLayout),
			StartTime:      formatTime(s.Start, loc),
			EndTime:        formatTime(s.End, loc),
			CollaboratorID: s.CollaboratorID,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req bookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body", nil)
		return
	}
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.CollaboratorID = strings.TrimSpace(req.CollaboratorID)
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, resultResponse{
			Outcome: booking.OutcomeMissingData,
			Reason:  "missing or malformed fields",
			Details: validationDetails(err),
		})
		return
	}

	start, _ := time.Parse(time.RFC3339, req.StartTime)
	var end time.Time
	if req.EndTime != "" {
		end, _ = time.Parse(time.RFC3339, req.EndTime)
	}
	source, _ := model.ParseSource(req.Source)

	res := h.engine.BookAppointment(r.Context(), booking.Request{
		ClientID:       req.ClientID,
		ServiceID:      req.ServiceID,
		CollaboratorID: req.CollaboratorID,
		Start:          start,
		End:            end,
		Source:         source,
	})
	writeResult(w, res)
}

// BookIntent accepts the tuple extracted by the text-understanding service. Absent fields are a
// missing_data outcome, not a request error.
func (h *BookingHandler) BookIntent(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req intentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", validationDetails(err))
		return
	}
	var source model.Source
	if req.Source != "" {
		source, _ = model.ParseSource(req.Source)
	}

	res := h.engine.BookIntent(r.Context(), req.ClientID, strings.TrimSpace(req.CollaboratorID), booking.Intent{
		ServiceID: req.ServiceID,
		Date:      req.Date,
		Time:      req.Time,
	}, source)
	writeResult(w, res)
}

func writeResult(w http.ResponseWriter, res booking.Result) {
	writeJSON(w, outcomeStatus(res.Outcome), resultResponse{
		Outcome:        res.Outcome,
		Reason:         res.Reason,
		AppointmentID:  res.AppointmentID,
		CollaboratorID: res.CollaboratorID,
	})
}

func outcomeStatus(o booking.Outcome) int {
	switch o {
	case booking.OutcomeConfirmed:
		return http.StatusCreated
	case booking.OutcomeMissingData:
		return http.StatusBadRequest
	case booking.OutcomeNoCollaborator:
		return http.StatusUnprocessableEntity
	case booking.OutcomeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
