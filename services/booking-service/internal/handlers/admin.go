package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/slotcache"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/storage"
)

// AdminHandler maintains the catalog: departments, services, collaborators and their hours.
type AdminHandler struct {
	catalog  storage.Catalog
	cache    slotcache.Cache
	validate *Validator
	logger   *slog.Logger
}

func NewAdminHandler(catalog storage.Catalog, cache slotcache.Cache, validate *Validator, logger *slog.Logger) *AdminHandler {
	if cache == nil {
		cache = slotcache.Noop{}
	}
	return &AdminHandler{catalog: catalog, cache: cache, validate: validate, logger: logger}
}

type departmentRequest struct {
	ID   string `json:"id" validate:"omitempty,max=64"`
	Name string `json:"name" validate:"required,max=200"`
}

type serviceRequest struct {
	ID              string `json:"id" validate:"omitempty,max=64"`
	Name            string `json:"name" validate:"required,max=200"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,granularity"`
	Price           int64  `json:"price" validate:"min=0"`
	DepartmentID    string `json:"department_id" validate:"required,max=64"`
	IsActive        *bool  `json:"is_active"`
}

type collaboratorRequest struct {
	ID            string   `json:"id" validate:"omitempty,max=64"`
	Name          string   `json:"name" validate:"required,max=200"`
	IsActive      *bool    `json:"is_active"`
	DepartmentIDs []string `json:"department_ids" validate:"required,min=1,dive,required,max=64"`
	// DefaultHours seeds the standard working week right after creation.
	DefaultHours bool `json:"default_hours"`
}

type timeSlotRequest struct {
	Start     string `json:"start" validate:"required,clock"`
	End       string `json:"end" validate:"required,clock"`
	SlotOrder int    `json:"slot_order" validate:"oneof=1 2"`
}

type businessHoursRequest struct {
	CollaboratorID string            `json:"collaborator_id" validate:"required,max=64"`
	DayOfWeek      int               `json:"day_of_week" validate:"min=0,max=6"`
	IsEnabled      bool              `json:"is_enabled"`
	IsSplitShift   bool              `json:"is_split_shift"`
	Slots          []timeSlotRequest `json:"slots" validate:"max=2,dive"`
}

type createdResponse struct {
	ID string `json:"id"`
}

func (h *AdminHandler) CreateDepartment(w http.ResponseWriter, r *http.Request) {
	var req departmentRequest
	if !h.decode(w, r, http.MethodPost, &req) {
		return
	}
	d := &model.Department{ID: strings.TrimSpace(req.ID), Name: strings.TrimSpace(req.Name)}
	if h.catalogErr(w, r, h.catalog.CreateDepartment(r.Context(), d)) {
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: d.ID})
}

func (h *AdminHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	var req serviceRequest
	if !h.decode(w, r, http.MethodPost, &req) {
		return
	}
	s := &model.Service{
		ID:              strings.TrimSpace(req.ID),
		Name:            strings.TrimSpace(req.Name),
		DurationMinutes: req.DurationMinutes,
		Price:           req.Price,
		DepartmentID:    strings.TrimSpace(req.DepartmentID),
		IsActive:        req.IsActive == nil || *req.IsActive,
	}
	if h.catalogErr(w, r, h.catalog.CreateService(r.Context(), s)) {
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: s.ID})
}

func (h *AdminHandler) CreateCollaborator(w http.ResponseWriter, r *http.Request) {
	var req collaboratorRequest
	if !h.decode(w, r, http.MethodPost, &req) {
		return
	}
	c := &model.Collaborator{
		ID:       strings.TrimSpace(req.ID),
		Name:     strings.TrimSpace(req.Name),
		IsActive: req.IsActive == nil || *req.IsActive,
	}
	for _, id := range req.DepartmentIDs {
		c.DepartmentIDs = append(c.DepartmentIDs, strings.TrimSpace(id))
	}
	if h.catalogErr(w, r, h.catalog.CreateCollaborator(r.Context(), c)) {
		return
	}
	if req.DefaultHours {
		for _, bh := range calendar.DefaultWeek(c.ID) {
			if h.catalogErr(w, r, h.catalog.UpsertBusinessHours(r.Context(), bh)) {
				return
			}
		}
		h.cache.InvalidateAll(r.Context())
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: c.ID})
}

// PutBusinessHours replaces one weekday of a collaborator's hours. Every cached listing is
// dropped afterwards since any date may fall on that weekday.
func (h *AdminHandler) PutBusinessHours(w http.ResponseWriter, r *http.Request) {
	var req businessHoursRequest
	if !h.decode(w, r, http.MethodPut, &req) {
		return
	}
	bh := model.BusinessHours{
		CollaboratorID: strings.TrimSpace(req.CollaboratorID),
		DayOfWeek:      req.DayOfWeek,
		IsEnabled:      req.IsEnabled,
		IsSplitShift:   req.IsSplitShift,
	}
	for _, s := range req.Slots {
		start, _ := model.ParseClock(s.Start)
		end, _ := model.ParseClock(s.End)
		bh.Slots = append(bh.Slots, model.TimeSlot{Start: start, End: end, SlotOrder: s.SlotOrder})
	}
	if err := calendar.Validate(bh); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if h.catalogErr(w, r, h.catalog.UpsertBusinessHours(r.Context(), bh)) {
		return
	}
	h.cache.InvalidateAll(r.Context())
	h.logger.InfoContext(r.Context(), "business hours updated", "collaborator_id", bh.CollaboratorID, "day_of_week", bh.DayOfWeek)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) decode(w http.ResponseWriter, r *http.Request, method string, v any) bool {
	if !allowMethod(w, r, method) {
		return false
	}
	if err := decodeJSON(r, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body", nil)
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", validationDetails(err))
		return false
	}
	return true
}

// catalogErr writes the response for a failed catalog write and reports whether it did.
func (h *AdminHandler) catalogErr(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, storage.ErrDuplicate):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), nil)
	default:
		h.logger.ErrorContext(r.Context(), "catalog write failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to save", nil)
	}
	return true
}
