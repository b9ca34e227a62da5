// Package memory is a process-local Store. A transaction holds the store-wide write lock for its
// whole lifetime, which gives the same serialization the postgres store gets from row locks.
// Outbox events are append-only on the store: a transaction stages its own and appends them on
// commit, so publishing never needs the write lock while the broker call is in flight.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/storage"
)

type hoursKey struct {
	collaboratorID string
	day            int
}

type storedEvent struct {
	evt       outbox.Event
	published bool
}

type data struct {
	departments   map[string]model.Department
	services      map[string]model.Service
	collaborators map[string]model.Collaborator
	hours         map[hoursKey]model.BusinessHours
	appointments  map[string]model.Appointment
	events        []storedEvent
	nextEventID   int64
}

type Store struct {
	mu sync.RWMutex
	d  *data

	// txGate admits one transaction at a time so Begin can give up when ctx is done.
	txGate chan struct{}

	// publishMu keeps two publishers from sending the same pending events.
	publishMu sync.Mutex

	now func() time.Time
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		d: &data{
			departments:   map[string]model.Department{},
			services:      map[string]model.Service{},
			collaborators: map[string]model.Collaborator{},
			hours:         map[hoursKey]model.BusinessHours{},
			appointments:  map[string]model.Appointment{},
		},
		txGate: make(chan struct{}, 1),
		now:    time.Now,
	}
}

func (s *Store) Ping(context.Context) error {
	return nil
}

func (s *Store) Close() {}

// Begin waits for the open transaction, if any, to finish or for ctx to be done. Taking the
// write lock afterwards only waits on reads and catalog writes, which never block.
func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case s.txGate <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.mu.Lock()
	return &tx{store: s, d: s.d.cloneMutable()}, nil
}

// cloneMutable copies the appointments a transaction may change. Catalog maps are shared
// read-only and events are staged on the tx instead.
func (d *data) cloneMutable() *data {
	c := *d
	c.appointments = make(map[string]model.Appointment, len(d.appointments))
	for k, v := range d.appointments {
		c.appointments[k] = v
	}
	c.events = nil
	return &c
}

func (s *Store) read(fn func(d *data) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.d)
}

func (s *Store) GetService(ctx context.Context, id string) (model.Service, error) {
	var out model.Service
	err := s.read(func(d *data) (err error) { out, err = d.getService(id); return })
	return out, err
}

func (s *Store) GetCollaborator(ctx context.Context, id string) (model.Collaborator, error) {
	var out model.Collaborator
	err := s.read(func(d *data) (err error) { out, err = d.getCollaborator(id); return })
	return out, err
}

func (s *Store) ListCollaboratorsByDepartment(ctx context.Context, departmentID string) ([]model.Collaborator, error) {
	var out []model.Collaborator
	err := s.read(func(d *data) error { out = d.collaboratorsIn(departmentID); return nil })
	return out, err
}

func (s *Store) GetBusinessHours(ctx context.Context, collaboratorID string, day int) (model.BusinessHours, bool, error) {
	var (
		out   model.BusinessHours
		found bool
	)
	err := s.read(func(d *data) error { out, found = d.businessHours(collaboratorID, day); return nil })
	return out, found, err
}

func (s *Store) ListActiveAppointments(ctx context.Context, collaboratorID string, from, to time.Time) ([]model.Appointment, error) {
	var out []model.Appointment
	err := s.read(func(d *data) error { out = d.activeAppointments(collaboratorID, from, to); return nil })
	return out, err
}

func (s *Store) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	var out model.Appointment
	err := s.read(func(d *data) (err error) { out, err = d.getAppointment(id); return })
	return out, err
}

func (s *Store) ListAppointments(ctx context.Context, f storage.AppointmentFilter) ([]model.Appointment, error) {
	var out []model.Appointment
	err := s.read(func(d *data) error { out = d.listAppointments(f); return nil })
	return out, err
}

func (s *Store) CountByStatus(ctx context.Context, from, to time.Time) (map[model.Status]int, error) {
	var out map[model.Status]int
	err := s.read(func(d *data) error { out = d.countByStatus(from, to); return nil })
	return out, err
}

func (s *Store) CreateDepartment(ctx context.Context, dep *model.Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dep.ID == "" {
		dep.ID = uuid.NewString()
	}
	if _, ok := s.d.departments[dep.ID]; ok {
		return fmt.Errorf("department %s: %w", dep.ID, storage.ErrDuplicate)
	}
	s.d.departments[dep.ID] = *dep
	return nil
}

func (s *Store) CreateService(ctx context.Context, svc *model.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.departments[svc.DepartmentID]; !ok {
		return fmt.Errorf("department %s: %w", svc.DepartmentID, storage.ErrNotFound)
	}
	if svc.ID == "" {
		svc.ID = uuid.NewString()
	}
	if _, ok := s.d.services[svc.ID]; ok {
		return fmt.Errorf("service %s: %w", svc.ID, storage.ErrDuplicate)
	}
	s.d.services[svc.ID] = *svc
	return nil
}

func (s *Store) CreateCollaborator(ctx context.Context, c *model.Collaborator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, dep := range c.DepartmentIDs {
		if _, ok := s.d.departments[dep]; !ok {
			return fmt.Errorf("department %s: %w", dep, storage.ErrNotFound)
		}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, ok := s.d.collaborators[c.ID]; ok {
		return fmt.Errorf("collaborator %s: %w", c.ID, storage.ErrDuplicate)
	}
	cp := *c
	cp.DepartmentIDs = append([]string(nil), c.DepartmentIDs...)
	s.d.collaborators[c.ID] = cp
	return nil
}

func (s *Store) UpsertBusinessHours(ctx context.Context, bh model.BusinessHours) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.collaborators[bh.CollaboratorID]; !ok {
		return fmt.Errorf("collaborator %s: %w", bh.CollaboratorID, storage.ErrNotFound)
	}
	bh.Slots = append([]model.TimeSlot(nil), bh.Slots...)
	s.d.hours[hoursKey{bh.CollaboratorID, bh.DayOfWeek}] = bh
	return nil
}

// PublishBatch implements outbox.Source. fn runs without the store lock held; indices stay
// valid across it because events are only ever appended.
func (s *Store) PublishBatch(ctx context.Context, limit int, fn func(context.Context, []outbox.Event) error) (int, error) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	idx, batch := s.pending(limit)
	if len(batch) == 0 {
		return 0, nil
	}
	if err := fn(ctx, batch); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range idx {
		s.d.events[i].published = true
	}
	return len(batch), nil
}

func (s *Store) pending(limit int) ([]int, []outbox.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var idx []int
	var batch []outbox.Event
	for i, e := range s.d.events {
		if len(batch) >= limit {
			break
		}
		if !e.published {
			idx = append(idx, i)
			batch = append(batch, e.evt)
		}
	}
	return idx, batch
}

// Events returns every event appended so far, in order.
func (s *Store) Events() []outbox.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]outbox.Event, 0, len(s.d.events))
	for _, e := range s.d.events {
		out = append(out, e.evt)
	}
	return out
}

func (d *data) getService(id string) (model.Service, error) {
	svc, ok := d.services[id]
	if !ok {
		return model.Service{}, fmt.Errorf("service %s: %w", id, storage.ErrNotFound)
	}
	return svc, nil
}

func (d *data) getCollaborator(id string) (model.Collaborator, error) {
	c, ok := d.collaborators[id]
	if !ok {
		return model.Collaborator{}, fmt.Errorf("collaborator %s: %w", id, storage.ErrNotFound)
	}
	return c, nil
}

func (d *data) collaboratorsIn(departmentID string) []model.Collaborator {
	var out []model.Collaborator
	for _, c := range d.collaborators {
		if c.InDepartment(departmentID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (d *data) businessHours(collaboratorID string, day int) (model.BusinessHours, bool) {
	bh, ok := d.hours[hoursKey{collaboratorID, day}]
	return bh, ok
}

func (d *data) activeAppointments(collaboratorID string, from, to time.Time) []model.Appointment {
	var out []model.Appointment
	for _, a := range d.appointments {
		if a.CollaboratorID == collaboratorID && a.Blocks() && a.Overlaps(from, to) {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	return out
}

func (d *data) getAppointment(id string) (model.Appointment, error) {
	a, ok := d.appointments[id]
	if !ok {
		return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, storage.ErrNotFound)
	}
	return a, nil
}

func (d *data) listAppointments(f storage.AppointmentFilter) []model.Appointment {
	var out []model.Appointment
	for _, a := range d.appointments {
		if f.CollaboratorID != "" && a.CollaboratorID != f.CollaboratorID {
			continue
		}
		if f.ServiceID != "" && a.ServiceID != f.ServiceID {
			continue
		}
		if len(f.Statuses) > 0 && !hasStatus(f.Statuses, a.Status) {
			continue
		}
		if !inRange(a.StartTime, f.From, f.To) {
			continue
		}
		out = append(out, a)
	}
	sortAppointments(out)

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil
		}
		out = out[f.Offset:]
	}
	limit := f.Limit
	if limit <= 0 {
		limit = storage.DefaultListLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (d *data) countByStatus(from, to time.Time) map[model.Status]int {
	counts := map[model.Status]int{}
	for _, a := range d.appointments {
		if inRange(a.StartTime, from, to) {
			counts[a.Status]++
		}
	}
	return counts
}

func hasStatus(set []model.Status, s model.Status) bool {
	for _, x := range set {
		if x == s {
			return true
		}
	}
	return false
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

func sortAppointments(as []model.Appointment) {
	sort.Slice(as, func(i, j int) bool {
		if !as[i].StartTime.Equal(as[j].StartTime) {
			return as[i].StartTime.Before(as[j].StartTime)
		}
		return as[i].ID < as[j].ID
	})
}
