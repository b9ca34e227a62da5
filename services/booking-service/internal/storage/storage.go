// Package storage defines the persistence contracts of the booking engine. The relational store
// is the single source of truth; implementations live in the postgres and memory subpackages.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/outbox"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")

	// ErrOverlap is returned by InsertAppointment when the store itself rejects an overlapping
	// active appointment for the same collaborator.
	ErrOverlap = errors.New("overlapping active appointment")
)

// DefaultListLimit applies when AppointmentFilter.Limit is not positive.
const DefaultListLimit = 50

type AppointmentFilter struct {
	CollaboratorID string
	ServiceID      string
	Statuses       []model.Status

	// From/To bound start_time to [From, To); zero values are open.
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// Reader is the read side shared by plain queries and transactions.
type Reader interface {
	GetService(ctx context.Context, id string) (model.Service, error)
	GetCollaborator(ctx context.Context, id string) (model.Collaborator, error)
	ListCollaboratorsByDepartment(ctx context.Context, departmentID string) ([]model.Collaborator, error)
	// GetBusinessHours returns found=false when no row exists for that weekday.
	GetBusinessHours(ctx context.Context, collaboratorID string, dayOfWeek int) (bh model.BusinessHours, found bool, err error)
	// ListActiveAppointments returns active appointments overlapping [from, to), sorted by start.
	ListActiveAppointments(ctx context.Context, collaboratorID string, from, to time.Time) ([]model.Appointment, error)
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	ListAppointments(ctx context.Context, f AppointmentFilter) ([]model.Appointment, error)
	CountByStatus(ctx context.Context, from, to time.Time) (map[model.Status]int, error)
}

// Tx is one atomic unit of work. Rollback after Commit is a no-op.
type Tx interface {
	Reader
	// LockCollaborator serializes writers for one collaborator until the tx ends.
	LockCollaborator(ctx context.Context, collaboratorID string) error
	// InsertAppointment assigns ID and audit timestamps when empty.
	InsertAppointment(ctx context.Context, a *model.Appointment) error
	GetAppointmentForUpdate(ctx context.Context, id string) (model.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id string, status model.Status, at time.Time) error
	AppendEvent(ctx context.Context, evt outbox.Event) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Catalog holds the administrative writes.
type Catalog interface {
	CreateDepartment(ctx context.Context, d *model.Department) error
	CreateService(ctx context.Context, s *model.Service) error
	CreateCollaborator(ctx context.Context, c *model.Collaborator) error
	UpsertBusinessHours(ctx context.Context, bh model.BusinessHours) error
}

type Store interface {
	Reader
	Catalog
	Begin(ctx context.Context) (Tx, error)
	Ping(ctx context.Context) error
	Close()
}
