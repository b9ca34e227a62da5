package eligibility

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/storage"
)

// ErrServiceUnavailable means the service does not exist or is inactive.
var ErrServiceUnavailable = errors.New("service unavailable")

// Directory is the catalog lookup the resolver needs.
type Directory interface {
	GetService(ctx context.Context, id string) (model.Service, error)
	ListCollaboratorsByDepartment(ctx context.Context, departmentID string) ([]model.Collaborator, error)
}

type Resolver struct {
	dir Directory
}

func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Eligible returns the service and its active collaborators ordered by id. An empty list is not an error.
func (r *Resolver) Eligible(ctx context.Context, serviceID string) (model.Service, []model.Collaborator, error) {
	svc, err := r.dir.GetService(ctx, serviceID)
	if errors.Is(err, storage.ErrNotFound) {
		return model.Service{}, nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, serviceID)
	}
	if err != nil {
		return model.Service{}, nil, err
	}
	if !svc.IsActive {
		return model.Service{}, nil, fmt.Errorf("%w: %s is inactive", ErrServiceUnavailable, serviceID)
	}

	members, err := r.dir.ListCollaboratorsByDepartment(ctx, svc.DepartmentID)
	if err != nil {
		return model.Service{}, nil, err
	}
	out := make([]model.Collaborator, 0, len(members))
	for _, c := range members {
		if IsEligible(c, svc) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return svc, out, nil
}

// IsEligible is the membership rule on its own.
func IsEligible(c model.Collaborator, svc model.Service) bool {
	return c.IsActive && c.InDepartment(svc.DepartmentID)
}

// Find returns the named collaborator when it is in the eligible set.
func Find(eligible []model.Collaborator, id string) (model.Collaborator, bool) {
	for _, c := range eligible {
		if c.ID == id {
			return c, true
		}
	}
	return model.Collaborator{}, false
}
