package model

import "time"

type Appointment struct {
	ID             string
	ClientID       *string
	ServiceID      string
	CollaboratorID string
	StartTime      time.Time
	EndTime        time.Time
	Status         Status
	Source         Source
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Overlaps reports whether the appointment's half-open interval intersects [start, end).
func (a Appointment) Overlaps(start, end time.Time) bool {
	return a.StartTime.Before(end) && start.Before(a.EndTime)
}

// Blocks reports whether the appointment occupies its collaborator's time.
func (a Appointment) Blocks() bool {
	return a.Status.IsActive()
}
