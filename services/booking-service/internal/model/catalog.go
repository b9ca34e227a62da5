package model

import "time"

type Department struct {
	ID   string
	Name string
}

type Service struct {
	ID              string
	Name            string
	DurationMinutes int
	// Price in minor units; informational only.
	Price        int64
	DepartmentID string
	IsActive     bool
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

type Collaborator struct {
	ID            string
	Name          string
	IsActive      bool
	DepartmentIDs []string
}

// InDepartment reports membership in departmentID.
func (c Collaborator) InDepartment(departmentID string) bool {
	for _, id := range c.DepartmentIDs {
		if id == departmentID {
			return true
		}
	}
	return false
}

// TimeSlot is one shift window within a day. SlotOrder is 1 or 2.
type TimeSlot struct {
	Start     Clock
	End       Clock
	SlotOrder int
}

// BusinessHours describes one collaborator's working pattern for one weekday (0 = Monday).
type BusinessHours struct {
	CollaboratorID string
	DayOfWeek      int
	IsEnabled      bool
	IsSplitShift   bool
	Slots          []TimeSlot
}
