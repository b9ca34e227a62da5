package model

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid status transition")

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

var AllStatuses = []Status{
	StatusScheduled,
	StatusConfirmed,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
	StatusNoShow,
}

func ParseStatus(s string) (Status, error) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// IsActive reports whether an appointment in this status blocks the collaborator's time.
func (s Status) IsActive() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusInProgress:
		return true
	default:
		return false
	}
}

// ActiveStatuses is the blocking subset, in declaration order.
func ActiveStatuses() []Status {
	return []Status{StatusScheduled, StatusConfirmed, StatusInProgress}
}

var transitions = map[Status][]Status{
	StatusScheduled:  {StatusConfirmed, StatusCancelled, StatusNoShow},
	StatusConfirmed:  {StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted},
}

// CanTransition reports whether from -> to is allowed. Terminal statuses have no exits.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Source string

const (
	SourceAPI   Source = "api"
	SourceChat  Source = "chat"
	SourceAdmin Source = "admin"
	SourceBatch Source = "batch"
)

// ParseSource rejects unknown values. Empty defaults to api.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case "":
		return SourceAPI, nil
	case SourceAPI, SourceChat, SourceAdmin, SourceBatch:
		return Source(s), nil
	default:
		return "", fmt.Errorf("unknown source %q", s)
	}
}
