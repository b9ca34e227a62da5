package outbox

import (
	"context"
	"encoding/json"
	"time"

	otelx "github.com/md-rashed-zaman/staffbook/libs/otel"
)

const (
	AggregateAppointment = "appointment"

	EventAppointmentBooked        = "booking.appointment.booked"
	EventAppointmentStatusChanged = "booking.appointment.status_changed"
)

// Event is a domain event written in the same transaction as the state change it describes.
type Event struct {
	ID            int64
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Traceparent   string
	Tracestate    string
	CreatedAt     time.Time
}

// NewEvent marshals payload and captures the caller's trace context.
func NewEvent(ctx context.Context, eventID, aggregateType, aggregateID, eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	return Event{
		EventID:       eventID,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       raw,
		Traceparent:   traceparent,
		Tracestate:    tracestate,
	}, nil
}

type AppointmentBooked struct {
	AppointmentID  string    `json:"appointment_id"`
	ClientID       *string   `json:"client_id,omitempty"`
	ServiceID      string    `json:"service_id"`
	CollaboratorID string    `json:"collaborator_id"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Status         string    `json:"status"`
	Source         string    `json:"source"`
}

type AppointmentStatusChanged struct {
	AppointmentID  string    `json:"appointment_id"`
	CollaboratorID string    `json:"collaborator_id"`
	From           string    `json:"from"`
	To             string    `json:"to"`
	ChangedAt      time.Time `json:"changed_at"`
}

// Source hands out unpublished events. fn runs inside the claim; events are marked published
// only when fn returns nil.
type Source interface {
	PublishBatch(ctx context.Context, limit int, fn func(ctx context.Context, events []Event) error) (int, error)
}
