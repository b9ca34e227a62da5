package booking

import (
	"context"
	"strings"
	"time"

	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/model"
)

// Intent is the structured output of the external text-understanding service. Nil means the
// field was not extracted; the engine never infers it.
type Intent struct {
	ServiceID *string
	Date      *string
	Time      *string
}

func (in Intent) missing() []string {
	var out []string
	if blank(in.ServiceID) {
		out = append(out, "service_id")
	}
	if blank(in.Date) {
		out = append(out, "date")
	}
	if blank(in.Time) {
		out = append(out, "time")
	}
	return out
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

// BookIntent turns an extracted {service, date, time} tuple into a booking in the business zone.
func (e *Engine) BookIntent(ctx context.Context, clientID *string, collaboratorID string, in Intent, source model.Source) Result {
	if missing := in.missing(); len(missing) > 0 {
		return result(OutcomeMissingData, "missing "+strings.Join(missing, ", "))
	}

	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(*in.Date), e.cfg.Location)
	if err != nil {
		return result(OutcomeMissingData, "date must be YYYY-MM-DD")
	}
	clock, err := model.ParseClock(strings.TrimSpace(*in.Time))
	if err != nil || clock == model.EndOfDay {
		return result(OutcomeMissingData, "time must be HH:MM")
	}
	if source == "" {
		source = model.SourceChat
	}

	return e.BookAppointment(ctx, Request{
		ClientID:       clientID,
		ServiceID:      strings.TrimSpace(*in.ServiceID),
		CollaboratorID: collaboratorID,
		Start:          clock.On(day, e.cfg.Location),
		Source:         source,
	})
}
