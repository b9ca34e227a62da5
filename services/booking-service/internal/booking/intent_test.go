package booking

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/model"
)

func ptr(s string) *string { return &s }

func TestBookIntentMissingFields(t *testing.T) {
	f := newFixture(t)
	f.addCollaborator(t, "c1")

	res := f.engine.BookIntent(context.Background(), nil, "", Intent{ServiceID: ptr("cut"), Time: ptr(" ")}, "")
	expectOutcome(t, res, OutcomeMissingData)
	if !strings.Contains(res.Reason, "date") || !strings.Contains(res.Reason, "time") || strings.Contains(res.Reason, "service_id") {
		t.Fatalf("reason should name the missing fields, got %q", res.Reason)
	}

	res = f.engine.BookIntent(context.Background(), nil, "", Intent{ServiceID: ptr("cut"), Date: ptr("02/03/2026"), Time: ptr("10:00")}, "")
	expectOutcome(t, res, OutcomeMissingData)
}

func TestBookIntentBooksInBusinessZone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addCollaborator(t, "c1")

	client := "client-7"
	res := f.engine.BookIntent(ctx, &client, "", Intent{ServiceID: ptr("cut"), Date: ptr("2026-03-02"), Time: ptr("10:15")}, "")
	expectOutcome(t, res, OutcomeConfirmed)

	appt, err := f.engine.GetAppointment(ctx, res.AppointmentID)
	if err != nil {
		t.Fatalf("GetAppointment: %v", err)
	}
	if !appt.StartTime.Equal(at(10, 15)) || !appt.EndTime.Equal(at(10, 45)) {
		t.Fatalf("unexpected interval %s-%s", appt.StartTime, appt.EndTime)
	}
	if appt.Source != model.SourceChat || appt.ClientID == nil || *appt.ClientID != client {
		t.Fatalf("unexpected appointment %+v", appt)
	}
}

func TestBookIntentMadridZone(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	f := newFixture(t)
	f.addCollaborator(t, "c1")
	f.engine = NewEngine(f.store, nil, discardLogger(), Config{Location: loc, Now: func() time.Time { return testNow }})

	// 09:00 in Madrid is 08:00 UTC in March; hours are read in the business zone.
	res := f.engine.BookIntent(context.Background(), nil, "", Intent{ServiceID: ptr("cut"), Date: ptr("2026-03-02"), Time: ptr("09:00")}, model.SourceAPI)
	expectOutcome(t, res, OutcomeConfirmed)
	appt, _ := f.engine.GetAppointment(context.Background(), res.AppointmentID)
	if !appt.StartTime.Equal(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %s", appt.StartTime.UTC())
	}
}
