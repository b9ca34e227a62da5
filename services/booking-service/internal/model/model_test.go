package model

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	cases := []struct {
		in   string
		want Clock
		ok   bool
	}{
		{"09:00", 540, true},
		{"17:30", 1050, true},
		{"24:00", EndOfDay, true},
		{"00:00", 0, true},
		{"24:01", 0, false},
		{"9:00", 0, false},
		{"12:60", 0, false},
		{"ab:cd", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseClock(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("ParseClock(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ParseClock(%q): expected error", tc.in)
		}
	}
	if NewClock(9, 5).String() != "09:05" {
		t.Fatalf("unexpected String(): %s", NewClock(9, 5))
	}
}

func TestClockOn(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	day := time.Date(2026, 3, 3, 23, 30, 0, 0, time.UTC) // already 4 March in Madrid
	got := NewClock(9, 0).On(day, loc)
	want := time.Date(2026, 3, 4, 9, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestStatusTransitions(t *testing.T) {
	allowed := [][2]Status{
		{StatusScheduled, StatusConfirmed},
		{StatusConfirmed, StatusInProgress},
		{StatusConfirmed, StatusCompleted},
		{StatusInProgress, StatusCompleted},
		{StatusScheduled, StatusCancelled},
		{StatusConfirmed, StatusNoShow},
	}
	for _, p := range allowed {
		if !CanTransition(p[0], p[1]) {
			t.Fatalf("expected %s -> %s to be allowed", p[0], p[1])
		}
	}
	denied := [][2]Status{
		{StatusCompleted, StatusCancelled},
		{StatusCancelled, StatusConfirmed},
		{StatusScheduled, StatusCompleted},
		{StatusInProgress, StatusCancelled},
		{StatusNoShow, StatusScheduled},
	}
	for _, p := range denied {
		if CanTransition(p[0], p[1]) {
			t.Fatalf("expected %s -> %s to be denied", p[0], p[1])
		}
	}
}

func TestActiveStatuses(t *testing.T) {
	for _, s := range AllStatuses {
		want := s == StatusScheduled || s == StatusConfirmed || s == StatusInProgress
		if s.IsActive() != want {
			t.Fatalf("%s: IsActive = %v", s, s.IsActive())
		}
	}
	if _, err := ParseStatus("booked"); err == nil {
		t.Fatal("expected unknown status to be rejected")
	}
	if src, err := ParseSource(""); err != nil || src != SourceAPI {
		t.Fatalf("expected empty source to default to api, got %q (%v)", src, err)
	}
	if _, err := ParseSource("fax"); err == nil {
		t.Fatal("expected unknown source to be rejected")
	}
}

func TestAppointmentOverlaps(t *testing.T) {
	base := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	a := Appointment{StartTime: base, EndTime: base.Add(time.Hour), Status: StatusScheduled}
	if a.Overlaps(base.Add(time.Hour), base.Add(2*time.Hour)) {
		t.Fatal("adjacent interval must not overlap")
	}
	if !a.Overlaps(base.Add(30*time.Minute), base.Add(90*time.Minute)) {
		t.Fatal("expected overlap")
	}
}
