package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/staffbook/libs/auth"
)

// Register mounts the API on mux. Public routes need no token; appointment management needs a
// staff token and catalog writes an admin token.
func Register(mux *http.ServeMux, b *BookingHandler, a *AdminHandler, jwtSecret string) {
	staff := func(h http.HandlerFunc) http.Handler { return auth.RequireRole(jwtSecret, auth.RoleStaff, h) }
	admin := func(h http.HandlerFunc) http.Handler { return auth.RequireRole(jwtSecret, auth.RoleAdmin, h) }

	mux.HandleFunc("/api/v1/public/slots", b.Slots)
	mux.HandleFunc("/api/v1/public/book", b.Book)
	mux.HandleFunc("/api/v1/public/book/intent", b.BookIntent)

	mux.Handle("/api/v1/appointments", staff(b.List))
	mux.Handle("/api/v1/appointments/summary", staff(b.Summary))
	mux.Handle("/api/v1/appointments/confirm", staff(b.Transition(b.engine.Confirm)))
	mux.Handle("/api/v1/appointments/start", staff(b.Transition(b.engine.Start)))
	mux.Handle("/api/v1/appointments/complete", staff(b.Transition(b.engine.Complete)))
	mux.Handle("/api/v1/appointments/cancel", staff(b.Transition(b.engine.Cancel)))
	mux.Handle("/api/v1/appointments/no-show", staff(b.Transition(b.engine.NoShow)))

	mux.Handle("/api/v1/admin/departments", admin(a.CreateDepartment))
	mux.Handle("/api/v1/admin/services", admin(a.CreateService))
	mux.Handle("/api/v1/admin/collaborators", admin(a.CreateCollaborator))
	mux.Handle("/api/v1/admin/business-hours", admin(a.PutBusinessHours))
}
