// Package slotcache memoizes slot listings. Listings are advisory, so every backend failure is a miss.
package slotcache

import (
	"context"

	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/availability"
)

// Key identifies one listing. Date is the business-local day as YYYY-MM-DD.
type Key struct {
	Date           string
	ServiceID      string
	CollaboratorID string
}

// Ticket pins the invalidation state observed by Get. A listing stored under a ticket issued
// before an invalidation is never served.
type Ticket string

type Cache interface {
	Get(ctx context.Context, k Key) ([]availability.Candidate, Ticket, bool)
	// Set stores a listing computed after the Get that issued t. An empty ticket is ignored.
	Set(ctx context.Context, t Ticket, cs []availability.Candidate)
	// Invalidate drops every listing for one date.
	Invalidate(ctx context.Context, date string)
	// InvalidateAll drops every listing, e.g. after business hours change.
	InvalidateAll(ctx context.Context)
}

type Noop struct{}

func (Noop) Get(context.Context, Key) ([]availability.Candidate, Ticket, bool) { return nil, "", false }
func (Noop) Set(context.Context, Ticket, []availability.Candidate)             {}
func (Noop) Invalidate(context.Context, string)                                {}
func (Noop) InvalidateAll(context.Context)                                     {}
