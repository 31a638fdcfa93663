package calendar

import (
	"context"
	"time"
)

// DefaultCalendarID addresses the principal's primary calendar.
const DefaultCalendarID = "primary"

// Event status values understood by the provider.
const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Event is the provider-neutral payload sent for a task.
type Event struct {
	Summary     string
	Description string
	// Start and End are sent as UTC date-times. Nil leaves the remote times untouched on patch.
	Start *time.Time
	End   *time.Time
	// Status is only sent on patch; empty means unchanged.
	Status string
}

// Provider performs event operations against one principal's calendar.
type Provider interface {
	// Insert creates an event and returns the provider-assigned id.
	Insert(ctx context.Context, calendarID string, ev Event) (string, error)
	// Patch updates the given fields of an existing event.
	Patch(ctx context.Context, calendarID, eventID string, ev Event) error
	// Delete removes an event.
	Delete(ctx context.Context, calendarID, eventID string) error
}

// Connector builds a Provider authenticated with a refresh credential.
type Connector interface {
	Connect(ctx context.Context, refreshToken string) (Provider, error)
}
