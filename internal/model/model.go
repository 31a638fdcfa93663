// Package model defines domain entities used by services and repositories.
package model

import (
	"strings"
	"time"
)

// Tokens collects an issued session token and its absolute expiry.
type Tokens struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time // absolute expiry (for diagnostics)
}

// User represents a principal stored on the server.
type User struct {
	ID                 int64  // PK, stable numeric id
	Email              string // unique
	Name               string
	Picture            *string
	GoogleID           *string // set for external-identity principals
	PasswordHash       *string // "salthex:hashhex"; nil for external-identity-only principals
	CalendarCredential *string // long-lived calendar refresh credential
	CreatedAt          time.Time
}

// HasCalendarCredential reports whether the principal can be synced to a calendar.
func (u *User) HasCalendarCredential() bool {
	return u != nil && u.CalendarCredential != nil && *u.CalendarCredential != ""
}

// Priority is the task urgency level.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority validates a priority value; empty input yields PriorityMedium.
func ParsePriority(s string) (Priority, bool) {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return PriorityMedium, true
	case PriorityLow:
		return PriorityLow, true
	case PriorityMedium:
		return PriorityMedium, true
	case PriorityHigh:
		return PriorityHigh, true
	default:
		return "", false
	}
}

// Task is a single owner-scoped task record.
type Task struct {
	ID               int64
	OwnerID          int64
	Title            string
	Description      *string
	DueDate          *time.Time
	Priority         Priority
	IsCompleted      bool
	CreatedAt        time.Time
	SyncWithCalendar bool
	ExternalEventID  *string // set only by the calendar sync engine
}

// HasExternalRef reports whether the task is linked to a remote calendar event.
func (t *Task) HasExternalRef() bool {
	return t.ExternalEventID != nil && *t.ExternalEventID != ""
}

// TaskInput is a task-create intent. Zero values take the documented defaults
// (priority medium); SyncWithCalendar must be set explicitly by the caller.
type TaskInput struct {
	Title            string
	Description      *string
	DueDate          *time.Time
	Priority         Priority
	SyncWithCalendar bool
}

// TaskPatch is a partial task update: only fields with Set==true change.
type TaskPatch struct {
	Title            Optional[string]
	Description      Optional[string]
	DueDate          Optional[time.Time]
	Priority         Optional[Priority]
	IsCompleted      Optional[bool]
	SyncWithCalendar Optional[bool]
}

// Empty reports whether the patch carries no fields.
func (p TaskPatch) Empty() bool {
	return !p.Title.Set && !p.Description.Set && !p.DueDate.Set &&
		!p.Priority.Set && !p.IsCompleted.Set && !p.SyncWithCalendar.Set
}

// Apply copies the present fields of p onto t.
func (p TaskPatch) Apply(t *Task) {
	if p.Title.Set && !p.Title.Null {
		t.Title = p.Title.Value
	}
	if p.Description.Set {
		t.Description = p.Description.Ptr()
	}
	if p.DueDate.Set {
		t.DueDate = p.DueDate.Ptr()
	}
	if p.Priority.Set && !p.Priority.Null {
		t.Priority = p.Priority.Value
	}
	if p.IsCompleted.Set && !p.IsCompleted.Null {
		t.IsCompleted = p.IsCompleted.Value
	}
	if p.SyncWithCalendar.Set && !p.SyncWithCalendar.Null {
		t.SyncWithCalendar = p.SyncWithCalendar.Value
	}
}
