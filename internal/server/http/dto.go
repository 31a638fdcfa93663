package httpserver

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/and161185/syncdo/internal/errs"
	"github.com/and161185/syncdo/internal/model"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type calendarRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type userResponse struct {
	ID             int64   `json:"id"`
	Email          string  `json:"email"`
	Name           string  `json:"name"`
	Picture        *string `json:"picture"`
	CalendarLinked bool    `json:"calendar_linked"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:             u.ID,
		Email:          u.Email,
		Name:           u.Name,
		Picture:        u.Picture,
		CalendarLinked: u.HasCalendarCredential(),
	}
}

type taskResponse struct {
	ID               int64          `json:"id"`
	Title            string         `json:"title"`
	Description      *string        `json:"description"`
	DueDate          *time.Time     `json:"due_date"`
	Priority         model.Priority `json:"priority"`
	IsCompleted      bool           `json:"is_completed"`
	CreatedAt        time.Time      `json:"created_at"`
	GoogleEventID    *string        `json:"google_event_id"`
	SyncWithCalendar bool           `json:"sync_with_calendar"`
}

func toTaskResponse(t *model.Task) taskResponse {
	return taskResponse{
		ID:               t.ID,
		Title:            t.Title,
		Description:      t.Description,
		DueDate:          t.DueDate,
		Priority:         t.Priority,
		IsCompleted:      t.IsCompleted,
		CreatedAt:        t.CreatedAt,
		GoogleEventID:    t.ExternalEventID,
		SyncWithCalendar: t.SyncWithCalendar,
	}
}

type createTaskRequest struct {
	Title            string   `json:"title"`
	Description      *string  `json:"description"`
	DueDate          *dueTime `json:"due_date"`
	Priority         string   `json:"priority"`
	SyncWithCalendar *bool    `json:"sync_with_calendar"`
}

func (r createTaskRequest) input() model.TaskInput {
	in := model.TaskInput{
		Title:            r.Title,
		Description:      r.Description,
		Priority:         model.Priority(r.Priority),
		SyncWithCalendar: true,
	}
	if r.DueDate != nil {
		due := time.Time(*r.DueDate)
		in.DueDate = &due
	}
	if r.SyncWithCalendar != nil {
		in.SyncWithCalendar = *r.SyncWithCalendar
	}
	return in
}

// updateTaskRequest keeps absent keys distinct from explicit nulls.
type updateTaskRequest struct {
	Title            model.Optional[string]         `json:"title"`
	Description      model.Optional[string]         `json:"description"`
	DueDate          model.Optional[dueTime]        `json:"due_date"`
	Priority         model.Optional[model.Priority] `json:"priority"`
	IsCompleted      model.Optional[bool]           `json:"is_completed"`
	SyncWithCalendar model.Optional[bool]           `json:"sync_with_calendar"`
}

func (r updateTaskRequest) patch() model.TaskPatch {
	return model.TaskPatch{
		Title:       r.Title,
		Description: r.Description,
		DueDate: model.Optional[time.Time]{
			Set:   r.DueDate.Set,
			Null:  r.DueDate.Null,
			Value: time.Time(r.DueDate.Value),
		},
		Priority:         r.Priority,
		IsCompleted:      r.IsCompleted,
		SyncWithCalendar: r.SyncWithCalendar,
	}
}

// dueTime accepts RFC 3339 timestamps as well as zone-less ones (read as UTC),
// which is what browser datetime inputs produce.
type dueTime time.Time

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (d *dueTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: due_date must be a string", errs.ErrValidation)
	}
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		*d = dueTime(t.UTC())
		return nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			*d = dueTime(t)
			return nil
		}
	}
	return fmt.Errorf("%w: bad due_date %q", errs.ErrValidation, s)
}
