package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// apiClient talks to the SyncDo JSON API.
type apiClient struct {
	base  string
	token string
	hc    *http.Client
}

func newAPIClient(base, token string) *apiClient {
	return &apiClient{
		base:  strings.TrimRight(base, "/"),
		token: token,
		hc:    &http.Client{Timeout: 30 * time.Second},
	}
}

// apiError is a non-2xx response.
type apiError struct {
	Code   int
	Detail string
}

func (e *apiError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Detail)
}

func (c *apiClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var e struct {
			Detail string `json:"detail"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e)
		return &apiError{Code: resp.StatusCode, Detail: e.Detail}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type me struct {
	ID             int64   `json:"id"`
	Email          string  `json:"email"`
	Name           string  `json:"name"`
	Picture        *string `json:"picture"`
	CalendarLinked bool    `json:"calendar_linked"`
}

type task struct {
	ID               int64      `json:"id"`
	Title            string     `json:"title"`
	Description      *string    `json:"description"`
	DueDate          *time.Time `json:"due_date"`
	Priority         string     `json:"priority"`
	IsCompleted      bool       `json:"is_completed"`
	CreatedAt        time.Time  `json:"created_at"`
	GoogleEventID    *string    `json:"google_event_id"`
	SyncWithCalendar bool       `json:"sync_with_calendar"`
}

func (c *apiClient) signup(ctx context.Context, email, password, name string) (token, error) {
	var t token
	err := c.do(ctx, http.MethodPost, "/auth/signup", map[string]string{"email": email, "password": password, "name": name}, &t)
	return t, err
}

func (c *apiClient) login(ctx context.Context, email, password string) (token, error) {
	var t token
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, &t)
	return t, err
}

func (c *apiClient) me(ctx context.Context) (me, error) {
	var m me
	err := c.do(ctx, http.MethodGet, "/auth/me", nil, &m)
	return m, err
}

func (c *apiClient) linkCalendar(ctx context.Context, refreshToken string) (me, error) {
	var m me
	err := c.do(ctx, http.MethodPut, "/auth/calendar", map[string]string{"refresh_token": refreshToken}, &m)
	return m, err
}

func (c *apiClient) unlinkCalendar(ctx context.Context) (me, error) {
	var m me
	err := c.do(ctx, http.MethodDelete, "/auth/calendar", nil, &m)
	return m, err
}

func (c *apiClient) listTasks(ctx context.Context) ([]task, error) {
	var ts []task
	err := c.do(ctx, http.MethodGet, "/tasks", nil, &ts)
	return ts, err
}

func (c *apiClient) createTask(ctx context.Context, fields map[string]any) (task, error) {
	var t task
	err := c.do(ctx, http.MethodPost, "/tasks", fields, &t)
	return t, err
}

// updateTask sends only the given keys; a nil value clears the field.
func (c *apiClient) updateTask(ctx context.Context, id int64, fields map[string]any) (task, error) {
	var t task
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/tasks/%d", id), fields, &t)
	return t, err
}

func (c *apiClient) deleteTask(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/tasks/%d", id), nil, nil)
}
