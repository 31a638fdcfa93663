package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/syncdo/internal/errs"
	"github.com/and161185/syncdo/internal/model"
)

const goodToken = "good-token"

type fakeAuth struct {
	user *model.User

	signupErr error
	loginErr  error
	credErr   error

	gotIP   string
	gotCred *string
	credSet bool
}

func (f *fakeAuth) Signup(_ context.Context, email, password, name string) (model.Tokens, error) {
	if f.signupErr != nil {
		return model.Tokens{}, f.signupErr
	}
	return model.Tokens{AccessToken: "tok-" + email, TokenType: "bearer"}, nil
}

func (f *fakeAuth) Login(_ context.Context, email, password, ip string) (model.Tokens, error) {
	f.gotIP = ip
	if f.loginErr != nil {
		return model.Tokens{}, f.loginErr
	}
	return model.Tokens{AccessToken: "tok-" + email, TokenType: "bearer"}, nil
}

func (f *fakeAuth) Resolve(_ context.Context, token string) (*model.User, error) {
	if token != goodToken {
		return nil, errs.ErrUnauthorized
	}
	u := *f.user
	return &u, nil
}

func (f *fakeAuth) SetCalendarCredential(_ context.Context, _ int64, c *string) error {
	f.credSet, f.gotCred = true, c
	return f.credErr
}

type fakeTaskSvc struct {
	gotInput model.TaskInput
	gotPatch model.TaskPatch
	gotID    int64
	gotUser  *model.User

	tasks []model.Task
	err   error
	panic bool
}

func (f *fakeTaskSvc) Create(_ context.Context, u *model.User, in model.TaskInput) (*model.Task, error) {
	if f.panic {
		panic("boom")
	}
	f.gotUser, f.gotInput = u, in
	if f.err != nil {
		return nil, f.err
	}
	return &model.Task{
		ID: 1, OwnerID: u.ID, Title: in.Title, DueDate: in.DueDate, Priority: model.PriorityMedium,
		SyncWithCalendar: in.SyncWithCalendar, ExternalEventID: ptr("gcal-1"),
	}, nil
}

func (f *fakeTaskSvc) List(_ context.Context, u *model.User) ([]model.Task, error) {
	f.gotUser = u
	return f.tasks, f.err
}

func (f *fakeTaskSvc) Update(_ context.Context, u *model.User, id int64, p model.TaskPatch) (*model.Task, error) {
	f.gotUser, f.gotID, f.gotPatch = u, id, p
	if f.err != nil {
		return nil, f.err
	}
	return &model.Task{ID: id, OwnerID: u.ID, Title: "t", Priority: model.PriorityLow}, nil
}

func (f *fakeTaskSvc) Delete(_ context.Context, u *model.User, id int64) error {
	f.gotUser, f.gotID = u, id
	return f.err
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type seenRequest struct {
	route, method string
	code          int
}

type fakeObserver struct {
	mu   sync.Mutex
	seen []seenRequest
}

func (o *fakeObserver) ObserveHTTP(route, method string, code int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, seenRequest{route, method, code})
}

func ptr[T any](v T) *T { return &v }

type fixture struct {
	h     http.Handler
	auth  *fakeAuth
	tasks *fakeTaskSvc
	obs   *fakeObserver
}

func newFixture(t *testing.T, ping Pinger) *fixture {
	t.Helper()
	f := &fixture{
		auth:  &fakeAuth{user: &model.User{ID: 42, Email: "a@x.io", Name: "A"}},
		tasks: &fakeTaskSvc{},
		obs:   &fakeObserver{},
	}
	f.h = NewRouter(Deps{
		Auth:    f.auth,
		Tasks:   f.tasks,
		Health:  ping,
		Metrics: f.obs,
		Log:     zaptest.NewLogger(t),
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+goodToken)
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRouter_Welcome(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Welcome to SyncDo API", decode[map[string]string](t, rec)["message"])
	require.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRouter_Healthz(t *testing.T) {
	t.Parallel()

	rec := newFixture(t, fakePinger{}).do(t, http.MethodGet, "/healthz", "", false)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = newFixture(t, fakePinger{err: errors.New("down")}).do(t, http.MethodGet, "/healthz", "", false)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_Signup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		err  error
		code int
	}{
		{"ok", `{"email":"a@x.io","password":"pw","name":"A"}`, nil, http.StatusOK},
		{"malformed", `{"email":`, nil, http.StatusBadRequest},
		{"conflict", `{"email":"a@x.io","password":"pw","name":"A"}`, errs.ErrAlreadyExists, http.StatusConflict},
		{"validation", `{"email":"","password":"pw","name":"A"}`, errs.ErrValidation, http.StatusBadRequest},
		{"internal", `{"email":"a@x.io","password":"pw","name":"A"}`, errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, nil)
			f.auth.signupErr = tt.err

			rec := f.do(t, http.MethodPost, "/auth/signup", tt.body, false)
			require.Equal(t, tt.code, rec.Code, rec.Body.String())
			if tt.code == http.StatusOK {
				got := decode[tokenResponse](t, rec)
				require.Equal(t, "tok-a@x.io", got.AccessToken)
				require.Equal(t, "bearer", got.TokenType)
			} else {
				require.NotEmpty(t, decode[errorBody](t, rec).Detail)
			}
		})
	}
}

func TestRouter_Login(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	rec := f.do(t, http.MethodPost, "/auth/login", `{"email":"admin","password":"admin"}`, false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "192.0.2.1", f.auth.gotIP)

	f.auth.loginErr = errs.ErrUnauthorized
	rec = f.do(t, http.MethodPost, "/auth/login", `{"email":"a@x.io","password":"bad"}`, false)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	f.auth.loginErr = errs.ErrRateLimited
	rec = f.do(t, http.MethodPost, "/auth/login", `{"email":"a@x.io","password":"bad"}`, false)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRouter_RejectsNonJSONBody(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("email=a"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestRouter_BearerRequired(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	for _, path := range []string{"/tasks", "/tasks/", "/auth/me"} {
		rec := f.do(t, http.MethodGet, path, "", false)
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
		require.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	}

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Nil(t, f.tasks.gotUser)
}

func TestRouter_Me(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.auth.user.CalendarCredential = ptr("1//r")

	rec := f.do(t, http.MethodGet, "/auth/me", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[userResponse](t, rec)
	require.Equal(t, int64(42), got.ID)
	require.True(t, got.CalendarLinked)
	require.NotContains(t, rec.Body.String(), "1//r")
}

func TestRouter_Calendar(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPut, "/auth/calendar", `{"refresh_token":" 1//abc "}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "1//abc", *f.auth.gotCred)
	require.True(t, decode[userResponse](t, rec).CalendarLinked)

	rec = f.do(t, http.MethodDelete, "/auth/calendar", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, f.auth.credSet)
	require.Nil(t, f.auth.gotCred)
	require.False(t, decode[userResponse](t, rec).CalendarLinked)
}

func TestRouter_CreateTask(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/tasks/", `{"title":"X","due_date":"2024-01-01T10:00:00Z"}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	in := f.tasks.gotInput
	require.Equal(t, int64(42), f.tasks.gotUser.ID)
	require.True(t, in.SyncWithCalendar)
	require.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), *in.DueDate)

	got := decode[map[string]any](t, rec)
	require.Equal(t, "gcal-1", got["google_event_id"])
	require.Equal(t, "2024-01-01T10:00:00Z", got["due_date"])
	for _, k := range []string{"id", "title", "description", "priority", "is_completed", "created_at", "sync_with_calendar"} {
		require.Contains(t, got, k)
	}
}

func TestRouter_CreateTask_NaiveDueDateIsUTC(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/tasks", `{"title":"X","due_date":"2024-01-01T10:00","sync_with_calendar":false}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.False(t, f.tasks.gotInput.SyncWithCalendar)
	require.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), *f.tasks.gotInput.DueDate)

	rec = f.do(t, http.MethodPost, "/tasks", `{"title":"X","due_date":"tomorrow"}`, true)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_ListTasks(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/tasks", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())

	f.tasks.tasks = []model.Task{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}}
	rec = f.do(t, http.MethodGet, "/tasks/", "", true)
	require.Len(t, decode[[]taskResponse](t, rec), 2)
}

func TestRouter_UpdateTask_PartialPatch(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPut, "/tasks/7", `{"description":null,"is_completed":true}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, int64(7), f.tasks.gotID)

	p := f.tasks.gotPatch
	require.False(t, p.Title.Set)
	require.False(t, p.DueDate.Set)
	require.True(t, p.Description.Set)
	require.True(t, p.Description.Null)
	require.Equal(t, model.Some(true), p.IsCompleted)

	rec = f.do(t, http.MethodPut, "/tasks/7", `{"due_date":"2024-03-01T09:30:00+02:00"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, time.Date(2024, 3, 1, 7, 30, 0, 0, time.UTC), f.tasks.gotPatch.DueDate.Value)
}

func TestRouter_UpdateTask_Errors(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPut, "/tasks/abc", `{}`, true)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	f.tasks.err = errs.ErrNotFound
	rec = f.do(t, http.MethodPut, "/tasks/9", `{"title":"x"}`, true)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_DeleteTask(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodDelete, "/tasks/3", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "success", decode[map[string]string](t, rec)["status"])
	require.Equal(t, int64(3), f.tasks.gotID)

	f.tasks.err = errs.ErrNotFound
	rec = f.do(t, http.MethodDelete, "/tasks/3", "", true)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_RecoversPanics(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.tasks.panic = true

	rec := f.do(t, http.MethodPost, "/tasks", `{"title":"X"}`, true)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "internal error", decode[errorBody](t, rec).Detail)
}

func TestRouter_MetricsUseRoutePattern(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	f.do(t, http.MethodDelete, "/tasks/3", "", true)
	f.do(t, http.MethodGet, "/nope", "", false)

	require.Equal(t, []seenRequest{
		{"/tasks/{id}", http.MethodDelete, http.StatusOK},
		{"unmatched", http.MethodGet, http.StatusNotFound},
	}, f.obs.seen)
}

func TestRequestID_PropagatesIncoming(t *testing.T) {
	t.Parallel()
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromCtx(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, "abc-123", seen)
	require.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestUserFromCtx(t *testing.T) {
	t.Parallel()

	_, ok := UserFromCtx(context.Background())
	require.False(t, ok)

	u := &model.User{ID: 1}
	got, ok := UserFromCtx(WithUser(context.Background(), u))
	require.True(t, ok)
	require.Same(t, u, got)
}
