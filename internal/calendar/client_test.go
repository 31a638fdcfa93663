package calendar

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	Method string
	Path   string
	Body   map[string]any
}

// fakeGoogle serves the OAuth token endpoint and the Calendar events API.
type fakeGoogle struct {
	mu         sync.Mutex
	calls      []recordedCall
	refreshes  []string
	failEvents bool
}

func (f *fakeGoogle) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			assert.NoError(t, r.ParseForm())
			f.mu.Lock()
			f.refreshes = append(f.refreshes, r.PostForm.Get("refresh_token"))
			f.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`)
			return
		}

		assert.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		var body map[string]any
		if r.Body != nil {
			raw, _ := io.ReadAll(r.Body)
			if len(raw) > 0 {
				assert.NoError(t, json.Unmarshal(raw, &body))
			}
		}
		f.mu.Lock()
		f.calls = append(f.calls, recordedCall{Method: r.Method, Path: r.URL.Path, Body: body})
		fail := f.failEvents
		f.mu.Unlock()

		if fail {
			http.Error(w, `{"error":{"code":400,"message":"bad request"}}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodPost:
			_, _ = io.WriteString(w, `{"id":"evt123","status":"confirmed"}`)
		case http.MethodPatch:
			_, _ = io.WriteString(w, `{"id":"`+strings.TrimPrefix(r.URL.Path, "/calendars/primary/events/")+`"}`)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

func newTestProvider(t *testing.T) (Provider, *fakeGoogle) {
	t.Helper()
	fg := &fakeGoogle{}
	srv := httptest.NewServer(fg.handler(t))
	t.Cleanup(srv.Close)

	conn := NewGoogleConnector(OAuthConfig{
		ClientID:     "cid",
		ClientSecret: "csecret",
		TokenURL:     srv.URL + "/token",
		Endpoint:     srv.URL + "/",
	})
	p, err := conn.Connect(context.Background(), "1//refresh")
	require.NoError(t, err)
	return p, fg
}

func TestConnect_EmptyRefreshToken(t *testing.T) {
	conn := NewGoogleConnector(OAuthConfig{ClientID: "cid"})
	_, err := conn.Connect(context.Background(), "")
	require.Error(t, err)
}

func TestClient_Insert_ZeroDurationUTC(t *testing.T) {
	p, fg := newTestProvider(t)
	due := time.Date(2024, 1, 1, 12, 0, 0, 0, time.FixedZone("CET", 2*3600))

	id, err := p.Insert(context.Background(), DefaultCalendarID, Event{
		Summary:     "X",
		Description: "d",
		Start:       &due,
		End:         &due,
	})
	require.NoError(t, err)
	require.Equal(t, "evt123", id)

	require.Equal(t, []string{"1//refresh"}, fg.refreshes)
	require.Len(t, fg.calls, 1)
	c := fg.calls[0]
	require.Equal(t, http.MethodPost, c.Method)
	require.Equal(t, "/calendars/primary/events", c.Path)
	require.Equal(t, "X", c.Body["summary"])
	require.Equal(t, "d", c.Body["description"])
	for _, k := range []string{"start", "end"} {
		dt := c.Body[k].(map[string]any)
		require.Equal(t, "2024-01-01T10:00:00Z", dt["dateTime"], k)
		require.Equal(t, "UTC", dt["timeZone"], k)
	}
}

func TestClient_Patch_StatusAndClearedDescription(t *testing.T) {
	p, fg := newTestProvider(t)

	err := p.Patch(context.Background(), DefaultCalendarID, "evt123", Event{
		Summary: "Y",
		Status:  StatusCancelled,
	})
	require.NoError(t, err)

	require.Len(t, fg.calls, 1)
	c := fg.calls[0]
	require.Equal(t, http.MethodPatch, c.Method)
	require.Equal(t, "/calendars/primary/events/evt123", c.Path)
	require.Equal(t, "cancelled", c.Body["status"])
	desc, ok := c.Body["description"]
	require.True(t, ok, "description must be sent even when empty")
	require.Equal(t, "", desc)
	_, hasStart := c.Body["start"]
	require.False(t, hasStart)
}

func TestClient_Delete(t *testing.T) {
	p, fg := newTestProvider(t)

	require.NoError(t, p.Delete(context.Background(), DefaultCalendarID, "evt123"))
	require.Len(t, fg.calls, 1)
	require.Equal(t, http.MethodDelete, fg.calls[0].Method)
	require.Equal(t, "/calendars/primary/events/evt123", fg.calls[0].Path)
}

func TestClient_ProviderErrors(t *testing.T) {
	p, fg := newTestProvider(t)
	fg.failEvents = true
	ctx := context.Background()

	_, err := p.Insert(ctx, DefaultCalendarID, Event{Summary: "X"})
	require.Error(t, err)
	require.Error(t, p.Patch(ctx, DefaultCalendarID, "evt", Event{}))
	require.Error(t, p.Delete(ctx, DefaultCalendarID, "evt"))
}
