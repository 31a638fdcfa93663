package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// OAuthConfig is the process-wide client identity used to redeem refresh credentials.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	// TokenURL overrides the Google token endpoint (tests, proxies).
	TokenURL string
	// Endpoint overrides the Calendar API base URL (tests, proxies).
	Endpoint string
}

// GoogleConnector creates Google Calendar clients from refresh credentials.
type GoogleConnector struct {
	conf     *oauth2.Config
	endpoint string
	base     http.RoundTripper
}

var _ Connector = (*GoogleConnector)(nil)

// NewGoogleConnector constructs a connector for the given client identity.
func NewGoogleConnector(cfg OAuthConfig) *GoogleConnector {
	ep := google.Endpoint
	if cfg.TokenURL != "" {
		ep.TokenURL = cfg.TokenURL
	}
	return &GoogleConnector{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     ep,
			Scopes:       []string{gcal.CalendarEventsScope},
		},
		endpoint: cfg.Endpoint,
		// Force HTTP/1.1 by disabling HTTP/2
		base: &http.Transport{ForceAttemptHTTP2: false},
	}
}

// Connect returns a Provider acting on behalf of the refresh credential's owner.
func (c *GoogleConnector) Connect(ctx context.Context, refreshToken string) (Provider, error) {
	if refreshToken == "" {
		return nil, errors.New("empty refresh token")
	}

	// Expired access token forces a refresh on first use.
	ts := c.conf.TokenSource(ctx, &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Unix(1, 0),
	})
	client := &http.Client{
		Transport: &oauth2.Transport{Source: ts, Base: c.base},
	}

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// Client wraps the Google Calendar service.
type Client struct {
	svc *gcal.Service
}

var _ Provider = (*Client)(nil)

// Insert creates a new calendar event.
func (c *Client) Insert(ctx context.Context, calendarID string, ev Event) (string, error) {
	created, err := c.svc.Events.Insert(calendarID, toGoogleEvent(ev)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create event: %w", err)
	}
	if created.Id == "" {
		return "", errors.New("failed to create event: empty event id")
	}
	return created.Id, nil
}

// Patch updates summary, description, times and status of an existing event.
func (c *Client) Patch(ctx context.Context, calendarID, eventID string, ev Event) error {
	body := toGoogleEvent(ev)
	body.Status = ev.Status
	// An empty description must clear the remote one.
	body.ForceSendFields = []string{"Description"}
	if _, err := c.svc.Events.Patch(calendarID, eventID, body).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to patch event: %w", err)
	}
	return nil
}

// Delete deletes a calendar event.
func (c *Client) Delete(ctx context.Context, calendarID, eventID string) error {
	if err := c.svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

func toGoogleEvent(ev Event) *gcal.Event {
	out := &gcal.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
	}
	if ev.Start != nil {
		out.Start = toDateTime(*ev.Start)
	}
	if ev.End != nil {
		out.End = toDateTime(*ev.End)
	}
	return out
}

func toDateTime(t time.Time) *gcal.EventDateTime {
	return &gcal.EventDateTime{
		DateTime: t.UTC().Format(time.RFC3339),
		TimeZone: "UTC",
	}
}
