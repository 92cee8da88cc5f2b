package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/teemow/goaltiers/internal/google"
	"github.com/teemow/goaltiers/internal/instrumentation"
)

// PrimaryCalendarID addresses the signed-in user's main calendar.
const PrimaryCalendarID = "primary"

// Lister lists calendar events within a time window.
type Lister interface {
	ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]Event, error)
}

// Client reads one account's events through the Calendar v3 API.
type Client struct {
	events  *gcal.EventsService
	account string
	metrics *instrumentation.Metrics
}

var _ Lister = (*Client)(nil)

func (c *Client) Account() string {
	return c.account
}

// SetMetrics attaches a metrics recorder. Nil disables recording.
func (c *Client) SetMetrics(m *instrumentation.Metrics) {
	c.metrics = m
}

// HasToken reports whether tokens holds a Google token for account.
func HasToken(account string, tokens google.TokenProvider) bool {
	return tokens != nil && account != "" && tokens.HasTokenForAccount(account)
}

// NewClient builds a client for account from explicit API options. Tests
// use it to point the client at a fake endpoint.
func NewClient(ctx context.Context, account string, opts ...option.ClientOption) (*Client, error) {
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}
	return &Client{events: svc.Events, account: account}, nil
}

// NewClientForAccount builds a client authorized with account's token
// from tokens. conf refreshes the token when it expires, and a refreshed
// token goes back to tokens when it implements google.TokenSaver.
func NewClientForAccount(ctx context.Context, account string, tokens google.TokenProvider, conf *oauth2.Config, opts ...option.ClientOption) (*Client, error) {
	switch {
	case tokens == nil:
		return nil, errors.New("token provider cannot be nil")
	case conf == nil:
		return nil, errors.New("oauth config cannot be nil")
	}

	token, err := tokens.GetTokenForAccount(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to get Google OAuth token for account %s: %w", account, err)
	}

	var onRefresh func(*oauth2.Token)
	if saver, ok := tokens.(google.TokenSaver); ok {
		onRefresh = func(tok *oauth2.Token) { saver.SaveTokenForAccount(account, tok) }
	}
	opts = append([]option.ClientOption{option.WithHTTPClient(google.NewHTTPClient(ctx, conf, token, onRefresh))}, opts...)
	return NewClient(ctx, account, opts...)
}

// ListEvents lists the single events of a calendar that intersect
// [timeMin, timeMax], ordered by start time. Recurring events are
// expanded into their instances.
func (c *Client) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) (_ []Event, err error) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, instrumentation.OperationList,
		instrumentation.NewSpanAttributeBuilder().WithResource("calendar", calendarID).Build()...)
	start := time.Now()
	defer func() {
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
		}
		c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceCalendar, instrumentation.OperationList, status, time.Since(start))
		instrumentation.EndSpan(span, err)
	}()

	var events []Event
	call := c.events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")
	err = call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			events = append(events, toEvent(item))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	if events == nil {
		events = []Event{}
	}
	return events, nil
}
