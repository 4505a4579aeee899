package calendar

import (
	"context"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	domaincalendar "spothire/internal/domain/calendar"
)

// GoogleProvider lists the owner's primary calendar events via the Calendar
// API. Each location owner granted offline access during onboarding, so the
// stored refresh token mints fresh access tokens per sync.
type GoogleProvider struct {
	OAuth *oauth2.Config
	// CalendarID defaults to "primary".
	CalendarID string
	// ExtraOptions is used by tests to point the service at a fake endpoint.
	ExtraOptions []option.ClientOption
	// MaxResults caps a single page; the provider follows page tokens.
	MaxResults int64
}

func (p *GoogleProvider) ListEvents(ctx context.Context, refreshToken string, timeMin, timeMax time.Time) ([]domaincalendar.Event, error) {
	opts := p.clientOptions(ctx, refreshToken)
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}

	var out []domaincalendar.Event
	pageToken := ""
	for {
		call := svc.Events.List(p.calendarID()).
			TimeMin(timeMin.Format(time.RFC3339)).
			TimeMax(timeMax.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			MaxResults(p.maxResults()).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, err
		}
		for _, item := range resp.Items {
			out = append(out, mapEvent(item))
		}
		if resp.NextPageToken == "" {
			return out, nil
		}
		pageToken = resp.NextPageToken
	}
}

func (p *GoogleProvider) clientOptions(ctx context.Context, refreshToken string) []option.ClientOption {
	var opts []option.ClientOption
	if p.OAuth != nil && refreshToken != "" {
		source := p.OAuth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
		opts = append(opts, option.WithTokenSource(source))
	}
	return append(opts, p.ExtraOptions...)
}

func mapEvent(item *gcal.Event) domaincalendar.Event {
	ev := domaincalendar.Event{}
	if item.Start != nil {
		ev.Start = domaincalendar.Marker{Date: item.Start.Date, DateTime: item.Start.DateTime}
	}
	if item.End != nil {
		ev.End = domaincalendar.Marker{Date: item.End.Date, DateTime: item.End.DateTime}
	}
	return ev
}

func (p *GoogleProvider) calendarID() string {
	if p.CalendarID != "" {
		return p.CalendarID
	}
	return "primary"
}

func (p *GoogleProvider) maxResults() int64 {
	if p.MaxResults > 0 {
		return p.MaxResults
	}
	return 250
}

var _ domaincalendar.Provider = (*GoogleProvider)(nil)
