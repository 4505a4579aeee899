package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

func newFakeCalendarServer(t *testing.T, pages map[string]*gcal.Events) (*httptest.Server, *[]string) {
	t.Helper()
	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.String())
		page, ok := pages[r.URL.Query().Get("pageToken")]
		if !ok {
			http.Error(w, "unexpected page token", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(page); err != nil {
			t.Errorf("encode page: %v", err)
		}
	}))
	return server, &requests
}

func TestListEventsMapsMarkers(t *testing.T) {
	server, _ := newFakeCalendarServer(t, map[string]*gcal.Events{
		"": {
			Items: []*gcal.Event{
				{
					Start: &gcal.EventDateTime{Date: "2025-07-29"},
					End:   &gcal.EventDateTime{Date: "2025-07-31"},
				},
				{
					Start: &gcal.EventDateTime{DateTime: "2025-08-02T14:00:00+02:00"},
					End:   &gcal.EventDateTime{DateTime: "2025-08-02T18:00:00+02:00"},
				},
			},
		},
	})
	defer server.Close()

	provider := &GoogleProvider{
		ExtraOptions: []option.ClientOption{
			option.WithEndpoint(server.URL),
			option.WithoutAuthentication(),
		},
	}
	events, err := provider.ListEvents(context.Background(),
		"", time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Start.Date != "2025-07-29" || events[0].End.Date != "2025-07-31" {
		t.Fatalf("all-day markers not mapped: %+v", events[0])
	}
	if events[1].Start.DateTime != "2025-08-02T14:00:00+02:00" {
		t.Fatalf("timed marker not mapped: %+v", events[1])
	}
}

func TestListEventsFollowsPageTokens(t *testing.T) {
	server, requests := newFakeCalendarServer(t, map[string]*gcal.Events{
		"": {
			Items:         []*gcal.Event{{Start: &gcal.EventDateTime{Date: "2025-07-29"}}},
			NextPageToken: "page-2",
		},
		"page-2": {
			Items: []*gcal.Event{{Start: &gcal.EventDateTime{Date: "2025-07-30"}}},
		},
	})
	defer server.Close()

	provider := &GoogleProvider{
		ExtraOptions: []option.ClientOption{
			option.WithEndpoint(server.URL),
			option.WithoutAuthentication(),
		},
	}
	events, err := provider.ListEvents(context.Background(),
		"", time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events across pages, want 2", len(events))
	}
	if len(*requests) != 2 {
		t.Fatalf("expected 2 requests, saw %d: %v", len(*requests), *requests)
	}
}

func TestListEventsSendsWindowAndCalendarID(t *testing.T) {
	server, requests := newFakeCalendarServer(t, map[string]*gcal.Events{
		"": {},
	})
	defer server.Close()

	provider := &GoogleProvider{
		CalendarID: "owner@example.com",
		ExtraOptions: []option.ClientOption{
			option.WithEndpoint(server.URL),
			option.WithoutAuthentication(),
		},
	}
	timeMin := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	timeMax := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	if _, err := provider.ListEvents(context.Background(), "", timeMin, timeMax); err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(*requests) != 1 {
		t.Fatalf("expected one request, saw %v", *requests)
	}
	url := (*requests)[0]
	if !strings.Contains(url, "owner%40example.com") && !strings.Contains(url, "owner@example.com") {
		t.Fatalf("calendar id missing from request: %s", url)
	}
	if !strings.Contains(url, "timeMin=") || !strings.Contains(url, "timeMax=") {
		t.Fatalf("sync window missing from request: %s", url)
	}
	if !strings.Contains(url, "singleEvents=true") {
		t.Fatalf("recurring events must be expanded: %s", url)
	}
}
