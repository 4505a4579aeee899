package calendar

import (
	"context"
	"errors"
	"testing"
	"time"
)

func utcDay(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExtractBlockedDaysAllDayEvent(t *testing.T) {
	events := []Event{
		{Start: Marker{Date: "2025-07-29"}, End: Marker{Date: "2025-07-31"}},
	}
	days := ExtractBlockedDays(events)
	want := []time.Time{utcDay(2025, 7, 29), utcDay(2025, 7, 30)}
	if len(days) != len(want) {
		t.Fatalf("got %d days, want %d: %v", len(days), len(want), days)
	}
	for i := range want {
		if !days[i].Equal(want[i]) {
			t.Fatalf("days[%d] = %v, want %v", i, days[i], want[i])
		}
	}
}

func TestExtractBlockedDaysZeroLengthAllDay(t *testing.T) {
	events := []Event{
		{Start: Marker{Date: "2025-07-29"}, End: Marker{Date: "2025-07-29"}},
	}
	days := ExtractBlockedDays(events)
	if len(days) != 1 || !days[0].Equal(utcDay(2025, 7, 29)) {
		t.Fatalf("zero-length all-day event should block its start day, got %v", days)
	}
}

func TestExtractBlockedDaysTimedEvent(t *testing.T) {
	events := []Event{
		{
			Start: Marker{DateTime: "2025-08-02T14:00:00+02:00"},
			End:   Marker{DateTime: "2025-08-02T18:00:00+02:00"},
		},
	}
	days := ExtractBlockedDays(events)
	if len(days) != 1 || !days[0].Equal(utcDay(2025, 8, 2)) {
		t.Fatalf("timed event should block only its start day, got %v", days)
	}
}

func TestExtractBlockedDaysSkipsMalformed(t *testing.T) {
	events := []Event{
		{Start: Marker{Date: "not-a-date"}},
		{Start: Marker{DateTime: "also wrong"}},
		{},
		{Start: Marker{Date: "2025-07-29"}, End: Marker{Date: "2025-07-30"}},
	}
	days := ExtractBlockedDays(events)
	if len(days) != 1 || !days[0].Equal(utcDay(2025, 7, 29)) {
		t.Fatalf("malformed events must be skipped, got %v", days)
	}
}

func TestExtractBlockedDaysDedupsAndSorts(t *testing.T) {
	events := []Event{
		{Start: Marker{DateTime: "2025-07-30T10:00:00Z"}},
		{Start: Marker{Date: "2025-07-29"}, End: Marker{Date: "2025-07-31"}},
		{Start: Marker{DateTime: "2025-07-29T22:00:00Z"}},
	}
	days := ExtractBlockedDays(events)
	want := []time.Time{utcDay(2025, 7, 29), utcDay(2025, 7, 30)}
	if len(days) != len(want) {
		t.Fatalf("got %v, want %v", days, want)
	}
	for i := range want {
		if !days[i].Equal(want[i]) {
			t.Fatalf("days[%d] = %v, want %v", i, days[i], want[i])
		}
	}
}

type stubProvider struct {
	events []Event
	err    error
}

func (s stubProvider) ListEvents(ctx context.Context, refreshToken string, timeMin, timeMax time.Time) ([]Event, error) {
	return s.events, s.err
}

func TestSyncWrapsProviderFailure(t *testing.T) {
	_, err := Sync(context.Background(), stubProvider{err: errors.New("boom")}, "tok", time.Now(), time.Now().Add(time.Hour))
	if !errors.Is(err, ErrSyncFailure) {
		t.Fatalf("expected ErrSyncFailure, got %v", err)
	}
}

func TestSyncReturnsExtractedDays(t *testing.T) {
	days, err := Sync(context.Background(), stubProvider{events: []Event{
		{Start: Marker{Date: "2025-07-29"}, End: Marker{Date: "2025-07-30"}},
	}}, "tok", time.Now(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(days) != 1 || !days[0].Equal(utcDay(2025, 7, 29)) {
		t.Fatalf("got %v", days)
	}
}
