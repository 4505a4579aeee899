package calendar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"spothire/internal/domain/shared/daterange"
)

// ErrSyncFailure wraps provider fetch errors so callers can keep the stale
// blackout set instead of failing open or closed.
var ErrSyncFailure = errors.New("calendar: sync failed")

// Event is the normalized shape of a third-party calendar event. Date is a
// date-only marker ("2025-07-29") used by all-day events; DateTime is an
// RFC3339 instant used by timed events. Providers are mapped into this
// shape at the infra boundary so nothing downstream branches on raw
// provider records.
type Event struct {
	Start Marker
	End   Marker
}

type Marker struct {
	Date     string
	DateTime string
}

func (m Marker) empty() bool { return m.Date == "" && m.DateTime == "" }

// Provider lists raw events for a location owner over a window.
type Provider interface {
	ListEvents(ctx context.Context, refreshToken string, timeMin, timeMax time.Time) ([]Event, error)
}

// ExtractBlockedDays converts events into a deduplicated set of blocked
// whole days. All-day events block each day from start (inclusive) to end
// (exclusive); timed events block only the day containing their start.
// Events with missing or unparseable start data are skipped, not fatal.
func ExtractBlockedDays(events []Event) []time.Time {
	seen := make(map[time.Time]struct{})
	var days []time.Time
	add := func(d time.Time) {
		d = daterange.Day(d)
		if _, ok := seen[d]; ok {
			return
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}

	for _, ev := range events {
		if ev.Start.empty() {
			continue
		}
		if ev.Start.Date != "" {
			start, err := time.Parse("2006-01-02", ev.Start.Date)
			if err != nil {
				continue
			}
			end := start
			if ev.End.Date != "" {
				if parsed, err := time.Parse("2006-01-02", ev.End.Date); err == nil {
					end = parsed
				}
			}
			for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
				add(d)
			}
			if !end.After(start) {
				// zero-length all-day event still blocks its start day
				add(start)
			}
			continue
		}
		instant, err := time.Parse(time.RFC3339, ev.Start.DateTime)
		if err != nil {
			continue
		}
		add(instant)
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// Sync fetches the owner's events and extracts blocked days. A fetch error
// comes back wrapped in ErrSyncFailure; the caller must retain its
// last-known set.
func Sync(ctx context.Context, provider Provider, refreshToken string, timeMin, timeMax time.Time) ([]time.Time, error) {
	events, err := provider.ListEvents(ctx, refreshToken, timeMin, timeMax)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyncFailure, err)
	}
	return ExtractBlockedDays(events), nil
}
