package daterange

import (
	"errors"
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewRejectsInvertedRange(t *testing.T) {
	if _, err := New(day(2025, 7, 3), day(2025, 7, 1)); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	if _, err := New(day(2025, 7, 1), day(2025, 7, 1)); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for zero-length range, got %v", err)
	}
}

func TestOverlapsHalfOpen(t *testing.T) {
	base, _ := New(day(2025, 7, 1), day(2025, 7, 3))

	cases := []struct {
		name  string
		start time.Time
		end   time.Time
		want  bool
	}{
		{"identical", day(2025, 7, 1), day(2025, 7, 3), true},
		{"partial overlap", day(2025, 7, 2), day(2025, 7, 4), true},
		{"contained", day(2025, 7, 1), day(2025, 7, 2), true},
		{"adjacent after", day(2025, 7, 3), day(2025, 7, 5), false},
		{"adjacent before", day(2025, 6, 29), day(2025, 7, 1), false},
		{"disjoint", day(2025, 7, 10), day(2025, 7, 12), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			other, err := New(tc.start, tc.end)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if got := base.Overlaps(other); got != tc.want {
				t.Fatalf("Overlaps = %v, want %v", got, tc.want)
			}
			if got := other.Overlaps(base); got != tc.want {
				t.Fatalf("Overlaps is not symmetric: %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCoversDay(t *testing.T) {
	r, _ := New(day(2025, 7, 1), day(2025, 7, 3))
	if !r.CoversDay(day(2025, 7, 1)) {
		t.Fatal("start day should be covered")
	}
	if !r.CoversDay(day(2025, 7, 2)) {
		t.Fatal("middle day should be covered")
	}
	if r.CoversDay(day(2025, 7, 3)) {
		t.Fatal("end day is exclusive")
	}
}

func TestDayTruncatesToUTCMidnight(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	in := time.Date(2025, 7, 29, 1, 30, 0, 0, loc) // 2025-07-28T22:30Z
	got := Day(in)
	want := day(2025, 7, 28)
	if !got.Equal(want) {
		t.Fatalf("Day = %v, want %v", got, want)
	}
}

func TestDays(t *testing.T) {
	r, _ := New(day(2025, 7, 29), day(2025, 7, 31))
	days := r.Days()
	if len(days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(days))
	}
	if !days[0].Equal(day(2025, 7, 29)) || !days[1].Equal(day(2025, 7, 30)) {
		t.Fatalf("unexpected days: %v", days)
	}
}
