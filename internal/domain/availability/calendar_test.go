package availability

import (
	"errors"
	"testing"
	"time"

	"spothire/internal/domain/location"
	"spothire/internal/domain/shared/daterange"
)

var calNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func mustRange(t *testing.T, startDay, endDay int) daterange.Range {
	t.Helper()
	r, err := daterange.New(
		time.Date(2025, 7, startDay, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 7, endDay, 0, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	return r
}

func TestReserveRejectsOverlap(t *testing.T) {
	cal := NewCalendar(location.LocationID("loc-5"))
	if err := cal.Reserve(mustRange(t, 1, 3), "bk-1", calNow); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	err := cal.Reserve(mustRange(t, 2, 4), "bk-2", calNow)
	if !errors.Is(err, ErrAvailabilityConflict) {
		t.Fatalf("expected ErrAvailabilityConflict, got %v", err)
	}
	// adjacent ranges do not collide under half-open semantics
	if err := cal.Reserve(mustRange(t, 3, 5), "bk-3", calNow); err != nil {
		t.Fatalf("adjacent reserve: %v", err)
	}
}

func TestPromoteLosesRaceToHardHold(t *testing.T) {
	cal := NewCalendar(location.LocationID("loc-5"))
	if err := cal.Hold(mustRange(t, 1, 3), "bk-1", time.Hour, calNow); err != nil {
		t.Fatalf("hold bk-1: %v", err)
	}
	if err := cal.Hold(mustRange(t, 2, 4), "bk-2", time.Hour, calNow); err == nil {
		t.Fatal("overlapping soft holds must conflict")
	}
	// bk-1 releases, bk-2 takes the range, bk-1 comes back to confirm
	cal.Release("bk-1", calNow)
	if err := cal.Reserve(mustRange(t, 2, 4), "bk-2", calNow); err != nil {
		t.Fatalf("reserve bk-2: %v", err)
	}
	if err := cal.Hold(mustRange(t, 1, 3), "bk-1", time.Hour, calNow); err == nil {
		t.Fatal("re-hold over bk-2 must conflict")
	}
	if err := cal.Promote("bk-1", calNow); !errors.Is(err, ErrHoldNotFound) {
		t.Fatalf("promote without hold: %v", err)
	}
}

func TestPromoteRechecksConflicts(t *testing.T) {
	cal := NewCalendar(location.LocationID("loc-5"))
	if err := cal.Hold(mustRange(t, 1, 3), "bk-1", time.Hour, calNow); err != nil {
		t.Fatalf("hold: %v", err)
	}
	// a second booking takes an overlapping range after bk-1's hold expires
	expired := calNow.Add(2 * time.Hour)
	if err := cal.Reserve(mustRange(t, 2, 4), "bk-2", expired); err != nil {
		t.Fatalf("reserve bk-2: %v", err)
	}
	err := cal.Promote("bk-1", expired)
	if !errors.Is(err, ErrAvailabilityConflict) {
		t.Fatalf("promotion must re-check overlaps, got %v", err)
	}
}

func TestPromoteUpgradesSoftHold(t *testing.T) {
	cal := NewCalendar(location.LocationID("loc-5"))
	if err := cal.Hold(mustRange(t, 1, 3), "bk-1", time.Hour, calNow); err != nil {
		t.Fatalf("hold: %v", err)
	}
	if err := cal.Promote("bk-1", calNow); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if cal.Holds[0].Kind != HoldHard {
		t.Fatalf("kind = %s, want %s", cal.Holds[0].Kind, HoldHard)
	}
	if !cal.Holds[0].ExpiresAt.IsZero() {
		t.Fatal("hard holds must not expire")
	}
	// promoting a hard hold again is a no-op
	if err := cal.Promote("bk-1", calNow); err != nil {
		t.Fatalf("repeated promote: %v", err)
	}
}

func TestExpiredSoftHoldFreesRange(t *testing.T) {
	cal := NewCalendar(location.LocationID("loc-5"))
	if err := cal.Hold(mustRange(t, 1, 3), "bk-1", 30*time.Minute, calNow); err != nil {
		t.Fatalf("hold: %v", err)
	}
	r := mustRange(t, 1, 3)
	if cal.IsFree(r, calNow) {
		t.Fatal("range must be blocked while the hold is live")
	}
	later := calNow.Add(time.Hour)
	if !cal.IsFree(r, later) {
		t.Fatal("expired soft hold must not block the range")
	}
	if err := cal.Reserve(r, "bk-2", later); err != nil {
		t.Fatalf("reserve over expired hold: %v", err)
	}
}

func TestBlackoutsBlockOverlappingRanges(t *testing.T) {
	cal := NewCalendar(location.LocationID("loc-5"))
	blocked := time.Date(2025, 7, 30, 0, 0, 0, 0, time.UTC)
	cal.SetBlackouts([]time.Time{blocked}, calNow)

	covering := mustRange(t, 29, 31)
	if cal.IsFree(covering, calNow) {
		t.Fatal("range covering a blackout day must not be free")
	}
	if err := cal.Reserve(covering, "bk-1", calNow); !errors.Is(err, ErrAvailabilityConflict) {
		t.Fatalf("expected ErrAvailabilityConflict, got %v", err)
	}
	if !cal.IsFree(mustRange(t, 28, 30), calNow) {
		t.Fatal("range ending on the blackout day must be free")
	}
}

func TestSetBlackoutsReplacesAndDedups(t *testing.T) {
	cal := NewCalendar(location.LocationID("loc-5"))
	first := time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)
	cal.SetBlackouts([]time.Time{first}, calNow)

	second := time.Date(2025, 8, 5, 0, 0, 0, 0, time.UTC)
	cal.SetBlackouts([]time.Time{
		second,
		time.Date(2025, 8, 5, 15, 30, 0, 0, time.UTC), // same day, different instant
	}, calNow.Add(time.Hour))

	if len(cal.Blackouts) != 1 {
		t.Fatalf("expected one blackout day after replacement, got %d", len(cal.Blackouts))
	}
	if !cal.Blackouts[0].Equal(second) {
		t.Fatalf("blackouts = %v, want [%v]", cal.Blackouts, second)
	}
	if !cal.IsFree(mustRange(t, 9, 12), calNow) {
		t.Fatal("old blackout set must be gone after replacement")
	}
}

func TestReleaseMissingHoldIsHarmless(t *testing.T) {
	cal := NewCalendar(location.LocationID("loc-5"))
	cal.Release("ghost", calNow)
	if len(cal.PendingEvents()) != 0 {
		t.Fatal("releasing a missing hold must not record events")
	}
}

func TestPruneDropsExpiredSoftHolds(t *testing.T) {
	cal := NewCalendar(location.LocationID("loc-5"))
	if err := cal.Hold(mustRange(t, 1, 3), "bk-1", 30*time.Minute, calNow); err != nil {
		t.Fatalf("hold: %v", err)
	}
	if err := cal.Reserve(mustRange(t, 5, 7), "bk-2", calNow); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	cal.Prune(calNow.Add(time.Hour))
	if len(cal.Holds) != 1 || cal.Holds[0].Reference != "bk-2" {
		t.Fatalf("prune kept %v, want only bk-2", cal.Holds)
	}
}
