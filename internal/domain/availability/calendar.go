package availability

import (
	"context"
	"errors"
	"time"

	"spothire/internal/domain/location"
	"spothire/internal/domain/shared/daterange"
	"spothire/internal/domain/shared/events"
)

var (
	ErrAvailabilityConflict = errors.New("availability: range overlaps an existing reservation or blackout")
	ErrHoldNotFound         = errors.New("availability: hold not found")
)

type HoldKind string

const (
	// HoldHard blocks the range until explicitly released (confirmed bookings).
	HoldHard HoldKind = "hard"
	// HoldSoft blocks the range until it expires or resolves (pending checkouts).
	HoldSoft HoldKind = "soft"
)

type Hold struct {
	Range     daterange.Range
	Kind      HoldKind
	Reference string
	ExpiresAt time.Time // zero for hard holds
	CreatedAt time.Time
}

func (h Hold) active(now time.Time) bool {
	if h.Kind == HoldHard {
		return true
	}
	return h.ExpiresAt.After(now)
}

// Calendar answers "is [start,end) free?" for one location. Booking holds
// and blackout days live together so the overlap check is a single scan.
// Mutations happen in memory and become atomic when the unit of work
// commits the aggregate with its version filter.
type Calendar struct {
	LocationID location.LocationID
	Holds      []Hold
	// Blackouts is the last-synced set of externally blocked days (UTC
	// midnights). Owned by the calendar sync; always hard.
	Blackouts  []time.Time
	LastSyncAt time.Time
	Version    int64
	events.EventRecorder
}

type Repository interface {
	Calendar(ctx context.Context, id location.LocationID) (*Calendar, error)
	Save(ctx context.Context, cal *Calendar) error
}

func NewCalendar(id location.LocationID) *Calendar {
	return &Calendar{LocationID: id}
}

// IsFree reports whether the range overlaps no active hold and no blackout day.
func (c *Calendar) IsFree(r daterange.Range, now time.Time) bool {
	return c.conflict(r, "", now) == nil
}

// conflict scans holds and blackouts, ignoring the hold with the given
// reference so a booking never conflicts with its own hold.
func (c *Calendar) conflict(r daterange.Range, ignoreRef string, now time.Time) error {
	for _, h := range c.Holds {
		if h.Reference == ignoreRef {
			continue
		}
		if h.active(now) && h.Range.Overlaps(r) {
			return ErrAvailabilityConflict
		}
	}
	for _, day := range c.Blackouts {
		if r.CoversDay(day) {
			return ErrAvailabilityConflict
		}
	}
	return nil
}

// Reserve places a hard hold, failing on any overlap. The check and the
// append happen on the same aggregate so two concurrent reservations cannot
// both commit (the second save hits the version conflict and retries
// against the updated calendar).
func (c *Calendar) Reserve(r daterange.Range, reference string, now time.Time) error {
	if err := c.conflict(r, reference, now); err != nil {
		c.Record(OverbookingPrevented{LocationID: c.LocationID, Range: r, Reference: reference, At: now.UTC()})
		return err
	}
	c.removeHold(reference)
	c.Holds = append(c.Holds, Hold{Range: r, Kind: HoldHard, Reference: reference, CreatedAt: now.UTC()})
	c.Record(RangeBlocked{LocationID: c.LocationID, Range: r, Kind: HoldHard, Reference: reference, At: now.UTC()})
	return nil
}

// Hold places a soft hold with a TTL so an abandoned checkout cannot block
// a date forever.
func (c *Calendar) Hold(r daterange.Range, reference string, ttl time.Duration, now time.Time) error {
	if err := c.conflict(r, reference, now); err != nil {
		c.Record(OverbookingPrevented{LocationID: c.LocationID, Range: r, Reference: reference, At: now.UTC()})
		return err
	}
	c.removeHold(reference)
	c.Holds = append(c.Holds, Hold{Range: r, Kind: HoldSoft, Reference: reference, ExpiresAt: now.UTC().Add(ttl), CreatedAt: now.UTC()})
	c.Record(RangeBlocked{LocationID: c.LocationID, Range: r, Kind: HoldSoft, Reference: reference, At: now.UTC()})
	return nil
}

// Promote upgrades a soft hold to hard, re-running the overlap check
// against everything else. This is the atomic re-check a transition into
// confirmed requires: if another booking won the range meanwhile the
// promotion fails with ErrAvailabilityConflict and the caller compensates.
func (c *Calendar) Promote(reference string, now time.Time) error {
	idx := c.findHold(reference)
	if idx == -1 {
		return ErrHoldNotFound
	}
	h := c.Holds[idx]
	if h.Kind == HoldHard {
		return nil
	}
	if err := c.conflict(h.Range, reference, now); err != nil {
		c.Record(OverbookingPrevented{LocationID: c.LocationID, Range: h.Range, Reference: reference, At: now.UTC()})
		return err
	}
	c.Holds[idx].Kind = HoldHard
	c.Holds[idx].ExpiresAt = time.Time{}
	c.Record(RangeBlocked{LocationID: c.LocationID, Range: h.Range, Kind: HoldHard, Reference: reference, At: now.UTC()})
	return nil
}

// Release drops the hold for a reference. Missing holds are fine: releasing
// is retried by compensation paths.
func (c *Calendar) Release(reference string, now time.Time) {
	idx := c.findHold(reference)
	if idx == -1 {
		return
	}
	removed := c.Holds[idx]
	c.Holds = append(c.Holds[:idx], c.Holds[idx+1:]...)
	c.Record(RangeReleased{LocationID: c.LocationID, Range: removed.Range, Reference: reference, At: now.UTC()})
}

// SetBlackouts replaces the synced blackout set wholesale. The sync worker
// calls this only after a successful fetch, so a failed sync leaves the
// stale-but-usable previous set in place.
func (c *Calendar) SetBlackouts(days []time.Time, syncedAt time.Time) {
	dedup := make(map[time.Time]struct{}, len(days))
	out := make([]time.Time, 0, len(days))
	for _, d := range days {
		day := daterange.Day(d)
		if _, seen := dedup[day]; seen {
			continue
		}
		dedup[day] = struct{}{}
		out = append(out, day)
	}
	c.Blackouts = out
	c.LastSyncAt = syncedAt.UTC()
}

// Prune drops expired soft holds. Expired holds are already invisible to
// the overlap check; pruning just keeps the document small.
func (c *Calendar) Prune(now time.Time) {
	kept := c.Holds[:0]
	for _, h := range c.Holds {
		if h.active(now) {
			kept = append(kept, h)
		}
	}
	c.Holds = kept
}

func (c *Calendar) findHold(reference string) int {
	for i, h := range c.Holds {
		if h.Reference == reference {
			return i
		}
	}
	return -1
}

func (c *Calendar) removeHold(reference string) {
	if idx := c.findHold(reference); idx != -1 {
		c.Holds = append(c.Holds[:idx], c.Holds[idx+1:]...)
	}
}
