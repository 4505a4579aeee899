package availability

import (
	"time"

	"spothire/internal/domain/location"
	"spothire/internal/domain/shared/daterange"
)

type RangeBlocked struct {
	LocationID location.LocationID
	Range      daterange.Range
	Kind       HoldKind
	Reference  string
	At         time.Time
}

func (e RangeBlocked) EventName() string     { return "availability.blocked" }
func (e RangeBlocked) AggregateID() string   { return string(e.LocationID) }
func (e RangeBlocked) OccurredAt() time.Time { return e.At }

type RangeReleased struct {
	LocationID location.LocationID
	Range      daterange.Range
	Reference  string
	At         time.Time
}

func (e RangeReleased) EventName() string     { return "availability.released" }
func (e RangeReleased) AggregateID() string   { return string(e.LocationID) }
func (e RangeReleased) OccurredAt() time.Time { return e.At }

type OverbookingPrevented struct {
	LocationID location.LocationID
	Range      daterange.Range
	Reference  string
	At         time.Time
}

func (e OverbookingPrevented) EventName() string     { return "availability.overbooking_prevented" }
func (e OverbookingPrevented) AggregateID() string   { return string(e.LocationID) }
func (e OverbookingPrevented) OccurredAt() time.Time { return e.At }
