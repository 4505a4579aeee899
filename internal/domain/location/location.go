package location

import (
	"context"
	"errors"
)

var ErrLocationNotFound = errors.New("location: not found")

type LocationID string

// Location is the slice of the listing record the booking engine needs:
// ownership for the self-booking guard and the calendar connection used by
// the blackout sync.
type Location struct {
	ID                   LocationID
	OwnerID              string
	Title                string
	CalendarConnected    bool
	CalendarRefreshToken string
}

type Repository interface {
	ByID(ctx context.Context, id LocationID) (*Location, error)
	Save(ctx context.Context, loc *Location) error
	// ListCalendarConnected returns locations whose owners linked an
	// external calendar; the sync worker iterates these.
	ListCalendarConnected(ctx context.Context) ([]*Location, error)
}
