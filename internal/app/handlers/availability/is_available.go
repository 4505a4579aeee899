package availability

import (
	"context"
	"errors"
	"strings"
	"time"

	"spothire/internal/app/handlers/support"
	"spothire/internal/app/queries"
	"spothire/internal/app/uow"
	"spothire/internal/domain/location"
	"spothire/internal/domain/shared/daterange"
)

const isAvailableKey = "availability.is_available"

type IsAvailableQuery struct {
	LocationID string
	Start      time.Time
	End        time.Time
}

func (q IsAvailableQuery) Key() string { return isAvailableKey }

type IsAvailableResult struct {
	LocationID string    `json:"location_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Available  bool      `json:"available"`
}

type IsAvailableHandler struct {
	UoWFactory uow.UoWFactory
	Now        func() time.Time
}

func (h *IsAvailableHandler) Handle(ctx context.Context, q IsAvailableQuery) (IsAvailableResult, error) {
	locationID := strings.TrimSpace(q.LocationID)
	if locationID == "" {
		return IsAvailableResult{}, errors.New("location id is required")
	}
	r, err := daterange.New(q.Start, q.End)
	if err != nil {
		return IsAvailableResult{}, err
	}
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return IsAvailableResult{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	cal, err := unit.Availability().Calendar(execCtx, location.LocationID(locationID))
	if err != nil {
		return IsAvailableResult{}, err
	}
	return IsAvailableResult{
		LocationID: locationID,
		Start:      r.Start,
		End:        r.End,
		Available:  cal.IsFree(r, h.now()),
	}, nil
}

func (h *IsAvailableHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

var _ queries.Handler[IsAvailableQuery, IsAvailableResult] = (*IsAvailableHandler)(nil)
