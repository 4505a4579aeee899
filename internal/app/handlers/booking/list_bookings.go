package booking

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"spothire/internal/app/handlers/support"
	"spothire/internal/app/queries"
	"spothire/internal/app/uow"
	domainbooking "spothire/internal/domain/booking"
	domainlocation "spothire/internal/domain/location"
)

const (
	listRequesterBookingsKey = "booking.list.requester"
	listLocationBookingsKey  = "booking.list.location"
)

type BookingSummary struct {
	ID               string    `json:"id"`
	LocationID       string    `json:"location_id"`
	RequesterID      string    `json:"requester_id"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	Status           string    `json:"status"`
	TotalPrice       int64     `json:"total_price"`
	PaymentReference string    `json:"payment_reference,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type BookingCollection struct {
	Items []BookingSummary `json:"items"`
}

func summarize(b *domainbooking.Booking) BookingSummary {
	return BookingSummary{
		ID:               string(b.ID),
		LocationID:       string(b.LocationID),
		RequesterID:      b.RequesterID,
		Start:            b.Range.Start,
		End:              b.Range.End,
		Status:           string(b.Status),
		TotalPrice:       b.TotalPrice,
		PaymentReference: b.PaymentReference,
		CreatedAt:        b.CreatedAt,
	}
}

type ListRequesterBookingsQuery struct {
	RequesterID string
}

func (q ListRequesterBookingsQuery) Key() string { return listRequesterBookingsKey }

type ListLocationBookingsQuery struct {
	LocationID string
	Status     string
}

func (q ListLocationBookingsQuery) Key() string { return listLocationBookingsKey }

type ListBookingsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListBookingsHandler) HandleRequester(ctx context.Context, q ListRequesterBookingsQuery) (BookingCollection, error) {
	requesterID := strings.TrimSpace(q.RequesterID)
	if requesterID == "" {
		return BookingCollection{}, errors.New("requester id is required")
	}
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return BookingCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	items, err := unit.Bookings().ListByRequester(execCtx, requesterID)
	if err != nil {
		return BookingCollection{}, err
	}
	return collect(items, ""), nil
}

func (h *ListBookingsHandler) HandleLocation(ctx context.Context, q ListLocationBookingsQuery) (BookingCollection, error) {
	locationID := strings.TrimSpace(q.LocationID)
	if locationID == "" {
		return BookingCollection{}, errors.New("location id is required")
	}
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return BookingCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	items, err := unit.Bookings().ListByLocation(execCtx, domainlocation.LocationID(locationID))
	if err != nil {
		return BookingCollection{}, err
	}
	return collect(items, strings.TrimSpace(q.Status)), nil
}

func collect(items []*domainbooking.Booking, statusFilter string) BookingCollection {
	out := make([]BookingSummary, 0, len(items))
	for _, b := range items {
		if statusFilter != "" && string(b.Status) != statusFilter {
			continue
		}
		out = append(out, summarize(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return BookingCollection{Items: out}
}

type requesterListAdapter struct{ *ListBookingsHandler }

func (a requesterListAdapter) Handle(ctx context.Context, q ListRequesterBookingsQuery) (BookingCollection, error) {
	return a.HandleRequester(ctx, q)
}

type locationListAdapter struct{ *ListBookingsHandler }

func (a locationListAdapter) Handle(ctx context.Context, q ListLocationBookingsQuery) (BookingCollection, error) {
	return a.HandleLocation(ctx, q)
}

// Register wires both listing queries onto the bus.
func (h *ListBookingsHandler) Register(bus *queries.InMemoryBus) {
	queries.RegisterHandler(bus, listRequesterBookingsKey, queries.Handler[ListRequesterBookingsQuery, BookingCollection](requesterListAdapter{h}))
	queries.RegisterHandler(bus, listLocationBookingsKey, queries.Handler[ListLocationBookingsQuery, BookingCollection](locationListAdapter{h}))
}
