package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"spothire/internal/app/commands"
	"spothire/internal/app/middleware"
	"spothire/internal/app/outbox"
	"spothire/internal/app/uow"
	domainbooking "spothire/internal/domain/booking"
	domainlocation "spothire/internal/domain/location"
	"spothire/internal/domain/shared/daterange"
	"spothire/internal/domain/shared/events"
)

const createBookingKey = "booking.create"

var ErrStartInPast = errors.New("booking: start date is in the past")

type CreateBookingCommand struct {
	CommandID           string
	LocationID          string
	RequesterID         string
	Start               time.Time
	End                 time.Time
	TotalPrice          int64
	ActivityDescription string
	PayNow              bool
	IdempotencyKeyV     string
}

func (c CreateBookingCommand) Key() string { return createBookingKey }

func (c CreateBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CreateBookingCommand) ResultPrototype() any { return &CreateBookingResult{} }

type CreateBookingResult struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
}

type CreateBookingHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	// HoldTTL bounds how long an unresolved booking soft-holds its range.
	HoldTTL time.Duration
	Now     func() time.Time
}

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (*CreateBookingResult, error) {
	unit, ok := uow.FromContext(ctx)
	managed := false
	committed := false
	if !ok {
		if h.UoWFactory == nil {
			return nil, uow.ErrUnitOfWorkMissing
		}
		var err error
		unit, err = h.UoWFactory.Begin(ctx, uow.TxOptions{})
		if err != nil {
			return nil, err
		}
		ctx = uow.ContextWithUnitOfWork(ctx, unit)
		managed = true
	}
	if managed {
		defer func() {
			if !committed {
				_ = unit.Rollback(ctx)
			}
		}()
	}

	now := h.now()
	r, err := daterange.New(cmd.Start, cmd.End)
	if err != nil {
		return nil, err
	}
	if daterange.Day(r.Start).Before(daterange.Day(now)) {
		return nil, ErrStartInPast
	}

	loc, err := unit.Locations().ByID(ctx, domainlocation.LocationID(cmd.LocationID))
	if err != nil {
		return nil, err
	}
	if loc.OwnerID == strings.TrimSpace(cmd.RequesterID) {
		return nil, domainbooking.ErrOwnLocationBooking
	}

	b, err := domainbooking.New(domainbooking.CreateParams{
		ID:                  domainbooking.BookingID(cmd.CommandID),
		LocationID:          loc.ID,
		RequesterID:         cmd.RequesterID,
		Range:               r,
		TotalPrice:          cmd.TotalPrice,
		ActivityDescription: cmd.ActivityDescription,
		PayNow:              cmd.PayNow,
		CreatedAt:           now,
	})
	if err != nil {
		return nil, err
	}

	cal, err := unit.Availability().Calendar(ctx, loc.ID)
	if err != nil {
		return nil, err
	}
	if err := cal.Hold(r, string(b.ID), h.holdTTL(), now); err != nil {
		return nil, err
	}
	if err := unit.Availability().Save(ctx, cal); err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}

	if err := DrainEvents(ctx, h.Outbox, h.encoder(), b, cal); err != nil {
		return nil, err
	}

	if managed {
		if err := unit.Commit(ctx); err != nil {
			return nil, err
		}
		committed = true
	}

	return &CreateBookingResult{BookingID: string(b.ID), Status: string(b.Status)}, nil
}

func (h *CreateBookingHandler) holdTTL() time.Duration {
	if h.HoldTTL <= 0 {
		return 30 * time.Minute
	}
	return h.HoldTTL
}

func (h *CreateBookingHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func (h *CreateBookingHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

type eventSource interface {
	PendingEvents() []events.DomainEvent
	ClearEvents()
}

// DrainEvents moves pending domain events from the given aggregates into
// the outbox and clears them.
func DrainEvents(ctx context.Context, box outbox.Outbox, encoder outbox.EventEncoder, sources ...eventSource) error {
	for _, src := range sources {
		evs := src.PendingEvents()
		src.ClearEvents()
		if err := outbox.RecordDomainEvents(ctx, box, encoder, evs); err != nil {
			return err
		}
	}
	return nil
}

var _ commands.Handler[CreateBookingCommand, *CreateBookingResult] = (*CreateBookingHandler)(nil)
var _ middleware.IdempotentCommand = (*CreateBookingCommand)(nil)
