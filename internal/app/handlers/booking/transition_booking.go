package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"spothire/internal/app/commands"
	"spothire/internal/app/outbox"
	"spothire/internal/app/uow"
	domainavailability "spothire/internal/domain/availability"
	domainbooking "spothire/internal/domain/booking"
)

const transitionBookingKey = "booking.transition"

var errRefundViaTransition = errors.New("booking: refund transitions require the refund commands")

// TransitionBookingCommand walks the booking along one legal edge. Host
// approval, host decline and requester cancellation are all this command
// with different targets.
type TransitionBookingCommand struct {
	BookingID string
	Target    domainbooking.Status
	Actor     string
}

func (c TransitionBookingCommand) Key() string { return transitionBookingKey }

type TransitionBookingResult struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
}

type TransitionBookingHandler struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	HoldTTL time.Duration
	Now     func() time.Time
}

func (h *TransitionBookingHandler) Handle(ctx context.Context, cmd TransitionBookingCommand) (*TransitionBookingResult, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, uow.ErrUnitOfWorkMissing
	}
	bookingID := strings.TrimSpace(cmd.BookingID)
	if bookingID == "" {
		return nil, errors.New("booking id is required")
	}
	switch cmd.Target {
	case domainbooking.StatusRefundPending, domainbooking.StatusRefunded:
		return nil, errRefundViaTransition
	}

	b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(bookingID))
	if err != nil {
		return nil, err
	}
	now := h.now()
	if b.Status == cmd.Target {
		// retried request, nothing to do
		return &TransitionBookingResult{BookingID: string(b.ID), Status: string(b.Status)}, nil
	}

	cal, err := unit.Availability().Calendar(ctx, b.LocationID)
	if err != nil {
		return nil, err
	}

	if err := ApplyTransition(b, cal, cmd.Target, cmd.Actor, holdTTL(h.HoldTTL), now); err != nil {
		return nil, err
	}

	if err := unit.Availability().Save(ctx, cal); err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}
	if err := DrainEvents(ctx, h.Outbox, encoderOrDefault(h.Encoder), b, cal); err != nil {
		return nil, err
	}
	return &TransitionBookingResult{BookingID: string(b.ID), Status: string(b.Status)}, nil
}

// ApplyTransition performs one status change plus its calendar side effect.
// Entering confirmed promotes the soft hold (or reserves outright) so the
// overlap invariant is re-checked in the same transaction; leaving the
// constraining states releases the range.
func ApplyTransition(b *domainbooking.Booking, cal *domainavailability.Calendar, target domainbooking.Status, actor string, ttl time.Duration, now time.Time) error {
	switch target {
	case domainbooking.StatusConfirmed:
		if err := promoteOrReserve(b, cal, now); err != nil {
			return err
		}
		return b.TransitionTo(target, actor, now)
	case domainbooking.StatusPending:
		// payment succeeded but host approval still required; refresh the
		// soft hold so the range stays reserved while the host decides
		if err := b.TransitionTo(target, actor, now); err != nil {
			return err
		}
		return cal.Hold(b.Range, string(b.ID), holdTTL(ttl), now)
	case domainbooking.StatusRejected, domainbooking.StatusCancelled:
		if err := b.TransitionTo(target, actor, now); err != nil {
			return err
		}
		cal.Release(string(b.ID), now)
		return nil
	case domainbooking.StatusCompleted:
		return b.Complete(now)
	default:
		return b.TransitionTo(target, actor, now)
	}
}

func promoteOrReserve(b *domainbooking.Booking, cal *domainavailability.Calendar, now time.Time) error {
	err := cal.Promote(string(b.ID), now)
	if errors.Is(err, domainavailability.ErrHoldNotFound) {
		// hold expired or never existed; take the range fresh
		return cal.Reserve(b.Range, string(b.ID), now)
	}
	return err
}

func holdTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 30 * time.Minute
	}
	return ttl
}

func encoderOrDefault(enc outbox.EventEncoder) outbox.EventEncoder {
	if enc != nil {
		return enc
	}
	return outbox.JSONEventEncoder{}
}

func (h *TransitionBookingHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

var _ commands.Handler[TransitionBookingCommand, *TransitionBookingResult] = (*TransitionBookingHandler)(nil)
