package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"spothire/internal/app/commands"
	"spothire/internal/app/outbox"
	"spothire/internal/app/uow"
	domainbooking "spothire/internal/domain/booking"
)

const (
	requestRefundKey = "booking.refund.request"
	processRefundKey = "booking.refund.process"
	denyRefundKey    = "booking.refund.deny"
)

type RequestRefundCommand struct {
	BookingID   string
	Amount      int64
	Reason      string
	RequestedBy string
}

func (c RequestRefundCommand) Key() string { return requestRefundKey }

type ProcessRefundCommand struct {
	BookingID   string
	ProcessedBy string
}

func (c ProcessRefundCommand) Key() string { return processRefundKey }

type DenyRefundCommand struct {
	BookingID string
	Actor     string
}

func (c DenyRefundCommand) Key() string { return denyRefundKey }

type RefundResult struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
}

type RefundHandler struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Now     func() time.Time
}

func (h *RefundHandler) HandleRequest(ctx context.Context, cmd RequestRefundCommand) (*RefundResult, error) {
	return h.mutate(ctx, cmd.BookingID, func(b *domainbooking.Booking, now time.Time) error {
		return b.RequestRefund(cmd.Amount, strings.TrimSpace(cmd.Reason), cmd.RequestedBy, now)
	})
}

func (h *RefundHandler) HandleProcess(ctx context.Context, cmd ProcessRefundCommand) (*RefundResult, error) {
	if strings.TrimSpace(cmd.ProcessedBy) == "" {
		return nil, errors.New("booking: refund processor actor required")
	}
	return h.mutate(ctx, cmd.BookingID, func(b *domainbooking.Booking, now time.Time) error {
		return b.ProcessRefund(cmd.ProcessedBy, now)
	})
}

func (h *RefundHandler) HandleDeny(ctx context.Context, cmd DenyRefundCommand) (*RefundResult, error) {
	return h.mutate(ctx, cmd.BookingID, func(b *domainbooking.Booking, now time.Time) error {
		return b.DenyRefund(cmd.Actor, now)
	})
}

func (h *RefundHandler) mutate(ctx context.Context, bookingID string, fn func(*domainbooking.Booking, time.Time) error) (*RefundResult, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, uow.ErrUnitOfWorkMissing
	}
	id := strings.TrimSpace(bookingID)
	if id == "" {
		return nil, errors.New("booking id is required")
	}
	b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(id))
	if err != nil {
		return nil, err
	}
	now := h.now()
	if err := fn(b, now); err != nil {
		return nil, err
	}
	// a refunded booking no longer constrains the calendar
	if b.Status == domainbooking.StatusRefunded {
		cal, err := unit.Availability().Calendar(ctx, b.LocationID)
		if err != nil {
			return nil, err
		}
		cal.Release(string(b.ID), now)
		if err := unit.Availability().Save(ctx, cal); err != nil {
			return nil, err
		}
		if err := DrainEvents(ctx, h.Outbox, encoderOrDefault(h.Encoder), cal); err != nil {
			return nil, err
		}
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}
	if err := DrainEvents(ctx, h.Outbox, encoderOrDefault(h.Encoder), b); err != nil {
		return nil, err
	}
	return &RefundResult{BookingID: string(b.ID), Status: string(b.Status)}, nil
}

func (h *RefundHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

type requestRefundAdapter struct{ *RefundHandler }

func (a requestRefundAdapter) Handle(ctx context.Context, cmd RequestRefundCommand) (*RefundResult, error) {
	return a.HandleRequest(ctx, cmd)
}

type processRefundAdapter struct{ *RefundHandler }

func (a processRefundAdapter) Handle(ctx context.Context, cmd ProcessRefundCommand) (*RefundResult, error) {
	return a.HandleProcess(ctx, cmd)
}

type denyRefundAdapter struct{ *RefundHandler }

func (a denyRefundAdapter) Handle(ctx context.Context, cmd DenyRefundCommand) (*RefundResult, error) {
	return a.HandleDeny(ctx, cmd)
}

// Register wires the three refund commands onto the bus.
func (h *RefundHandler) Register(bus *commands.InMemoryBus) {
	commands.RegisterHandler(bus, requestRefundKey, commands.Handler[RequestRefundCommand, *RefundResult](requestRefundAdapter{h}))
	commands.RegisterHandler(bus, processRefundKey, commands.Handler[ProcessRefundCommand, *RefundResult](processRefundAdapter{h}))
	commands.RegisterHandler(bus, denyRefundKey, commands.Handler[DenyRefundCommand, *RefundResult](denyRefundAdapter{h}))
}
