package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"spothire/internal/app/commands"
	bookingapp "spothire/internal/app/handlers/booking"
	"spothire/internal/app/outbox"
	"spothire/internal/app/uow"
	domainavailability "spothire/internal/domain/availability"
	domainbooking "spothire/internal/domain/booking"
)

const reconcilePaymentKey = "payment.reconcile"

var (
	ErrPaymentReferenceMissing = errors.New("payment: payment reference required")
	ErrUnknownOutcomeResult    = errors.New("payment: unknown outcome result")
)

// ReconcilePaymentCommand is dispatched by every payment-completion path:
// the provider webhook, the synchronous charge endpoint, the retry worker
// and the broker consumer. All four converge here so duplicate deliveries
// collapse into one transition.
type ReconcilePaymentCommand struct {
	BookingID        string
	PaymentReference string
	Result           domainbooking.OutcomeResult
	Source           domainbooking.OutcomeSource
	ReceivedAt       time.Time
}

func (c ReconcilePaymentCommand) Key() string { return reconcilePaymentKey }

type ReconcilePaymentResult struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type ReconcilePaymentHandler struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	HoldTTL time.Duration
	Now     func() time.Time
}

func (h *ReconcilePaymentHandler) Handle(ctx context.Context, cmd ReconcilePaymentCommand) (*ReconcilePaymentResult, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, uow.ErrUnitOfWorkMissing
	}
	bookingID := strings.TrimSpace(cmd.BookingID)
	if bookingID == "" {
		return nil, errors.New("booking id is required")
	}
	reference := strings.TrimSpace(cmd.PaymentReference)
	if reference == "" {
		return nil, ErrPaymentReferenceMissing
	}
	switch cmd.Result {
	case domainbooking.OutcomeSucceeded, domainbooking.OutcomeFailed:
	default:
		return nil, ErrUnknownOutcomeResult
	}

	outcome := domainbooking.PaymentOutcome{
		BookingID:        domainbooking.BookingID(bookingID),
		PaymentReference: reference,
		Result:           cmd.Result,
		Source:           cmd.Source,
		ReceivedAt:       h.receivedAt(cmd.ReceivedAt),
	}

	duplicate, err := unit.Outcomes().Record(ctx, outcome.Key(), outcome.ReceivedAt)
	if err != nil {
		return nil, err
	}

	b, err := unit.Bookings().ByID(ctx, outcome.BookingID)
	if err != nil {
		return nil, err
	}
	if duplicate {
		// already reconciled; report the current state and change nothing
		return &ReconcilePaymentResult{BookingID: string(b.ID), Status: string(b.Status), Duplicate: true}, nil
	}

	now := h.now()
	cal, err := unit.Availability().Calendar(ctx, b.LocationID)
	if err != nil {
		return nil, err
	}

	if outcome.Result == domainbooking.OutcomeFailed {
		if err := bookingapp.ApplyTransition(b, cal, domainbooking.StatusCancelled, "system", h.HoldTTL, now); err != nil {
			return nil, err
		}
		return h.persist(ctx, unit, b, cal)
	}

	b.AttachPayment(reference, now)
	target := domainbooking.StatusPending
	if domainbooking.DecideConfirmation(b.ActivityDescription) {
		target = domainbooking.StatusConfirmed
	}

	err = bookingapp.ApplyTransition(b, cal, target, "system", h.HoldTTL, now)
	if errors.Is(err, domainavailability.ErrAvailabilityConflict) {
		// the range was taken while payment was in flight; cancel the loser
		// and flag the captured money for refund
		if err := bookingapp.ApplyTransition(b, cal, domainbooking.StatusCancelled, "system", h.HoldTTL, now); err != nil {
			return nil, err
		}
		b.Record(domainbooking.RefundRequired{
			BookingID:        b.ID,
			PaymentReference: reference,
			Amount:           b.TotalPrice,
			At:               now,
		})
	} else if err != nil {
		return nil, err
	}

	return h.persist(ctx, unit, b, cal)
}

func (h *ReconcilePaymentHandler) persist(ctx context.Context, unit uow.UnitOfWork, b *domainbooking.Booking, cal *domainavailability.Calendar) (*ReconcilePaymentResult, error) {
	if err := unit.Availability().Save(ctx, cal); err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}
	if err := bookingapp.DrainEvents(ctx, h.Outbox, h.encoder(), b, cal); err != nil {
		return nil, err
	}
	return &ReconcilePaymentResult{BookingID: string(b.ID), Status: string(b.Status)}, nil
}

func (h *ReconcilePaymentHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func (h *ReconcilePaymentHandler) receivedAt(t time.Time) time.Time {
	if t.IsZero() {
		return h.now()
	}
	return t.UTC()
}

func (h *ReconcilePaymentHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

var _ commands.Handler[ReconcilePaymentCommand, *ReconcilePaymentResult] = (*ReconcilePaymentHandler)(nil)
