package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spothire/internal/domain/location"
	"spothire/internal/domain/shared/daterange"
	"spothire/internal/domain/shared/events"
)

var (
	ErrInvalidTransition   = errors.New("booking: invalid state transition")
	ErrAvailabilityCheck   = errors.New("booking: confirmation requires availability re-check")
	ErrBookingNotFound     = errors.New("booking: not found")
	ErrRequesterRequired   = errors.New("booking: requester id required")
	ErrOwnLocationBooking  = errors.New("booking: cannot book your own location")
	ErrRefundAmountInvalid = errors.New("booking: refund amount must be positive and at most the total price")
	ErrRefundReasonMissing = errors.New("booking: refund reason required")
	ErrNotEnded            = errors.New("booking: end date has not passed")
)

type BookingID string

type Status string

const (
	StatusPending        Status = "pending"
	StatusPaymentPending Status = "payment_pending"
	StatusConfirmed      Status = "confirmed"
	StatusRejected       Status = "rejected"
	StatusCancelled      Status = "cancelled"
	StatusRefundPending  Status = "refund_pending"
	StatusRefunded       Status = "refunded"
	StatusCompleted      Status = "completed"
)

// legalEdges is the only definition of which status changes are allowed.
// Everything else is ErrInvalidTransition.
var legalEdges = map[Status][]Status{
	StatusPending:        {StatusConfirmed, StatusRejected, StatusCancelled},
	StatusPaymentPending: {StatusConfirmed, StatusPending, StatusCancelled},
	StatusConfirmed:      {StatusRefundPending, StatusCompleted, StatusCancelled},
	StatusRefundPending:  {StatusRefunded, StatusConfirmed},
}

func edgeAllowed(from, to Status) bool {
	for _, t := range legalEdges[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Refund is the single refund record a booking may carry while its status
// is refund_pending or refunded.
type Refund struct {
	Amount      int64
	Reason      string
	RequestedBy string
	RequestedAt time.Time
	ProcessedBy string
	ProcessedAt time.Time
}

type Booking struct {
	ID                  BookingID
	LocationID          location.LocationID
	RequesterID         string
	Range               daterange.Range
	TotalPrice          int64
	Status              Status
	ActivityDescription string
	PaymentReference    string
	Refund              Refund
	LastEditedBy        string
	LastEditedAt        time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
	Version             int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	Save(ctx context.Context, b *Booking) error
	ListByRequester(ctx context.Context, requesterID string) ([]*Booking, error)
	ListByLocation(ctx context.Context, id location.LocationID) ([]*Booking, error)
	// ListStale returns bookings in the given status created before cutoff.
	ListStale(ctx context.Context, status Status, cutoff time.Time) ([]*Booking, error)
	// ListEnded returns confirmed bookings whose range ended before now.
	ListEnded(ctx context.Context, now time.Time) ([]*Booking, error)
}

type CreateParams struct {
	ID                  BookingID
	LocationID          location.LocationID
	RequesterID         string
	Range               daterange.Range
	TotalPrice          int64
	ActivityDescription string
	PayNow              bool
	CreatedAt           time.Time
}

func New(params CreateParams) (*Booking, error) {
	if params.RequesterID == "" {
		return nil, ErrRequesterRequired
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	now := params.CreatedAt.UTC()
	status := StatusPending
	if params.PayNow {
		status = StatusPaymentPending
	}
	b := &Booking{
		ID:                  params.ID,
		LocationID:          params.LocationID,
		RequesterID:         params.RequesterID,
		Range:               params.Range,
		TotalPrice:          params.TotalPrice,
		Status:              status,
		ActivityDescription: params.ActivityDescription,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	b.Record(BookingRequested{BookingID: b.ID, LocationID: b.LocationID, RequesterID: b.RequesterID, Range: b.Range, TotalPrice: b.TotalPrice, Status: status, At: now})
	return b, nil
}

// TransitionTo moves the booking along a legal edge. Requesting the current
// status is a no-op success so retried deliveries stay harmless. The caller
// is responsible for re-checking availability before a transition into
// confirmed and for registering/releasing calendar blocks afterwards.
func (b *Booking) TransitionTo(target Status, actor string, now time.Time) error {
	if b.Status == target {
		return nil
	}
	if !edgeAllowed(b.Status, target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, target)
	}
	from := b.Status
	b.Status = target
	b.touch(actor, now)
	b.Record(StatusChanged{BookingID: b.ID, LocationID: b.LocationID, From: from, To: target, Actor: actor, At: b.UpdatedAt})
	return nil
}

// Complete marks a confirmed booking whose end date has passed.
func (b *Booking) Complete(now time.Time) error {
	if b.Status == StatusCompleted {
		return nil
	}
	if now.UTC().Before(b.Range.End) {
		return ErrNotEnded
	}
	return b.TransitionTo(StatusCompleted, "system", now)
}

// AttachPayment records the payment reference once an outcome is associated.
func (b *Booking) AttachPayment(reference string, now time.Time) {
	if b.PaymentReference == reference {
		return
	}
	b.PaymentReference = reference
	b.touch("system", now)
}

// RequestRefund moves confirmed -> refund_pending with a validated record.
func (b *Booking) RequestRefund(amount int64, reason, requestedBy string, now time.Time) error {
	if b.Status == StatusRefundPending {
		return nil
	}
	if amount <= 0 || amount > b.TotalPrice {
		return ErrRefundAmountInvalid
	}
	if reason == "" {
		return ErrRefundReasonMissing
	}
	if err := b.TransitionTo(StatusRefundPending, requestedBy, now); err != nil {
		return err
	}
	b.Refund = Refund{Amount: amount, Reason: reason, RequestedBy: requestedBy, RequestedAt: now.UTC()}
	b.Record(RefundRequested{BookingID: b.ID, Amount: amount, Reason: reason, RequestedBy: requestedBy, At: now.UTC()})
	return nil
}

// ProcessRefund moves refund_pending -> refunded and stamps the actor.
func (b *Booking) ProcessRefund(processedBy string, now time.Time) error {
	if b.Status == StatusRefunded {
		return nil
	}
	if err := b.TransitionTo(StatusRefunded, processedBy, now); err != nil {
		return err
	}
	b.Refund.ProcessedBy = processedBy
	b.Refund.ProcessedAt = now.UTC()
	b.Record(RefundProcessed{BookingID: b.ID, Amount: b.Refund.Amount, ProcessedBy: processedBy, At: now.UTC()})
	return nil
}

// DenyRefund withdraws the request, clearing the refund record.
func (b *Booking) DenyRefund(actor string, now time.Time) error {
	if b.Status == StatusConfirmed {
		return nil
	}
	if err := b.TransitionTo(StatusConfirmed, actor, now); err != nil {
		return err
	}
	b.Refund = Refund{}
	return nil
}

// Constrains reports whether the booking currently occupies its date range
// for availability purposes.
func (b *Booking) Constrains() bool {
	return b.Status == StatusConfirmed
}

func (b *Booking) touch(actor string, now time.Time) {
	b.UpdatedAt = now.UTC()
	b.LastEditedBy = actor
	b.LastEditedAt = b.UpdatedAt
}
