package booking

import (
	"time"

	"spothire/internal/domain/location"
	"spothire/internal/domain/shared/daterange"
)

type BookingRequested struct {
	BookingID   BookingID
	LocationID  location.LocationID
	RequesterID string
	Range       daterange.Range
	TotalPrice  int64
	Status      Status
	At          time.Time
}

func (e BookingRequested) EventName() string     { return "booking.requested" }
func (e BookingRequested) AggregateID() string   { return string(e.BookingID) }
func (e BookingRequested) OccurredAt() time.Time { return e.At }

type StatusChanged struct {
	BookingID  BookingID
	LocationID location.LocationID
	From       Status
	To         Status
	Actor      string
	At         time.Time
}

func (e StatusChanged) EventName() string     { return "booking.status_changed" }
func (e StatusChanged) AggregateID() string   { return string(e.BookingID) }
func (e StatusChanged) OccurredAt() time.Time { return e.At }

type RefundRequested struct {
	BookingID   BookingID
	Amount      int64
	Reason      string
	RequestedBy string
	At          time.Time
}

func (e RefundRequested) EventName() string     { return "booking.refund_requested" }
func (e RefundRequested) AggregateID() string   { return string(e.BookingID) }
func (e RefundRequested) OccurredAt() time.Time { return e.At }

type RefundProcessed struct {
	BookingID   BookingID
	Amount      int64
	ProcessedBy string
	At          time.Time
}

func (e RefundProcessed) EventName() string     { return "booking.refund_processed" }
func (e RefundProcessed) AggregateID() string   { return string(e.BookingID) }
func (e RefundProcessed) OccurredAt() time.Time { return e.At }

// RefundRequired is raised when a paid booking loses the availability race
// and is cancelled; the host/admin must push the money back.
type RefundRequired struct {
	BookingID        BookingID
	PaymentReference string
	Amount           int64
	At               time.Time
}

func (e RefundRequired) EventName() string     { return "booking.refund_required" }
func (e RefundRequired) AggregateID() string   { return string(e.BookingID) }
func (e RefundRequired) OccurredAt() time.Time { return e.At }
