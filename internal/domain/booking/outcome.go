package booking

import (
	"context"
	"time"
)

type OutcomeResult string

const (
	OutcomeSucceeded OutcomeResult = "succeeded"
	OutcomeFailed    OutcomeResult = "failed"
)

type OutcomeSource string

const (
	SourceWebhook OutcomeSource = "webhook"
	SourceDirect  OutcomeSource = "direct"
	SourceRetry   OutcomeSource = "retry"
	SourceBroker  OutcomeSource = "broker"
)

// PaymentOutcome is the envelope every payment-completion path hands to the
// reconciler. It is not persisted; only its idempotency key is.
type PaymentOutcome struct {
	BookingID        BookingID
	PaymentReference string
	Result           OutcomeResult
	Source           OutcomeSource
	ReceivedAt       time.Time
}

// Key identifies an outcome under at-least-once delivery.
func (o PaymentOutcome) Key() string {
	return string(o.BookingID) + ":" + o.PaymentReference
}

// ProcessedOutcomes records which outcome keys have already driven a
// transition. Record must be atomic: the first caller for a key gets
// duplicate=false, every later caller gets duplicate=true. Backed by a
// unique constraint in persistent implementations.
type ProcessedOutcomes interface {
	Record(ctx context.Context, key string, receivedAt time.Time) (duplicate bool, err error)
}
