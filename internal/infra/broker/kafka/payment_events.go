package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"spothire/internal/app/commands"
	paymentapp "spothire/internal/app/handlers/payment"
	domainbooking "spothire/internal/domain/booking"
)

// paymentEvent is the wire shape published by the payment service. Unknown
// fields are ignored so producers can evolve the envelope.
type paymentEvent struct {
	BookingID        string    `json:"booking_id"`
	PaymentReference string    `json:"payment_reference"`
	Result           string    `json:"result"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// PaymentEventsHandler turns broker payment events into reconcile commands.
// Malformed messages are logged and acknowledged; the reconciler's outcome
// dedup absorbs redeliveries of well-formed ones.
type PaymentEventsHandler struct {
	Bus    commands.Bus
	Logger *slog.Logger
}

func (h PaymentEventsHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var ev paymentEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		h.logger().WarnContext(ctx, "dropping malformed payment event",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.Any("error", err),
		)
		return nil
	}
	if ev.BookingID == "" || ev.PaymentReference == "" {
		h.logger().WarnContext(ctx, "dropping payment event without identifiers",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
		)
		return nil
	}

	result := domainbooking.OutcomeFailed
	if ev.Result == string(domainbooking.OutcomeSucceeded) {
		result = domainbooking.OutcomeSucceeded
	}

	cmd := paymentapp.ReconcilePaymentCommand{
		BookingID:        ev.BookingID,
		PaymentReference: ev.PaymentReference,
		Result:           result,
		Source:           domainbooking.SourceBroker,
		ReceivedAt:       ev.OccurredAt,
	}
	if _, err := commands.Dispatch[paymentapp.ReconcilePaymentCommand, *paymentapp.ReconcilePaymentResult](ctx, h.Bus, cmd); err != nil {
		h.logger().ErrorContext(ctx, "payment event reconcile failed",
			slog.String("booking_id", ev.BookingID),
			slog.Any("error", err),
		)
		return err
	}
	return nil
}

func (h PaymentEventsHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

var _ MessageHandler = PaymentEventsHandler{}
