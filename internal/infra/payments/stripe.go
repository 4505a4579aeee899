package payments

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/webhook"

	domainbooking "spothire/internal/domain/booking"
)

var (
	ErrPaymentTimeout     = errors.New("payments: provider did not answer in time")
	ErrEventNotActionable = errors.New("payments: event carries no booking outcome")
)

// metadataBookingID is the metadata key the checkout flow stamps on every
// session so the webhook can route the outcome back to its booking.
const metadataBookingID = "bookingId"

// StripeGateway adapts Stripe deliveries and charges into payment outcomes.
type StripeGateway struct {
	WebhookSecret string
	// ChargeTimeout bounds the synchronous saved-method charge; once it
	// elapses the charge is reported as a failed outcome.
	ChargeTimeout time.Duration
	Now           func() time.Time
}

// ParseWebhook verifies the signature and maps the event to an outcome.
// Events other than checkout completion/failure are reported as
// ErrEventNotActionable so the HTTP layer can acknowledge them.
func (g StripeGateway) ParseWebhook(payload []byte, signatureHeader string) (domainbooking.PaymentOutcome, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, g.WebhookSecret)
	if err != nil {
		return domainbooking.PaymentOutcome{}, err
	}

	var result domainbooking.OutcomeResult
	switch event.Type {
	case "checkout.session.completed":
		result = domainbooking.OutcomeSucceeded
	case "checkout.session.async_payment_failed", "checkout.session.expired":
		result = domainbooking.OutcomeFailed
	default:
		return domainbooking.PaymentOutcome{}, ErrEventNotActionable
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return domainbooking.PaymentOutcome{}, err
	}
	bookingID := session.Metadata[metadataBookingID]
	if bookingID == "" {
		return domainbooking.PaymentOutcome{}, ErrEventNotActionable
	}
	reference := session.ID
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		reference = session.PaymentIntent.ID
	}

	return domainbooking.PaymentOutcome{
		BookingID:        domainbooking.BookingID(bookingID),
		PaymentReference: reference,
		Result:           result,
		Source:           domainbooking.SourceWebhook,
		ReceivedAt:       g.now(),
	}, nil
}

// ChargeSavedMethod runs a synchronous payment-intent charge against a saved
// payment method. A provider timeout comes back as a failed outcome with
// ErrPaymentTimeout so the caller can cancel the booking rather than hang.
func (g StripeGateway) ChargeSavedMethod(ctx context.Context, bookingID string, amount int64, currency, customerID, paymentMethodID string) (domainbooking.PaymentOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, g.chargeTimeout())
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amount),
		Currency:      stripe.String(currency),
		Customer:      stripe.String(customerID),
		PaymentMethod: stripe.String(paymentMethodID),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	params.Context = ctx
	params.AddMetadata(metadataBookingID, bookingID)

	intent, err := paymentintent.New(params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return domainbooking.PaymentOutcome{
				BookingID:        domainbooking.BookingID(bookingID),
				PaymentReference: "timeout-" + bookingID,
				Result:           domainbooking.OutcomeFailed,
				Source:           domainbooking.SourceDirect,
				ReceivedAt:       g.now(),
			}, ErrPaymentTimeout
		}
		return domainbooking.PaymentOutcome{}, err
	}

	result := domainbooking.OutcomeFailed
	if intent.Status == stripe.PaymentIntentStatusSucceeded {
		result = domainbooking.OutcomeSucceeded
	}
	return domainbooking.PaymentOutcome{
		BookingID:        domainbooking.BookingID(bookingID),
		PaymentReference: intent.ID,
		Result:           result,
		Source:           domainbooking.SourceDirect,
		ReceivedAt:       g.now(),
	}, nil
}

func (g StripeGateway) chargeTimeout() time.Duration {
	if g.ChargeTimeout <= 0 {
		return 30 * time.Second
	}
	return g.ChargeTimeout
}

func (g StripeGateway) now() time.Time {
	if g.Now != nil {
		return g.Now().UTC()
	}
	return time.Now().UTC()
}
