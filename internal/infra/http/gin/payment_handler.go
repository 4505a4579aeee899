package ginserver

import (
	"errors"
	"io"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"spothire/internal/app/commands"
	paymentapp "spothire/internal/app/handlers/payment"
	domainbooking "spothire/internal/domain/booking"
	"spothire/internal/infra/payments"
)

// PaymentGateway is the slice of the provider adapter the HTTP layer needs.
type PaymentGateway interface {
	ParseWebhook(payload []byte, signatureHeader string) (domainbooking.PaymentOutcome, error)
	Charge(c *gin.Context, req ChargeRequest) (domainbooking.PaymentOutcome, error)
}

type PaymentHandler struct {
	Commands commands.Bus
	Gateway  PaymentGateway
}

// Webhook receives provider callbacks. Signature failures are rejected;
// events that carry no booking outcome are acknowledged so the provider
// stops retrying them.
func (h PaymentHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	outcome, err := h.Gateway.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payments.ErrEventNotActionable) {
			c.Status(http.StatusOK)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.reconcile(c, outcome)
}

type ChargeRequest struct {
	BookingID       string `json:"booking_id"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	CustomerID      string `json:"customer_id"`
	PaymentMethodID string `json:"payment_method_id"`
}

// Charge runs a synchronous saved-method charge. A provider timeout still
// produces a failed outcome, so the booking resolves instead of dangling in
// payment_pending.
func (h PaymentHandler) Charge(c *gin.Context) {
	if _, ok := requireActor(c); !ok {
		return
	}
	var req ChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	outcome, err := h.Gateway.Charge(c, req)
	if err != nil && !errors.Is(err, payments.ErrPaymentTimeout) {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	h.reconcile(c, outcome)
}

func (h PaymentHandler) reconcile(c *gin.Context, outcome domainbooking.PaymentOutcome) {
	cmd := paymentapp.ReconcilePaymentCommand{
		BookingID:        string(outcome.BookingID),
		PaymentReference: outcome.PaymentReference,
		Result:           outcome.Result,
		Source:           outcome.Source,
		ReceivedAt:       outcome.ReceivedAt,
	}
	result, err := commands.Dispatch[paymentapp.ReconcilePaymentCommand, *paymentapp.ReconcilePaymentResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// StripeChargeGateway adapts the Stripe adapter to the HTTP-facing interface.
type StripeChargeGateway struct {
	Stripe payments.StripeGateway
}

func (g StripeChargeGateway) ParseWebhook(payload []byte, signatureHeader string) (domainbooking.PaymentOutcome, error) {
	return g.Stripe.ParseWebhook(payload, signatureHeader)
}

func (g StripeChargeGateway) Charge(c *gin.Context, req ChargeRequest) (domainbooking.PaymentOutcome, error) {
	return g.Stripe.ChargeSavedMethod(c.Request.Context(), req.BookingID, req.Amount, req.Currency, req.CustomerID, req.PaymentMethodID)
}

var _ PaymentHTTP = PaymentHandler{}
