package ginserver

import (
	"errors"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"spothire/internal/app/commands"
	bookingapp "spothire/internal/app/handlers/booking"
	"spothire/internal/app/queries"
	domainavailability "spothire/internal/domain/availability"
	domainbooking "spothire/internal/domain/booking"
	domainlocation "spothire/internal/domain/location"
)

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

type createBookingRequest struct {
	LocationID          string    `json:"location_id"`
	Start               time.Time `json:"start"`
	End                 time.Time `json:"end"`
	TotalPrice          int64     `json:"total_price"`
	ActivityDescription string    `json:"activity_description"`
	PayNow              bool      `json:"pay_now"`
}

func (h BookingHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := bookingapp.CreateBookingCommand{
		CommandID:           generateCommandID(),
		LocationID:          req.LocationID,
		RequesterID:         actor,
		Start:               req.Start,
		End:                 req.End,
		TotalPrice:          req.TotalPrice,
		ActivityDescription: req.ActivityDescription,
		PayNow:              req.PayNow,
		IdempotencyKeyV:     c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[bookingapp.CreateBookingCommand, *bookingapp.CreateBookingResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

type transitionRequest struct {
	Target string `json:"target"`
}

func (h BookingHandler) Transition(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := bookingapp.TransitionBookingCommand{
		BookingID: c.Param("id"),
		Target:    domainbooking.Status(req.Target),
		Actor:     actor,
	}
	result, err := commands.Dispatch[bookingapp.TransitionBookingCommand, *bookingapp.TransitionBookingResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type refundRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

func (h BookingHandler) RequestRefund(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := bookingapp.RequestRefundCommand{
		BookingID:   c.Param("id"),
		Amount:      req.Amount,
		Reason:      req.Reason,
		RequestedBy: actor,
	}
	result, err := commands.Dispatch[bookingapp.RequestRefundCommand, *bookingapp.RefundResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) ProcessRefund(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	cmd := bookingapp.ProcessRefundCommand{BookingID: c.Param("id"), ProcessedBy: actor}
	result, err := commands.Dispatch[bookingapp.ProcessRefundCommand, *bookingapp.RefundResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) DenyRefund(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	cmd := bookingapp.DenyRefundCommand{BookingID: c.Param("id"), Actor: actor}
	result, err := commands.Dispatch[bookingapp.DenyRefundCommand, *bookingapp.RefundResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) ListMine(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	q := bookingapp.ListRequesterBookingsQuery{RequesterID: actor}
	result, err := queries.Ask[bookingapp.ListRequesterBookingsQuery, bookingapp.BookingCollection](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) ListForLocation(c *gin.Context) {
	if _, ok := requireActor(c); !ok {
		return
	}
	q := bookingapp.ListLocationBookingsQuery{
		LocationID: c.Param("id"),
		Status:     c.Query("status"),
	}
	result, err := queries.Ask[bookingapp.ListLocationBookingsQuery, bookingapp.BookingCollection](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// requireActor reads the authenticated subject forwarded by the gateway.
func requireActor(c *gin.Context) (string, bool) {
	actor := c.GetHeader("X-Actor-ID")
	if actor == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "actor identity required"})
		return "", false
	}
	return actor, true
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domainbooking.ErrBookingNotFound), errors.Is(err, domainlocation.ErrLocationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domainavailability.ErrAvailabilityConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domainbooking.ErrInvalidTransition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

func generateCommandID() string {
	return uuid.NewString()
}

var _ BookingHTTP = BookingHandler{}
