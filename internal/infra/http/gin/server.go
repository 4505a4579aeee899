package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"spothire/internal/infra/config"
	"spothire/internal/infra/obs"
)

type BookingHTTP interface {
	Create(c *gin.Context)
	Transition(c *gin.Context)
	RequestRefund(c *gin.Context)
	ProcessRefund(c *gin.Context)
	DenyRefund(c *gin.Context)
	ListMine(c *gin.Context)
	ListForLocation(c *gin.Context)
}

type PaymentHTTP interface {
	Webhook(c *gin.Context)
	Charge(c *gin.Context)
}

type AvailabilityHTTP interface {
	Check(c *gin.Context)
}

type Handlers struct {
	Booking      BookingHTTP
	Payment      PaymentHTTP
	Availability AvailabilityHTTP
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key", "X-Actor-ID"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Booking != nil {
		api.POST("/bookings", h.Booking.Create)
		api.POST("/bookings/:id/transition", h.Booking.Transition)
		api.POST("/bookings/:id/refund", h.Booking.RequestRefund)
		api.POST("/bookings/:id/refund/process", h.Booking.ProcessRefund)
		api.POST("/bookings/:id/refund/deny", h.Booking.DenyRefund)
		api.GET("/me/bookings", h.Booking.ListMine)
		api.GET("/locations/:id/bookings", h.Booking.ListForLocation)
	}
	if h.Payment != nil {
		api.POST("/payments/webhook", h.Payment.Webhook)
		api.POST("/payments/charge", h.Payment.Charge)
	}
	if h.Availability != nil {
		api.GET("/locations/:id/availability", h.Availability.Check)
	}

	return &http.Server{Addr: cfg.HTTPAddr, Handler: router}
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
