package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stripe/stripe-go/v76"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"

	"spothire/internal/app/commands"
	"spothire/internal/app/expiry"
	availabilityapp "spothire/internal/app/handlers/availability"
	bookingapp "spothire/internal/app/handlers/booking"
	paymentapp "spothire/internal/app/handlers/payment"
	"spothire/internal/app/middleware"
	appoutbox "spothire/internal/app/outbox"
	"spothire/internal/app/queries"
	calendarsync "spothire/internal/app/sync"
	"spothire/internal/app/uow"
	domaincalendar "spothire/internal/domain/calendar"
	"spothire/internal/infra/broker/kafka"
	infracalendar "spothire/internal/infra/calendar"
	"spothire/internal/infra/config"
	"spothire/internal/infra/db/mongo"
	ginserver "spothire/internal/infra/http/gin"
	"spothire/internal/infra/obs"
	infraoutbox "spothire/internal/infra/outbox"
	"spothire/internal/infra/payments"
	"spothire/internal/infra/storage/memory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := getenv("APP_ENV", "dev")
	logger := obs.NewLogger(env)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	stripe.Key = cfg.StripeSecretKey

	app, err := buildApplication(cfg, logger)
	if err != nil {
		logger.Error("application wiring failed", "error", err)
		os.Exit(1)
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: app.ready,
	}, app.handlers)

	for _, worker := range app.workers {
		w := worker
		go func() {
			if err := w.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("worker stopped", "worker", w.name, "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageMode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type worker struct {
	name string
	run  func(ctx context.Context) error
}

type application struct {
	handlers ginserver.Handlers
	workers  []worker
	ready    func() error
}

func buildApplication(cfg config.Config, logger *slog.Logger) (application, error) {
	var (
		uowFactory uow.UoWFactory
		idStore    middleware.IdempotencyStore
		outboxStore appoutbox.Outbox
		workers    []worker
		ready      = func() error { return nil }
	)

	switch cfg.StorageMode {
	case "mongo":
		client, err := mongo.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return application{}, err
		}
		uowFactory = mongo.Factory{
			DB:               client.DB,
			LocationRepo:     mongo.NewLocationRepository(client.DB),
			BookingRepo:      mongo.NewBookingRepository(client.DB),
			AvailabilityRepo: mongo.NewAvailabilityRepository(client.DB),
			Outcomes:         mongo.NewOutcomeStore(client.DB),
		}
		idStore = mongo.NewIdempotencyStore(client.DB, cfg.IdempotencyTTL)
		store := infraoutbox.NewStore(client.DB)
		outboxStore = store
		ready = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx)
		}
		if len(cfg.KafkaBrokers) > 0 {
			producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
			if err != nil {
				return application{}, err
			}
			outboxWorker := &infraoutbox.Worker{
				Store:       store,
				Producer:    producer,
				Interval:    cfg.OutboxPollInterval,
				TopicPrefix: cfg.KafkaTopicPrefix,
				Backoff:     cfg.RetryBackoff,
			}
			workers = append(workers, worker{name: "outbox", run: outboxWorker.Run})
		}
	default:
		uowFactory = memory.Factory{
			LocationRepo:     memory.NewLocationRepository(),
			BookingRepo:      memory.NewBookingRepository(),
			AvailabilityRepo: memory.NewAvailabilityRepository(),
			Outcomes:         memory.NewOutcomeStore(),
		}
		idStore = memory.NewIdempotencyStore()
		outboxStore = memory.NewOutbox()
	}

	commandBus := commands.NewInMemoryBus()
	createHandler := &bookingapp.CreateBookingHandler{
		UoWFactory: uowFactory,
		Outbox:     outboxStore,
		HoldTTL:    cfg.SoftHoldTTL,
	}
	commands.RegisterHandler(commandBus, bookingapp.CreateBookingCommand{}.Key(), createHandler)
	transitionHandler := &bookingapp.TransitionBookingHandler{
		Outbox:  outboxStore,
		HoldTTL: cfg.SoftHoldTTL,
	}
	commands.RegisterHandler(commandBus, bookingapp.TransitionBookingCommand{}.Key(), transitionHandler)
	refundHandler := &bookingapp.RefundHandler{Outbox: outboxStore}
	refundHandler.Register(commandBus)
	reconcileHandler := &paymentapp.ReconcilePaymentHandler{
		Outbox:  outboxStore,
		HoldTTL: cfg.SoftHoldTTL,
	}
	commands.RegisterHandler(commandBus, paymentapp.ReconcilePaymentCommand{}.Key(), reconcileHandler)

	queryBus := queries.NewInMemoryBus()
	listHandler := &bookingapp.ListBookingsHandler{UoWFactory: uowFactory}
	listHandler.Register(queryBus)
	availabilityHandler := &availabilityapp.IsAvailableHandler{UoWFactory: uowFactory}
	queries.RegisterHandler(queryBus, availabilityapp.IsAvailableQuery{}.Key(), availabilityHandler)

	commandBusWithMiddleware := middleware.ChainCommands(
		commandBus,
		middleware.Idempotency(idStore),
		middleware.Transaction(uowFactory, nil),
		middleware.OutboxFlush(outboxStore),
	)
	queryBusWithMiddleware := middleware.ChainQueries(queryBus)

	sweeper := &expiry.Sweeper{
		UoWFactory: uowFactory,
		Outbox:     outboxStore,
		Logger:     logger,
		Interval:   cfg.SweepInterval,
		TTL:        cfg.BookingExpiry,
	}
	workers = append(workers, worker{name: "expiry", run: sweeper.Run})

	if provider := buildCalendarProvider(cfg, logger); provider != nil {
		syncWorker := &calendarsync.CalendarSyncWorker{
			UoWFactory: uowFactory,
			Provider:   provider,
			Logger:     logger,
			Interval:   cfg.CalendarSyncInterval,
			Horizon:    cfg.CalendarSyncHorizon,
		}
		workers = append(workers, worker{name: "calendar-sync", run: syncWorker.Run})
	}

	if len(cfg.KafkaBrokers) > 0 {
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, "spothire-payments", nil, kafka.PaymentEventsHandler{
			Bus:    commandBusWithMiddleware,
			Logger: logger,
		})
		if err != nil {
			return application{}, err
		}
		topic := cfg.KafkaTopicPrefix + cfg.PaymentEventsTopic
		workers = append(workers, worker{name: "payment-events", run: func(ctx context.Context) error {
			defer consumer.Close()
			return consumer.Run(ctx, []string{topic})
		}})
	}

	gateway := ginserver.StripeChargeGateway{Stripe: payments.StripeGateway{
		WebhookSecret: cfg.StripeWebhookSecret,
		ChargeTimeout: cfg.PaymentTimeout,
	}}

	return application{
		handlers: ginserver.Handlers{
			Booking: ginserver.BookingHandler{
				Commands: commandBusWithMiddleware,
				Queries:  queryBusWithMiddleware,
			},
			Payment: ginserver.PaymentHandler{
				Commands: commandBusWithMiddleware,
				Gateway:  gateway,
			},
			Availability: ginserver.AvailabilityHandler{
				Queries: queryBusWithMiddleware,
			},
		},
		workers: workers,
		ready:   ready,
	}, nil
}

func buildCalendarProvider(cfg config.Config, logger *slog.Logger) domaincalendar.Provider {
	clientID := os.Getenv("GOOGLE_CLIENT_ID")
	clientSecret := os.Getenv("GOOGLE_CLIENT_SECRET")
	if clientID == "" || clientSecret == "" {
		logger.Info("google calendar sync disabled, no oauth client configured")
		return nil
	}
	return &infracalendar.GoogleProvider{
		OAuth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     googleoauth.Endpoint,
			Scopes:       []string{gcal.CalendarReadonlyScope},
		},
		CalendarID: cfg.GoogleCalendarID,
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
