package expiry

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	paymentapp "spothire/internal/app/handlers/payment"
	"spothire/internal/app/uow"
	domainbooking "spothire/internal/domain/booking"
	domainlocation "spothire/internal/domain/location"
	"spothire/internal/domain/shared/daterange"
	"spothire/internal/infra/storage/memory"
)

var sweepNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	factory memory.Factory
	outbox  *memory.Outbox
	sweeper *Sweeper
}

func newHarness(t *testing.T) harness {
	t.Helper()
	h := harness{
		factory: memory.Factory{
			LocationRepo:     memory.NewLocationRepository(),
			BookingRepo:      memory.NewBookingRepository(),
			AvailabilityRepo: memory.NewAvailabilityRepository(),
			Outcomes:         memory.NewOutcomeStore(),
		},
		outbox: memory.NewOutbox(),
	}
	h.sweeper = &Sweeper{
		UoWFactory: h.factory,
		Outbox:     h.outbox,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		TTL:        30 * time.Minute,
		Now:        func() time.Time { return sweepNow },
	}
	return h
}

func (h harness) seed(t *testing.T, id string, status domainbooking.Status, createdAt time.Time, r daterange.Range, withHold bool) {
	t.Helper()
	b, err := domainbooking.New(domainbooking.CreateParams{
		ID:          domainbooking.BookingID(id),
		LocationID:  domainlocation.LocationID("loc-5"),
		RequesterID: "user-9",
		Range:       r,
		TotalPrice:  15000,
		PayNow:      true,
		CreatedAt:   createdAt,
	})
	if err != nil {
		t.Fatalf("new booking: %v", err)
	}
	b.Status = status
	b.ClearEvents()

	ctx := context.Background()
	unit, err := h.factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if withHold {
		cal, err := unit.Availability().Calendar(ctx, b.LocationID)
		if err != nil {
			t.Fatalf("calendar: %v", err)
		}
		if err := cal.Hold(r, id, 30*time.Minute, createdAt); err != nil {
			t.Fatalf("hold: %v", err)
		}
		cal.ClearEvents()
		if err := unit.Availability().Save(ctx, cal); err != nil {
			t.Fatalf("save calendar: %v", err)
		}
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		t.Fatalf("save booking: %v", err)
	}
}

func (h harness) status(t *testing.T, id string) domainbooking.Status {
	t.Helper()
	ctx := context.Background()
	unit, err := h.factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(id))
	if err != nil {
		t.Fatalf("load %s: %v", id, err)
	}
	return b.Status
}

func futureRange(t *testing.T) daterange.Range {
	t.Helper()
	r, err := daterange.New(
		time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 7, 3, 0, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	return r
}

func TestSweepCancelsStalePaymentPending(t *testing.T) {
	h := newHarness(t)
	stale := sweepNow.Add(-2 * time.Hour)
	h.seed(t, "bk-stale-payment", domainbooking.StatusPaymentPending, stale, futureRange(t), true)

	if err := h.sweeper.SweepOnce(context.Background()); err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}

	if got := h.status(t, "bk-stale-payment"); got != domainbooking.StatusCancelled {
		t.Fatalf("stale payment_pending = %s, want cancelled", got)
	}

	// the cancelled booking no longer blocks the range
	ctx := context.Background()
	unit, err := h.factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	cal, err := unit.Availability().Calendar(ctx, domainlocation.LocationID("loc-5"))
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	if !cal.IsFree(futureRange(t), sweepNow) {
		t.Fatal("expired booking must release its hold")
	}
}

func TestSweepNeverCancelsPendingBookings(t *testing.T) {
	h := newHarness(t)
	stale := sweepNow.Add(-2 * time.Hour)
	h.seed(t, "bk-awaiting-host", domainbooking.StatusPending, stale, futureRange(t), false)

	if err := h.sweeper.SweepOnce(context.Background()); err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}
	if got := h.status(t, "bk-awaiting-host"); got != domainbooking.StatusPending {
		t.Fatalf("pending booking = %s, the host decision must stay open", got)
	}
}

// A pay-now booking whose payment succeeded but still needs host approval
// sits in pending with a captured payment attached. The sweeper must leave
// it alone no matter how old it is.
func TestSweepKeepsPaidBookingAwaitingApproval(t *testing.T) {
	h := newHarness(t)
	stale := sweepNow.Add(-45 * time.Minute)
	h.seed(t, "bk-paid", domainbooking.StatusPaymentPending, stale, futureRange(t), true)

	reconciler := &paymentapp.ReconcilePaymentHandler{
		Outbox: h.outbox,
		Now:    func() time.Time { return sweepNow },
	}
	ctx := context.Background()
	unit, err := h.factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	result, err := reconciler.Handle(uow.ContextWithUnitOfWork(ctx, unit), paymentapp.ReconcilePaymentCommand{
		BookingID:        "bk-paid",
		PaymentReference: "pi_1",
		Result:           domainbooking.OutcomeSucceeded,
		Source:           domainbooking.SourceWebhook,
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Status != string(domainbooking.StatusPending) {
		t.Fatalf("reconcile result = %s, want pending", result.Status)
	}

	if err := h.sweeper.SweepOnce(ctx); err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}
	if got := h.status(t, "bk-paid"); got != domainbooking.StatusPending {
		t.Fatalf("paid booking awaiting approval = %s, want pending", got)
	}
}

func TestSweepFlagsRefundWhenCancellingPaidBooking(t *testing.T) {
	h := newHarness(t)
	stale := sweepNow.Add(-2 * time.Hour)
	h.seed(t, "bk-limbo", domainbooking.StatusPaymentPending, stale, futureRange(t), true)

	ctx := context.Background()
	unit, err := h.factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	b, err := unit.Bookings().ByID(ctx, "bk-limbo")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	b.AttachPayment("pi_9", stale)
	b.ClearEvents()
	if err := unit.Bookings().Save(ctx, b); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := h.sweeper.SweepOnce(ctx); err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}
	if got := h.status(t, "bk-limbo"); got != domainbooking.StatusCancelled {
		t.Fatalf("booking = %s, want cancelled", got)
	}
	var refundFlagged bool
	for _, rec := range h.outbox.Records() {
		if rec.Name == "booking.refund_required" && rec.Aggregate == "bk-limbo" {
			refundFlagged = true
		}
	}
	if !refundFlagged {
		t.Fatal("cancelling a booking with a captured payment must flag a refund")
	}
}

func TestSweepLeavesFreshBookingsAlone(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "bk-fresh", domainbooking.StatusPaymentPending, sweepNow.Add(-time.Minute), futureRange(t), true)

	if err := h.sweeper.SweepOnce(context.Background()); err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}
	if got := h.status(t, "bk-fresh"); got != domainbooking.StatusPaymentPending {
		t.Fatalf("fresh booking = %s, want payment_pending", got)
	}
}

func TestSweepCompletesEndedBookings(t *testing.T) {
	h := newHarness(t)
	ended, err := daterange.New(
		time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 5, 22, 0, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	h.seed(t, "bk-done", domainbooking.StatusConfirmed, sweepNow.Add(-30*24*time.Hour), ended, false)
	h.seed(t, "bk-running", domainbooking.StatusConfirmed, sweepNow.Add(-time.Hour), futureRange(t), false)

	if err := h.sweeper.SweepOnce(context.Background()); err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}
	if got := h.status(t, "bk-done"); got != domainbooking.StatusCompleted {
		t.Fatalf("ended booking = %s, want completed", got)
	}
	if got := h.status(t, "bk-running"); got != domainbooking.StatusConfirmed {
		t.Fatalf("running booking = %s, want confirmed", got)
	}
}

func TestSweepEmitsStatusChangedEvents(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "bk-stale", domainbooking.StatusPaymentPending, sweepNow.Add(-2*time.Hour), futureRange(t), true)

	if err := h.sweeper.SweepOnce(context.Background()); err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}

	var sawStatusChange bool
	for _, rec := range h.outbox.Records() {
		if rec.Name == "booking.status_changed" && rec.Aggregate == "bk-stale" {
			sawStatusChange = true
		}
	}
	if !sawStatusChange {
		t.Fatal("expiry must record a status change event for downstream consumers")
	}
}
