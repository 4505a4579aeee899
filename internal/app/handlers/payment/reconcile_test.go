package payment

import (
	"context"
	"testing"
	"time"

	"spothire/internal/app/uow"
	domainavailability "spothire/internal/domain/availability"
	domainbooking "spothire/internal/domain/booking"
	domainlocation "spothire/internal/domain/location"
	"spothire/internal/domain/shared/daterange"
	"spothire/internal/infra/storage/memory"
)

var reconcileNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	factory memory.Factory
	outbox  *memory.Outbox
	handler *ReconcilePaymentHandler
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		factory: memory.Factory{
			LocationRepo:     memory.NewLocationRepository(),
			BookingRepo:      memory.NewBookingRepository(),
			AvailabilityRepo: memory.NewAvailabilityRepository(),
			Outcomes:         memory.NewOutcomeStore(),
		},
		outbox: memory.NewOutbox(),
	}
	f.handler = &ReconcilePaymentHandler{
		Outbox: f.outbox,
		Now:    func() time.Time { return reconcileNow },
	}
	return f
}

func (f fixture) unitCtx(t *testing.T) (uow.UnitOfWork, context.Context) {
	t.Helper()
	unit, err := f.factory.Begin(context.Background(), uow.TxOptions{})
	if err != nil {
		t.Fatalf("begin unit: %v", err)
	}
	return unit, uow.ContextWithUnitOfWork(context.Background(), unit)
}

func (f fixture) seedBooking(t *testing.T, id, description string, withHold bool) *domainbooking.Booking {
	t.Helper()
	r, err := daterange.New(
		time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 7, 3, 0, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	b, err := domainbooking.New(domainbooking.CreateParams{
		ID:                  domainbooking.BookingID(id),
		LocationID:          domainlocation.LocationID("loc-5"),
		RequesterID:         "user-9",
		Range:               r,
		TotalPrice:          15000,
		ActivityDescription: description,
		PayNow:              true,
		CreatedAt:           reconcileNow.Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("new booking: %v", err)
	}
	b.ClearEvents()

	unit, ctx := f.unitCtx(t)
	if withHold {
		cal, err := unit.Availability().Calendar(ctx, b.LocationID)
		if err != nil {
			t.Fatalf("calendar: %v", err)
		}
		if err := cal.Hold(r, id, 30*time.Minute, reconcileNow.Add(-time.Minute)); err != nil {
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
	return b
}

func (f fixture) reconcile(t *testing.T, cmd ReconcilePaymentCommand) *ReconcilePaymentResult {
	t.Helper()
	_, ctx := f.unitCtx(t)
	result, err := f.handler.Handle(ctx, cmd)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	return result
}

func (f fixture) bookingStatus(t *testing.T, id string) domainbooking.Status {
	t.Helper()
	unit, ctx := f.unitCtx(t)
	b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(id))
	if err != nil {
		t.Fatalf("load booking: %v", err)
	}
	return b.Status
}

func TestSucceededOutcomeAutoConfirmsCustomOffer(t *testing.T) {
	f := newFixture(t)
	f.seedBooking(t, "bk-1", "Custom offer booking from Loft A", true)

	result := f.reconcile(t, ReconcilePaymentCommand{
		BookingID:        "bk-1",
		PaymentReference: "pi_123",
		Result:           domainbooking.OutcomeSucceeded,
		Source:           domainbooking.SourceWebhook,
	})
	if result.Status != string(domainbooking.StatusConfirmed) {
		t.Fatalf("status = %s, want confirmed", result.Status)
	}

	// the soft hold was promoted, so the range stays blocked forever
	unit, ctx := f.unitCtx(t)
	cal, err := unit.Availability().Calendar(ctx, domainlocation.LocationID("loc-5"))
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	if len(cal.Holds) != 1 || cal.Holds[0].Kind != domainavailability.HoldHard {
		t.Fatalf("expected one hard hold, got %+v", cal.Holds)
	}
}

func TestSucceededOutcomeNeedsHostApproval(t *testing.T) {
	f := newFixture(t)
	f.seedBooking(t, "bk-1", "Birthday Party", true)

	result := f.reconcile(t, ReconcilePaymentCommand{
		BookingID:        "bk-1",
		PaymentReference: "pi_123",
		Result:           domainbooking.OutcomeSucceeded,
		Source:           domainbooking.SourceWebhook,
	})
	if result.Status != string(domainbooking.StatusPending) {
		t.Fatalf("status = %s, want pending", result.Status)
	}
}

func TestFailedOutcomeCancelsAndReleases(t *testing.T) {
	f := newFixture(t)
	f.seedBooking(t, "bk-1", "Birthday Party", true)

	result := f.reconcile(t, ReconcilePaymentCommand{
		BookingID:        "bk-1",
		PaymentReference: "pi_123",
		Result:           domainbooking.OutcomeFailed,
		Source:           domainbooking.SourceWebhook,
	})
	if result.Status != string(domainbooking.StatusCancelled) {
		t.Fatalf("status = %s, want cancelled", result.Status)
	}

	unit, ctx := f.unitCtx(t)
	cal, err := unit.Availability().Calendar(ctx, domainlocation.LocationID("loc-5"))
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	if len(cal.Holds) != 0 {
		t.Fatalf("hold must be released, got %+v", cal.Holds)
	}
}

func TestDuplicateDeliveryIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.seedBooking(t, "bk-1", "Custom offer booking", true)

	first := f.reconcile(t, ReconcilePaymentCommand{
		BookingID:        "bk-1",
		PaymentReference: "pi_123",
		Result:           domainbooking.OutcomeSucceeded,
		Source:           domainbooking.SourceWebhook,
	})
	if first.Duplicate {
		t.Fatal("first delivery must not report duplicate")
	}
	recordsAfterFirst := len(f.outbox.Records())

	// same outcome arrives again through the retry path
	second := f.reconcile(t, ReconcilePaymentCommand{
		BookingID:        "bk-1",
		PaymentReference: "pi_123",
		Result:           domainbooking.OutcomeSucceeded,
		Source:           domainbooking.SourceRetry,
	})
	if !second.Duplicate {
		t.Fatal("second delivery must report duplicate")
	}
	if second.Status != string(domainbooking.StatusConfirmed) {
		t.Fatalf("duplicate must report current status, got %s", second.Status)
	}
	if got := f.bookingStatus(t, "bk-1"); got != domainbooking.StatusConfirmed {
		t.Fatalf("booking status changed on duplicate: %s", got)
	}
	if got := len(f.outbox.Records()); got != recordsAfterFirst {
		t.Fatalf("duplicate delivery produced events: %d records, want %d", got, recordsAfterFirst)
	}
}

func TestConflictDuringConfirmationCancelsAndFlagsRefund(t *testing.T) {
	f := newFixture(t)
	f.seedBooking(t, "bk-1", "Custom offer booking", false)

	// another booking took the range while bk-1's payment was in flight
	unit, ctx := f.unitCtx(t)
	cal, err := unit.Availability().Calendar(ctx, domainlocation.LocationID("loc-5"))
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	r, _ := daterange.New(
		time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC),
	)
	if err := cal.Reserve(r, "bk-2", reconcileNow); err != nil {
		t.Fatalf("reserve winner: %v", err)
	}
	cal.ClearEvents()
	if err := unit.Availability().Save(ctx, cal); err != nil {
		t.Fatalf("save calendar: %v", err)
	}

	result := f.reconcile(t, ReconcilePaymentCommand{
		BookingID:        "bk-1",
		PaymentReference: "pi_123",
		Result:           domainbooking.OutcomeSucceeded,
		Source:           domainbooking.SourceWebhook,
	})
	if result.Status != string(domainbooking.StatusCancelled) {
		t.Fatalf("loser must be cancelled, got %s", result.Status)
	}

	var refundFlagged bool
	for _, rec := range f.outbox.Records() {
		if rec.Name == "booking.refund_required" {
			refundFlagged = true
		}
	}
	if !refundFlagged {
		t.Fatal("captured payment must be flagged for refund")
	}
}

func TestRejectsUnknownResult(t *testing.T) {
	f := newFixture(t)
	f.seedBooking(t, "bk-1", "Birthday Party", true)

	_, ctx := f.unitCtx(t)
	_, err := f.handler.Handle(ctx, ReconcilePaymentCommand{
		BookingID:        "bk-1",
		PaymentReference: "pi_123",
		Result:           domainbooking.OutcomeResult("maybe"),
	})
	if err != ErrUnknownOutcomeResult {
		t.Fatalf("expected ErrUnknownOutcomeResult, got %v", err)
	}
}
