package expiry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	bookingapp "spothire/internal/app/handlers/booking"
	"spothire/internal/app/outbox"
	"spothire/internal/app/uow"
	domainbooking "spothire/internal/domain/booking"
)

var ErrSweeperNotConfigured = errors.New("expiry: sweeper missing dependencies")

// Sweeper expires unresolved bookings and completes ended ones. A
// payment_pending booking older than TTL with no outcome is cancelled and
// its soft hold released; a confirmed booking whose range has ended becomes
// completed. Pending bookings are never expired: the host may still decide,
// and their soft holds lapse on their own once ExpiresAt passes.
type Sweeper struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Interval   time.Duration
	// TTL is how long an unresolved booking may soft-hold its range.
	TTL time.Duration
	Now func() time.Time
}

func (s *Sweeper) Run(ctx context.Context) error {
	if s.UoWFactory == nil {
		return ErrSweeperNotConfigured
	}
	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.logger().ErrorContext(ctx, "expiry sweep failed", slog.Any("error", err))
			}
		}
	}
}

// SweepOnce runs one expiry plus completion pass.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	now := s.now()
	cutoff := now.Add(-s.ttl())

	if err := s.sweepStale(ctx, domainbooking.StatusPaymentPending, cutoff, now); err != nil {
		return err
	}
	return s.sweepEnded(ctx, now)
}

func (s *Sweeper) sweepStale(ctx context.Context, status domainbooking.Status, cutoff, now time.Time) error {
	unit, err := s.UoWFactory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return err
	}
	stale, err := unit.Bookings().ListStale(ctx, status, cutoff)
	_ = unit.Rollback(ctx)
	if err != nil {
		return err
	}

	for _, b := range stale {
		if err := s.expire(ctx, b.ID, now); err != nil {
			s.logger().WarnContext(ctx, "could not expire booking",
				slog.String("booking_id", string(b.ID)),
				slog.Any("error", err),
			)
			continue
		}
		s.logger().InfoContext(ctx, "booking expired",
			slog.String("booking_id", string(b.ID)),
			slog.String("previous_status", string(status)),
		)
	}
	return nil
}

func (s *Sweeper) sweepEnded(ctx context.Context, now time.Time) error {
	unit, err := s.UoWFactory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return err
	}
	ended, err := unit.Bookings().ListEnded(ctx, now)
	_ = unit.Rollback(ctx)
	if err != nil {
		return err
	}

	for _, b := range ended {
		if err := s.complete(ctx, b.ID, now); err != nil {
			s.logger().WarnContext(ctx, "could not complete booking",
				slog.String("booking_id", string(b.ID)),
				slog.Any("error", err),
			)
		}
	}
	return nil
}

func (s *Sweeper) expire(ctx context.Context, id domainbooking.BookingID, now time.Time) error {
	return s.mutate(ctx, id, func(unit uow.UnitOfWork, b *domainbooking.Booking) error {
		cal, err := unit.Availability().Calendar(ctx, b.LocationID)
		if err != nil {
			return err
		}
		if err := bookingapp.ApplyTransition(b, cal, domainbooking.StatusCancelled, "system", 0, now); err != nil {
			return err
		}
		// a reference means money was captured for this booking at some
		// point; never drop it silently
		if b.PaymentReference != "" {
			b.Record(domainbooking.RefundRequired{
				BookingID:        b.ID,
				PaymentReference: b.PaymentReference,
				Amount:           b.TotalPrice,
				At:               now,
			})
		}
		cal.Prune(now)
		if err := unit.Availability().Save(ctx, cal); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		return bookingapp.DrainEvents(ctx, s.Outbox, s.encoder(), b, cal)
	})
}

func (s *Sweeper) complete(ctx context.Context, id domainbooking.BookingID, now time.Time) error {
	return s.mutate(ctx, id, func(unit uow.UnitOfWork, b *domainbooking.Booking) error {
		if err := b.Complete(now); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		return bookingapp.DrainEvents(ctx, s.Outbox, s.encoder(), b)
	})
}

func (s *Sweeper) mutate(ctx context.Context, id domainbooking.BookingID, fn func(uow.UnitOfWork, *domainbooking.Booking) error) error {
	unit, err := s.UoWFactory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(ctx)
		}
	}()

	b, err := unit.Bookings().ByID(ctx, id)
	if err != nil {
		return err
	}
	if err := fn(unit, b); err != nil {
		return err
	}
	if err := unit.Commit(ctx); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Sweeper) interval() time.Duration {
	if s.Interval <= 0 {
		return time.Minute
	}
	return s.Interval
}

func (s *Sweeper) ttl() time.Duration {
	if s.TTL <= 0 {
		return 30 * time.Minute
	}
	return s.TTL
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Sweeper) encoder() outbox.EventEncoder {
	if s.Encoder != nil {
		return s.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (s *Sweeper) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
