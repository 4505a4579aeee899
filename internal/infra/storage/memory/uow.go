package memory

import (
	"context"
	"errors"

	"spothire/internal/app/uow"
	domainavailability "spothire/internal/domain/availability"
	domainbooking "spothire/internal/domain/booking"
	domainlocation "spothire/internal/domain/location"
)

// ErrFactoryMisconfigured indicates missing repositories.
var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// Factory wires in-memory repositories into a unit-of-work boundary.
type Factory struct {
	LocationRepo     domainlocation.Repository
	BookingRepo      domainbooking.Repository
	AvailabilityRepo domainavailability.Repository
	Outcomes         domainbooking.ProcessedOutcomes
}

// Begin starts a lightweight transaction boundary. No isolation is provided but
// the abstraction matches the application ports.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.LocationRepo == nil || f.BookingRepo == nil || f.AvailabilityRepo == nil || f.Outcomes == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{
		locations:    f.LocationRepo,
		bookings:     f.BookingRepo,
		availability: f.AvailabilityRepo,
		outcomes:     f.Outcomes,
	}, nil
}

// Unit is a lightweight uow.UnitOfWork backed by in-memory stores.
type Unit struct {
	locations    domainlocation.Repository
	bookings     domainbooking.Repository
	availability domainavailability.Repository
	outcomes     domainbooking.ProcessedOutcomes
}

func (u *Unit) Locations() domainlocation.Repository { return u.locations }

func (u *Unit) Bookings() domainbooking.Repository { return u.bookings }

func (u *Unit) Availability() domainavailability.Repository { return u.availability }

func (u *Unit) Outcomes() domainbooking.ProcessedOutcomes { return u.outcomes }

func (u *Unit) Commit(ctx context.Context) error { return nil }

func (u *Unit) Rollback(ctx context.Context) error { return nil }

var _ uow.UoWFactory = Factory{}
var _ uow.UnitOfWork = (*Unit)(nil)
