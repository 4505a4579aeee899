package uow

import (
	"context"
	"errors"

	domainavailability "spothire/internal/domain/availability"
	domainbooking "spothire/internal/domain/booking"
	domainlocation "spothire/internal/domain/location"
)

var ErrUnitOfWorkMissing = errors.New("uow: unit of work not found")

// UnitOfWork coordinates repositories inside a transaction boundary. The
// availability overlap check, the booking status write and the
// processed-outcome insert all commit or roll back together.
type UnitOfWork interface {
	Locations() domainlocation.Repository
	Bookings() domainbooking.Repository
	Availability() domainavailability.Repository
	Outcomes() domainbooking.ProcessedOutcomes

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}
