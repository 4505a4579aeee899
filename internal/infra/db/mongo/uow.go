package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"spothire/internal/app/uow"
	domainavailability "spothire/internal/domain/availability"
	domainbooking "spothire/internal/domain/booking"
	domainlocation "spothire/internal/domain/location"
)

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database

	LocationRepo     domainlocation.Repository
	BookingRepo      domainbooking.Repository
	AvailabilityRepo domainavailability.Repository
	Outcomes         domainbooking.ProcessedOutcomes
}

// Begin starts a MongoDB session/transaction.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().SetReadConcern(f.DB.ReadConcern()).SetWriteConcern(f.DB.WriteConcern())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{
		db:           f.DB,
		session:      session,
		locations:    f.LocationRepo,
		bookings:     f.BookingRepo,
		availability: f.AvailabilityRepo,
		outcomes:     f.Outcomes,
	}, nil
}

type Unit struct {
	db      *mongo.Database
	session mongo.Session

	locations    domainlocation.Repository
	bookings     domainbooking.Repository
	availability domainavailability.Repository
	outcomes     domainbooking.ProcessedOutcomes
}

func (u *Unit) Locations() domainlocation.Repository { return u.locations }

func (u *Unit) Bookings() domainbooking.Repository { return u.bookings }

func (u *Unit) Availability() domainavailability.Repository { return u.availability }

func (u *Unit) Outcomes() domainbooking.ProcessedOutcomes { return u.outcomes }

func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.CommitTransaction(ctx)
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures the Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

var _ uow.UoWFactory = Factory{}
var _ uow.UnitOfWork = (*Unit)(nil)
