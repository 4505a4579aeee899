package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "spothire/internal/domain/booking"
	domainlocation "spothire/internal/domain/location"
	"spothire/internal/domain/shared/daterange"
)

var ErrConcurrentUpdate = errors.New("mongo: concurrent update detected")

type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	col := db.Collection("agg_booking")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{Keys: bson.D{{Key: "requester_id", Value: 1}}})
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{Keys: bson.D{{Key: "location_id", Value: 1}}})
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}})
	return &BookingRepository{col: col}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

// Save writes the aggregate guarded by its version so concurrent transitions
// cannot both commit. The losing writer sees ErrConcurrentUpdate and retries
// against the refreshed document.
func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	filter := bson.M{"_id": doc.ID, "version": b.Version}
	doc.Version = b.Version + 1
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)
	res, err := r.col.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConcurrentUpdate
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return ErrConcurrentUpdate
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) ListByRequester(ctx context.Context, requesterID string) ([]*domainbooking.Booking, error) {
	return r.list(ctx, bson.M{"requester_id": requesterID})
}

func (r *BookingRepository) ListByLocation(ctx context.Context, id domainlocation.LocationID) ([]*domainbooking.Booking, error) {
	return r.list(ctx, bson.M{"location_id": string(id)})
}

func (r *BookingRepository) ListStale(ctx context.Context, status domainbooking.Status, cutoff time.Time) ([]*domainbooking.Booking, error) {
	return r.list(ctx, bson.M{"status": string(status), "created_at": bson.M{"$lt": cutoff.UnixMilli()}})
}

func (r *BookingRepository) ListEnded(ctx context.Context, now time.Time) ([]*domainbooking.Booking, error) {
	return r.list(ctx, bson.M{"status": string(domainbooking.StatusConfirmed), "range.end": bson.M{"$lte": now.UnixMilli()}})
}

func (r *BookingRepository) list(ctx context.Context, filter bson.M) ([]*domainbooking.Booking, error) {
	cursor, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var out []*domainbooking.Booking
	for cursor.Next(ctx) {
		var doc bookingDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cursor.Err()
}

type bookingDocument struct {
	ID                  string         `bson:"_id"`
	LocationID          string         `bson:"location_id"`
	RequesterID         string         `bson:"requester_id"`
	Range               rangeDocument  `bson:"range"`
	TotalPrice          int64          `bson:"total_price"`
	Status              string         `bson:"status"`
	ActivityDescription string         `bson:"activity_description"`
	PaymentReference    string         `bson:"payment_reference"`
	Refund              refundDocument `bson:"refund"`
	LastEditedBy        string         `bson:"last_edited_by"`
	LastEditedAt        int64          `bson:"last_edited_at"`
	CreatedAt           int64          `bson:"created_at"`
	UpdatedAt           int64          `bson:"updated_at"`
	Version             int64          `bson:"version"`
}

type rangeDocument struct {
	Start int64 `bson:"start"`
	End   int64 `bson:"end"`
}

type refundDocument struct {
	Amount      int64  `bson:"amount"`
	Reason      string `bson:"reason"`
	RequestedBy string `bson:"requested_by"`
	RequestedAt int64  `bson:"requested_at"`
	ProcessedBy string `bson:"processed_by"`
	ProcessedAt int64  `bson:"processed_at"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	return bookingDocument{
		ID:                  string(b.ID),
		LocationID:          string(b.LocationID),
		RequesterID:         b.RequesterID,
		Range:               rangeDocument{Start: b.Range.Start.UnixMilli(), End: b.Range.End.UnixMilli()},
		TotalPrice:          b.TotalPrice,
		Status:              string(b.Status),
		ActivityDescription: b.ActivityDescription,
		PaymentReference:    b.PaymentReference,
		Refund: refundDocument{
			Amount:      b.Refund.Amount,
			Reason:      b.Refund.Reason,
			RequestedBy: b.Refund.RequestedBy,
			RequestedAt: timeToTimestamp(b.Refund.RequestedAt),
			ProcessedBy: b.Refund.ProcessedBy,
			ProcessedAt: timeToTimestamp(b.Refund.ProcessedAt),
		},
		LastEditedBy: b.LastEditedBy,
		LastEditedAt: timeToTimestamp(b.LastEditedAt),
		CreatedAt:    b.CreatedAt.UnixMilli(),
		UpdatedAt:    b.UpdatedAt.UnixMilli(),
		Version:      b.Version,
	}
}

func (d bookingDocument) toAggregate() *domainbooking.Booking {
	return &domainbooking.Booking{
		ID:                  domainbooking.BookingID(d.ID),
		LocationID:          domainlocation.LocationID(d.LocationID),
		RequesterID:         d.RequesterID,
		Range:               daterange.Range{Start: timestampToTime(d.Range.Start), End: timestampToTime(d.Range.End)},
		TotalPrice:          d.TotalPrice,
		Status:              domainbooking.Status(d.Status),
		ActivityDescription: d.ActivityDescription,
		PaymentReference:    d.PaymentReference,
		Refund: domainbooking.Refund{
			Amount:      d.Refund.Amount,
			Reason:      d.Refund.Reason,
			RequestedBy: d.Refund.RequestedBy,
			RequestedAt: timestampToOptionalTime(d.Refund.RequestedAt),
			ProcessedBy: d.Refund.ProcessedBy,
			ProcessedAt: timestampToOptionalTime(d.Refund.ProcessedAt),
		},
		LastEditedBy: d.LastEditedBy,
		LastEditedAt: timestampToOptionalTime(d.LastEditedAt),
		CreatedAt:    timestampToTime(d.CreatedAt),
		UpdatedAt:    timestampToTime(d.UpdatedAt),
		Version:      d.Version,
	}
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func timestampToOptionalTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func timeToTimestamp(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
