package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainavailability "spothire/internal/domain/availability"
	domainlocation "spothire/internal/domain/location"
	"spothire/internal/domain/shared/daterange"
)

type AvailabilityRepository struct {
	col *mongo.Collection
}

func NewAvailabilityRepository(db *mongo.Database) *AvailabilityRepository {
	return &AvailabilityRepository{col: db.Collection("agg_calendar")}
}

// Calendar loads the location's calendar, materializing an empty one when the
// location has never been booked or synced.
func (r *AvailabilityRepository) Calendar(ctx context.Context, id domainlocation.LocationID) (*domainavailability.Calendar, error) {
	var doc calendarDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domainavailability.NewCalendar(id), nil
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

// Save commits the whole calendar under its version filter. The overlap check
// ran against the loaded state, so a version mismatch means another writer
// changed the holds and the caller must re-check.
func (r *AvailabilityRepository) Save(ctx context.Context, cal *domainavailability.Calendar) error {
	doc := newCalendarDocument(cal)
	filter := bson.M{"_id": doc.ID, "version": cal.Version}
	doc.Version = cal.Version + 1
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
	cal.Version = doc.Version
	return nil
}

type calendarDocument struct {
	ID         string         `bson:"_id"`
	Holds      []holdDocument `bson:"holds"`
	Blackouts  []int64        `bson:"blackouts"`
	LastSyncAt int64          `bson:"last_sync_at"`
	Version    int64          `bson:"version"`
}

type holdDocument struct {
	Range     rangeDocument `bson:"range"`
	Kind      string        `bson:"kind"`
	Reference string        `bson:"reference"`
	ExpiresAt int64         `bson:"expires_at"`
	CreatedAt int64         `bson:"created_at"`
}

func newCalendarDocument(cal *domainavailability.Calendar) calendarDocument {
	holds := make([]holdDocument, 0, len(cal.Holds))
	for _, h := range cal.Holds {
		holds = append(holds, holdDocument{
			Range:     rangeDocument{Start: h.Range.Start.UnixMilli(), End: h.Range.End.UnixMilli()},
			Kind:      string(h.Kind),
			Reference: h.Reference,
			ExpiresAt: timeToTimestamp(h.ExpiresAt),
			CreatedAt: h.CreatedAt.UnixMilli(),
		})
	}
	blackouts := make([]int64, 0, len(cal.Blackouts))
	for _, day := range cal.Blackouts {
		blackouts = append(blackouts, day.UnixMilli())
	}
	return calendarDocument{
		ID:         string(cal.LocationID),
		Holds:      holds,
		Blackouts:  blackouts,
		LastSyncAt: timeToTimestamp(cal.LastSyncAt),
		Version:    cal.Version,
	}
}

func (d calendarDocument) toAggregate() *domainavailability.Calendar {
	holds := make([]domainavailability.Hold, 0, len(d.Holds))
	for _, h := range d.Holds {
		holds = append(holds, domainavailability.Hold{
			Range:     daterange.Range{Start: timestampToTime(h.Range.Start), End: timestampToTime(h.Range.End)},
			Kind:      domainavailability.HoldKind(h.Kind),
			Reference: h.Reference,
			ExpiresAt: timestampToOptionalTime(h.ExpiresAt),
			CreatedAt: timestampToTime(h.CreatedAt),
		})
	}
	blackouts := make([]time.Time, 0, len(d.Blackouts))
	for _, ms := range d.Blackouts {
		blackouts = append(blackouts, timestampToTime(ms))
	}
	return &domainavailability.Calendar{
		LocationID: domainlocation.LocationID(d.ID),
		Holds:      holds,
		Blackouts:  blackouts,
		LastSyncAt: timestampToOptionalTime(d.LastSyncAt),
		Version:    d.Version,
	}
}
